package handshake

import "fmt"

// Phase is a step of one handshake attempt.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaitingConsent
	PhaseAwaitingCallback
	PhaseExchanging
	PhaseConnected
	PhaseFailed
)

var phaseNames = map[Phase]string{
	PhaseIdle:             "idle",
	PhaseAwaitingConsent:  "awaiting_consent",
	PhaseAwaitingCallback: "awaiting_callback",
	PhaseExchanging:       "exchanging",
	PhaseConnected:        "connected",
	PhaseFailed:           "failed",
}

var transitions = map[Phase][]Phase{
	PhaseIdle:             {PhaseAwaitingConsent},
	PhaseAwaitingConsent:  {PhaseAwaitingCallback},
	PhaseAwaitingCallback: {PhaseExchanging, PhaseFailed},
	PhaseExchanging:       {PhaseConnected, PhaseFailed},
}

func (p Phase) String() string {
	if s, ok := phaseNames[p]; ok {
		return s
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

func parsePhase(name string) (Phase, bool) {
	for p, n := range phaseNames {
		if n == name {
			return p, true
		}
	}
	return PhaseIdle, false
}

func (p Phase) CanTransition(to Phase) bool {
	for _, next := range transitions[p] {
		if next == to {
			return true
		}
	}
	return false
}

// advance panics on a transition outside the table; that is a bug in this package, not bad input.
func advance(from, to Phase) Phase {
	if !from.CanTransition(to) {
		panic(fmt.Sprintf("handshake: illegal transition %s -> %s", from, to))
	}
	return to
}
