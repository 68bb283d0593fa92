package handshake

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"aervo/internal/session"
)

const stateBytes = 32

// StateManager binds anti-forgery tokens to a session and a shop.
type StateManager struct {
	sessions session.Store
	ttl      time.Duration
}

func NewStateManager(sessions session.Store, ttl time.Duration) *StateManager {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &StateManager{sessions: sessions, ttl: ttl}
}

// Issue stores a fresh token for (sid, shop) together with the attempt's phase, replacing any
// earlier pending handshake.
func (m *StateManager) Issue(ctx context.Context, sid, shop string, phase Phase) (string, error) {
	buf := make([]byte, stateBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := hex.EncodeToString(buf)
	if err := m.sessions.SetPending(ctx, sid, session.Pending{State: token, Shop: shop, Phase: phase.String()}, m.ttl); err != nil {
		return "", err
	}
	return token, nil
}

// Validate consumes the pending handshake for sid whatever the outcome. It reports true only
// when one existed and both the token and the shop match.
func (m *StateManager) Validate(ctx context.Context, sid, token, shop string) (bool, error) {
	p, ok, err := m.sessions.ConsumePending(ctx, sid)
	if err != nil {
		return false, err
	}
	if !ok || p.State == "" || p.Shop == "" {
		return false, nil
	}
	tokenOK := subtle.ConstantTimeCompare([]byte(p.State), []byte(token)) == 1
	return tokenOK && p.Shop == shop, nil
}
