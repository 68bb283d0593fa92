// Package session holds the per-browser handshake record and the cookie that identifies it.
package session

import (
	"context"
	"time"

	"aervo/pkg/domainerrors"
)

// Pending is the single outstanding handshake a session may have.
type Pending struct {
	State string `json:"state"`
	Shop  string `json:"shop"`
	Phase string `json:"phase,omitempty"`
}

// Session is the server-side record keyed by the opaque id carried in the cookie.
type Session struct {
	ID            string
	Pending       *Pending
	ConnectedShop string
}

// Store persists sessions. SetPending replaces any earlier pending handshake, and
// ConsumePending reads and clears it in one step so a state token is used at most once.
type Store interface {
	Get(ctx context.Context, id string) (Session, error)
	SetPending(ctx context.Context, id string, p Pending, ttl time.Duration) error
	ConsumePending(ctx context.Context, id string) (Pending, bool, error)
	SetConnected(ctx context.Context, id, shop string) error
}

type ctxKey struct{}

func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IDFrom returns the session id installed by Middleware, or "".
func IDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func storageErr(op string, err error) error {
	return domainerrors.Wrap(err, domainerrors.CodeStorage, "session store "+op+" failed")
}
