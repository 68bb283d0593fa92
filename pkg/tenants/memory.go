// pkg/tenants/memory.go
package tenants

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

type memStore struct {
	log   *zap.SugaredLogger
	mu    sync.RWMutex
	creds map[string]Credential
	now   func() time.Time
}

// NewMemoryStore keeps credentials in process. Used for DB_FILE=":memory:" and in tests.
func NewMemoryStore(log *zap.SugaredLogger) Store {
	return &memStore{log: log, creds: map[string]Credential{}, now: time.Now}
}

func (m *memStore) Upsert(_ context.Context, shop, accessToken, scope string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[shop] = Credential{Shop: shop, AccessToken: accessToken, Scope: scope, InstalledAt: m.now().UTC()}
	return nil
}

func (m *memStore) Get(_ context.Context, shop string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.creds[shop]; ok {
		return c.AccessToken, nil
	}
	return "", ErrNotFound
}

func (m *memStore) List(_ context.Context) ([]Installation, error) {
	m.mu.RLock()
	out := make([]Installation, 0, len(m.creds))
	for _, c := range m.creds {
		out = append(out, Installation{Shop: c.Shop, InstalledAt: c.InstalledAt})
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Shop < out[j].Shop })
	return out, nil
}

func (m *memStore) Close() error {
	m.mu.RLock()
	n := len(m.creds)
	m.mu.RUnlock()
	m.log.Debugw("memory credential store closed", "tenants", n)
	return nil
}
