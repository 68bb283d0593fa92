package session

import (
	"context"
	"sync"
	"time"
)

const sweepEvery = time.Minute

type memEntry struct {
	pending        *Pending
	pendingExpires time.Time
	connected      string
	expires        time.Time
}

// dead reports whether nothing in the entry is still live at now.
func (e *memEntry) dead(now time.Time) bool {
	pendingLive := e.pending != nil && now.Before(e.pendingExpires)
	connectedLive := e.connected != "" && now.Before(e.expires)
	return !pendingLive && !connectedLive
}

type memStore struct {
	mu         sync.Mutex
	data       map[string]*memEntry
	sessionTTL time.Duration
	lastSweep  time.Time
	now        func() time.Time
}

// NewMemoryStore keeps sessions in process. Sessions are lost on restart. Expired entries are
// dropped on write, at most once per sweep interval.
func NewMemoryStore(sessionTTL time.Duration) Store {
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &memStore{data: map[string]*memEntry{}, sessionTTL: sessionTTL, now: time.Now}
}

func (m *memStore) entry(id string) *memEntry {
	e, ok := m.data[id]
	if !ok {
		e = &memEntry{}
		m.data[id] = e
	}
	return e
}

// sweep must be called with mu held.
func (m *memStore) sweep(now time.Time) {
	if now.Sub(m.lastSweep) < sweepEvery {
		return
	}
	m.lastSweep = now
	for id, e := range m.data {
		if e.dead(now) {
			delete(m.data, id)
		}
	}
}

func (m *memStore) Get(_ context.Context, id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	s := Session{ID: id}
	e, ok := m.data[id]
	if !ok {
		return s, nil
	}
	if e.dead(now) {
		delete(m.data, id)
		return s, nil
	}
	if e.pending != nil && now.Before(e.pendingExpires) {
		p := *e.pending
		s.Pending = &p
	}
	if now.Before(e.expires) {
		s.ConnectedShop = e.connected
	}
	return s, nil
}

func (m *memStore) SetPending(_ context.Context, id string, p Pending, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.sweep(now)
	e := m.entry(id)
	e.pending = &p
	e.pendingExpires = now.Add(ttl)
	return nil
}

func (m *memStore) ConsumePending(_ context.Context, id string) (Pending, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[id]
	if !ok || e.pending == nil {
		return Pending{}, false, nil
	}
	now := m.now()
	p, live := *e.pending, now.Before(e.pendingExpires)
	e.pending = nil
	if e.connected == "" || !now.Before(e.expires) {
		delete(m.data, id)
	}
	if !live {
		return Pending{}, false, nil
	}
	return p, true, nil
}

func (m *memStore) SetConnected(_ context.Context, id, shop string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.sweep(now)
	e := m.entry(id)
	e.connected = shop
	e.expires = now.Add(m.sessionTTL)
	return nil
}

func (m *memStore) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}
