package restriction

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Source and Enforcer, used in tests and local
// development where no chat platform is attached.
type Memory struct {
	mu      sync.Mutex
	order   []string
	records map[string]Record

	// Now is the clock; overridable in tests. Defaults to time.Now.
	Now func() time.Time
}

var (
	_ Source   = (*Memory)(nil)
	_ Enforcer = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]Record),
		Now:     time.Now,
	}
}

func (m *Memory) Restrict(_ context.Context, accountID, label string, d time.Duration) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	expires := m.Now().Add(d)
	if _, ok := m.records[accountID]; !ok {
		m.order = append(m.order, accountID)
	}
	m.records[accountID] = Record{AccountID: accountID, Label: label, ExpiresAt: expires}
	return expires, nil
}

func (m *Memory) ListActive(_ context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.Now()
	out := make([]Record, 0, len(m.records))
	for _, id := range m.order {
		if rec := m.records[id]; rec.Active(now) {
			out = append(out, rec)
		}
	}
	return out, nil
}
