package status_test

import (
	"context"
	"fmt"
	"sync"

	"warden.app/bot/internal/restriction"
	"warden.app/bot/internal/status"
)

// fakeSurface emulates a channel of editable messages.
type fakeSurface struct {
	mu        sync.Mutex
	nextID    int
	messages  map[string]string
	editErrs  []error // consumed one per Edit call before applying
	sendCount int
	editCount int
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{messages: make(map[string]string)}
}

func (f *fakeSurface) Send(_ context.Context, _ string, content string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("m%d", f.nextID)
	f.messages[id] = content
	f.sendCount++
	return id, nil
}

func (f *fakeSurface) Edit(_ context.Context, _ string, messageID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.editCount++
	if len(f.editErrs) > 0 {
		err := f.editErrs[0]
		f.editErrs = f.editErrs[1:]
		return err
	}
	if _, ok := f.messages[messageID]; !ok {
		return status.ErrNotFound
	}
	f.messages[messageID] = content
	return nil
}

func (f *fakeSurface) Fetch(_ context.Context, _ string, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.messages[messageID]; !ok {
		return status.ErrNotFound
	}
	return nil
}

func (f *fakeSurface) content(messageID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[messageID]
}

func (f *fakeSurface) delete(messageID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.messages, messageID)
}

func (f *fakeSurface) failNextEdit(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.editErrs = append(f.editErrs, err)
}

func (f *fakeSurface) counts() (sends, edits int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sendCount, f.editCount
}

func (f *fakeSurface) latestContent() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[fmt.Sprintf("m%d", f.nextID)]
}

// funcSource lets a test swap the restriction listing behavior mid-run.
type funcSource struct {
	mu sync.Mutex
	fn func(ctx context.Context) ([]restriction.Record, error)
}

func (s *funcSource) set(fn func(ctx context.Context) ([]restriction.Record, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fn = fn
}

func (s *funcSource) ListActive(ctx context.Context) ([]restriction.Record, error) {
	s.mu.Lock()
	fn := s.fn
	s.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(ctx)
}
