// Package notice implements a dismissible site notice. Dismissal is
// remembered per visitor in an expiring flag store, so the notice comes back
// once the flag expires.
package notice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultName is the flag name of the deprecation notice.
const DefaultName = "ack-spray-deprecation-note"

// DefaultTTL is how long a dismissal lasts.
const DefaultTTL = 24 * time.Hour

// ErrUnknownNotice is returned when a request names a notice that is not configured.
var ErrUnknownNotice = errors.New("unknown notice")

// FlagStore persists boolean flags that expire. Get reports false for
// missing and expired flags.
type FlagStore interface {
	Get(ctx context.Context, visitor, name string) (bool, error)
	Set(ctx context.Context, visitor, name string, expires time.Time) error
}

// Clock returns the current time.
type Clock func() time.Time

// Tracker receives notice events; metrics.Wrapper satisfies it.
type Tracker interface {
	NoticeShown()
	NoticeDismissed()
}

type noopTracker struct{}

func (noopTracker) NoticeShown()     {}
func (noopTracker) NoticeDismissed() {}

// Notice is one dismissible notice.
type Notice struct {
	name    string
	ttl     time.Duration
	store   FlagStore
	now     Clock
	tracker Tracker
}

// Option configures a Notice.
type Option func(*Notice)

// WithClock overrides time.Now.
func WithClock(c Clock) Option { return func(n *Notice) { n.now = c } }

// WithTracker reports show/dismiss events to t.
func WithTracker(t Tracker) Option { return func(n *Notice) { n.tracker = t } }

// New creates a notice called name whose dismissal lasts ttl.
func New(name string, ttl time.Duration, store FlagStore, opts ...Option) (*Notice, error) {
	if name == "" {
		return nil, fmt.Errorf("notice name is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("notice ttl must be positive, got %v", ttl)
	}
	if store == nil {
		return nil, fmt.Errorf("notice %s: nil flag store", name)
	}

	n := &Notice{name: name, ttl: ttl, store: store, now: time.Now, tracker: noopTracker{}}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Name returns the flag name.
func (n *Notice) Name() string { return n.name }

// TTL returns how long a dismissal lasts.
func (n *Notice) TTL() time.Duration { return n.ttl }

// Visible reports whether visitor should see the notice.
func (n *Notice) Visible(ctx context.Context, visitor string) (bool, error) {
	acked, err := n.store.Get(ctx, visitor, n.name)
	if err != nil {
		return false, fmt.Errorf("read notice flag %s: %w", n.name, err)
	}
	if !acked {
		n.tracker.NoticeShown()
	}
	return !acked, nil
}

// Dismiss hides the notice for visitor until TTL from now and returns the expiry.
func (n *Notice) Dismiss(ctx context.Context, visitor string) (time.Time, error) {
	expires := n.now().Add(n.ttl)
	if err := n.store.Set(ctx, visitor, n.name, expires); err != nil {
		return time.Time{}, fmt.Errorf("write notice flag %s: %w", n.name, err)
	}
	n.tracker.NoticeDismissed()
	return expires, nil
}

// MemoryStore is an in-process FlagStore.
type MemoryStore struct {
	mu    sync.RWMutex
	flags map[string]time.Time
	now   Clock
}

// NewMemoryStore creates an empty store evaluating expiry against now.
func NewMemoryStore(now Clock) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{flags: make(map[string]time.Time), now: now}
}

func memoryKey(visitor, name string) string { return visitor + "\x00" + name }

// Get implements FlagStore.
func (m *MemoryStore) Get(_ context.Context, visitor, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	exp, ok := m.flags[memoryKey(visitor, name)]
	return ok && m.now().Before(exp), nil
}

// Set implements FlagStore.
func (m *MemoryStore) Set(_ context.Context, visitor, name string, expires time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags[memoryKey(visitor, name)] = expires
	return nil
}

// Purge drops expired flags and returns how many were removed.
func (m *MemoryStore) Purge(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	removed := 0
	for k, exp := range m.flags {
		if !now.Before(exp) {
			delete(m.flags, k)
			removed++
		}
	}
	return removed, nil
}
