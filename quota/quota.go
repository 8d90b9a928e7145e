// Package quota tracks per-user daily caption request usage.
package quota

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Counter stores usage per user per day.
type Counter interface {
	// Used returns how many requests user made today.
	Used(ctx context.Context, user string) (int, error)
	// Increment records one request and returns today's new total.
	Increment(ctx context.Context, user string) (int, error)
	// Reserve records one request only if the user is under the limit, as a
	// single step. It returns today's total and whether the request fit.
	Reserve(ctx context.Context, user string) (int, bool, error)
	// Release gives back one reservation.
	Release(ctx context.Context, user string) error
	// Limit is the daily allowance.
	Limit() int
}

// Message is the user-facing text for an exhausted quota.
func Message(limit int) string {
	return fmt.Sprintf("You have used all %d caption requests for today. Upgrade your plan or try again tomorrow.", limit)
}

// Remaining returns how many requests user has left today.
func Remaining(ctx context.Context, c Counter, user string) (int, error) {
	used, err := c.Used(ctx, user)
	if err != nil {
		return 0, err
	}
	if left := c.Limit() - used; left > 0 {
		return left, nil
	}
	return 0, nil
}

// dayKey buckets usage by UTC day.
func dayKey(now time.Time) string {
	return now.UTC().Format("20060102")
}

// Memory is an in-process Counter.
type Memory struct {
	limit int
	now   func() time.Time

	mu     sync.Mutex
	counts map[string]int
}

// NewMemory creates an in-process counter with the given daily limit.
func NewMemory(limit int) *Memory {
	return &Memory{
		limit:  limit,
		now:    time.Now,
		counts: make(map[string]int),
	}
}

func (m *Memory) key(user string) string {
	return user + ":" + dayKey(m.now())
}

func (m *Memory) Used(ctx context.Context, user string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[m.key(user)], nil
}

func (m *Memory) Increment(ctx context.Context, user string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.key(user)
	m.counts[k]++
	return m.counts[k], nil
}

func (m *Memory) Reserve(ctx context.Context, user string) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.key(user)
	if m.counts[k] >= m.limit {
		return m.counts[k], false, nil
	}
	m.counts[k]++
	return m.counts[k], true, nil
}

func (m *Memory) Release(ctx context.Context, user string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if k := m.key(user); m.counts[k] > 0 {
		m.counts[k]--
	}
	return nil
}

func (m *Memory) Limit() int {
	return m.limit
}

// Checker binds a Counter to one user so the caption generator can consult it.
type Checker struct {
	Counter Counter
	User    string
}

// CanMakeRequest reports whether the user still has requests left today.
func (c Checker) CanMakeRequest(ctx context.Context) (bool, string, error) {
	left, err := Remaining(ctx, c.Counter, c.User)
	if err != nil {
		return false, "", fmt.Errorf("failed to read quota: %w", err)
	}
	if left <= 0 {
		return false, Message(c.Counter.Limit()), nil
	}
	return true, "", nil
}

// IncrementUsage records one successful generation.
func (c Checker) IncrementUsage(ctx context.Context) error {
	_, err := c.Counter.Increment(ctx, c.User)
	return err
}
