package pipeline

import (
	"context"
	"sync"
	"time"
)

// Policy selects what happens to a second request for a chat whose summary
// is already in flight.
type Policy string

const (
	// PolicyReject refuses the request with a *BusyError. This is the
	// default: queueing risks unbounded latency when generation is slow.
	PolicyReject Policy = "reject"
	// PolicyQueue waits on the per-chat slot until the running request
	// finishes or the context is canceled.
	PolicyQueue Policy = "queue"
)

const busyRetryAfter = 15 * time.Second

// guard serializes pipeline executions per chat. Each chat gets its own
// one-slot semaphore, created on demand and removed when the last holder
// or waiter releases it, so distinct chats never contend.
type guard struct {
	policy Policy

	mu    sync.Mutex
	slots map[string]*chatSlot
}

type chatSlot struct {
	sem  chan struct{}
	refs int
}

func newGuard(policy Policy) *guard {
	return &guard{
		policy: policy,
		slots:  make(map[string]*chatSlot),
	}
}

// acquire claims the chat's slot. The returned release function must be
// called exactly once; it is safe to call from a deferred statement even
// when the pipeline errors mid-flight.
func (g *guard) acquire(ctx context.Context, chatID string) (func(), error) {
	g.mu.Lock()
	slot, ok := g.slots[chatID]
	if !ok {
		slot = &chatSlot{sem: make(chan struct{}, 1)}
		g.slots[chatID] = slot
	}
	slot.refs++
	g.mu.Unlock()

	claimed := false
	switch g.policy {
	case PolicyQueue:
		select {
		case slot.sem <- struct{}{}:
			claimed = true
		case <-ctx.Done():
		}
	default:
		select {
		case slot.sem <- struct{}{}:
			claimed = true
		default:
		}
	}

	if !claimed {
		g.unref(chatID, slot)
		if ctx.Err() != nil {
			return nil, wrapCanceled(ctx.Err())
		}
		return nil, &BusyError{ChatID: chatID, RetryAfter: busyRetryAfter}
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			<-slot.sem
			g.unref(chatID, slot)
		})
	}
	return release, nil
}

func (g *guard) unref(chatID string, slot *chatSlot) {
	g.mu.Lock()
	slot.refs--
	if slot.refs == 0 {
		delete(g.slots, chatID)
	}
	g.mu.Unlock()
}
