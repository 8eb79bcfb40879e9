package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrRefreshTimeout = errors.New("timed out waiting for refreshed sell tx")
	ErrRefreshClosed  = errors.New("sell refresh channel closed")
)

// refreshQueue is an unbounded queue of unsigned transactions delivered to
// a running executor. Closing it wakes the receiver.
type refreshQueue struct {
	mu     sync.Mutex
	items  []string
	closed bool
	notify chan struct{}
}

func newRefreshQueue() *refreshQueue {
	return &refreshQueue{notify: make(chan struct{}, 1)}
}

func (q *refreshQueue) push(tx string) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, tx)
	q.mu.Unlock()
	q.wake()
	return true
}

func (q *refreshQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
}

func (q *refreshQueue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *refreshQueue) pop() (string, bool, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) > 0 {
		tx := q.items[0]
		q.items = q.items[1:]
		return tx, true, q.closed
	}
	return "", false, q.closed
}

// next waits for a non-blank payload and returns it trimmed. Each blank
// payload restarts the timeout.
func (q *refreshQueue) next(ctx context.Context, timeout time.Duration, positionID uint64) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		tx, ok, closed := q.pop()
		if ok {
			if trimmed := strings.TrimSpace(tx); trimmed != "" {
				return trimmed, nil
			}
			resetTimer(timer, timeout)
			continue
		}
		if closed {
			return "", fmt.Errorf("%w (position_id=%d)", ErrRefreshClosed, positionID)
		}

		select {
		case <-q.notify:
		case <-timer.C:
			return "", fmt.Errorf("%w (position_id=%d)", ErrRefreshTimeout, positionID)
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func resetTimer(timer *time.Timer, d time.Duration) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(d)
}

// inflightRegistry maps position ids to the refresh queue of their running
// executor. At most one executor is registered per position.
type inflightRegistry struct {
	mu      sync.Mutex
	entries map[uint64]*refreshQueue
}

func newInflightRegistry() *inflightRegistry {
	return &inflightRegistry{entries: make(map[uint64]*refreshQueue)}
}

// acquire registers a new queue for positionID. When an executor is already
// registered its queue is returned with started=false.
func (r *inflightRegistry) acquire(positionID uint64) (q *refreshQueue, started bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.entries[positionID]; ok {
		return existing, false
	}
	q = newRefreshQueue()
	r.entries[positionID] = q
	return q, true
}

// release removes the entry only if it still belongs to q.
func (r *inflightRegistry) release(positionID uint64, q *refreshQueue) {
	r.mu.Lock()
	if r.entries[positionID] == q {
		delete(r.entries, positionID)
	}
	r.mu.Unlock()
	q.close()
}

// cancel drops the entry for positionID; a waiting executor sees a closed queue.
func (r *inflightRegistry) cancel(positionID uint64) bool {
	r.mu.Lock()
	q, ok := r.entries[positionID]
	delete(r.entries, positionID)
	r.mu.Unlock()
	if ok {
		q.close()
	}
	return ok
}

func (r *inflightRegistry) ids() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uint64, 0, len(r.entries))
	for id := range r.entries {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
