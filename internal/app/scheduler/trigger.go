// Package scheduler provides one-shot, cancellable, time-bound phase triggers.
package scheduler

import (
	"container/heap"
	"time"

	"github.com/osa030/hideseek/internal/domain/game"
)

// Trigger is a scheduled request to move a session from From to Target.
type Trigger struct {
	JobID     string
	SessionID string
	From      game.Status // Expected phase at fire time
	Target    game.Status
	FiresAt   time.Time
}

// entry is a pending trigger inside the heap.
type entry struct {
	trigger Trigger
	seq     uint64 // Arm order
	index   int    // Heap index, -1 once removed
}

// entryHeap orders entries by fire time, then by arm order.
type entryHeap []*entry

var _ heap.Interface = (*entryHeap)(nil)

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if !h[i].trigger.FiresAt.Equal(h[j].trigger.FiresAt) {
		return h[i].trigger.FiresAt.Before(h[j].trigger.FiresAt)
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

func (h entryHeap) peek() *entry {
	if len(h) == 0 {
		return nil
	}
	return h[0]
}
