package engine

import "time"

// delayedTask is a retrying task parked until its backoff elapses.
type delayedTask struct {
	task      *Task
	visibleAt time.Time
	index     int
}

// delayHeap is a min-heap of delayed tasks ordered by visibility
// time. It implements container/heap.Interface.
type delayHeap []*delayedTask

func (h delayHeap) Len() int { return len(h) }

func (h delayHeap) Less(i, j int) bool {
	return h[i].visibleAt.Before(h[j].visibleAt)
}

func (h delayHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *delayHeap) Push(x any) {
	item := x.(*delayedTask)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *delayHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// peek returns the earliest-visible entry without removing it.
func (h delayHeap) peek() *delayedTask {
	if len(h) == 0 {
		return nil
	}
	return h[0]
}
