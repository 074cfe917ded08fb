package task

import (
	"container/heap"
	"errors"
	"sync"
)

// ErrQueueClosed is returned when a task is submitted after Close.
var ErrQueueClosed = errors.New("task queue is closed")

// queueItem is one queued task id. seq breaks ties between equal
// priorities so that earlier submissions dequeue first.
type queueItem struct {
	id       string
	priority Priority
	seq      uint64
}

// itemHeap orders ids by descending priority, then ascending submission
// sequence.
type itemHeap []queueItem

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) { *h = append(*h, x.(queueItem)) }

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Queue is a concurrency-safe priority queue of task ids. Dequeue blocks
// while the queue is empty; each Enqueue wakes one waiter, and Close
// wakes them all so workers can observe shutdown.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  itemHeap
	seq    uint64
	closed bool
}

// NewQueue creates an empty, open queue.
func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue adds a task id at the given priority and wakes one waiting
// dequeuer. Returns ErrQueueClosed after Close.
func (q *Queue) Enqueue(id string, priority Priority) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	q.seq++
	heap.Push(&q.items, queueItem{id: id, priority: priority, seq: q.seq})
	q.cond.Signal()
	return nil
}

// Dequeue removes and returns the highest-priority id, blocking while the
// queue is empty. It returns ok=false once the queue has been closed;
// ids still queued at close time are abandoned, their tasks simply stay
// in whatever state the registry has for them.
func (q *Queue) Dequeue() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return "", false
	}
	item := heap.Pop(&q.items).(queueItem)
	return item.id, true
}

// Len returns the number of queued ids.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close marks the queue closed and wakes every blocked dequeuer.
// Closing twice is a no-op.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.cond.Broadcast()
}
