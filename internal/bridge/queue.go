package bridge

import "sync"

// DefaultQueueCapacity bounds a peer's outbound queue when no capacity is
// configured.
const DefaultQueueCapacity = 1024

// frameQueue is a bounded FIFO of serialized frames with drop-oldest
// overflow. The producer never blocks: when the queue is full the oldest
// frame is evicted and counted, which is what keeps a slow peer from ever
// stalling the session. One producer side may be called from multiple
// goroutines; the consumer side (Pop) is a single write worker.
type frameQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	frames  [][]byte
	maxSize int
	dropped int64
	closed  bool
}

func newFrameQueue(maxSize int) *frameQueue {
	if maxSize <= 0 {
		maxSize = DefaultQueueCapacity
	}
	q := &frameQueue{
		frames:  make([][]byte, 0, maxSize),
		maxSize: maxSize,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues a frame, evicting the oldest one if the queue is full.
// Returns true when a frame was dropped. Pushes after Close are discarded.
func (q *frameQueue) Push(frame []byte) (droppedOldest bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if len(q.frames) >= q.maxSize {
		q.frames = q.frames[1:]
		q.dropped++
		droppedOldest = true
	}
	q.frames = append(q.frames, frame)
	q.cond.Signal()
	return droppedOldest
}

// Pop blocks until a frame is available or the queue is closed and
// drained. The second return value is false only when no frame will ever
// be available again.
func (q *frameQueue) Pop() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.frames) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.frames) == 0 {
		return nil, false
	}
	frame := q.frames[0]
	q.frames = q.frames[1:]
	return frame, true
}

// Close marks the queue closed and wakes the consumer. Remaining frames
// stay poppable so the write worker can flush best-effort.
func (q *frameQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.cond.Broadcast()
}

// Dropped returns the count of frames evicted due to overflow.
func (q *frameQueue) Dropped() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Len returns the number of frames currently queued.
func (q *frameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}
