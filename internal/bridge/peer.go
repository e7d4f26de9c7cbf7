package bridge

import (
	"sync"

	"github.com/google/uuid"

	"github.com/quayside/gangplank/internal/logger"
	"github.com/quayside/gangplank/internal/metrics"
)

// TransportKind distinguishes the two peer transports. Peers never migrate
// between transports.
type TransportKind string

const (
	TransportSocket TransportKind = "socket"
	TransportSSE    TransportKind = "sse"
)

// Peer represents one connected external client. Each peer owns a bounded
// outbound frame queue drained by a dedicated write worker; enqueueing
// never blocks the broadcaster.
type Peer struct {
	ID        string
	Transport TransportKind

	queue *frameQueue

	mu      sync.Mutex
	lossy   bool
	lastErr error

	closeOnce sync.Once
	done      chan struct{}
}

func newPeer(transport TransportKind, queueCapacity int) *Peer {
	return &Peer{
		ID:        uuid.New().String(),
		Transport: transport,
		queue:     newFrameQueue(queueCapacity),
		done:      make(chan struct{}),
	}
}

// Enqueue appends a frame to the peer's outbound queue, evicting the
// oldest frame when full. A peer that has dropped frames is flagged lossy
// but stays connected.
func (p *Peer) Enqueue(frame []byte) {
	if p.queue.Push(frame) {
		p.markLossy()
		metrics.RecordFrameDrop(string(p.Transport))
	}
}

// NextFrame blocks until the next outbound frame is ready. Returns false
// once the peer is closed and its queue drained.
func (p *Peer) NextFrame() ([]byte, bool) {
	return p.queue.Pop()
}

// Close closes the outbound queue and signals the write worker. Idempotent.
func (p *Peer) Close() {
	p.closeOnce.Do(func() {
		p.queue.Close()
		close(p.done)
	})
}

// Done is closed when the peer has been shut down.
func (p *Peer) Done() <-chan struct{} {
	return p.done
}

// Lossy reports whether this peer has ever dropped an outbound frame.
// Informational only.
func (p *Peer) Lossy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lossy
}

// DroppedFrames returns the number of frames evicted from this peer's queue.
func (p *Peer) DroppedFrames() int64 {
	return p.queue.Dropped()
}

// SetError records the write error that terminated this peer.
func (p *Peer) SetError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastErr = err
}

// LastError returns the recorded write error, if any.
func (p *Peer) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

func (p *Peer) markLossy() {
	p.mu.Lock()
	first := !p.lossy
	p.lossy = true
	p.mu.Unlock()

	if first {
		logger.Warn("peer %s (%s) fell behind, dropping oldest frames", p.ID, p.Transport)
	}
}
