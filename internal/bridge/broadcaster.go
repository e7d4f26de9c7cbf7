package bridge

import (
	"github.com/quayside/gangplank/internal/logger"
	"github.com/quayside/gangplank/internal/metrics"
)

// Broadcaster is the fan-out engine. It stamps each event with the
// session identifier, serializes it once per transport kind, and enqueues
// the frames on every registered peer. No peer locks are held while
// serializing, and a full peer queue sheds its oldest frame rather than
// blocking the caller. Callers on the same event source must invoke
// Broadcast sequentially to preserve per-source ordering.
type Broadcaster struct {
	sessionID string
	registry  *Registry
}

// NewBroadcaster creates a broadcaster for the given session.
func NewBroadcaster(sessionID string, registry *Registry) *Broadcaster {
	return &Broadcaster{sessionID: sessionID, registry: registry}
}

// Broadcast delivers one canonical event to all connected peers.
func (b *Broadcaster) Broadcast(ev Event) {
	ev.TaskID = b.sessionID

	socketFrame, err := EncodeSocketFrame(&ev)
	if err != nil {
		logger.Error("failed to encode event %s for socket transport: %v", ev.Kind, err)
		return
	}
	sseFrame, err := EncodeSSEFrame(&ev)
	if err != nil {
		logger.Error("failed to encode event %s for sse transport: %v", ev.Kind, err)
		return
	}

	metrics.EventsBroadcast.WithLabelValues(string(ev.Kind)).Inc()

	b.registry.ForEachOpen(func(p *Peer) {
		switch p.Transport {
		case TransportSocket:
			p.Enqueue(socketFrame)
		case TransportSSE:
			p.Enqueue(sseFrame)
		}
	})
}
