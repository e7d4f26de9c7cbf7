package bridge

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/quayside/gangplank/internal/logger"
	"github.com/quayside/gangplank/internal/metrics"
)

// Router classifies inbound peer messages and forwards them to the host:
// prompts go to the input-injection hook, confirmation responses to the
// arbiter, everything else is dropped with a debug log. Both transports
// share the same semantics.
type Router struct {
	hostCtx HostContext
	arbiter *Arbiter
	limiter *peerLimiter
}

// NewRouter creates a router. msgRate and burst throttle prompt injection
// per peer; over-limit prompts are dropped, never disconnected.
func NewRouter(hostCtx HostContext, arbiter *Arbiter, msgRate float64, burst int) *Router {
	return &Router{
		hostCtx: hostCtx,
		arbiter: arbiter,
		limiter: newPeerLimiter(msgRate, burst),
	}
}

// HandleInbound processes one raw frame from the given peer. Malformed or
// unrecognized frames never terminate the peer.
func (rt *Router) HandleInbound(peerID string, raw []byte) {
	msg, err := DecodeInbound(raw)
	if err != nil {
		metrics.RecordInbound("malformed")
		logger.Debug("dropping malformed frame from peer %s: %v", peerID, err)
		return
	}

	if msg.Method != MethodMessageStream {
		metrics.RecordInbound("unrecognized")
		logger.Debug("dropping message with method %q from peer %s", msg.Method, peerID)
		return
	}

	content := msg.Params.Message.Content
	if content == nil {
		metrics.RecordInbound("unrecognized")
		logger.Debug("dropping message without content from peer %s", peerID)
		return
	}

	if text, ok := content.Text.(string); ok {
		if !rt.limiter.Allow(peerID) {
			metrics.RecordInbound("throttled")
			logger.Warn("throttled prompt injection from peer %s", peerID)
			return
		}
		metrics.RecordInbound("prompt")
		logger.Info("peer %s injected prompt (%d bytes)", peerID, len(text))
		rt.hostCtx.InjectInput(text)
		return
	}

	if content.Data != nil && content.Data.Kind == DataKindToolCallConfirmation {
		metrics.RecordInbound("confirmation")
		rt.arbiter.Resolve(content.Data.ToolCallID, content.Data.SelectedOptionID, "peer "+peerID)
		return
	}

	metrics.RecordInbound("unrecognized")
	logger.Debug("dropping unrecognized message content from peer %s", peerID)
}

// ReleasePeer discards the rate limiter state for a disconnected peer.
func (rt *Router) ReleasePeer(peerID string) {
	rt.limiter.Release(peerID)
}

// peerLimiter provides per-peer rate limiting for prompt injection.
type peerLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newPeerLimiter(perSecond float64, burst int) *peerLimiter {
	if perSecond <= 0 {
		perSecond = 10
	}
	if burst <= 0 {
		burst = 20
	}
	return &peerLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(perSecond),
		burst:    burst,
	}
}

// Allow checks whether the peer may inject another prompt right now.
func (l *peerLimiter) Allow(peerID string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[peerID]
	if !ok {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[peerID] = limiter
	}
	l.mu.Unlock()

	return limiter.Allow()
}

// Release drops the limiter for a peer that has disconnected.
func (l *peerLimiter) Release(peerID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.limiters, peerID)
}
