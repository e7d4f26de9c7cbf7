package bridge

import (
	"sync"

	"github.com/quayside/gangplank/internal/host"
	"github.com/quayside/gangplank/internal/logger"
	"github.com/quayside/gangplank/internal/metrics"
)

// Arbiter enforces at-most-one resolution per tool confirmation. Pending
// requests are keyed by correlation identifier; the first response from
// any participant wins and later responses are discarded without side
// effects. The bus publish happens outside the critical section.
type Arbiter struct {
	bus *host.Bus

	mu      sync.Mutex
	pending map[string]host.ConfirmationRequest
}

// NewArbiter creates an arbiter publishing responses on the host bus.
func NewArbiter(bus *host.Bus) *Arbiter {
	return &Arbiter{
		bus:     bus,
		pending: make(map[string]host.ConfirmationRequest),
	}
}

// Track records an outstanding confirmation request. Called when the host
// asks for approval; stays pending until resolved or shutdown.
func (a *Arbiter) Track(req host.ConfirmationRequest) {
	a.mu.Lock()
	a.pending[req.CorrelationID] = req
	a.mu.Unlock()

	logger.Debug("tracking confirmation %s for tool %s", req.CorrelationID, req.ToolName)
}

// Resolve answers the confirmation with the given correlation identifier
// on behalf of source. Exactly one caller per identifier ever reaches the
// host bus; duplicates return false and are otherwise ignored, which is
// expected behavior under races rather than an error.
func (a *Arbiter) Resolve(correlationID, optionID, source string) bool {
	a.mu.Lock()
	_, ok := a.pending[correlationID]
	if ok {
		delete(a.pending, correlationID)
	}
	a.mu.Unlock()

	if !ok {
		metrics.RecordConfirmation("duplicate")
		logger.Debug("ignoring response for confirmation %s from %s: not pending", correlationID, source)
		return false
	}

	// proceed_once is the sole affirmative option. Unknown option ids are
	// treated as cancel so an out-of-contract client fails safe.
	confirmed := optionID == OptionProceedOnce

	a.bus.Publish(host.TopicToolConfirmationResponse, host.ConfirmationResponse{
		CorrelationID: correlationID,
		Confirmed:     confirmed,
	})

	metrics.RecordConfirmation("resolved")
	logger.Info("confirmation %s resolved by %s: confirmed=%v (option %q)", correlationID, source, confirmed, optionID)
	return true
}

// Observe clears a pending entry without publishing. Called when a
// response from another participant (the host terminal, or our own
// publish) is seen on the bus, so later peer responses become duplicates.
func (a *Arbiter) Observe(correlationID string) {
	a.mu.Lock()
	_, ok := a.pending[correlationID]
	if ok {
		delete(a.pending, correlationID)
	}
	a.mu.Unlock()

	if ok {
		logger.Debug("confirmation %s resolved elsewhere", correlationID)
	}
}

// CancelAll discards every pending confirmation. Used at shutdown; no
// responses are published.
func (a *Arbiter) CancelAll() {
	a.mu.Lock()
	n := len(a.pending)
	a.pending = make(map[string]host.ConfirmationRequest)
	a.mu.Unlock()

	if n > 0 {
		metrics.Confirmations.WithLabelValues("cancelled").Add(float64(n))
		logger.Info("cancelled %d pending confirmations", n)
	}
}

// PendingCount returns the number of unresolved confirmations.
func (a *Arbiter) PendingCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}
