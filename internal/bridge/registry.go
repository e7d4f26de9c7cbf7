package bridge

import (
	"sync"

	"github.com/quayside/gangplank/internal/logger"
	"github.com/quayside/gangplank/internal/metrics"
)

// Registry is the set of live peers. Safe under concurrent producers
// (broadcast) and consumers (accept, close callbacks). Iteration works on
// a snapshot so unregistration during a broadcast is harmless.
type Registry struct {
	mu    sync.RWMutex
	peers map[string]*Peer
}

// NewRegistry creates an empty peer registry.
func NewRegistry() *Registry {
	return &Registry{peers: make(map[string]*Peer)}
}

// Register admits a peer whose transport is already confirmed open and
// returns its identifier.
func (r *Registry) Register(p *Peer) string {
	r.mu.Lock()
	r.peers[p.ID] = p
	total := len(r.peers)
	r.mu.Unlock()

	metrics.RecordPeerConnect(string(p.Transport))
	logger.Info("peer %s connected via %s (total: %d)", p.ID, p.Transport, total)
	return p.ID
}

// Unregister removes a peer and closes it. A removed peer receives no
// further events. Safe to call more than once per peer.
func (r *Registry) Unregister(peerID string) {
	r.mu.Lock()
	p, ok := r.peers[peerID]
	if ok {
		delete(r.peers, peerID)
	}
	total := len(r.peers)
	r.mu.Unlock()

	if !ok {
		return
	}

	p.Close()
	metrics.RecordPeerDisconnect(string(p.Transport))
	if dropped := p.DroppedFrames(); dropped > 0 {
		logger.Info("peer %s disconnected, dropped %d frames while connected (total: %d)", peerID, dropped, total)
	} else {
		logger.Info("peer %s disconnected (total: %d)", peerID, total)
	}
}

// Get returns the peer with the given identifier.
func (r *Registry) Get(peerID string) (*Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[peerID]
	return p, ok
}

// ForEachOpen calls fn for every registered peer. The peer set is
// snapshotted under the read lock and iterated without it, so fn may block
// or unregister peers freely.
func (r *Registry) ForEachOpen(fn func(*Peer)) {
	r.mu.RLock()
	snapshot := make([]*Peer, 0, len(r.peers))
	for _, p := range r.peers {
		snapshot = append(snapshot, p)
	}
	r.mu.RUnlock()

	for _, p := range snapshot {
		fn(p)
	}
}

// Len returns the number of registered peers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// CloseAll unregisters and closes every peer. Used at shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	peers := r.peers
	r.peers = make(map[string]*Peer)
	r.mu.Unlock()

	for _, p := range peers {
		p.Close()
		metrics.RecordPeerDisconnect(string(p.Transport))
	}
	if len(peers) > 0 {
		logger.Info("closed %d peers at shutdown", len(peers))
	}
}
