package bridge

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quayside/gangplank/internal/logger"
	"github.com/quayside/gangplank/internal/metrics"
)

// AgentCard is the descriptor served at /.well-known/agent-card.json.
// Field names are protocol-fixed.
type AgentCard struct {
	Name               string            `json:"name"`
	Description        string            `json:"description"`
	URL                string            `json:"url"`
	Version            string            `json:"version"`
	ProtocolVersion    string            `json:"protocolVersion"`
	Capabilities       AgentCapabilities `json:"capabilities"`
	DefaultInputModes  []string          `json:"defaultInputModes"`
	DefaultOutputModes []string          `json:"defaultOutputModes"`
	Skills             []AgentSkill      `json:"skills"`
}

// AgentCapabilities advertises streaming support and required extensions.
type AgentCapabilities struct {
	Streaming  bool             `json:"streaming"`
	Extensions []AgentExtension `json:"extensions"`
}

// AgentExtension names a protocol extension the agent speaks.
type AgentExtension struct {
	URI         string `json:"uri"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// AgentSkill describes one capability advertised on the card.
type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	InputModes  []string `json:"inputModes"`
	OutputModes []string `json:"outputModes"`
}

// ProtocolVersion is the bridge protocol revision on the agent card.
const ProtocolVersion = "0.3.0"

// socketWriteTimeout bounds a single framed-socket write so a wedged peer
// surfaces as a write error instead of a stuck worker.
const socketWriteTimeout = 10 * time.Second

// httpAPI serves the bridge's HTTP and socket surface.
type httpAPI struct {
	sessionID     string
	card          AgentCard
	registry      *Registry
	router        *Router
	queueCapacity int
	upgrader      websocket.Upgrader
}

func newHTTPAPI(sessionID string, card AgentCard, registry *Registry, router *Router, queueCapacity int) *httpAPI {
	return &httpAPI{
		sessionID:     sessionID,
		card:          card,
		registry:      registry,
		router:        router,
		queueCapacity: queueCapacity,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Loopback only; local tooling connects from arbitrary origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// routes builds the route table. The stream-posting aliases exist for
// protocol compatibility and all land on the same handler.
func (api *httpAPI) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /.well-known/agent-card.json", api.handleAgentCard)
	mux.HandleFunc("POST /tasks", api.handleCreateTask)

	mux.HandleFunc("POST /tasks/{taskId}/messages/stream", api.handleTaskStream)
	mux.HandleFunc("POST /tasks/{taskId}/messages", api.handleTaskStream)
	mux.HandleFunc("POST /v1/tasks/{taskId}/messages", api.handleTaskStream)
	mux.HandleFunc("POST /v1/message:stream", api.handleStream)
	mux.HandleFunc("POST /{$}", api.handleStream)

	mux.HandleFunc("GET /ws", api.handleSocket)

	mux.HandleFunc("GET /health", api.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("/", api.handleNotFound)

	return metrics.Middleware(mux)
}

func (api *httpAPI) handleAgentCard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.card)
}

func (api *httpAPI) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, map[string]string{"id": api.sessionID})
}

func (api *httpAPI) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (api *httpAPI) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "Not Found")
}

// handleTaskStream validates the task identifier before opening a stream.
func (api *httpAPI) handleTaskStream(w http.ResponseWriter, r *http.Request) {
	if r.PathValue("taskId") != api.sessionID {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	api.handleStream(w, r)
}

// handleStream opens an SSE peer, routes the request body as an inbound
// peer message, and streams events until the client disconnects.
func (api *httpAPI) handleStream(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	flusher.Flush()

	peer := newPeer(TransportSSE, api.queueCapacity)
	api.registry.Register(peer)
	defer func() {
		api.registry.Unregister(peer.ID)
		api.router.ReleasePeer(peer.ID)
	}()

	ctx := context.WithValue(r.Context(), logger.ContextKeyPeerID, peer.ID)
	ctx = context.WithValue(ctx, logger.ContextKeyTaskID, api.sessionID)

	// Wake the frame loop when the client goes away.
	go func() {
		select {
		case <-ctx.Done():
			peer.Close()
		case <-peer.Done():
		}
	}()

	api.router.HandleInbound(peer.ID, body)

	for {
		frame, open := peer.NextFrame()
		if !open {
			return
		}
		if _, err := w.Write(frame); err != nil {
			peer.SetError(err)
			logger.DebugContext(ctx, "sse write failed", "error", err)
			return
		}
		flusher.Flush()
	}
}

// handleSocket upgrades to the framed-socket transport and registers a
// peer. The write worker drains the outbound queue on its own goroutine;
// this handler becomes the read loop.
func (api *httpAPI) handleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := api.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("socket upgrade failed: %v", err)
		return
	}

	peer := newPeer(TransportSocket, api.queueCapacity)
	api.registry.Register(peer)

	ctx := context.WithValue(r.Context(), logger.ContextKeyPeerID, peer.ID)

	unregister := func() {
		api.registry.Unregister(peer.ID)
		api.router.ReleasePeer(peer.ID)
	}

	go func() {
		defer func() { _ = conn.Close() }()
		for {
			frame, open := peer.NextFrame()
			if !open {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(socketWriteTimeout))
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				peer.SetError(err)
				logger.DebugContext(ctx, "socket write failed", "error", err)
				unregister()
				return
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		api.router.HandleInbound(peer.ID, data)
	}

	unregister()
	_ = conn.Close()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
