// Package host models the terminal agent's side of the bridge contract:
// a normalized event stream, a topic-keyed message bus, an input-injection
// hook, and a read-only session identifier. The bridge core consumes this
// package through a narrow interface so it can be tested with a scripted
// host in place of the real terminal agent.
package host

import "sync"

// EventKind identifies the variant of a host stream event.
type EventKind string

const (
	KindThought         EventKind = "thought"
	KindContent         EventKind = "content"
	KindToolCallRequest EventKind = "tool_call_request"
	KindOutput          EventKind = "output"
	KindConsoleLog      EventKind = "console_log"
	KindHookStart       EventKind = "hook_start"
	KindHookEnd         EventKind = "hook_end"
)

// Event is a single normalized record on the host's event stream.
// Only the fields relevant to Kind are populated.
type Event struct {
	Kind EventKind

	// Thought fields
	Subject     string
	Description string

	// Content fields
	Text string

	// Tool call request fields
	ToolCallID string
	ToolName   string
	Parameters map[string]any

	// Output fields (raw stdout/stderr)
	Chunk    []byte
	IsStderr bool

	// Console log fields
	LogType    string // info, warn, error, debug
	LogContent string

	// Hook fields
	HookName    string
	HookSuccess *bool // set on hook_end only
}

// Session is the live conversational session the host exposes to the
// bridge. Exactly one exists per process; its identifier is assigned at
// startup and never changes.
type Session struct {
	id     string
	stream *EventStream
	bus    *Bus

	mu      sync.RWMutex
	inputFn func(string)
}

// NewSession creates a session with the given identifier.
func NewSession(id string) *Session {
	return &Session{
		id:     id,
		stream: NewEventStream(),
		bus:    NewBus(),
	}
}

// SessionID returns the immutable session identifier.
func (s *Session) SessionID() string {
	return s.id
}

// Bus returns the session's message bus.
func (s *Session) Bus() *Bus {
	return s.bus
}

// Emit publishes an event on the session's event stream.
func (s *Session) Emit(ev Event) {
	s.stream.Publish(ev)
}

// SubscribeEvents registers a subscriber on the event stream.
func (s *Session) SubscribeEvents(bufSize int) <-chan Event {
	return s.stream.Subscribe(bufSize)
}

// UnsubscribeEvents removes a subscriber and closes its channel.
func (s *Session) UnsubscribeEvents(ch <-chan Event) {
	s.stream.Unsubscribe(ch)
}

// EventSubscriberCount returns the number of active event stream subscribers.
func (s *Session) EventSubscriberCount() int {
	return s.stream.SubscriberCount()
}

// OnInput installs the input-injection hook. The hook receives injected
// text exactly as if it had been typed at the terminal.
func (s *Session) OnInput(fn func(string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputFn = fn
}

// InjectInput delivers text into the host's single-writer input queue.
// A no-op when no hook is installed.
func (s *Session) InjectInput(text string) {
	s.mu.RLock()
	fn := s.inputFn
	s.mu.RUnlock()

	if fn != nil {
		fn(text)
	}
}
