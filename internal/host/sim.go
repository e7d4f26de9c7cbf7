package host

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SimOptions configures the scripted host.
type SimOptions struct {
	// RequireConfirmation makes every turn run a tool call that needs
	// approval before it completes.
	RequireConfirmation bool

	// ToolDelay is how long the simulated tool "runs" once approved.
	ToolDelay time.Duration
}

// Sim drives a Session with a canned model turn for each injected prompt.
// It stands in for the real terminal agent in the demo binary and lets the
// bridge be exercised end to end without a model behind it.
type Sim struct {
	sess *Session
	opts SimOptions

	mu        sync.Mutex
	pendingID string

	responses <-chan Message
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewSim attaches a scripted host to the session. It installs the session's
// input hook; each injected prompt triggers one simulated turn.
func NewSim(sess *Session, opts SimOptions) *Sim {
	if opts.ToolDelay <= 0 {
		opts.ToolDelay = 200 * time.Millisecond
	}
	sim := &Sim{
		sess:      sess,
		opts:      opts,
		responses: sess.Bus().Subscribe(TopicToolConfirmationResponse, 16),
		done:      make(chan struct{}),
	}
	sess.OnInput(sim.handleInput)
	return sim
}

// Close stops the sim and waits for in-flight turns to finish.
func (sim *Sim) Close() {
	close(sim.done)
	sim.wg.Wait()
	sim.sess.Bus().Unsubscribe(sim.responses)
}

// ApprovePending answers the sim's outstanding confirmation from the
// terminal side, the way the host's own dialog would.
func (sim *Sim) ApprovePending(confirmed bool) bool {
	sim.mu.Lock()
	id := sim.pendingID
	sim.mu.Unlock()

	if id == "" {
		return false
	}
	sim.sess.Bus().Publish(TopicToolConfirmationResponse, ConfirmationResponse{
		CorrelationID: id,
		Confirmed:     confirmed,
	})
	return true
}

func (sim *Sim) handleInput(prompt string) {
	sim.wg.Add(1)
	go func() {
		defer sim.wg.Done()
		sim.turn(prompt)
	}()
}

// turn emits one scripted model turn. Injected input is echoed through the
// normal event stream so every peer observes it.
func (sim *Sim) turn(prompt string) {
	sim.sess.Emit(Event{Kind: KindContent, Text: fmt.Sprintf("> %s\n", prompt)})
	sim.sess.Emit(Event{
		Kind:        KindThought,
		Subject:     "Planning",
		Description: fmt.Sprintf("Deciding how to handle %q", prompt),
	})

	if sim.opts.RequireConfirmation {
		if !sim.runConfirmedTool(prompt) {
			return
		}
	}

	sim.sess.Emit(Event{Kind: KindContent, Text: "Done.\n"})
}

func (sim *Sim) runConfirmedTool(prompt string) bool {
	id := uuid.New().String()
	command := fmt.Sprintf("echo %q", prompt)

	sim.mu.Lock()
	sim.pendingID = id
	sim.mu.Unlock()

	sim.sess.Emit(Event{
		Kind:       KindToolCallRequest,
		ToolCallID: id,
		ToolName:   "run_shell_command",
		Parameters: map[string]any{"command": command},
	})
	sim.sess.Bus().Publish(TopicToolConfirmationRequest, ConfirmationRequest{
		CorrelationID: id,
		ToolName:      "run_shell_command",
		Kind:          ConfirmExec,
		Title:         "Run shell command",
		Command:       command,
	})

	confirmed, ok := sim.awaitResponse(id)

	sim.mu.Lock()
	sim.pendingID = ""
	sim.mu.Unlock()

	if !ok {
		return false
	}

	if !confirmed {
		sim.sess.Bus().Publish(TopicToolCallsUpdate, ToolCallsUpdate{
			Calls: []ToolCallState{{ID: id, Name: "run_shell_command", Status: ToolCancelled}},
		})
		return true
	}

	sim.sess.Bus().Publish(TopicToolCallsUpdate, ToolCallsUpdate{
		Calls: []ToolCallState{{ID: id, Name: "run_shell_command", Status: ToolExecuting}},
	})
	select {
	case <-time.After(sim.opts.ToolDelay):
	case <-sim.done:
		return false
	}
	sim.sess.Bus().Publish(TopicToolCallsUpdate, ToolCallsUpdate{
		Calls: []ToolCallState{{
			ID:            id,
			Name:          "run_shell_command",
			Status:        ToolSuccess,
			DisplayResult: prompt,
		}},
	})
	return true
}

// awaitResponse blocks until the confirmation with the given correlation
// identifier is answered or the sim shuts down. No timeout: a confirmation
// stays pending until some participant resolves it.
func (sim *Sim) awaitResponse(id string) (confirmed, ok bool) {
	for {
		select {
		case msg, open := <-sim.responses:
			if !open {
				return false, false
			}
			resp, isResp := msg.Payload.(ConfirmationResponse)
			if !isResp || resp.CorrelationID != id {
				continue
			}
			return resp.Confirmed, true
		case <-sim.done:
			return false, false
		}
	}
}
