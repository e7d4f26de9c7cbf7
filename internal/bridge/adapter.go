package bridge

import (
	"sync"

	"github.com/quayside/gangplank/internal/host"
	"github.com/quayside/gangplank/internal/logger"
)

// HostContext is everything the bridge needs from the host process. The
// host's event streams and session identifier are passed in rather than
// reached for globally so the core can run against a scripted host.
type HostContext interface {
	SessionID() string
	SubscribeEvents(bufSize int) <-chan host.Event
	UnsubscribeEvents(ch <-chan host.Event)
	Bus() *host.Bus
	InjectInput(text string)
}

// Subscription buffer sizes. Host callbacks must never block on the
// bridge, so both the event stream and the bus drop for subscribers that
// fall this far behind.
const (
	streamBufferSize = 256
	busBufferSize    = 64
)

// Adapter subscribes to the host's event stream and message bus and
// normalizes everything into canonical events for the broadcaster. Each
// host source is drained by its own pump goroutine, which preserves
// per-source ordering without promising any order across sources.
type Adapter struct {
	hostCtx     HostContext
	broadcaster *Broadcaster
	arbiter     *Arbiter

	events    <-chan host.Event
	confirms  <-chan host.Message
	updates   <-chan host.Message
	responses <-chan host.Message

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewAdapter wires an adapter between the host and the broadcaster.
func NewAdapter(hostCtx HostContext, broadcaster *Broadcaster, arbiter *Arbiter) *Adapter {
	return &Adapter{
		hostCtx:     hostCtx,
		broadcaster: broadcaster,
		arbiter:     arbiter,
	}
}

// Start subscribes to all host sources and launches the pumps.
func (ad *Adapter) Start() {
	bus := ad.hostCtx.Bus()
	ad.events = ad.hostCtx.SubscribeEvents(streamBufferSize)
	ad.confirms = bus.Subscribe(host.TopicToolConfirmationRequest, busBufferSize)
	ad.updates = bus.Subscribe(host.TopicToolCallsUpdate, busBufferSize)
	ad.responses = bus.Subscribe(host.TopicToolConfirmationResponse, busBufferSize)

	ad.wg.Add(4)
	go ad.pumpEvents()
	go ad.pumpConfirmations()
	go ad.pumpUpdates()
	go ad.pumpResponses()
}

// Stop unsubscribes from every host source and waits for the pumps to
// drain. Idempotent.
func (ad *Adapter) Stop() {
	ad.stopOnce.Do(func() {
		bus := ad.hostCtx.Bus()
		ad.hostCtx.UnsubscribeEvents(ad.events)
		bus.Unsubscribe(ad.confirms)
		bus.Unsubscribe(ad.updates)
		bus.Unsubscribe(ad.responses)
		ad.wg.Wait()
	})
}

func (ad *Adapter) pumpEvents() {
	defer ad.wg.Done()
	for ev := range ad.events {
		if canonical, ok := convertHostEvent(ev); ok {
			ad.broadcaster.Broadcast(canonical)
		}
	}
}

func (ad *Adapter) pumpConfirmations() {
	defer ad.wg.Done()
	for msg := range ad.confirms {
		req, ok := msg.Payload.(host.ConfirmationRequest)
		if !ok {
			logger.Error("unexpected payload type on %s: %T", msg.Topic, msg.Payload)
			continue
		}
		ad.arbiter.Track(req)
		ad.broadcaster.Broadcast(confirmationEvent(req))
	}
}

func (ad *Adapter) pumpUpdates() {
	defer ad.wg.Done()
	for msg := range ad.updates {
		upd, ok := msg.Payload.(host.ToolCallsUpdate)
		if !ok {
			logger.Error("unexpected payload type on %s: %T", msg.Topic, msg.Payload)
			continue
		}
		for _, call := range upd.Calls {
			ad.broadcaster.Broadcast(toolCallEvent(call))
		}
	}
}

// pumpResponses watches confirmation responses from every participant so
// the arbiter can retire entries answered at the host terminal. Responses
// the arbiter itself published are already retired and no-op here.
func (ad *Adapter) pumpResponses() {
	defer ad.wg.Done()
	for msg := range ad.responses {
		resp, ok := msg.Payload.(host.ConfirmationResponse)
		if !ok {
			logger.Error("unexpected payload type on %s: %T", msg.Topic, msg.Payload)
			continue
		}
		ad.arbiter.Observe(resp.CorrelationID)
	}
}

// convertHostEvent maps a host stream event onto the canonical schema.
// Returns false for kinds the bridge does not forward.
func convertHostEvent(ev host.Event) (Event, bool) {
	switch ev.Kind {
	case host.KindThought:
		return Event{
			Kind:        KindThought,
			Subject:     ev.Subject,
			Description: ev.Description,
		}, true
	case host.KindContent:
		return Event{Kind: KindTextContent, Text: ev.Text}, true
	case host.KindToolCallRequest:
		// Pre-approval state: the executor has not yet picked it up.
		return Event{
			Kind:            KindToolCallUpdate,
			ToolCallID:      ev.ToolCallID,
			ToolName:        ev.ToolName,
			Status:          StatusPending,
			InputParameters: ev.Parameters,
		}, true
	case host.KindOutput:
		return Event{
			Kind:     KindTextContent,
			Text:     string(ev.Chunk),
			IsStderr: ev.IsStderr,
		}, true
	case host.KindConsoleLog:
		return Event{
			Kind:    KindConsoleLog,
			LogType: ev.LogType,
			Content: ev.LogContent,
		}, true
	case host.KindHookStart:
		return Event{Kind: KindHook, HookName: ev.HookName, Phase: "start"}, true
	case host.KindHookEnd:
		return Event{
			Kind:     KindHook,
			HookName: ev.HookName,
			Phase:    "end",
			Success:  ev.HookSuccess,
		}, true
	default:
		logger.Debug("ignoring host event of unknown kind %q", ev.Kind)
		return Event{}, false
	}
}

// confirmationEvent builds the PENDING tool call update that carries a
// confirmation request out to peers.
func confirmationEvent(req host.ConfirmationRequest) Event {
	return Event{
		Kind:       KindToolCallUpdate,
		ToolCallID: req.CorrelationID,
		ToolName:   req.ToolName,
		Status:     StatusPending,
		Confirmation: &ConfirmationRequest{
			Details: confirmationDetails(req),
			Options: DefaultOptions(),
		},
	}
}

// confirmationDetails maps the host's confirmation record onto exactly one
// wire detail variant. Unrecognized kinds fall back to a generic
// description.
func confirmationDetails(req host.ConfirmationRequest) ConfirmationDetails {
	switch req.Kind {
	case host.ConfirmExec:
		return ConfirmationDetails{Execute: &ExecuteDetails{Command: req.Command}}
	case host.ConfirmEdit:
		return ConfirmationDetails{FileEdit: &FileEditDetails{
			FileName:      req.FileName,
			FilePath:      req.FilePath,
			OldContent:    req.OldContent,
			NewContent:    req.NewContent,
			FormattedDiff: req.Diff,
		}}
	case host.ConfirmMCP:
		return ConfirmationDetails{MCP: &MCPDetails{
			ServerName: req.ServerName,
			ToolName:   req.ServerTool,
		}}
	default:
		description := req.Title
		if description == "" {
			description = "Tool confirmation required"
		}
		return ConfirmationDetails{Generic: &GenericDetails{Description: description}}
	}
}

// toolCallEvent converts one executor tool call state into a canonical
// update, filling result fields on terminal statuses.
func toolCallEvent(call host.ToolCallState) Event {
	status := mapToolStatus(call.Status)
	ev := Event{
		Kind:            KindToolCallUpdate,
		ToolCallID:      call.ID,
		ToolName:        call.Name,
		Status:          status,
		InputParameters: call.Parameters,
		LiveContent:     call.LiveOutput,
	}

	switch status {
	case StatusSucceeded:
		text := call.DisplayResult
		if text == "" {
			text = "Success"
		}
		ev.Result = &ToolCallResult{Output: &ResultOutput{Text: text}}
	case StatusFailed:
		message := call.Error
		if message == "" {
			message = "Unknown error"
		}
		ev.Result = &ToolCallResult{Error: &ResultError{Message: message}}
	}
	return ev
}

// mapToolStatus translates executor statuses to wire statuses. Anything
// unrecognized is reported as PENDING.
func mapToolStatus(status host.ToolCallStatus) ToolCallStatus {
	switch status {
	case host.ToolAwaitingApproval:
		return StatusPending
	case host.ToolExecuting:
		return StatusExecuting
	case host.ToolSuccess:
		return StatusSucceeded
	case host.ToolError:
		return StatusFailed
	case host.ToolCancelled:
		return StatusCancelled
	default:
		return StatusPending
	}
}
