package host

import (
	"testing"
	"time"
)

func collectEvents(ch <-chan Event, n int, timeout time.Duration) []Event {
	var events []Event
	deadline := time.After(timeout)
	for len(events) < n {
		select {
		case ev := <-ch:
			events = append(events, ev)
		case <-deadline:
			return events
		}
	}
	return events
}

func TestSimTurnWithoutConfirmation(t *testing.T) {
	sess := NewSession("s-sim")
	sim := NewSim(sess, SimOptions{RequireConfirmation: false})
	defer sim.Close()

	ch := sess.SubscribeEvents(16)
	defer sess.UnsubscribeEvents(ch)

	sess.InjectInput("hi")

	events := collectEvents(ch, 3, 2*time.Second)
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[0].Kind != KindContent || events[0].Text != "> hi\n" {
		t.Errorf("first event = %+v", events[0])
	}
	if events[1].Kind != KindThought {
		t.Errorf("second event = %+v", events[1])
	}
	if events[2].Kind != KindContent || events[2].Text != "Done.\n" {
		t.Errorf("third event = %+v", events[2])
	}
}

func TestSimConfirmedTool(t *testing.T) {
	sess := NewSession("s-sim")
	sim := NewSim(sess, SimOptions{RequireConfirmation: true, ToolDelay: 5 * time.Millisecond})
	defer sim.Close()

	requests := sess.Bus().Subscribe(TopicToolConfirmationRequest, 4)
	defer sess.Bus().Unsubscribe(requests)
	updates := sess.Bus().Subscribe(TopicToolCallsUpdate, 8)
	defer sess.Bus().Unsubscribe(updates)

	sess.InjectInput("run it")

	var req ConfirmationRequest
	select {
	case msg := <-requests:
		req = msg.Payload.(ConfirmationRequest)
	case <-time.After(2 * time.Second):
		t.Fatal("no confirmation request")
	}
	if req.Kind != ConfirmExec || req.CorrelationID == "" {
		t.Fatalf("request = %+v", req)
	}

	if !sim.ApprovePending(true) {
		t.Fatal("ApprovePending found nothing pending")
	}

	var statuses []ToolCallStatus
	deadline := time.After(2 * time.Second)
	for len(statuses) < 2 {
		select {
		case msg := <-updates:
			upd := msg.Payload.(ToolCallsUpdate)
			for _, call := range upd.Calls {
				if call.ID == req.CorrelationID {
					statuses = append(statuses, call.Status)
				}
			}
		case <-deadline:
			t.Fatalf("tool call updates = %v", statuses)
		}
	}
	if statuses[0] != ToolExecuting || statuses[1] != ToolSuccess {
		t.Errorf("statuses = %v, want [executing success]", statuses)
	}
}

func TestSimDeniedTool(t *testing.T) {
	sess := NewSession("s-sim")
	sim := NewSim(sess, SimOptions{RequireConfirmation: true})
	defer sim.Close()

	requests := sess.Bus().Subscribe(TopicToolConfirmationRequest, 4)
	defer sess.Bus().Unsubscribe(requests)
	updates := sess.Bus().Subscribe(TopicToolCallsUpdate, 8)
	defer sess.Bus().Unsubscribe(updates)

	sess.InjectInput("nope")

	select {
	case <-requests:
	case <-time.After(2 * time.Second):
		t.Fatal("no confirmation request")
	}

	if !sim.ApprovePending(false) {
		t.Fatal("ApprovePending found nothing pending")
	}

	select {
	case msg := <-updates:
		upd := msg.Payload.(ToolCallsUpdate)
		if len(upd.Calls) != 1 || upd.Calls[0].Status != ToolCancelled {
			t.Errorf("update = %+v", upd)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no cancellation update")
	}
}

func TestSimApprovePendingWithoutRequest(t *testing.T) {
	sess := NewSession("s-sim")
	sim := NewSim(sess, SimOptions{})
	defer sim.Close()

	if sim.ApprovePending(true) {
		t.Error("ApprovePending reported a pending confirmation")
	}
}
