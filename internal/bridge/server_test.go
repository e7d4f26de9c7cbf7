package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/quayside/gangplank/internal/host"
)

func startTestServer(t *testing.T, sess *host.Session) *Server {
	t.Helper()
	srv := NewServer(Options{
		Port:         0,
		InboundRate:  100,
		InboundBurst: 100,
		Card:         testCard(),
	}, sess)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	})
	return srv
}

func dialSocket(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads socket frames until the predicate matches, returning the
// matching event and everything read before it.
func readUntil(t *testing.T, conn *websocket.Conn, match func(Event) bool) (Event, []Event) {
	t.Helper()
	var seen []Event
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(deadline)
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read (after %d events): %v", len(seen), err)
		}
		var ev Event
		if err := json.Unmarshal(bytes.TrimRight(data, "\x00"), &ev); err != nil {
			t.Fatalf("bad frame: %v", err)
		}
		if match(ev) {
			return ev, seen
		}
		seen = append(seen, ev)
	}
	t.Fatalf("no matching event after %d frames", len(seen))
	return Event{}, nil
}

func sendPrompt(t *testing.T, conn *websocket.Conn, text string) {
	t.Helper()
	frame := []byte(`{"jsonrpc":"2.0","method":"message/stream","params":{"message":{"content":{"text":"` + text + `"}}}}` + "\x00")
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		t.Fatalf("write prompt: %v", err)
	}
}

func TestServerSimTurnWithoutConfirmation(t *testing.T) {
	sess := host.NewSession(uuid.New().String())
	sim := host.NewSim(sess, host.SimOptions{RequireConfirmation: false})
	defer sim.Close()

	srv := startTestServer(t, sess)
	conn := dialSocket(t, srv)

	sendPrompt(t, conn, "hello")

	done, before := readUntil(t, conn, func(ev Event) bool {
		return ev.Kind == KindTextContent && ev.Text == "Done.\n"
	})
	if done.TaskID != sess.SessionID() {
		t.Errorf("taskId = %q, want %q", done.TaskID, sess.SessionID())
	}

	// Stream order holds for events from the same source: the prompt echo
	// comes before the thought, both before Done.
	var order []EventKind
	for _, ev := range before {
		order = append(order, ev.Kind)
	}
	if len(before) != 2 || before[0].Kind != KindTextContent || before[1].Kind != KindThought {
		t.Errorf("events before Done = %v", order)
	}
	if !strings.Contains(before[0].Text, "hello") {
		t.Errorf("prompt echo = %q", before[0].Text)
	}
}

func TestServerConfirmationFlow(t *testing.T) {
	sess := host.NewSession(uuid.New().String())
	sim := host.NewSim(sess, host.SimOptions{
		RequireConfirmation: true,
		ToolDelay:           10 * time.Millisecond,
	})
	defer sim.Close()

	srv := startTestServer(t, sess)
	conn := dialSocket(t, srv)

	sendPrompt(t, conn, "list files")

	pending, _ := readUntil(t, conn, func(ev Event) bool {
		return ev.Kind == KindToolCallUpdate && ev.Confirmation != nil
	})
	if pending.Status != StatusPending {
		t.Errorf("status = %q, want PENDING", pending.Status)
	}
	if pending.Confirmation.Details.Execute == nil {
		t.Fatalf("details = %+v", pending.Confirmation.Details)
	}
	if len(pending.Confirmation.Options) != 2 ||
		pending.Confirmation.Options[0].ID != OptionProceedOnce ||
		pending.Confirmation.Options[1].ID != OptionCancel {
		t.Errorf("options = %+v", pending.Confirmation.Options)
	}

	approve := []byte(`{"jsonrpc":"2.0","method":"message/stream","params":{"message":{"content":{"data":{"kind":"TOOL_CALL_CONFIRMATION","tool_call_id":"` + pending.ToolCallID + `","selected_option_id":"proceed_once"}}}}}` + "\x00")
	if err := conn.WriteMessage(websocket.BinaryMessage, approve); err != nil {
		t.Fatalf("write approval: %v", err)
	}

	succeeded, _ := readUntil(t, conn, func(ev Event) bool {
		return ev.Kind == KindToolCallUpdate && ev.Status == StatusSucceeded
	})
	if succeeded.ToolCallID != pending.ToolCallID {
		t.Errorf("succeeded id = %q, want %q", succeeded.ToolCallID, pending.ToolCallID)
	}
	if succeeded.Result == nil || succeeded.Result.Output == nil || succeeded.Result.Output.Text != "list files" {
		t.Errorf("result = %+v", succeeded.Result)
	}

	readUntil(t, conn, func(ev Event) bool {
		return ev.Kind == KindTextContent && ev.Text == "Done.\n"
	})
}

func TestServerDeniedConfirmationCancelsTool(t *testing.T) {
	sess := host.NewSession(uuid.New().String())
	sim := host.NewSim(sess, host.SimOptions{RequireConfirmation: true})
	defer sim.Close()

	srv := startTestServer(t, sess)
	conn := dialSocket(t, srv)

	sendPrompt(t, conn, "dangerous")

	pending, _ := readUntil(t, conn, func(ev Event) bool {
		return ev.Kind == KindToolCallUpdate && ev.Confirmation != nil
	})

	deny := []byte(`{"jsonrpc":"2.0","method":"message/stream","params":{"message":{"content":{"data":{"kind":"TOOL_CALL_CONFIRMATION","tool_call_id":"` + pending.ToolCallID + `","selected_option_id":"cancel"}}}}}` + "\x00")
	if err := conn.WriteMessage(websocket.BinaryMessage, deny); err != nil {
		t.Fatalf("write denial: %v", err)
	}

	cancelled, _ := readUntil(t, conn, func(ev Event) bool {
		return ev.Kind == KindToolCallUpdate && ev.Status == StatusCancelled
	})
	if cancelled.ToolCallID != pending.ToolCallID {
		t.Errorf("cancelled id = %q, want %q", cancelled.ToolCallID, pending.ToolCallID)
	}
}

func TestServerAgentCardOverHTTP(t *testing.T) {
	sess := host.NewSession(uuid.New().String())
	srv := startTestServer(t, sess)

	resp, err := http.Get("http://" + srv.Addr() + "/.well-known/agent-card.json")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var card AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if card.ProtocolVersion != ProtocolVersion {
		t.Errorf("protocolVersion = %q", card.ProtocolVersion)
	}
}

func TestServerStopQuiescence(t *testing.T) {
	sess := host.NewSession(uuid.New().String())
	srv := NewServer(Options{Port: 0, Card: testCard()}, sess)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := srv.Stop(ctx); err != nil {
		t.Errorf("second Stop: %v", err)
	}

	// Nothing of the bridge remains attached to the host.
	if n := sess.EventSubscriberCount(); n != 0 {
		t.Errorf("event subscribers after Stop = %d, want 0", n)
	}
	for _, topic := range []host.Topic{
		host.TopicToolConfirmationRequest,
		host.TopicToolCallsUpdate,
		host.TopicToolConfirmationResponse,
	} {
		if n := sess.Bus().SubscriberCount(topic); n != 0 {
			t.Errorf("bus subscribers on %s after Stop = %d, want 0", topic, n)
		}
	}

	// Injecting into the host after shutdown is a harmless no-op.
	sess.Emit(host.Event{Kind: host.KindContent, Text: "after"})
	sess.InjectInput("after")
}

func TestServerRejectsOccupiedPort(t *testing.T) {
	sess := host.NewSession(uuid.New().String())
	first := startTestServer(t, sess)

	_, portStr, ok := strings.Cut(first.Addr(), ":")
	if !ok {
		t.Fatalf("unexpected addr %q", first.Addr())
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}

	second := NewServer(Options{Port: port, Card: testCard()}, host.NewSession(uuid.New().String()))
	if err := second.Start(); err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = second.Stop(ctx)
		t.Fatal("Start on occupied port succeeded")
	}
}
