package bridge

import (
	"sync"
	"testing"
	"time"

	"github.com/quayside/gangplank/internal/host"
)

func trackConfirmation(a *Arbiter, id string) {
	a.Track(host.ConfirmationRequest{
		CorrelationID: id,
		ToolName:      "run_shell_command",
		Kind:          host.ConfirmExec,
		Command:       "ls",
	})
}

func TestArbiterFirstResponseWins(t *testing.T) {
	bus := host.NewBus()
	responses := bus.Subscribe(host.TopicToolConfirmationResponse, 4)
	defer bus.Unsubscribe(responses)

	a := NewArbiter(bus)
	trackConfirmation(a, "tc-1")

	if !a.Resolve("tc-1", OptionProceedOnce, "peer a") {
		t.Fatal("first Resolve returned false")
	}
	if a.Resolve("tc-1", OptionCancel, "peer b") {
		t.Error("second Resolve returned true, want duplicate")
	}
	if a.PendingCount() != 0 {
		t.Errorf("PendingCount = %d, want 0", a.PendingCount())
	}

	select {
	case msg := <-responses:
		resp := msg.Payload.(host.ConfirmationResponse)
		if resp.CorrelationID != "tc-1" || !resp.Confirmed {
			t.Errorf("response = %+v, want tc-1 confirmed", resp)
		}
	case <-time.After(time.Second):
		t.Fatal("no response published")
	}

	// Exactly one response reached the bus.
	select {
	case msg := <-responses:
		t.Errorf("unexpected second response: %+v", msg.Payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestArbiterConcurrentResolveExactlyOneWins(t *testing.T) {
	bus := host.NewBus()
	a := NewArbiter(bus)
	trackConfirmation(a, "tc-race")

	const racers = 16
	var wg sync.WaitGroup
	var wins sync.Map
	start := make(chan struct{})

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			<-start
			if a.Resolve("tc-race", OptionProceedOnce, "peer") {
				wins.Store(n, true)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	count := 0
	wins.Range(func(_, _ any) bool {
		count++
		return true
	})
	if count != 1 {
		t.Errorf("%d racers won, want exactly 1", count)
	}
}

func TestArbiterOptionSemantics(t *testing.T) {
	tests := []struct {
		option        string
		wantConfirmed bool
	}{
		{OptionProceedOnce, true},
		{OptionCancel, false},
		{"proceed_always", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.option, func(t *testing.T) {
			bus := host.NewBus()
			responses := bus.Subscribe(host.TopicToolConfirmationResponse, 1)
			defer bus.Unsubscribe(responses)

			a := NewArbiter(bus)
			trackConfirmation(a, "tc-opt")
			a.Resolve("tc-opt", tt.option, "peer")

			select {
			case msg := <-responses:
				resp := msg.Payload.(host.ConfirmationResponse)
				if resp.Confirmed != tt.wantConfirmed {
					t.Errorf("option %q: confirmed = %v, want %v", tt.option, resp.Confirmed, tt.wantConfirmed)
				}
			case <-time.After(time.Second):
				t.Fatal("no response published")
			}
		})
	}
}

func TestArbiterObserveRetiresWithoutPublishing(t *testing.T) {
	bus := host.NewBus()
	responses := bus.Subscribe(host.TopicToolConfirmationResponse, 1)
	defer bus.Unsubscribe(responses)

	a := NewArbiter(bus)
	trackConfirmation(a, "tc-2")

	// The terminal answered; the arbiter only retires its entry.
	a.Observe("tc-2")
	if a.PendingCount() != 0 {
		t.Errorf("PendingCount = %d, want 0", a.PendingCount())
	}
	if a.Resolve("tc-2", OptionProceedOnce, "peer") {
		t.Error("Resolve after Observe returned true, want duplicate")
	}

	select {
	case msg := <-responses:
		t.Errorf("Observe published a response: %+v", msg.Payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestArbiterCancelAll(t *testing.T) {
	bus := host.NewBus()
	a := NewArbiter(bus)
	trackConfirmation(a, "tc-a")
	trackConfirmation(a, "tc-b")

	a.CancelAll()
	if a.PendingCount() != 0 {
		t.Errorf("PendingCount = %d, want 0", a.PendingCount())
	}
	if a.Resolve("tc-a", OptionProceedOnce, "peer") {
		t.Error("Resolve after CancelAll returned true")
	}
}

func TestArbiterResolveUnknownID(t *testing.T) {
	a := NewArbiter(host.NewBus())
	if a.Resolve("never-tracked", OptionProceedOnce, "peer") {
		t.Error("Resolve for unknown id returned true")
	}
}
