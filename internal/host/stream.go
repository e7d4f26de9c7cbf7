package host

import "sync"

// EventStream broadcasts host events to subscribers. Like the message bus
// it never blocks a publisher: subscribers that fall behind their buffer
// miss events. Events are delivered to each subscriber in publish order.
type EventStream struct {
	mu         sync.RWMutex
	subs       map[chan Event]struct{}
	recvToSend map[<-chan Event]chan Event
}

// NewEventStream creates an empty event stream.
func NewEventStream() *EventStream {
	return &EventStream{
		subs:       make(map[chan Event]struct{}),
		recvToSend: make(map[<-chan Event]chan Event),
	}
}

// Publish delivers an event to all subscribers without blocking.
func (s *EventStream) Publish(ev Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe registers a subscriber with the given channel buffer.
func (s *EventStream) Subscribe(bufSize int) <-chan Event {
	ch := make(chan Event, bufSize)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[ch] = struct{}{}
	s.recvToSend[ch] = ch
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (s *EventStream) Unsubscribe(ch <-chan Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sendCh, ok := s.recvToSend[ch]
	if !ok {
		return
	}
	delete(s.subs, sendCh)
	delete(s.recvToSend, ch)
	close(sendCh)
}

// SubscriberCount returns the number of active subscribers.
func (s *EventStream) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
