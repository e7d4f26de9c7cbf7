package host

import "sync"

// Topic identifies a message bus channel.
type Topic string

const (
	TopicToolConfirmationRequest  Topic = "TOOL_CONFIRMATION_REQUEST"
	TopicToolCallsUpdate          Topic = "TOOL_CALLS_UPDATE"
	TopicToolConfirmationResponse Topic = "TOOL_CONFIRMATION_RESPONSE"
)

// Message is a payload delivered on a bus topic.
type Message struct {
	Topic   Topic
	Payload any
}

// Bus is a non-blocking topic-keyed broadcast bus. Subscribers receive
// messages on buffered channels; a slow subscriber misses messages rather
// than blocking publishers. Safe for concurrent use.
type Bus struct {
	mu   sync.RWMutex
	subs map[Topic]map[chan Message]struct{}
	// recvToSend maps the receive-only channel handed to subscribers back
	// to the bidirectional channel stored in subs, so Unsubscribe can
	// accept the caller's view of the channel.
	recvToSend map[<-chan Message]chan Message
	topicOf    map[<-chan Message]Topic
}

// NewBus creates an empty message bus.
func NewBus() *Bus {
	return &Bus{
		subs:       make(map[Topic]map[chan Message]struct{}),
		recvToSend: make(map[<-chan Message]chan Message),
		topicOf:    make(map[<-chan Message]Topic),
	}
}

// Publish delivers a payload to every subscriber of the topic.
// Non-blocking: full subscriber channels are skipped.
func (b *Bus) Publish(topic Topic, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs[topic] {
		select {
		case ch <- Message{Topic: topic, Payload: payload}:
		default:
			// Subscriber is full - drop rather than block the publisher.
		}
	}
}

// Subscribe registers a subscriber on the topic. The caller must
// eventually call Unsubscribe to release the channel.
func (b *Bus) Subscribe(topic Topic, bufSize int) <-chan Message {
	ch := make(chan Message, bufSize)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[topic] == nil {
		b.subs[topic] = make(map[chan Message]struct{})
	}
	b.subs[topic][ch] = struct{}{}
	b.recvToSend[ch] = ch
	b.topicOf[ch] = topic
	return ch
}

// Unsubscribe removes a subscription and closes its channel. A no-op for
// channels that are already unsubscribed.
func (b *Bus) Unsubscribe(ch <-chan Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sendCh, ok := b.recvToSend[ch]
	if !ok {
		return
	}
	delete(b.subs[b.topicOf[ch]], sendCh)
	delete(b.recvToSend, ch)
	delete(b.topicOf, ch)
	close(sendCh)
}

// SubscriberCount returns the number of active subscribers on a topic.
func (b *Bus) SubscriberCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
