package events

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
)

// subscriberBuffer is how many events an event stream client may lag behind
// before events are dropped for it.
const subscriberBuffer = 16

// subscriber counts the events a stream missed because its buffer was full.
type subscriber struct {
	dropped int
}

// EventHub fans prediction and analysis events out to every open event
// stream (GET /events).
type EventHub struct {
	mu   sync.Mutex
	subs map[chan Event]*subscriber
}

func NewEventHub() *EventHub { return &EventHub{subs: make(map[chan Event]*subscriber)} }

// Subscribe opens a new buffered stream.
func (h *EventHub) Subscribe() chan Event {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = &subscriber{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe closes ch and returns how many events it missed. Closing an
// already closed stream returns 0.
func (h *EventHub) Unsubscribe(ch chan Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.subs[ch]
	if !ok {
		return 0
	}
	delete(h.subs, ch)
	close(ch)
	return s.dropped
}

// Subscribers returns the number of open streams.
func (h *EventHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Publish encodes payload as JSON and queues it on every stream without
// blocking. A stream with a full buffer misses the event. A nil hub discards
// it.
func (h *EventHub) Publish(name string, payload any) {
	if h == nil {
		return
	}
	b, err := json.Marshal(payload)
	if err != nil {
		logrus.WithField("event", name).Errorf("failed to encode event payload: %v", err)
		return
	}
	ev := Event{Name: name, Data: b}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch, s := range h.subs {
		select {
		case ch <- ev:
			continue
		default:
		}
		s.dropped++
		// Warn once per stream, it stays behind until the client reads.
		if s.dropped == 1 {
			logrus.WithField("event", name).Warn("event stream client is not keeping up, dropping events")
		} else {
			logrus.WithField("event", name).Debugf("dropped event, %d missed so far", s.dropped)
		}
	}
}
