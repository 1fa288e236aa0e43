package events

import (
	"testing"
)

func TestHubPublishSubscribe(t *testing.T) {
	h := NewEventHub()
	a := h.Subscribe()
	b := h.Subscribe()
	if n := h.Subscribers(); n != 2 {
		t.Fatalf("expected 2 subscribers, got %d", n)
	}

	h.Publish(PredictionCompleted, PredictionCompletedEvent{Model: "SVR", Category: "Good", Trigger: TriggerUpload})

	for _, ch := range []chan Event{a, b} {
		ev := <-ch
		if ev.Name != PredictionCompleted {
			t.Fatalf("unexpected event name %q", ev.Name)
		}
		p, err := DecodeAs[PredictionCompletedEvent](ev)
		if err != nil {
			t.Fatalf("DecodeAs returned error: %v", err)
		}
		if p.Model != "SVR" || p.Category != "Good" {
			t.Fatalf("unexpected payload %+v", p)
		}
	}

	h.Unsubscribe(a)
	if _, ok := <-a; ok {
		t.Fatalf("channel should be closed after unsubscribe")
	}
	if n := h.Unsubscribe(a); n != 0 { // second call is a no-op
		t.Fatalf("expected 0 dropped events, got %d", n)
	}
	if n := h.Subscribers(); n != 1 {
		t.Fatalf("expected 1 subscriber, got %d", n)
	}
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	h := NewEventHub()
	ch := h.Subscribe()

	for i := 0; i < subscriberBuffer+5; i++ {
		h.Publish(AnalysisFailed, AnalysisFailedEvent{Error: "boom"})
	}
	if len(ch) != subscriberBuffer {
		t.Fatalf("expected %d buffered events, got %d", subscriberBuffer, len(ch))
	}
	if n := h.Unsubscribe(ch); n != 5 {
		t.Fatalf("expected 5 dropped events, got %d", n)
	}
	if n := h.Unsubscribe(ch); n != 0 {
		t.Fatalf("expected 0 from a closed stream, got %d", n)
	}
}

func TestNilHubPublish(t *testing.T) {
	var h *EventHub
	h.Publish(PredictionCompleted, nil)
}

func TestDecodeAsEmpty(t *testing.T) {
	p, err := DecodeAs[AnalysisFailedEvent](Event{Name: AnalysisFailed})
	if err != nil || p.Error != "" {
		t.Fatalf("expected zero value, got %+v, %v", p, err)
	}
}
