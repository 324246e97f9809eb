package events_test

import (
	"testing"
	"time"

	"github.com/familyvault/familyvault-core/internal/events"
)

const timeout = 100 * time.Millisecond

func TestNewLogger(t *testing.T) {
	l := events.NewLogger()
	if l == nil {
		t.Fatal("unexpected nil Logger")
	}
}

func TestSubscriberTimeout(t *testing.T) {
	l := events.NewLogger()
	s := l.Subscribe(0)
	defer l.Unsubscribe(s)
	if _, err := s.Poll(timeout); err != events.ErrTimeout {
		t.Fatalf("got %v, want ErrTimeout", err)
	}
}

func TestMaskFiltersEvents(t *testing.T) {
	l := events.NewLogger()
	s := l.Subscribe(events.DeviceFound)
	defer l.Unsubscribe(s)

	l.Log(events.DeviceLost, "nope")
	l.Log(events.DeviceFound, "yep")

	ev, err := s.Poll(timeout)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if ev.Type != events.DeviceFound || ev.Data != "yep" {
		t.Fatalf("got %+v, want DeviceFound/yep", ev)
	}

	if _, err := s.Poll(timeout); err != events.ErrTimeout {
		t.Fatalf("expected no more events, got %v", err)
	}
}

func TestCloseUnblocksSubscribers(t *testing.T) {
	l := events.NewLogger()
	s := l.Subscribe(0)
	l.Close()
	if _, err := s.Poll(timeout); err != events.ErrClosed {
		t.Fatalf("got %v, want ErrClosed", err)
	}
}
