package events

import (
	"context"
	"testing"
)

func TestBroadcasterDeliversToSubscribers(t *testing.T) {
	b := NewBroadcaster()
	first, cancelFirst := b.Subscribe(context.Background())
	defer cancelFirst()
	second, cancelSecond := b.Subscribe(context.Background())
	defer cancelSecond()

	b.Emit(&Event{Type: "job.posted"})

	for _, ch := range []<-chan *Event{first, second} {
		select {
		case evt := <-ch:
			if evt.EventType() != "job.posted" {
				t.Fatalf("unexpected event: %v", evt)
			}
		default:
			t.Fatal("subscriber missed buffered event")
		}
	}
}

func TestBroadcasterCancelClosesChannel(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe(context.Background())
	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after cancel")
	}
	// Emitting after cancel must not panic on the closed channel.
	b.Emit(&Event{Type: "job.posted"})
}

func TestBroadcasterNeverBlocksEmit(t *testing.T) {
	b := NewBroadcaster()
	_, cancel := b.Subscribe(context.Background())
	defer cancel()
	for i := 0; i < 100; i++ {
		b.Emit(&Event{Type: "job.posted"})
	}
}

func TestTeeFansOut(t *testing.T) {
	var got []string
	rec := emitterFunc(func(evt *Event) { got = append(got, evt.EventType()) })
	tee := Tee{rec, nil, rec}
	tee.Emit(&Event{Type: "job.completed"})
	if len(got) != 2 || got[0] != "job.completed" {
		t.Fatalf("unexpected deliveries: %v", got)
	}
}

type emitterFunc func(*Event)

func (f emitterFunc) Emit(evt *Event) { f(evt) }
