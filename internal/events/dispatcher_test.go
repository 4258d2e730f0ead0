package events

import (
	"context"
	"errors"
	"testing"
)

func TestPublishContinuesAfterHandlerError(t *testing.T) {
	d := NewInMemoryDispatcher(nil)
	calls := 0
	d.Subscribe(EventTicketClosed, func(context.Context, Event) error {
		calls++
		return errors.New("first handler broke")
	})
	d.Subscribe(EventTicketClosed, func(context.Context, Event) error {
		calls++
		return nil
	})
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		t.Fatalf("handler for another event type invoked")
		return nil
	})

	if err := d.Publish(context.Background(), Event{Type: EventTicketClosed, ChannelID: "1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected both handlers to run, got %d", calls)
	}
}
