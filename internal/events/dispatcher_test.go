package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherDeliversToSubscribersOfType(t *testing.T) {
	d := NewInMemoryDispatcher()
	var got []string
	d.Subscribe(EventTicketCreated, func(_ context.Context, e Event) error {
		got = append(got, "first:"+e.TicketID)
		return nil
	})
	d.Subscribe(EventTicketCreated, func(_ context.Context, e Event) error {
		got = append(got, "second:"+e.TicketID)
		return nil
	})
	d.Subscribe(EventTicketAssigned, func(_ context.Context, e Event) error {
		got = append(got, "assigned:"+e.TicketID)
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventTicketCreated, TicketID: "t-1"}))
	assert.Equal(t, []string{"first:t-1", "second:t-1"}, got)
}

func TestDispatcherKeepsGoingAfterHandlerError(t *testing.T) {
	d := NewInMemoryDispatcher()
	boom := errors.New("webhook down")
	called := false
	d.Subscribe(EventTicketStatusChanged, func(context.Context, Event) error { return boom })
	d.Subscribe(EventTicketStatusChanged, func(context.Context, Event) error {
		called = true
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventTicketStatusChanged})
	assert.ErrorIs(t, err, boom)
	assert.True(t, called)
}

func TestDispatcherWithoutSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()
	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventTicketResponseAdded}))
}

func TestActorContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, Actor{Type: ActorSystem}, ActorFrom(ctx))

	agent := Actor{Type: ActorAgent, ID: "agent-001", Name: "Sam"}
	assert.Equal(t, agent, ActorFrom(WithActor(ctx, agent)))
}
