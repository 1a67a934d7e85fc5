package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	ID   int64  `json:"id"`
	Room string `json:"room"`
}

func TestEventBus_PublishJSON(t *testing.T) {
	bus := NewEventBus()

	var got []payload
	var ids []string
	bus.Subscribe(ReservationCreated, func(e Event) error {
		var p payload
		if err := e.Decode(&p); err != nil {
			return err
		}
		assert.False(t, e.OccurredAt.IsZero())
		got = append(got, p)
		ids = append(ids, e.ID)
		return nil
	})

	require.NoError(t, bus.PublishJSON(ReservationCreated, payload{ID: 1, Room: "101"}))
	require.NoError(t, bus.PublishJSON(ReservationDeleted, payload{ID: 2}))
	require.NoError(t, bus.PublishJSON(ReservationCreated, payload{ID: 3, Room: "102"}))

	assert.Equal(t, []payload{{ID: 1, Room: "101"}, {ID: 3, Room: "102"}}, got)
	require.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])
}

func TestEventBus_HandlerErrors(t *testing.T) {
	bus := NewEventBus()
	failure := errors.New("boom")

	var reported []error
	bus.OnError(func(_ Event, err error) { reported = append(reported, err) })

	calls := 0
	bus.Subscribe(ReservationUpdated, func(Event) error { calls++; return failure })
	bus.Subscribe(ReservationUpdated, func(Event) error { calls++; panic("nil room") })
	bus.Subscribe(ReservationUpdated, func(Event) error { calls++; return nil })

	bus.Publish(Event{Type: ReservationUpdated})

	assert.Equal(t, 3, calls, "a failing handler does not stop the others")
	require.Len(t, reported, 2)
	assert.ErrorIs(t, reported[0], failure)
	assert.ErrorContains(t, reported[1], "nil room")
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus()

	var first, second int
	cancel := bus.Subscribe(ReservationDeleted, func(Event) error { first++; return nil })
	bus.Subscribe(ReservationDeleted, func(Event) error { second++; return nil })

	bus.Publish(Event{Type: ReservationDeleted})
	cancel()
	cancel()
	bus.Publish(Event{Type: ReservationDeleted})

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
}

func TestEventBus_PublishJSON_MarshalError(t *testing.T) {
	bus := NewEventBus()
	assert.Error(t, bus.PublishJSON(ReservationCreated, make(chan int)))
}
