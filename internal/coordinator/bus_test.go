package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusDeliversInSubscriptionOrder(t *testing.T) {
	bus := NewBus()

	var got []string
	bus.Subscribe(func(Event) { got = append(got, "first") })
	bus.Subscribe(func(Event) { got = append(got, "second") })

	bus.Publish(Event{Type: EventConnected})
	assert.Equal(t, []string{"first", "second"}, got)
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()

	calls := 0
	cancel := bus.Subscribe(func(Event) { calls++ })

	bus.Publish(Event{Type: EventConnected})
	cancel()
	bus.Publish(Event{Type: EventConnected})

	assert.Equal(t, 1, calls)
}

func TestBusPublishWithoutSubscribers(t *testing.T) {
	bus := NewBus()
	bus.Publish(Event{Type: EventError, Message: "nobody listening"})
}
