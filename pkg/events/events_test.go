package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusPostDeliversToSubscriber(t *testing.T) {
	bus := NewBus()
	bus.Start()
	defer bus.Stop()

	sub, unsubscribe := bus.RegisterWeak("w1")
	defer unsubscribe()

	bus.Post("w1", Healthy, "10.0.0.1", 80, "")

	select {
	case ev := <-sub:
		assert.Equal(t, Healthy, ev.Type)
		assert.Equal(t, "10.0.0.1", ev.IP)
		assert.Equal(t, 80, ev.Port)
		assert.NotEmpty(t, ev.ID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBusFanOutToMultipleSubscribers(t *testing.T) {
	bus := NewBus()
	bus.Start()
	defer bus.Stop()

	sub1, unsub1 := bus.RegisterWeak("w1")
	defer unsub1()
	sub2, unsub2 := bus.RegisterWeak("w2")
	defer unsub2()

	require.Equal(t, 2, bus.SubscriberCount())

	bus.Post("w1", Unhealthy, "10.0.0.2", 443, "svc")

	for _, sub := range []Subscriber{sub1, sub2} {
		select {
		case ev := <-sub:
			assert.Equal(t, Unhealthy, ev.Type)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()
	bus.Start()
	defer bus.Stop()

	sub, unsubscribe := bus.RegisterWeak("w1")
	unsubscribe()
	assert.Equal(t, 0, bus.SubscriberCount())

	_, ok := <-sub
	assert.False(t, ok, "channel should be closed after unsubscribe")
}
