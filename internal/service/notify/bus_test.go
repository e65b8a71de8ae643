package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPublishWithoutSubscribers(t *testing.T) {
	b := NewBus(zaptest.NewLogger(t))
	assert.NotPanics(t, func() { b.Publish(EventNewLead, "lead") })
}

func TestSubscribeAndCancel(t *testing.T) {
	b := NewBus(zaptest.NewLogger(t))
	events, cancel := b.Subscribe(4)

	b.Publish(EventStatsUpdated, 3)
	ev := <-events
	assert.Equal(t, EventStatsUpdated, ev.Type)
	assert.Equal(t, 3, ev.Payload)
	assert.False(t, ev.At.IsZero())

	cancel()
	cancel()
	_, open := <-events
	assert.False(t, open)

	assert.NotPanics(t, func() { b.Publish(EventNewLead, nil) })
}

func TestSlowSubscriberDropsEvents(t *testing.T) {
	b := NewBus(zaptest.NewLogger(t))
	events, cancel := b.Subscribe(1)
	defer cancel()

	b.Publish(EventNotification, Notification{Title: "a"})
	b.Publish(EventNotification, Notification{Title: "b"})

	ev := <-events
	assert.Equal(t, Notification{Title: "a"}, ev.Payload)
	select {
	case extra := <-events:
		t.Fatalf("unexpected event %v", extra)
	default:
	}
}

func TestClose(t *testing.T) {
	b := NewBus(zaptest.NewLogger(t))
	events, cancel := b.Subscribe(1)
	b.Close()
	b.Close()

	_, open := <-events
	assert.False(t, open)
	cancel()

	late, _ := b.Subscribe(1)
	_, open = <-late
	require.False(t, open)
	b.Publish(EventNewLead, nil)
}
