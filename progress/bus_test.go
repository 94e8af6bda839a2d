package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishDeliversInOrderToSubscriber(t *testing.T) {
	b := New(nil)
	ch := b.Subscribe("req-1")

	b.Publish(Event{RequestID: "req-1", Stage: "generate_ideas", Progress: 10})
	b.Publish(Event{RequestID: "req-1", Stage: "evaluate_ideas", Progress: 30})

	first := recv(t, ch)
	second := recv(t, ch)
	assert.Equal(t, "generate_ideas", first.Stage)
	assert.Equal(t, "evaluate_ideas", second.Stage)
	assert.Equal(t, 10, first.Progress)
	assert.Equal(t, 30, second.Progress)
}

func TestBus_PublishWithNoSubscriberIsSilentNoop(t *testing.T) {
	b := New(nil)
	assert.NotPanics(t, func() {
		b.Publish(Event{RequestID: "ghost", Stage: "generate_ideas", Progress: 10})
	})
}

func TestBus_PublishIsolatesRequestIDs(t *testing.T) {
	b := New(nil)
	chA := b.Subscribe("req-a")
	chB := b.Subscribe("req-b")

	b.Publish(Event{RequestID: "req-a", Stage: "generate_ideas", Progress: 10})

	ev := recv(t, chA)
	assert.Equal(t, "req-a", ev.RequestID)

	select {
	case <-chB:
		t.Fatal("req-b subscriber should not have received req-a's event")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestBus_FullBufferDropsRatherThanBlocks(t *testing.T) {
	b := New(nil)
	ch := b.Subscribe("req-1")

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer+5; i++ {
			b.Publish(Event{RequestID: "req-1", Stage: "x", Progress: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber buffer")
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	b := New(nil)
	ch := b.Subscribe("req-1")
	b.Unsubscribe("req-1", ch)

	b.Publish(Event{RequestID: "req-1", Stage: "x", Progress: 1})

	_, open := <-ch
	assert.False(t, open)
}

func recv(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		require.Fail(t, "timed out waiting for event")
		return Event{}
	}
}
