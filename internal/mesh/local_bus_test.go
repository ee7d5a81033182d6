package mesh

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBus_DeliversToTopicSubscribers(t *testing.T) {
	b := NewLocalBus()
	got := make(chan Event, 2)
	unsub, err := b.Subscribe(TopicLandSold, func(_ context.Context, e Event) { got <- e })
	require.NoError(t, err)
	_, err = b.Subscribe(TopicLandListed, func(_ context.Context, e Event) { got <- e })
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), Event{Topic: TopicLandSold, Payload: []byte(`{"id":"land123"}`)}))
	select {
	case e := <-got:
		assert.Equal(t, TopicLandSold, e.Topic)
		assert.False(t, e.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	unsub()
	require.NoError(t, b.Publish(context.Background(), Event{Topic: TopicLandSold}))
	select {
	case e := <-got:
		t.Fatalf("unexpected delivery %v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLocalBus_UnsubscribeKeepsOthers(t *testing.T) {
	b := NewLocalBus()
	got := make(chan string, 4)
	u1, _ := b.Subscribe(TopicLandListed, func(context.Context, Event) { got <- "first" })
	_, _ = b.Subscribe(TopicLandListed, func(context.Context, Event) { got <- "second" })
	u1()
	u1()

	require.NoError(t, b.Publish(context.Background(), Event{Topic: TopicLandListed}))
	select {
	case s := <-got:
		assert.Equal(t, "second", s)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}
