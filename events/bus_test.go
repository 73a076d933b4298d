package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversToSubscriber(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, "posts")
	require.NoError(t, err)

	done := make(chan bool)
	go func() {
		ev := <-ch
		assert.Equal(t, "posts", ev.Table)
		assert.Equal(t, OpInsert, ev.Op)
		assert.Equal(t, "post1", ev.RowID)
		assert.Equal(t, "alice", ev.ActorID)
		done <- true
	}()

	require.NoError(t, bus.Publish(ChangeEvent{Table: "posts", Op: OpInsert, RowID: "post1", ActorID: "alice"}))
	<-done
}

func TestBusTopicsAreIsolatedByTable(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	comments, err := bus.Subscribe(ctx, "comments")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ChangeEvent{Table: "posts", Op: OpDelete, RowID: "post1"}))
	require.NoError(t, bus.Publish(ChangeEvent{Table: "comments", Op: OpInsert, RowID: "comment1"}))

	// Only the comments event arrives on the comments subscription.
	ev := <-comments
	assert.Equal(t, "comments", ev.Table)
	assert.Equal(t, "comment1", ev.RowID)
}

func TestBusFanOut(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, err := bus.Subscribe(ctx, "likes")
	require.NoError(t, err)
	second, err := bus.Subscribe(ctx, "likes")
	require.NoError(t, err)

	done := make(chan bool)
	go func() {
		ev := <-first
		assert.Equal(t, "post1", ev.RowID)
		done <- true
	}()
	go func() {
		ev := <-second
		assert.Equal(t, "post1", ev.RowID)
		done <- true
	}()

	require.NoError(t, bus.Publish(ChangeEvent{Table: "likes", Op: OpInsert, RowID: "post1"}))
	<-done
	<-done
}

func TestBusSubscriptionClosesOnCancel(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())

	ch, err := bus.Subscribe(ctx, "posts")
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription channel should close after cancel")
	}
}
