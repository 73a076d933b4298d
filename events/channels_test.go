package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserChannelsCreationAndCleanup(t *testing.T) {
	uc := NewUserChannels()
	assert.Equal(t, 0, uc.GetActiveConnectionsCount())

	ctxOne, cancelOne := context.WithCancel(context.Background())
	ctxTwo, cancelTwo := context.WithCancel(context.Background())
	ctxThree, cancelThree := context.WithCancel(context.Background())

	// Two devices of one user plus one connection from another.
	uc.AddNewConnection(ctxOne, "alice")
	uc.AddNewConnection(ctxTwo, "alice")
	uc.AddNewConnection(ctxThree, "bob")
	assert.Equal(t, 3, uc.GetActiveConnectionsCount())

	cancelOne()
	time.Sleep(1 * time.Second)
	assert.Equal(t, 2, uc.GetActiveConnectionsCount())

	cancelTwo()
	cancelThree()
	time.Sleep(1 * time.Second)
	assert.Equal(t, 0, uc.GetActiveConnectionsCount())
}

func TestPushToUser(t *testing.T) {
	uc := NewUserChannels()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, _ := uc.AddNewConnection(ctx, "alice")

	done := make(chan bool)
	go func() {
		ev := <-ch
		assert.Equal(t, "notices", ev.Table)
		assert.Equal(t, OpInsert, ev.Op)
		assert.Equal(t, "Couldn't update, please try again.", ev.RowID)
		done <- true
	}()

	err := uc.PushToUser(ChangeEvent{Table: "notices", Op: OpInsert, RowID: "Couldn't update, please try again."}, "alice")
	require.NoError(t, err)
	<-done
}

func TestPushToUserWithoutConnection(t *testing.T) {
	uc := NewUserChannels()

	err := uc.PushToUser(ChangeEvent{Table: "notices", Op: OpInsert, RowID: "hello"}, "ghost")
	assert.Error(t, err)
}

func TestPushToUserFanOut(t *testing.T) {
	uc := NewUserChannels()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, _ := uc.AddNewConnection(ctx, "alice")
	second, _ := uc.AddNewConnection(ctx, "alice")

	err := uc.PushToUser(ChangeEvent{Table: "auth", Op: OpDelete}, "alice")
	require.NoError(t, err)

	// Both devices get the event; the buffered channels hold it already.
	assert.Equal(t, "auth", (<-first).Table)
	assert.Equal(t, "auth", (<-second).Table)
}
