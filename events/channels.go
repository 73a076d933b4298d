package events

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// UserChannels contains all structures that handle users' change-event
// channels. All internal state should not be handled directly by hand but
// managed by its public receivers.
type UserChannels struct {
	// connectionMap maps from user id to the user's active channels, keyed
	// by channel id (uuid) so that deletion of a channel is O(1).
	// Each connectionMap entry is deleted once all of the user's active
	// channels are closed.
	// Multiple devices of one user cannot share a channel, each connection
	// creates its own.
	connectionMap map[string]map[string]chan ChangeEvent

	// Adding/Removing a subscription must grab the write lock, while all
	// other usage (e.g. pushing an event) grabs the read lock.
	mu sync.RWMutex
}

func NewUserChannels() *UserChannels {
	return &UserChannels{
		connectionMap: make(map[string]map[string]chan ChangeEvent),
	}
}

// cleanUp a single connection when the context terminates. If a user's all
// active connections terminate, clean up the user's top-level entry as well.
func (uc *UserChannels) cleanUp(ctx context.Context, chID string, userID string) {
	<-ctx.Done()

	uc.mu.Lock()
	defer uc.mu.Unlock()

	delete(uc.connectionMap[userID], chID)
	if len(uc.connectionMap[userID]) == 0 {
		delete(uc.connectionMap, userID)
	}
}

// AddNewConnection registers a fresh channel for the user, bound to ctx.
// Thread-safe.
func (uc *UserChannels) AddNewConnection(ctx context.Context, userID string) (chan ChangeEvent, string) {
	chID := "change_channel_" + uuid.New().String()
	ch := make(chan ChangeEvent, 1)

	uc.mu.Lock()
	defer uc.mu.Unlock()

	if _, ok := uc.connectionMap[userID]; !ok {
		uc.connectionMap[userID] = make(map[string]chan ChangeEvent)
	}
	uc.connectionMap[userID][chID] = ch

	// Spin up a background garbage collector.
	go uc.cleanUp(ctx, chID, userID)

	return ch, chID
}

// GetActiveConnectionsCount is thread-safe.
func (uc *UserChannels) GetActiveConnectionsCount() int {
	uc.mu.RLock()
	defer uc.mu.RUnlock()

	count := 0
	for _, mp := range uc.connectionMap {
		count += len(mp)
	}
	return count
}

// PushToUser delivers the event to every active channel of the user.
// Thread-safe.
func (uc *UserChannels) PushToUser(ev ChangeEvent, userID string) error {
	uc.mu.RLock()
	defer uc.mu.RUnlock()

	if _, ok := uc.connectionMap[userID]; !ok {
		return errors.New("no active connection for user: " + userID)
	}
	for _, ch := range uc.connectionMap[userID] {
		ch <- ev
	}
	return nil
}
