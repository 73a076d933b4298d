// Package events carries row-change notifications so list views can refresh
// on external mutation without polling the database. The bus is in-process
// (gochannel) but nothing above it assumes that.
package events

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	Logger "github.com/plateful/plateful/utils/log"
)

type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// ChangeEvent describes one row mutation. ActorID is the user whose action
// caused it, when known.
type ChangeEvent struct {
	Table   string `json:"table"`
	Op      Op     `json:"op"`
	RowID   string `json:"row_id"`
	ActorID string `json:"actor_id,omitempty"`
}

// Bus is a publish/subscribe change feed with one topic per table.
type Bus struct {
	inner *gochannel.GoChannel
}

func NewBus() *Bus {
	return &Bus{
		inner: gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{}),
	}
}

func topicFor(table string) string {
	return "changes." + table
}

// Publish emits the event to every subscriber of its table.
func (b *Bus) Publish(ev ChangeEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	return b.inner.Publish(topicFor(ev.Table), msg)
}

// Subscribe returns a channel of change events for one table. The channel
// closes when ctx is cancelled.
func (b *Bus) Subscribe(ctx context.Context, table string) (<-chan ChangeEvent, error) {
	msgs, err := b.inner.Subscribe(ctx, topicFor(table))
	if err != nil {
		return nil, err
	}

	out := make(chan ChangeEvent, 1)
	go func() {
		defer close(out)
		for msg := range msgs {
			var ev ChangeEvent
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				Logger.Log.Warn("drop malformed change event: ", err)
				msg.Ack()
				continue
			}
			msg.Ack()
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (b *Bus) Close() error {
	return b.inner.Close()
}
