package progress

import (
	"context"
	"encoding/json"

	"docqa-engine/pkg/store"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// TopicProgress carries per-trace execution events inside the process.
const TopicProgress = "qa.progress"

// Emitter is the narrow sink handed to the executor and the facade.
// Emitting is best-effort: a lost event must never fail a request.
type Emitter interface {
	Emit(event store.ProgressEvent)
}

// NopEmitter drops everything. Useful in tests and the simulator.
type NopEmitter struct{}

func (NopEmitter) Emit(store.ProgressEvent) {}

// Bus is an in-process pub/sub for progress events on top of watermill's
// gochannel transport.
type Bus struct {
	pubSub *gochannel.GoChannel
}

func NewBus(pubSub *gochannel.GoChannel) *Bus {
	return &Bus{pubSub: pubSub}
}

func (b *Bus) Emit(event store.ProgressEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	// best-effort: subscribers that are slow or absent do not matter here
	_ = b.pubSub.Publish(TopicProgress, msg)
}

// Subscribe returns a channel of decoded progress events. The channel
// closes when ctx is cancelled.
func (b *Bus) Subscribe(ctx context.Context) (<-chan store.ProgressEvent, error) {
	messages, err := b.pubSub.Subscribe(ctx, TopicProgress)
	if err != nil {
		return nil, err
	}

	out := make(chan store.ProgressEvent, 64)
	go func() {
		defer close(out)
		for msg := range messages {
			var event store.ProgressEvent
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				msg.Ack()
				continue
			}
			msg.Ack()
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
