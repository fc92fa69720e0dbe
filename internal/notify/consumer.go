package notify

import (
	"context"
	"time"

	"github.com/resonantfield/tapedeck/internal/eventbus"
)

// Consumer adapts a Dispatcher into an eventbus.EventConsumer, turning
// forwarded high-severity errors into notifications.
type Consumer struct {
	dispatcher *Dispatcher
}

// NewConsumer wraps dispatcher as an eventbus.EventConsumer.
func NewConsumer(dispatcher *Dispatcher) *Consumer {
	return &Consumer{dispatcher: dispatcher}
}

func (c *Consumer) Name() string { return "notify" }

func (c *Consumer) ProcessEvent(event eventbus.ErrorEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return c.dispatcher.Dispatch(ctx, &Notification{
		Type:    TypeError,
		Title:   event.GetComponent(),
		Message: event.GetMessage(),
		Context: event.GetContext(),
	})
}

func (c *Consumer) ProcessBatch(events []eventbus.ErrorEvent) error {
	for _, e := range events {
		if err := c.ProcessEvent(e); err != nil {
			return err
		}
	}
	return nil
}

func (c *Consumer) SupportsBatching() bool { return false }
