package mqttpublish

import (
	"context"
	"encoding/json"
	"time"

	"github.com/resonantfield/tapedeck/internal/engine"
	"github.com/resonantfield/tapedeck/internal/eventbus"
	"github.com/resonantfield/tapedeck/internal/project"
)

// transportPayload is published to "<topic>/transport" whenever the
// transport's state or position changes.
type transportPayload struct {
	State     string `json:"state"`
	Frame     uint64 `json:"frame"`
	Timestamp int64  `json:"timestamp_unix_ms"`
}

// meterPayload is published to "<topic>/meter" on the master meter tap.
type meterPayload struct {
	PeakL     float64 `json:"peak_l"`
	PeakR     float64 `json:"peak_r"`
	RMSL      float64 `json:"rms_l"`
	RMSR      float64 `json:"rms_r"`
	Timestamp int64   `json:"timestamp_unix_ms"`
}

// PublishTransport encodes and publishes the transport's current state.
func PublishTransport(ctx context.Context, client *Client, t *engine.Transport) error {
	payload, err := json.Marshal(transportPayload{
		State:     t.State().String(),
		Frame:     t.Position(),
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}
	return client.Publish(ctx, "transport", payload)
}

// PublishMeter encodes and publishes a master meter snapshot.
func PublishMeter(ctx context.Context, client *Client, m project.Meter) error {
	payload, err := json.Marshal(meterPayload{
		PeakL:     m.PeakL,
		PeakR:     m.PeakR,
		RMSL:      m.RMSL,
		RMSR:      m.RMSR,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}
	return client.Publish(ctx, "meter", payload)
}

// errorPayload is published to "<topic>/error" for high-severity
// EnhancedErrors forwarded through the event bus.
type errorPayload struct {
	Component string `json:"component"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp_unix_ms"`
}

// Consumer adapts a Client into an eventbus.EventConsumer, publishing every
// delivered error event to "<topic>/error" instead of reacting to it
// synchronously.
type Consumer struct {
	client *Client
}

// NewConsumer wraps client as an eventbus.EventConsumer.
func NewConsumer(client *Client) *Consumer {
	return &Consumer{client: client}
}

func (c *Consumer) Name() string { return "mqttpublish" }

func (c *Consumer) ProcessEvent(event eventbus.ErrorEvent) error {
	payload, err := json.Marshal(errorPayload{
		Component: event.GetComponent(),
		Category:  event.GetCategory(),
		Message:   event.GetMessage(),
		Timestamp: event.GetTimestamp().UnixMilli(),
	})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.client.Publish(ctx, "error", payload)
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
