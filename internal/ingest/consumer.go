package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Shopify/sarama"

	"fleet-telemetry-cloud/internal/observability/metrics"
	vehicles "fleet-telemetry-cloud/internal/vehicles/domain"
)

// Applier merges a decoded reading into durable vehicle state and
// returns the post-merge authoritative snapshot.
type Applier interface {
	ApplyReading(ctx context.Context, deviceID string, reading vehicles.SensorSnapshot) (vehicles.SensorSnapshot, vehicles.UsageAnalytics, error)
}

// Publisher fans out merged snapshots to live subscribers of a device.
type Publisher interface {
	Publish(key string, payload vehicles.SensorSnapshot)
}

// envelope is the wire shape of one sensor message.
type envelope struct {
	DeviceID string                   `json:"deviceId"`
	Reading  *vehicles.SensorSnapshot `json:"reading"`
}

// Consumer bridges the Kafka sensor topic to durable state and the
// live hub. Messages are handled inline per partition claim, so
// per-device order is preserved end to end as long as producers key
// messages by device id.
//
// Drop policy: malformed payloads and readings for unknown devices are
// logged and committed (the next reading supersedes them). A store
// write failure is not committed; redelivery is the broker's policy.
type Consumer struct {
	group     sarama.ConsumerGroup
	topic     string
	applier   Applier
	publisher Publisher
	logger    *log.Logger
}

// NewConsumer constructs a consumer group client for the sensor topic.
func NewConsumer(brokers []string, groupID, topic string, applier Applier, publisher Publisher, logger *log.Logger) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("ingest: no brokers")
	}
	if topic == "" {
		return nil, errors.New("ingest: empty topic")
	}
	if applier == nil {
		return nil, errors.New("ingest: nil applier")
	}
	if publisher == nil {
		return nil, errors.New("ingest: nil publisher")
	}
	if logger == nil {
		logger = log.Default()
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Consumer.Return.Errors = true
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest

	group, err := sarama.NewConsumerGroup(brokers, groupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("ingest: consumer group: %w", err)
	}
	return &Consumer{
		group:     group,
		topic:     topic,
		applier:   applier,
		publisher: publisher,
		logger:    logger,
	}, nil
}

// Run consumes until ctx is cancelled. A session ended by a store
// failure re-enters from the last committed offset, which is how
// unacknowledged messages come back around.
func (c *Consumer) Run(ctx context.Context) error {
	go func() {
		for err := range c.group.Errors() {
			c.logger.Printf("ingest: consumer error: %v", err)
		}
	}()

	handler := &groupHandler{consumer: c}
	for {
		if err := c.group.Consume(ctx, []string{c.topic}, handler); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			c.logger.Printf("ingest: session ended: %v", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Close releases the underlying consumer group.
func (c *Consumer) Close() error {
	return c.group.Close()
}

// processMessage handles one raw message. The returned error is
// non-nil only for store failures, which must not be committed.
func (c *Consumer) processMessage(ctx context.Context, value []byte) error {
	start := time.Now()

	var msg envelope
	if err := json.Unmarshal(value, &msg); err != nil {
		c.logger.Printf("ingest: malformed message dropped: %v", err)
		metrics.ObserveIngest(metrics.IngestResultMalformed, time.Since(start))
		return nil
	}
	if msg.DeviceID == "" || msg.Reading == nil {
		c.logger.Printf("ingest: malformed message dropped: missing deviceId or reading")
		metrics.ObserveIngest(metrics.IngestResultMalformed, time.Since(start))
		return nil
	}

	snapshot, _, err := c.applier.ApplyReading(ctx, msg.DeviceID, *msg.Reading)
	if err != nil {
		if errors.Is(err, vehicles.ErrDeviceNotFound) {
			c.logger.Printf("ingest: no vehicle for device %s, message dropped", msg.DeviceID)
			metrics.ObserveIngest(metrics.IngestResultUnknownDevice, time.Since(start))
			return nil
		}
		c.logger.Printf("ingest: store write for device %s failed: %v", msg.DeviceID, err)
		metrics.ObserveIngest(metrics.IngestResultStoreError, time.Since(start))
		return err
	}

	c.publisher.Publish(msg.DeviceID, snapshot)
	metrics.IncPublish()
	metrics.ObserveIngest(metrics.IngestResultApplied, time.Since(start))
	return nil
}

type groupHandler struct {
	consumer *Consumer
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		if err := session.Context().Err(); err != nil {
			return err
		}
		if err := h.consumer.processMessage(session.Context(), message.Value); err != nil {
			// Not committed: ends the session so the broker
			// redelivers from the last committed offset.
			return err
		}
		session.MarkMessage(message, "")
	}
	return nil
}
