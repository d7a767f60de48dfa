package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"careplus/internal/logger"
	"careplus/internal/models"

	"github.com/segmentio/kafka-go"
)

// MessageReader is the part of *kafka.Reader the relay uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// QueueRelay replays session snapshots published by other instances into
// the local SSE emitter, so a display connected to any instance sees every
// queue change.
type QueueRelay struct {
	Reader MessageReader
	Origin string
	Emit   func(models.QueueSnapshot)
	Logger *logger.Logger
}

// NewQueueRelay joins a group private to this instance and starts at the
// newest offset; history is of no use to a live display.
func NewQueueRelay(brokers []string, topic, origin string, emit func(models.QueueSnapshot), log *logger.Logger) *QueueRelay {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     "careplus-queue-relay-" + origin,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
	})
	return &QueueRelay{Reader: reader, Origin: origin, Emit: emit, Logger: log}
}

// Run blocks until ctx is cancelled.
func (c *QueueRelay) Run(ctx context.Context) {
	c.Logger.Info("KAFKA", "Queue relay started")

	for {
		msg, err := c.Reader.ReadMessage(ctx)
		if ctx.Err() != nil {
			c.Logger.Info("KAFKA", "Queue relay stopped")
			return
		}
		if err != nil {
			c.Logger.Error("KAFKA", fmt.Sprintf("Error reading message: %v", err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		if headerValue(msg, originHeader) == c.Origin {
			continue
		}

		var snapshot models.QueueSnapshot
		if err := json.Unmarshal(msg.Value, &snapshot); err != nil {
			c.Logger.Warn("KAFKA", fmt.Sprintf("Failed to unmarshal queue snapshot: %v", err))
			continue
		}

		c.Emit(snapshot)
	}
}

func (c *QueueRelay) Close() error {
	return c.Reader.Close()
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
