package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"careplus/internal/config"
	"careplus/internal/logger"
	"careplus/internal/models"

	"github.com/segmentio/kafka-go"
)

const originHeader = "origin"

// MessageWriter is the part of *kafka.Writer the producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	Writer MessageWriter
	Topics config.TopicConfig
	Origin string
	Logger *logger.Logger
}

// NewProducer builds a multi-topic writer. Messages are hashed by key so
// every event of one session lands on the same partition in order.
func NewProducer(brokers []string, topics config.TopicConfig, origin string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Producer{Writer: writer, Topics: topics, Origin: origin, Logger: log}
}

func (p *Producer) PublishTicketIssued(ctx context.Context, event models.TicketIssuedEvent) error {
	return p.publish(ctx, p.Topics.TicketIssued, event.SessionID, event)
}

func (p *Producer) PublishSessionUpdated(ctx context.Context, snapshot models.QueueSnapshot) error {
	return p.publish(ctx, p.Topics.SessionUpdated, snapshot.SessionID, snapshot)
}

func (p *Producer) PublishChannelBooked(ctx context.Context, event models.ChannelBookedEvent) error {
	return p.publish(ctx, p.Topics.ChannelBooked, event.ChannelID, event)
}

func (p *Producer) publish(ctx context.Context, topic, key string, v interface{}) error {
	msgBytes, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}

	if p.Logger != nil {
		p.Logger.LogKafka("PUBLISH", topic, string(msgBytes))
	}

	err = p.Writer.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     []byte(key),
		Value:   msgBytes,
		Headers: []kafka.Header{{Key: originHeader, Value: []byte(p.Origin)}},
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
