package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Daniil-33/trading-journal-back/internal/ingest"
)

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// SummaryPublisher sends finished run summaries to a Kafka topic, keyed by run id.
type SummaryPublisher struct {
	writer  MessageWriter
	timeout time.Duration
}

// NewKafkaWriter creates a synchronous writer for topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    1,
		RequiredAcks: kafka.RequireOne,
		Compression:  kafka.Zstd,
	}
}

// NewSummaryPublisher wraps writer. A zero timeout defaults to 10s.
func NewSummaryPublisher(writer MessageWriter, timeout time.Duration) *SummaryPublisher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SummaryPublisher{writer: writer, timeout: timeout}
}

// Publish writes s as one JSON message.
func (p *SummaryPublisher) Publish(ctx context.Context, s ingest.RunSummary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("serialize summary failed: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = p.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(s.RunID),
		Value: data,
		Time:  s.FinishedAt,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(s.Kind)},
		},
	})
	if err != nil {
		return fmt.Errorf("kafka write failed: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *SummaryPublisher) Close() error {
	return p.writer.Close()
}
