// Package kafka publishes sensor documents to Kafka instead of an MQTT broker.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// Options configures a Writer.
type Options struct {
	Brokers []string
	// WriteTimeout bounds a single produce request. Defaults to 10s.
	WriteTimeout time.Duration
}

// Writer sends raw payloads to Kafka topics derived from MQTT style topic names.
type Writer struct {
	w *kafka.Writer
	l *slog.Logger
}

// NewWriter creates a Writer for the given brokers. No connection is made until the first send.
func NewWriter(l *slog.Logger, opts Options) (*Writer, error) {
	if len(opts.Brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}

	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}

	l = l.With(slog.String("component", "kafka-writer"))
	l.Info("Kafka writer created", slog.Any("brokers", opts.Brokers))

	return &Writer{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(opts.Brokers...),
			Balancer:               &kafka.LeastBytes{},
			RequiredAcks:           kafka.RequireOne,
			WriteTimeout:           opts.WriteTimeout,
			AllowAutoTopicCreation: true,
		},
		l: l,
	}, nil
}

// TopicName maps an MQTT topic (esp32/walk) to a valid Kafka topic name (esp32.walk).
func TopicName(topic string) string {
	return strings.ReplaceAll(strings.Trim(topic, "/"), "/", ".")
}

// Send writes payload as a single message to the Kafka topic derived from topic.
func (w *Writer) Send(ctx context.Context, topic string, payload []byte) error {
	name := TopicName(topic)
	if name == "" {
		return fmt.Errorf("invalid topic %q", topic)
	}

	if err := w.w.WriteMessages(ctx, kafka.Message{Topic: name, Value: payload}); err != nil {
		return fmt.Errorf("failed to write to kafka topic %s: %w", name, err)
	}

	return nil
}

// Close flushes pending messages and closes the underlying connections.
func (w *Writer) Close() error {
	w.l.Info("Closing kafka writer")
	return w.w.Close()
}
