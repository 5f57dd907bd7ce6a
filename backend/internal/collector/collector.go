// Package collector stores the identification and reading packets published by sensors.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"walk-sensor/backend/internal/store"
	"walk-sensor/backend/pkg/device"
	"walk-sensor/backend/pkg/mqtt"
	"walk-sensor/backend/pkg/utils"
)

const (
	IdentificationGroup = "Identification"
	ReadingsGroup       = "Readings"

	storeTimeout = 5 * time.Second
)

// Store is the persistence the collector needs.
type Store interface {
	SaveIdentification(ctx context.Context, d device.Device, seenAt time.Time) (int, error)
	InsertReading(ctx context.Context, r device.Reading, recordedAt time.Time) (int64, error)
}

type Handler struct {
	l       *slog.Logger
	store   Store
	metrics *Metrics
	now     func() time.Time
}

func NewHandler(l *slog.Logger, s Store, m *Metrics) *Handler {
	return &Handler{
		l:       l.With(slog.String("component", "collector")),
		store:   s,
		metrics: m,
		now:     time.Now,
	}
}

// Register subscribes to both topics with QoS 2.
func (h *Handler) Register(mb *mqtt.MQTTBuilder, identificationTopic, readingsTopic string) {
	mb.MustRegisterSubscribe(identificationTopic, mqtt.SubscriptionSpec{
		OperationID: "receiveIdentification",
		Summary:     "Receive device identification packets",
		Group:       IdentificationGroup,
		QoS:         mqtt.QoSExactlyOnce,
		Handler:     h.onMessage,
	})

	mb.MustRegisterSubscribe(readingsTopic, mqtt.SubscriptionSpec{
		OperationID: "receiveReadings",
		Summary:     "Receive sensor reading packets",
		Group:       ReadingsGroup,
		QoS:         mqtt.QoSExactlyOnce,
		Handler:     h.onMessage,
	})
}

func (h *Handler) onMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := h.HandlePayload(ctx, msg.Topic(), msg.Payload()); err != nil {
		h.l.Warn("Dropped packet", slog.String("topic", msg.Topic()), slog.Int("bytes", len(msg.Payload())), utils.ErrAttr(err))
	}
}

// HandlePayload decodes one bus payload and stores it. Packets are dispatched on their
// packet_type, not on the topic they arrived on.
func (h *Handler) HandlePayload(ctx context.Context, topic string, payload []byte) error {
	packet, err := device.DecodePacket(payload)
	if err != nil {
		if errors.Is(err, device.ErrUnknownPacket) {
			h.metrics.rejected(ReasonUnknownType)
		} else {
			h.metrics.rejected(ReasonMalformed)
		}

		return err
	}

	h.metrics.received(packet.PacketType())

	switch p := packet.(type) {
	case device.DevicePacket:
		return h.handleDevice(ctx, topic, p)
	case device.ReadingPacket:
		return h.handleReading(ctx, topic, p)
	default:
		h.metrics.rejected(ReasonUnknownType)
		return fmt.Errorf("%w: %T", device.ErrUnknownPacket, packet)
	}
}

func (h *Handler) handleDevice(ctx context.Context, topic string, p device.DevicePacket) error {
	d, err := p.Device()
	if err != nil {
		h.metrics.rejected(ReasonMalformed)
		return err
	}

	added, err := h.store.SaveIdentification(ctx, d, h.now())
	if err != nil {
		h.metrics.rejected(ReasonStoreError)
		return fmt.Errorf("failed to save identification: %w", err)
	}

	h.metrics.sensorsAdded.Add(float64(added))

	h.l.Info("Device identified",
		slog.String("topic", topic),
		slog.String("deviceAddress", d.Address()),
		slog.String("deviceType", d.TypeName()),
		slog.Int("sensors", len(d.Sensors())),
		slog.Int("newSensors", added),
	)

	return nil
}

func (h *Handler) handleReading(ctx context.Context, topic string, p device.ReadingPacket) error {
	r, err := p.Reading()
	if err != nil {
		h.metrics.rejected(ReasonMalformed)
		return err
	}

	if _, err := h.store.InsertReading(ctx, r, h.now()); err != nil {
		if errors.Is(err, store.ErrUnknownSensor) {
			h.metrics.rejected(ReasonUnknownSensor)
			return err
		}

		h.metrics.rejected(ReasonStoreError)

		return fmt.Errorf("failed to store reading: %w", err)
	}

	h.metrics.lastReading.WithLabelValues(r.Address()).Set(r.Value())

	h.l.Debug("Reading stored", slog.String("topic", topic), slog.String("sensorAddress", r.Address()), slog.Float64("value", r.Value()))

	return nil
}
