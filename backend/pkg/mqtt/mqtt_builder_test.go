package mqtt

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

func newTestBuilder(t *testing.T) *MQTTBuilder {
	t.Helper()

	l := slog.New(slog.NewTextHandler(io.Discard, nil))

	mb, err := NewMQTTBuilder(l, MQTTClientOptions{BrokerURL: "tcp://127.0.0.1:1", ClientID: "walk-test"})
	if err != nil {
		t.Fatalf("NewMQTTBuilder() unexpected error: %v", err)
	}

	return mb
}

func readingsSpec() PublicationSpec {
	return PublicationSpec{
		OperationID: "publishReading",
		Summary:     "Publish a sensor reading",
		Group:       "Readings",
		QoS:         QoSAtMostOnce,
	}
}

func TestNewMQTTBuilderRequiresOptions(t *testing.T) {
	t.Parallel()

	l := slog.New(slog.NewTextHandler(io.Discard, nil))

	if _, err := NewMQTTBuilder(l, MQTTClientOptions{ClientID: "x"}); err == nil {
		t.Error("NewMQTTBuilder() without broker expected error, got nil")
	}

	if _, err := NewMQTTBuilder(l, MQTTClientOptions{BrokerURL: "tcp://127.0.0.1:1883"}); err == nil {
		t.Error("NewMQTTBuilder() without client ID expected error, got nil")
	}
}

func TestRegisterPublish(t *testing.T) {
	t.Parallel()

	mb := newTestBuilder(t)

	if err := mb.RegisterPublish("esp32/walk", readingsSpec()); err != nil {
		t.Fatalf("RegisterPublish() unexpected error: %v", err)
	}

	if got := mb.publications["publishReading"].TopicMQTT; got != "esp32/walk" {
		t.Errorf("TopicMQTT = %q, want %q", got, "esp32/walk")
	}

	err := mb.RegisterPublish("esp32/other", readingsSpec())
	if err == nil || !strings.Contains(err.Error(), "duplicate operationID") {
		t.Errorf("RegisterPublish() duplicate error = %v, want duplicate operationID", err)
	}

	spec := readingsSpec()
	spec.OperationID = "publishAgain"

	err = mb.RegisterPublish("esp32/walk", spec)
	if err == nil || !strings.Contains(err.Error(), "already registered") {
		t.Errorf("RegisterPublish() same topic error = %v, want already registered", err)
	}

	spec.OperationID = "publishBadQoS"
	spec.QoS = 7

	if err := mb.RegisterPublish("esp32/bad", spec); err == nil {
		t.Error("RegisterPublish() with invalid QoS expected error, got nil")
	}
}

func TestRegisterSubscribe(t *testing.T) {
	t.Parallel()

	mb := newTestBuilder(t)

	spec := SubscriptionSpec{
		OperationID: "subscribeReadings",
		Summary:     "Receive sensor readings",
		Group:       "Readings",
		QoS:         QoSExactlyOnce,
		TopicParameters: []TopicParameter{
			{Name: "deviceAddress", Description: "MAC address of the device"},
		},
	}

	err := mb.RegisterSubscribe("esp32/{deviceAddress}/walk", spec)
	if err == nil || !strings.Contains(err.Error(), "handler is required") {
		t.Errorf("RegisterSubscribe() without handler error = %v, want handler is required", err)
	}

	spec.Handler = func(pahomqtt.Client, pahomqtt.Message) {}

	if err := mb.RegisterSubscribe("esp32/{deviceAddress}/walk", spec); err != nil {
		t.Fatalf("RegisterSubscribe() unexpected error: %v", err)
	}

	if got := mb.subscriptions["subscribeReadings"].TopicMQTT; got != "esp32/+/walk" {
		t.Errorf("TopicMQTT = %q, want %q", got, "esp32/+/walk")
	}
}

func TestRegisterAfterConnect(t *testing.T) {
	t.Parallel()

	mb := newTestBuilder(t)
	mb.runConnectOnce.Store(true)

	if err := mb.RegisterPublish("esp32/walk", readingsSpec()); err == nil {
		t.Error("RegisterPublish() after connect expected error, got nil")
	}

	err := mb.RegisterSubscribe("esp32/walk", SubscriptionSpec{
		OperationID: "subscribeReadings",
		Summary:     "Receive sensor readings",
		Group:       "Readings",
		Handler:     func(pahomqtt.Client, pahomqtt.Message) {},
	})
	if err == nil {
		t.Error("RegisterSubscribe() after connect expected error, got nil")
	}
}

func TestClientSend(t *testing.T) {
	t.Parallel()

	mb := newTestBuilder(t)
	mb.MustRegisterPublish("esp32/{deviceAddress}/walk", PublicationSpec{
		OperationID: "publishDeviceReading",
		Summary:     "Publish a reading on a per device topic",
		Group:       "Readings",
		TopicParameters: []TopicParameter{
			{Name: "deviceAddress", Description: "MAC address of the device"},
		},
	})

	client := mb.Client()

	err := client.Send(context.Background(), "esp32/id", []byte("{}"))
	if err == nil || !strings.Contains(err.Error(), "no publication registered") {
		t.Errorf("Send() on unregistered topic error = %v, want no publication registered", err)
	}

	// Never connected, so paho fails the token right away.
	err = client.Send(context.Background(), "esp32/AA:BB:CC:DD:EE:FF/walk", []byte("{}"))
	if !errors.Is(err, pahomqtt.ErrNotConnected) {
		t.Errorf("Send() while disconnected error = %v, want %v", err, pahomqtt.ErrNotConnected)
	}

	if client.IsConnected() {
		t.Error("IsConnected() = true before Connect")
	}

	if err := client.Publish("missing", "esp32/walk", map[string]int{"a": 1}); err == nil {
		t.Error("Publish() with unknown operationID expected error, got nil")
	}
}

func TestConnectHonoursContext(t *testing.T) {
	t.Parallel()

	mb := newTestBuilder(t)
	t.Cleanup(mb.Disconnect)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// Nothing listens on port 1, so paho keeps retrying until ctx expires.
	err := mb.Connect(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Connect() error = %v, want %v", err, context.DeadlineExceeded)
	}

	if err := mb.Connect(context.Background()); err == nil {
		t.Error("second Connect() expected error, got nil")
	}

	if err := mb.RegisterPublish("esp32/late", readingsSpec()); err == nil {
		t.Error("RegisterPublish() after Connect expected error, got nil")
	}
}
