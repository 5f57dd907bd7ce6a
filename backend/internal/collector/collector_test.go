package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"walk-sensor/backend/internal/store"
	"walk-sensor/backend/pkg/device"
)

const testDevice = "24:6F:28:AA:BB:CC"

type fakeStore struct {
	mu       sync.Mutex
	sensors  map[string]bool
	readings []device.Reading
	seenAt   []time.Time
	failWith error
}

func newFakeStore() *fakeStore {
	return &fakeStore{sensors: map[string]bool{}}
}

func (f *fakeStore) SaveIdentification(_ context.Context, d device.Device, seenAt time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failWith != nil {
		return 0, f.failWith
	}

	f.seenAt = append(f.seenAt, seenAt)

	added := 0

	for _, s := range d.Sensors() {
		if !f.sensors[s.Address()] {
			f.sensors[s.Address()] = true
			added++
		}
	}

	return added, nil
}

func (f *fakeStore) InsertReading(_ context.Context, r device.Reading, _ time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failWith != nil {
		return 0, f.failWith
	}

	if !f.sensors[r.Address()] {
		return 0, fmt.Errorf("%w: %s", store.ErrUnknownSensor, r.Address())
	}

	f.readings = append(f.readings, r)

	return int64(len(f.readings)), nil
}

func newTestHandler(s Store) (*Handler, *Metrics) {
	m := NewMetrics(prometheus.NewRegistry())
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), s, m)
	h.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	return h, m
}

func identificationPayload(t *testing.T, sensors int) []byte {
	t.Helper()

	addrs, err := device.SensorAddresses(testDevice, sensors)
	if err != nil {
		t.Fatalf("SensorAddresses() unexpected error: %v", err)
	}

	d, err := device.NewDevice(testDevice, "ESP32-devkit-V4")
	if err != nil {
		t.Fatalf("NewDevice() unexpected error: %v", err)
	}

	for _, addr := range addrs {
		s, err := device.NewSensor(addr, "RANDOM WALK", "Bounded random walk", "degC")
		if err != nil {
			t.Fatalf("NewSensor() unexpected error: %v", err)
		}

		d.AddSensor(s)
	}

	payload, err := device.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal() unexpected error: %v", err)
	}

	return payload
}

func readingPayload(t *testing.T, sensorAddr string, value float64) []byte {
	t.Helper()

	r, err := device.NewReading(value, sensorAddr)
	if err != nil {
		t.Fatalf("NewReading() unexpected error: %v", err)
	}

	payload, err := device.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal() unexpected error: %v", err)
	}

	return payload
}

func TestHandleIdentificationThenReading(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fs := newFakeStore()
	h, m := newTestHandler(fs)

	if err := h.HandlePayload(ctx, "esp32/id", identificationPayload(t, 2)); err != nil {
		t.Fatalf("HandlePayload(identification) unexpected error: %v", err)
	}

	if err := h.HandlePayload(ctx, "esp32/walk", readingPayload(t, testDevice+":01", 15.5)); err != nil {
		t.Fatalf("HandlePayload(reading) unexpected error: %v", err)
	}

	if len(fs.readings) != 1 || fs.readings[0].Value() != 15.5 {
		t.Errorf("stored readings = %v, want one reading of 15.5", fs.readings)
	}

	if got := testutil.ToFloat64(m.packetsReceived.WithLabelValues(device.PacketTypeDevice)); got != 1 {
		t.Errorf("packets_received_total{Device} = %v, want 1", got)
	}

	if got := testutil.ToFloat64(m.packetsReceived.WithLabelValues(device.PacketTypeReading)); got != 1 {
		t.Errorf("packets_received_total{SensorReading} = %v, want 1", got)
	}

	if got := testutil.ToFloat64(m.sensorsAdded); got != 2 {
		t.Errorf("sensors_added_total = %v, want 2", got)
	}

	if got := testutil.ToFloat64(m.lastReading.WithLabelValues(testDevice + ":01")); got != 15.5 {
		t.Errorf("last_reading_value = %v, want 15.5", got)
	}

	// Identification again adds nothing new.
	if err := h.HandlePayload(ctx, "esp32/id", identificationPayload(t, 2)); err != nil {
		t.Fatalf("HandlePayload(identification) unexpected error: %v", err)
	}

	if got := testutil.ToFloat64(m.sensorsAdded); got != 2 {
		t.Errorf("sensors_added_total after re-identification = %v, want 2", got)
	}
}

func TestHandlePayloadRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload func(t *testing.T) []byte
		reason  string
		wantErr error
	}{
		{
			name:    "not json",
			payload: func(*testing.T) []byte { return []byte("hello") },
			reason:  ReasonMalformed,
			wantErr: device.ErrMalformedPacket,
		},
		{
			name:    "unknown packet type",
			payload: func(*testing.T) []byte { return []byte(`{"packet_type":"Firmware"}`) },
			reason:  ReasonUnknownType,
			wantErr: device.ErrUnknownPacket,
		},
		{
			name: "invalid sensor address",
			payload: func(*testing.T) []byte {
				return []byte(`{"packet_type":"SensorReading","sensor_address":"nope","data_value":1}`)
			},
			reason:  ReasonMalformed,
			wantErr: device.ErrMalformedPacket,
		},
		{
			name:    "reading for unknown sensor",
			payload: func(t *testing.T) []byte { return readingPayload(t, testDevice+":00", 1) },
			reason:  ReasonUnknownSensor,
			wantErr: store.ErrUnknownSensor,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h, m := newTestHandler(newFakeStore())

			err := h.HandlePayload(context.Background(), "esp32/walk", tt.payload(t))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("HandlePayload() error = %v, want %v", err, tt.wantErr)
			}

			if got := testutil.ToFloat64(m.packetsRejected.WithLabelValues(tt.reason)); got != 1 {
				t.Errorf("packets_rejected_total{%s} = %v, want 1", tt.reason, got)
			}
		})
	}
}

func TestHandlePayloadStoreError(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	fs.failWith = errors.New("disk full")
	h, m := newTestHandler(fs)

	err := h.HandlePayload(context.Background(), "esp32/id", identificationPayload(t, 1))
	if err == nil {
		t.Fatal("HandlePayload() expected error, got nil")
	}

	if got := testutil.ToFloat64(m.packetsRejected.WithLabelValues(ReasonStoreError)); got != 1 {
		t.Errorf("packets_rejected_total{store_error} = %v, want 1", got)
	}
}
