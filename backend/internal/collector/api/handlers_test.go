package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"walk-sensor/backend/internal/shared/types"
	"walk-sensor/backend/internal/store"
	"walk-sensor/backend/pkg/router"
	"walk-sensor/backend/pkg/utils"
)

const (
	testDevice = "24:6F:28:AA:BB:CC"
	testSensor = testDevice + ":00"
)

type fakeReader struct {
	pingErr  error
	devices  []store.Device
	readings []store.Reading
	limit    int
}

func (f *fakeReader) Ping(context.Context) error { return f.pingErr }

func (f *fakeReader) ListDevices(context.Context) ([]store.Device, error) {
	return f.devices, nil
}

func (f *fakeReader) GetDevice(_ context.Context, address string) (store.Device, error) {
	for _, d := range f.devices {
		if d.Address == address {
			return d, nil
		}
	}

	return store.Device{}, fmt.Errorf("device %s: %w", address, store.ErrNotFound)
}

func (f *fakeReader) GetSensor(_ context.Context, address string) (store.Sensor, error) {
	for _, d := range f.devices {
		for _, s := range d.Sensors {
			if s.Address == address {
				return s, nil
			}
		}
	}

	return store.Sensor{}, fmt.Errorf("sensor %s: %w", address, store.ErrNotFound)
}

func (f *fakeReader) ListReadings(_ context.Context, _ string, limit int) ([]store.Reading, error) {
	f.limit = limit

	return f.readings[:min(limit, len(f.readings))], nil
}

type fakeConn bool

func (c fakeConn) IsConnected() bool { return bool(c) }

func newFixture() *fakeReader {
	seen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	return &fakeReader{
		devices: []store.Device{{
			Address:     testDevice,
			Type:        "ESP32-devkit-V4",
			FirstSeenAt: seen,
			LastSeenAt:  seen,
			Sensors: []store.Sensor{{
				Address:       testSensor,
				DeviceAddress: testDevice,
				Name:          "RANDOM WALK",
				Description:   "Bounded random walk",
				Unit:          "degC",
			}},
		}},
		readings: []store.Reading{
			{ID: 3, SensorAddress: testSensor, Value: 15.01, RecordedAt: seen.Add(20 * time.Second)},
			{ID: 2, SensorAddress: testSensor, Value: 15.005, RecordedAt: seen.Add(10 * time.Second)},
			{ID: 1, SensorAddress: testSensor, Value: 15, RecordedAt: seen},
		},
	}
}

func newServer(db Reader, conn Connection) http.Handler {
	l := slog.New(slog.NewTextHandler(io.Discard, nil))
	rb := router.NewRouteBuilder(l)
	h := NewHandler(l, db, conn)
	rb.Route("/api", h.RegisterRoutes)

	return rb.Router()
}

func get(t *testing.T, srv http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	return rec
}

func TestPing(t *testing.T) {
	t.Parallel()

	rec := get(t, newServer(newFixture(), fakeConn(true)), "/api/ping")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	resp, err := utils.FromJSON[types.PingResponse](rec.Body.Bytes())
	if err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Status != types.PingStatusOK {
		t.Errorf("Status = %q, want %q", resp.Status, types.PingStatusOK)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		pingErr    error
		connected  bool
		wantStatus int
		want       types.HealthResponse
	}{
		{name: "healthy", connected: true, wantStatus: http.StatusOK, want: types.HealthResponse{Database: true, MQTT: true}},
		{name: "mqtt down", connected: false, wantStatus: http.StatusServiceUnavailable, want: types.HealthResponse{Database: true}},
		{name: "database down", pingErr: errors.New("closed"), connected: true, wantStatus: http.StatusServiceUnavailable, want: types.HealthResponse{MQTT: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			db := newFixture()
			db.pingErr = tt.pingErr

			rec := get(t, newServer(db, fakeConn(tt.connected)), "/api/health")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			got, err := utils.FromJSON[types.HealthResponse](rec.Body.Bytes())
			if err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}

			if got != tt.want {
				t.Errorf("Health() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestListDevices(t *testing.T) {
	t.Parallel()

	t.Run("with devices", func(t *testing.T) {
		t.Parallel()

		rec := get(t, newServer(newFixture(), fakeConn(true)), "/api/devices")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}

		got, err := utils.FromJSON[[]types.DeviceResponse](rec.Body.Bytes())
		if err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}

		if len(got) != 1 || got[0].DeviceAddress != testDevice || len(got[0].Sensors) != 1 {
			t.Errorf("ListDevices() = %+v", got)
		}
	})

	t.Run("empty store encodes an empty list", func(t *testing.T) {
		t.Parallel()

		rec := get(t, newServer(&fakeReader{}, fakeConn(true)), "/api/devices")
		if body := rec.Body.String(); body != "[]\n" && body != "[]" {
			t.Errorf("body = %q, want []", body)
		}
	})
}

func TestGetDevice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		address    string
		wantStatus int
	}{
		{name: "found", address: testDevice, wantStatus: http.StatusOK},
		{name: "lower case is normalized", address: "24:6f:28:aa:bb:cc", wantStatus: http.StatusOK},
		{name: "unknown", address: "24:6F:28:00:00:00", wantStatus: http.StatusNotFound},
		{name: "invalid", address: "not-a-mac", wantStatus: http.StatusBadRequest},
		{name: "escaped colons", address: strings.ReplaceAll(testDevice, ":", "%3A"), wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := get(t, newServer(newFixture(), fakeConn(true)), "/api/devices/"+tt.address)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestListReadings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantLimit  int
		wantCount  int
	}{
		{name: "default limit", target: "/api/sensors/" + testSensor + "/readings", wantStatus: http.StatusOK, wantLimit: 100, wantCount: 3},
		{name: "explicit limit", target: "/api/sensors/" + testSensor + "/readings?limit=2", wantStatus: http.StatusOK, wantLimit: 2, wantCount: 2},
		{name: "limit too large", target: "/api/sensors/" + testSensor + "/readings?limit=5000", wantStatus: http.StatusBadRequest},
		{name: "limit not a number", target: "/api/sensors/" + testSensor + "/readings?limit=ten", wantStatus: http.StatusBadRequest},
		{name: "unknown sensor", target: "/api/sensors/" + testDevice + ":07/readings", wantStatus: http.StatusNotFound},
		{name: "invalid sensor", target: "/api/sensors/" + testDevice + "/readings", wantStatus: http.StatusBadRequest},
		{name: "escaped colons", target: "/api/sensors/" + strings.ReplaceAll(testSensor, ":", "%3A") + "/readings", wantStatus: http.StatusOK, wantLimit: 100, wantCount: 3},
		{name: "escaped lower case", target: "/api/sensors/" + strings.ToLower(strings.ReplaceAll(testSensor, ":", "%3a")) + "/readings", wantStatus: http.StatusOK, wantLimit: 100, wantCount: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			db := newFixture()

			rec := get(t, newServer(db, fakeConn(true)), tt.target)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}

			if tt.wantStatus != http.StatusOK {
				return
			}

			if db.limit != tt.wantLimit {
				t.Errorf("limit = %d, want %d", db.limit, tt.wantLimit)
			}

			got, err := utils.FromJSON[types.ReadingsResponse](rec.Body.Bytes())
			if err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}

			if got.Unit != "degC" || len(got.Readings) != tt.wantCount {
				t.Errorf("ListReadings() = %+v", got)
			}

			if got.Readings[0].ID != 3 {
				t.Errorf("first reading ID = %d, want newest (3)", got.Readings[0].ID)
			}
		})
	}
}

func TestVersion(t *testing.T) {
	t.Parallel()

	rec := get(t, newServer(newFixture(), fakeConn(true)), "/api/version")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	info, err := utils.FromJSON[map[string]string](rec.Body.Bytes())
	if err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if info["version"] != utils.Version {
		t.Errorf("version = %q, want %q", info["version"], utils.Version)
	}
}
