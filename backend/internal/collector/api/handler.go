package api

import (
	"context"
	"log/slog"

	"walk-sensor/backend/internal/store"
	"walk-sensor/backend/pkg/router"
)

const (
	CoreGroup    = "Core"
	DevicesGroup = "Devices"
)

const (
	defaultReadingsLimit = 100
	maxReadingsLimit     = 1000
)

// Reader is the read side of the store served by the API.
type Reader interface {
	Ping(ctx context.Context) error
	ListDevices(ctx context.Context) ([]store.Device, error)
	GetDevice(ctx context.Context, address string) (store.Device, error)
	GetSensor(ctx context.Context, address string) (store.Sensor, error)
	ListReadings(ctx context.Context, sensorAddress string, limit int) ([]store.Reading, error)
}

// Connection reports whether the bus client is connected.
type Connection interface {
	IsConnected() bool
}

// Handler serves the collector API.
type Handler struct {
	l    *slog.Logger
	db   Reader
	conn Connection
}

func NewHandler(l *slog.Logger, db Reader, conn Connection) *Handler {
	return &Handler{
		l:    l.With(slog.String("component", "collector-api")),
		db:   db,
		conn: conn,
	}
}

// RegisterRoutes registers every collector endpoint on rb.
func (h *Handler) RegisterRoutes(rb *router.RouteBuilder) {
	h.RegisterPing("/ping", rb)
	h.RegisterHealth("/health", rb)
	h.RegisterVersion("/version", rb)
	h.RegisterListDevices("/devices", rb)
	h.RegisterGetDevice("/devices/{deviceAddress}", rb)
	h.RegisterListReadings("/sensors/{sensorAddress}/readings", rb)
}
