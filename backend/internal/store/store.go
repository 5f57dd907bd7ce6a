// Package store persists devices, sensors and readings received by the collector.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"walk-sensor/backend/pkg/device"
	"walk-sensor/backend/pkg/dialect"
	"walk-sensor/backend/pkg/utils"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrUnknownSensor = errors.New("unknown sensor")
)

type Device struct {
	Address     string
	Type        string
	FirstSeenAt time.Time
	LastSeenAt  time.Time
	Sensors     []Sensor
}

type Sensor struct {
	Address       string
	DeviceAddress string
	Name          string
	Description   string
	Unit          string
}

type Reading struct {
	ID            int64
	SensorAddress string
	Value         float64
	RecordedAt    time.Time
}

// Store is safe for concurrent use.
type Store struct {
	db *sql.DB
	d  dialect.Dialect
	l  *slog.Logger
}

// Open opens the database described by connStr. For SQLite connStr is a file path.
func Open(l *slog.Logger, d dialect.Dialect, connStr string) (*Store, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	dsn := connStr
	if d == dialect.SQLite {
		dsn = connStr + "?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"
	}

	db, err := sql.Open(d.Driver(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return New(l, db, d), nil
}

func New(l *slog.Logger, db *sql.DB, d dialect.Dialect) *Store {
	return &Store{
		db: db,
		d:  d,
		l:  l.With(slog.String("component", "store"), slog.String("dialect", d.String())),
	}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) exec(ctx context.Context, q execer, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, s.d.Rebind(query), args...)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// UpsertDevice records that the device identified itself at seenAt.
func (s *Store) UpsertDevice(ctx context.Context, address, deviceType string, seenAt time.Time) error {
	return s.upsertDevice(ctx, s.db, address, deviceType, seenAt)
}

func (s *Store) upsertDevice(ctx context.Context, q execer, address, deviceType string, seenAt time.Time) error {
	_, err := s.exec(ctx, q, `
		INSERT INTO devices (device_address, device_type, first_seen_at, last_seen_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (device_address) DO UPDATE
		SET device_type = excluded.device_type, last_seen_at = excluded.last_seen_at`,
		address, deviceType, seenAt.UTC(), seenAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert device %s: %w", address, err)
	}

	return nil
}

// InsertSensor adds a sensor unless one with the same address exists. It reports whether a row was inserted.
func (s *Store) InsertSensor(ctx context.Context, deviceAddress string, sensor device.Sensor) (bool, error) {
	return s.insertSensor(ctx, s.db, deviceAddress, sensor)
}

func (s *Store) insertSensor(ctx context.Context, q execer, deviceAddress string, sensor device.Sensor) (bool, error) {
	res, err := s.exec(ctx, q, `
		INSERT INTO sensors (sensor_address, device_address, sensor_name, sensor_description, unit)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (sensor_address) DO NOTHING`,
		sensor.Address(), deviceAddress, sensor.Name(), sensor.Description(), sensor.Unit())
	if err != nil {
		return false, fmt.Errorf("failed to insert sensor %s: %w", sensor.Address(), err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return n > 0, nil
}

// SaveIdentification upserts d and inserts its unknown sensors in one transaction.
// It returns the number of sensors that were new.
func (s *Store) SaveIdentification(ctx context.Context, d device.Device, seenAt time.Time) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			s.l.Error("failed to rollback transaction", utils.ErrAttr(err))
		}
	}()

	if err := s.upsertDevice(ctx, tx, d.Address(), d.TypeName(), seenAt); err != nil {
		return 0, err
	}

	added := 0

	for _, sensor := range d.Sensors() {
		inserted, err := s.insertSensor(ctx, tx, d.Address(), sensor)
		if err != nil {
			return 0, err
		}

		if inserted {
			added++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return added, nil
}

// InsertReading stores r. Readings of sensors that never identified are rejected with ErrUnknownSensor.
func (s *Store) InsertReading(ctx context.Context, r device.Reading, recordedAt time.Time) (int64, error) {
	if _, err := s.GetSensor(ctx, r.Address()); err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, fmt.Errorf("%w: %s", ErrUnknownSensor, r.Address())
		}

		return 0, err
	}

	var id int64

	err := s.db.QueryRowContext(ctx, s.d.Rebind(`
		INSERT INTO readings (sensor_address, data_value, recorded_at)
		VALUES (?, ?, ?)
		RETURNING id`),
		r.Address(), r.Value(), recordedAt.UTC()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert reading for %s: %w", r.Address(), err)
	}

	return id, nil
}

// ListDevices returns every device with its sensors, ordered by address.
func (s *Store) ListDevices(ctx context.Context) ([]Device, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT device_address, device_type, first_seen_at, last_seen_at
		FROM devices
		ORDER BY device_address`)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}

	defer utils.LogOnError(s.l, rows.Close, "failed to close device rows")

	var devices []Device

	for rows.Next() {
		var d Device
		if err := rows.Scan(&d.Address, &d.Type, &d.FirstSeenAt, &d.LastSeenAt); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}

		devices = append(devices, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate devices: %w", err)
	}

	for i := range devices {
		sensors, err := s.ListSensors(ctx, devices[i].Address)
		if err != nil {
			return nil, err
		}

		devices[i].Sensors = sensors
	}

	return devices, nil
}

// GetDevice returns the device with its sensors, or ErrNotFound.
func (s *Store) GetDevice(ctx context.Context, address string) (Device, error) {
	var d Device

	err := s.db.QueryRowContext(ctx, s.d.Rebind(`
		SELECT device_address, device_type, first_seen_at, last_seen_at
		FROM devices
		WHERE device_address = ?`), address).Scan(&d.Address, &d.Type, &d.FirstSeenAt, &d.LastSeenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Device{}, fmt.Errorf("device %s: %w", address, ErrNotFound)
	}

	if err != nil {
		return Device{}, fmt.Errorf("failed to query device %s: %w", address, err)
	}

	if d.Sensors, err = s.ListSensors(ctx, address); err != nil {
		return Device{}, err
	}

	return d, nil
}

// ListSensors returns the sensors of a device ordered by address.
func (s *Store) ListSensors(ctx context.Context, deviceAddress string) ([]Sensor, error) {
	rows, err := s.db.QueryContext(ctx, s.d.Rebind(`
		SELECT sensor_address, device_address, sensor_name, sensor_description, unit
		FROM sensors
		WHERE device_address = ?
		ORDER BY sensor_address`), deviceAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to query sensors: %w", err)
	}

	defer utils.LogOnError(s.l, rows.Close, "failed to close sensor rows")

	sensors := []Sensor{}

	for rows.Next() {
		var sn Sensor
		if err := rows.Scan(&sn.Address, &sn.DeviceAddress, &sn.Name, &sn.Description, &sn.Unit); err != nil {
			return nil, fmt.Errorf("failed to scan sensor: %w", err)
		}

		sensors = append(sensors, sn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sensors: %w", err)
	}

	return sensors, nil
}

// GetSensor returns a sensor by address, or ErrNotFound.
func (s *Store) GetSensor(ctx context.Context, address string) (Sensor, error) {
	var sn Sensor

	err := s.db.QueryRowContext(ctx, s.d.Rebind(`
		SELECT sensor_address, device_address, sensor_name, sensor_description, unit
		FROM sensors
		WHERE sensor_address = ?`), address).Scan(&sn.Address, &sn.DeviceAddress, &sn.Name, &sn.Description, &sn.Unit)
	if errors.Is(err, sql.ErrNoRows) {
		return Sensor{}, fmt.Errorf("sensor %s: %w", address, ErrNotFound)
	}

	if err != nil {
		return Sensor{}, fmt.Errorf("failed to query sensor %s: %w", address, err)
	}

	return sn, nil
}

// ListReadings returns up to limit readings of a sensor, newest first.
func (s *Store) ListReadings(ctx context.Context, sensorAddress string, limit int) ([]Reading, error) {
	rows, err := s.db.QueryContext(ctx, s.d.Rebind(`
		SELECT id, sensor_address, data_value, recorded_at
		FROM readings
		WHERE sensor_address = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?`), sensorAddress, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}

	defer utils.LogOnError(s.l, rows.Close, "failed to close reading rows")

	readings := []Reading{}

	for rows.Next() {
		var r Reading
		if err := rows.Scan(&r.ID, &r.SensorAddress, &r.Value, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}

		readings = append(readings, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate readings: %w", err)
	}

	return readings, nil
}
