// Package device models the simulated device, its sensors and their readings, and
// renders each of them into the JSON documents published on the bus.
package device

import (
	"errors"
	"fmt"
	"math"
)

// ErrNonFiniteValue is returned for NaN or infinite reading values.
var ErrNonFiniteValue = errors.New("reading value must be finite")

const (
	PacketTypeDevice  = "Device"
	PacketTypeReading = "SensorReading"
)

// Entity is anything that can be rendered into a Document and identified by address.
type Entity interface {
	Render() Document
	Address() string
}

var (
	_ Entity = Device{}
	_ Entity = Sensor{}
	_ Entity = Reading{}
)

// Device is the identity record of the simulated board.
//
// Device has value semantics: copies do not share their sensor list.
type Device struct {
	address  string
	typeName string
	sensors  []Sensor
}

// NewDevice validates address and returns a device owning a copy of sensors.
func NewDevice(address, typeName string, sensors ...Sensor) (Device, error) {
	addr, err := NormalizeDeviceAddress(address)
	if err != nil {
		return Device{}, err
	}

	return Device{
		address:  addr,
		typeName: typeName,
		sensors:  append([]Sensor(nil), sensors...),
	}, nil
}

// Address returns the device address.
func (d Device) Address() string { return d.address }

// TypeName returns the display name of the device.
func (d Device) TypeName() string { return d.typeName }

// Sensors returns a copy of the owned sensors in discovery order.
func (d Device) Sensors() []Sensor {
	return append([]Sensor(nil), d.sensors...)
}

// AddSensor appends s to the device. Sensors are never removed.
func (d *Device) AddSensor(s Sensor) {
	// Cap the slice so appends never write into an array shared with a copy.
	d.sensors = append(d.sensors[:len(d.sensors):len(d.sensors)], s)
}

// Render returns the identification document of the device.
func (d Device) Render() Document {
	sensors := make([]Document, 0, len(d.sensors))
	for _, s := range d.sensors {
		sensors = append(sensors, s.Render())
	}

	return Document{
		{Key: "packet_type", Value: PacketTypeDevice},
		{Key: "device_address", Value: d.address},
		{Key: "device_type", Value: d.typeName},
		{Key: "sensors", Value: sensors},
	}
}

// Sensor describes one measurement channel of a device.
type Sensor struct {
	address     string
	name        string
	description string
	unit        string
}

// NewSensor validates address and returns a sensor.
func NewSensor(address, name, description, unit string) (Sensor, error) {
	addr, err := NormalizeSensorAddress(address)
	if err != nil {
		return Sensor{}, err
	}

	return Sensor{
		address:     addr,
		name:        name,
		description: description,
		unit:        unit,
	}, nil
}

func (s Sensor) Address() string     { return s.address }
func (s Sensor) Name() string        { return s.name }
func (s Sensor) Description() string { return s.description }
func (s Sensor) Unit() string        { return s.unit }

// Render returns the sensor document. It has no packet_type since sensors are only
// ever published nested inside a device document.
func (s Sensor) Render() Document {
	return Document{
		{Key: "sensor_address", Value: s.address},
		{Key: "sensor_name", Value: s.name},
		{Key: "sensor_description", Value: s.description},
		{Key: "unit", Value: s.unit},
	}
}

// Reading is a single measurement of a sensor, referenced by address.
type Reading struct {
	sensorAddress string
	value         float64
}

// NewReading validates sensorAddress and returns a reading. value must be
// finite since JSON has no encoding for NaN or infinities.
func NewReading(value float64, sensorAddress string) (Reading, error) {
	addr, err := NormalizeSensorAddress(sensorAddress)
	if err != nil {
		return Reading{}, err
	}

	if math.IsNaN(value) || math.IsInf(value, 0) {
		return Reading{}, fmt.Errorf("%w: %v", ErrNonFiniteValue, value)
	}

	return Reading{sensorAddress: addr, value: value}, nil
}

// Address returns the address of the sensor the reading belongs to.
func (r Reading) Address() string { return r.sensorAddress }

// Value returns the measured value.
func (r Reading) Value() float64 { return r.value }

// Render returns the reading document.
func (r Reading) Render() Document {
	return Document{
		{Key: "packet_type", Value: PacketTypeReading},
		{Key: "sensor_address", Value: r.sensorAddress},
		{Key: "data_value", Value: r.value},
	}
}
