package device

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnknownPacket is returned for documents whose packet_type is missing or unsupported.
	ErrUnknownPacket = errors.New("unknown packet type")
	// ErrMalformedPacket is returned for documents that are not valid packets.
	ErrMalformedPacket = errors.New("malformed packet")
)

// Packet is a decoded document received from the bus.
type Packet interface {
	PacketType() string
}

// SensorPacket mirrors Sensor.Render.
type SensorPacket struct {
	SensorAddress     string `json:"sensor_address"`
	SensorName        string `json:"sensor_name"`
	SensorDescription string `json:"sensor_description"`
	Unit              string `json:"unit"`
}

// DevicePacket mirrors Device.Render.
type DevicePacket struct {
	Type          string         `json:"packet_type"`
	DeviceAddress string         `json:"device_address"`
	DeviceType    string         `json:"device_type"`
	Sensors       []SensorPacket `json:"sensors"`
}

func (DevicePacket) PacketType() string { return PacketTypeDevice }

// Device converts the packet back into a validated Device.
func (p DevicePacket) Device() (Device, error) {
	d, err := NewDevice(p.DeviceAddress, p.DeviceType)
	if err != nil {
		return Device{}, err
	}

	for _, sp := range p.Sensors {
		s, err := NewSensor(sp.SensorAddress, sp.SensorName, sp.SensorDescription, sp.Unit)
		if err != nil {
			return Device{}, err
		}

		d.AddSensor(s)
	}

	return d, nil
}

// ReadingPacket mirrors Reading.Render.
type ReadingPacket struct {
	Type          string  `json:"packet_type"`
	SensorAddress string  `json:"sensor_address"`
	DataValue     float64 `json:"data_value"`
}

func (ReadingPacket) PacketType() string { return PacketTypeReading }

// Reading converts the packet back into a validated Reading.
func (p ReadingPacket) Reading() (Reading, error) {
	return NewReading(p.DataValue, p.SensorAddress)
}

// DecodePacket decodes a published document by its packet_type.
//
//nolint:ireturn // Returns one of the Packet variants
func DecodePacket(payload []byte) (Packet, error) {
	var head struct {
		Type string `json:"packet_type"`
	}

	if err := json.Unmarshal(payload, &head); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPacket, err)
	}

	switch head.Type {
	case PacketTypeDevice:
		p, err := decodeVariant[DevicePacket](payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedPacket, err)
		}

		if _, err := p.Device(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedPacket, err)
		}

		return p, nil
	case PacketTypeReading:
		p, err := decodeVariant[ReadingPacket](payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedPacket, err)
		}

		if _, err := p.Reading(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedPacket, err)
		}

		return p, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPacket, head.Type)
	}
}

// decodeVariant reads the fields T knows by key and ignores the rest, so
// producers can add fields without breaking older collectors.
func decodeVariant[T Packet](payload []byte) (T, error) {
	var p T
	err := json.Unmarshal(payload, &p)

	return p, err
}
