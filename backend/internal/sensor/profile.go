package sensor

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultSensorName        = "RANDOM WALK"
	DefaultSensorDescription = "Bounded random walk"
	DefaultSensorUnit        = "degC"
	DefaultSensorStart       = 15.0
)

// SensorProfile describes one simulated sensor. A nil Start selects the unseeded walk
// over [0, 4096].
type SensorProfile struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Unit        string   `yaml:"unit"`
	Start       *float64 `yaml:"start"`
}

// Profile is the catalogue of sensors attached to the simulated device.
type Profile struct {
	DeviceType string          `yaml:"device_type"`
	Sensors    []SensorProfile `yaml:"sensors"`
}

// DefaultProfile is a single temperature-like walk starting at 15.
func DefaultProfile(deviceType string) Profile {
	start := DefaultSensorStart

	return Profile{
		DeviceType: deviceType,
		Sensors: []SensorProfile{{
			Name:        DefaultSensorName,
			Description: DefaultSensorDescription,
			Unit:        DefaultSensorUnit,
			Start:       &start,
		}},
	}
}

// ParseProfile parses a YAML profile. deviceType is used when the document omits it.
func ParseProfile(data []byte, deviceType string) (Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("parsing sensor profile: %w", err)
	}

	if p.DeviceType == "" {
		p.DeviceType = deviceType
	}

	if p.DeviceType == "" {
		return Profile{}, errors.New("sensor profile missing device_type")
	}

	if len(p.Sensors) == 0 {
		return Profile{}, errors.New("sensor profile must list at least one sensor")
	}

	for i, s := range p.Sensors {
		if s.Name == "" || s.Unit == "" {
			return Profile{}, fmt.Errorf("sensor %d: name and unit are required", i)
		}

		if s.Start != nil && (math.IsNaN(*s.Start) || math.IsInf(*s.Start, 0)) {
			return Profile{}, fmt.Errorf("sensor %d: start must be a finite number", i)
		}
	}

	return p, nil
}

// LoadProfile reads the profile at path, or returns DefaultProfile when path is empty.
func LoadProfile(path, deviceType string) (Profile, error) {
	if path == "" {
		return DefaultProfile(deviceType), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("reading sensor profile: %w", err)
	}

	return ParseProfile(data, deviceType)
}
