package device

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidAddress is returned when a device or sensor address is empty or malformed.
var ErrInvalidAddress = errors.New("invalid address")

var (
	deviceAddressRe = regexp.MustCompile(`^[0-9A-F]{2}(:[0-9A-F]{2}){5}$`)
	sensorAddressRe = regexp.MustCompile(`^[0-9A-F]{2}(:[0-9A-F]{2}){5}:[0-9]{2,}$`)
)

// NormalizeDeviceAddress validates a MAC style device address (AA:BB:CC:DD:EE:FF)
// and returns it upper-cased.
func NormalizeDeviceAddress(addr string) (string, error) {
	norm := strings.ToUpper(strings.TrimSpace(addr))
	if !deviceAddressRe.MatchString(norm) {
		return "", fmt.Errorf("%w: device address %q", ErrInvalidAddress, addr)
	}

	return norm, nil
}

// NormalizeSensorAddress validates a sensor address (device address plus a
// two-or-more digit index, AA:BB:CC:DD:EE:FF:00) and returns it upper-cased.
func NormalizeSensorAddress(addr string) (string, error) {
	norm := strings.ToUpper(strings.TrimSpace(addr))
	if !sensorAddressRe.MatchString(norm) {
		return "", fmt.Errorf("%w: sensor address %q", ErrInvalidAddress, addr)
	}

	return norm, nil
}

// SensorAddress returns the address of the sensor at index on the given device.
func SensorAddress(deviceAddress string, index int) (string, error) {
	dev, err := NormalizeDeviceAddress(deviceAddress)
	if err != nil {
		return "", err
	}

	if index < 0 {
		return "", fmt.Errorf("%w: negative sensor index %d", ErrInvalidAddress, index)
	}

	return fmt.Sprintf("%s:%02d", dev, index), nil
}

// SensorAddresses returns exactly n sensor addresses for the device, indices 0..n-1.
func SensorAddresses(deviceAddress string, n int) ([]string, error) {
	addrs := make([]string, 0, max(n, 0))

	for i := range n {
		addr, err := SensorAddress(deviceAddress, i)
		if err != nil {
			return nil, err
		}

		addrs = append(addrs, addr)
	}

	return addrs, nil
}
