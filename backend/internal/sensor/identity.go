package sensor

import (
	"fmt"
	"net"
	"strings"

	"github.com/google/uuid"

	"walk-sensor/backend/pkg/device"
)

// Identity is the device as announced on the identification topic. It is built once at
// startup and never changes afterwards.
type Identity struct {
	Device  device.Device
	Profile Profile
}

// NewIdentity builds the device and one sensor per profile entry. An empty address
// selects the first hardware interface, falling back to a random locally administered MAC.
func NewIdentity(address string, p Profile) (Identity, error) {
	addr, err := resolveAddress(address, net.Interfaces)
	if err != nil {
		return Identity{}, err
	}

	return newIdentity(addr, p)
}

func newIdentity(address string, p Profile) (Identity, error) {
	addrs, err := device.SensorAddresses(address, len(p.Sensors))
	if err != nil {
		return Identity{}, err
	}

	d, err := device.NewDevice(address, p.DeviceType)
	if err != nil {
		return Identity{}, err
	}

	for i, sp := range p.Sensors {
		s, err := device.NewSensor(addrs[i], sp.Name, sp.Description, sp.Unit)
		if err != nil {
			return Identity{}, err
		}

		d.AddSensor(s)
	}

	return Identity{Device: d, Profile: p}, nil
}

func resolveAddress(explicit string, interfaces func() ([]net.Interface, error)) (string, error) {
	if explicit != "" {
		return device.NormalizeDeviceAddress(explicit)
	}

	ifaces, err := interfaces()
	if err == nil {
		for _, iface := range ifaces {
			if iface.Flags&net.FlagLoopback != 0 || !usableMAC(iface.HardwareAddr) {
				continue
			}

			return formatMAC(iface.HardwareAddr), nil
		}
	}

	return randomMAC(), nil
}

func usableMAC(mac net.HardwareAddr) bool {
	if len(mac) != 6 {
		return false
	}

	for _, b := range mac {
		if b != 0 {
			return true
		}
	}

	return false
}

// randomMAC derives a unicast, locally administered address from a random UUID.
func randomMAC() string {
	u := uuid.New()
	mac := net.HardwareAddr(u[:6])
	mac[0] = (mac[0] | 0x02) &^ 0x01

	return formatMAC(mac)
}

func formatMAC(mac net.HardwareAddr) string {
	return strings.ToUpper(mac.String())
}

// ClientID is the MQTT client identifier the firmware used.
func (id Identity) ClientID() string {
	return fmt.Sprintf("esp32-client-%s", id.Device.Address())
}
