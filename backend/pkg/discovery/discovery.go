// Package discovery advertises and locates MQTT brokers on the local network over mDNS.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/enbility/zeroconf/v3"
)

const (
	// ServiceType is the DNS-SD service type of an MQTT broker.
	ServiceType = "_mqtt._tcp"
	// Domain is the mDNS domain.
	Domain = "local."
)

// ErrNoBroker is returned by Browse when no broker answered before the timeout.
var ErrNoBroker = errors.New("no mqtt broker found")

// Broker is a broker found on the network.
type Broker struct {
	Instance string
	Host     string
	Port     int
	Addrs    []net.IP
}

// URL returns the paho broker URL, preferring a resolved address over the host name.
func (b Broker) URL() string {
	host := b.Host
	if len(b.Addrs) > 0 {
		host = b.Addrs[0].String()
	}

	return "tcp://" + net.JoinHostPort(host, strconv.Itoa(b.Port))
}

// Advertise registers the broker on all interfaces until ctx is cancelled.
func Advertise(ctx context.Context, l *slog.Logger, instance string, port int) error {
	if port <= 0 {
		return fmt.Errorf("invalid port %d", port)
	}

	server, err := zeroconf.Register(instance, ServiceType, Domain, port, []string{"txtvers=1"}, nil)
	if err != nil {
		return fmt.Errorf("failed to register mdns service: %w", err)
	}

	l.Info("Advertising MQTT broker over mDNS", slog.String("instance", instance), slog.Int("port", port))

	go func() {
		<-ctx.Done()
		server.Shutdown()
		l.Info("Stopped mDNS advertisement", slog.String("instance", instance))
	}()

	return nil
}

// Browse returns the first broker that answers within timeout.
func Browse(ctx context.Context, timeout time.Duration) (Broker, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func() {
		_ = zeroconf.Browse(ctx, ServiceType, Domain, entries, removed)
	}()

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return Broker{}, ErrNoBroker
			}

			if b := fromEntry(entry); b.Port > 0 {
				return b, nil
			}
		case <-removed:
		case <-ctx.Done():
			return Broker{}, ErrNoBroker
		}
	}
}

func fromEntry(entry *zeroconf.ServiceEntry) Broker {
	addrs := make([]net.IP, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	addrs = append(addrs, entry.AddrIPv4...)
	addrs = append(addrs, entry.AddrIPv6...)

	return Broker{
		Instance: entry.Instance,
		Host:     entry.HostName,
		Port:     entry.Port,
		Addrs:    addrs,
	}
}
