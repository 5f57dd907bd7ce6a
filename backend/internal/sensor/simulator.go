// Package sensor runs the simulated device: one bounded random walk per sensor, an
// hourly identification document and periodic readings.
package sensor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"walk-sensor/backend/pkg/device"
	"walk-sensor/backend/pkg/utils"
	"walk-sensor/backend/pkg/walk"
)

// FirstPublishDelay is how long after start the first identification and reading are sent.
const FirstPublishDelay = 200 * time.Millisecond

// Transport delivers one payload to a topic.
type Transport interface {
	Send(ctx context.Context, topic string, payload []byte) error
}

type Options struct {
	IdentificationTopic    string
	ReadingsTopic          string
	StepInterval           time.Duration
	IdentificationInterval time.Duration
	ReadingsInterval       time.Duration
	PublishTimeout         time.Duration
	Pretty                 bool
}

type channel struct {
	address string
	walk    *walk.Walk
}

// Simulator is driven by a single goroutine. It is not safe for concurrent use.
type Simulator struct {
	l         *slog.Logger
	transport Transport
	identity  Identity
	channels  []channel
	opts      Options
	now       func() time.Time

	lastIdentification time.Time
	lastReadings       time.Time
}

func NewSimulator(l *slog.Logger, id Identity, t Transport, opts Options) (*Simulator, error) {
	if t == nil {
		return nil, errors.New("transport is required")
	}

	if opts.IdentificationTopic == "" || opts.ReadingsTopic == "" {
		return nil, errors.New("identification and readings topics are required")
	}

	if opts.StepInterval <= 0 || opts.IdentificationInterval <= 0 || opts.ReadingsInterval <= 0 {
		return nil, errors.New("intervals must be positive")
	}

	sensors := id.Device.Sensors()
	if len(sensors) != len(id.Profile.Sensors) {
		return nil, fmt.Errorf("identity has %d sensors but profile lists %d", len(sensors), len(id.Profile.Sensors))
	}

	channels := make([]channel, 0, len(sensors))
	for i, s := range sensors {
		w := walk.New()
		if start := id.Profile.Sensors[i].Start; start != nil {
			w = walk.NewAround(*start)
		}

		channels = append(channels, channel{address: s.Address(), walk: w})
	}

	sim := &Simulator{
		l:         l.With(slog.String("component", "simulator"), slog.String("deviceAddress", id.Device.Address())),
		transport: t,
		identity:  id,
		channels:  channels,
		opts:      opts,
		now:       time.Now,
	}
	sim.reset()

	return sim, nil
}

// reset schedules the first identification and readings FirstPublishDelay from now.
func (s *Simulator) reset() {
	start := s.now()
	s.lastIdentification = start.Add(-s.opts.IdentificationInterval + FirstPublishDelay)
	s.lastReadings = start.Add(-s.opts.ReadingsInterval + FirstPublishDelay)
}

// Run ticks every StepInterval until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) error {
	s.reset()

	ticker := time.NewTicker(s.opts.StepInterval)
	defer ticker.Stop()

	s.l.Info("Simulator started",
		slog.Int("sensors", len(s.channels)),
		slog.Duration("stepInterval", s.opts.StepInterval),
		slog.Duration("identificationInterval", s.opts.IdentificationInterval),
		slog.Duration("readingsInterval", s.opts.ReadingsInterval),
	)

	for {
		select {
		case <-ctx.Done():
			s.l.Info("Simulator stopped")
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick publishes whatever is due and then advances every walk by one step.
// A timer is due once strictly more than its interval has elapsed. Publish
// failures are logged and dropped.
func (s *Simulator) Tick(ctx context.Context) {
	now := s.now()

	if now.Sub(s.lastIdentification) > s.opts.IdentificationInterval {
		s.lastIdentification = now

		if err := s.PublishIdentification(ctx); err != nil {
			s.l.Warn("Failed to publish identification", utils.ErrAttr(err))
		}
	}

	if now.Sub(s.lastReadings) > s.opts.ReadingsInterval {
		s.lastReadings = now

		if err := s.PublishReadings(ctx); err != nil {
			s.l.Warn("Failed to publish readings", utils.ErrAttr(err))
		}
	}

	for _, c := range s.channels {
		c.walk.Step()
	}
}

// PublishIdentification sends the device document to the identification topic.
func (s *Simulator) PublishIdentification(ctx context.Context) error {
	return s.publish(ctx, s.opts.IdentificationTopic, s.identity.Device)
}

// PublishReadings sends the current value of every sensor to the readings topic.
func (s *Simulator) PublishReadings(ctx context.Context) error {
	var errs []error

	for _, c := range s.channels {
		r, err := device.NewReading(c.walk.Value(), c.address)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		if err := s.publish(ctx, s.opts.ReadingsTopic, r); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Values returns the current walk value of every sensor, in sensor order.
func (s *Simulator) Values() []float64 {
	values := make([]float64, 0, len(s.channels))
	for _, c := range s.channels {
		values = append(values, c.walk.Value())
	}

	return values
}

func (s *Simulator) publish(ctx context.Context, topic string, e device.Entity) error {
	marshal := device.Marshal
	if s.opts.Pretty {
		marshal = device.MarshalIndent
	}

	payload, err := marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", e.Address(), err)
	}

	if s.opts.PublishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.PublishTimeout)

		defer cancel()
	}

	if err := s.transport.Send(ctx, topic, payload); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	s.l.Debug("Published", slog.String("topic", topic), slog.Int("bytes", len(payload)))

	return nil
}
