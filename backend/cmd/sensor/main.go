package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"walk-sensor/backend/internal/config"
	"walk-sensor/backend/internal/sensor"
	"walk-sensor/backend/internal/shared/helpers"
	"walk-sensor/backend/pkg/discovery"
	"walk-sensor/backend/pkg/kafka"
	"walk-sensor/backend/pkg/mqtt"
	"walk-sensor/backend/pkg/utils"
)

const browseTimeout = 10 * time.Second

func main() {
	sigCtx, sigCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer sigCancel()

	cfg, err := config.NewSensor()
	if err != nil {
		fatalIfErr(slog.Default(), fmt.Errorf("failed to create config: %w", err))
	}

	defer func() {
		if err := cfg.Close(); err != nil {
			slog.Default().Error("failed to close config", utils.ErrAttr(err))
		}
	}()

	logger := helpers.GetLogger(cfg.Common, "sensor")
	logger.Info("Starting sensor", slog.String("build", utils.GetBuildVersion()))

	profile, err := sensor.LoadProfile(cfg.SensorProfile, cfg.DeviceType)
	fatalIfErr(logger, err)

	identity, err := sensor.NewIdentity(cfg.DeviceAddress, profile)
	fatalIfErr(logger, err)

	logger = logger.With(slog.String("deviceAddress", identity.Device.Address()))
	logger.Info("Device identity ready",
		slog.String("deviceType", identity.Device.TypeName()),
		slog.Int("sensors", len(identity.Device.Sensors())),
		slog.String("transport", cfg.Transport),
	)

	transport, closeTransport, err := newTransport(sigCtx, logger, cfg, identity)
	fatalIfErr(logger, err)

	defer closeTransport()

	sim, err := sensor.NewSimulator(logger, identity, transport, sensor.Options{
		IdentificationTopic:    cfg.TopicIdentification,
		ReadingsTopic:          cfg.TopicReadings,
		StepInterval:           cfg.StepInterval,
		IdentificationInterval: cfg.IdentificationInterval,
		ReadingsInterval:       cfg.ReadingsInterval,
		PublishTimeout:         cfg.PublishTimeout,
		Pretty:                 cfg.PrettyPayload,
	})
	fatalIfErr(logger, err)

	fatalIfErr(logger, sim.Run(sigCtx))

	logger.Info("sensor exited gracefully")
}

//nolint:ireturn // Returns the Transport selected by configuration
func newTransport(ctx context.Context, l *slog.Logger, cfg *config.Sensor, id sensor.Identity) (sensor.Transport, func(), error) {
	if cfg.Transport == config.TransportKafka {
		w, err := kafka.NewWriter(l, kafka.Options{Brokers: cfg.KafkaBrokers, WriteTimeout: cfg.PublishTimeout})
		if err != nil {
			return nil, nil, err
		}

		return w, func() { utils.LogOnError(l, w.Close, "failed to close kafka writer") }, nil
	}

	brokerURL := cfg.MQTTBroker
	if brokerURL == config.BrokerMDNS {
		l.Info("Looking up MQTT broker over mDNS", slog.Duration("timeout", browseTimeout))

		broker, err := discovery.Browse(ctx, browseTimeout)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to discover mqtt broker: %w", err)
		}

		brokerURL = broker.URL()
		l.Info("Found MQTT broker", slog.String("instance", broker.Instance), slog.String("url", brokerURL))
	}

	clientID := cfg.MQTTClientID
	if clientID == "" {
		clientID = id.ClientID()
	}

	mb, err := mqtt.NewMQTTBuilder(l, mqtt.MQTTClientOptions{
		BrokerURL: brokerURL,
		ClientID:  clientID,
		Username:  cfg.MQTTUsername,
		Password:  cfg.MQTTPassword,
	})
	if err != nil {
		return nil, nil, err
	}

	mb.MustRegisterPublish(cfg.TopicIdentification, mqtt.PublicationSpec{
		OperationID: "publishIdentification",
		Summary:     "Announce the device and its sensors",
		Group:       "Identification",
		QoS:         mqtt.QoSAtMostOnce,
	})

	mb.MustRegisterPublish(cfg.TopicReadings, mqtt.PublicationSpec{
		OperationID: "publishReading",
		Summary:     "Publish the current value of one sensor",
		Group:       "Readings",
		QoS:         mqtt.QoSAtMostOnce,
	})

	// Publishing before the first connection fails and is dropped like any other send error.
	go func() {
		if err := mb.Connect(ctx); err != nil {
			l.Error("Failed to connect to MQTT broker", utils.ErrAttr(err))
		}
	}()

	return mb.Client(), mb.Disconnect, nil
}

func fatalIfErr(l *slog.Logger, err error) {
	if err == nil {
		return
	}

	l.Error("error", utils.ErrAttr(err))
	os.Exit(1)
}
