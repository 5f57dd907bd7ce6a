package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqttbroker "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"walk-sensor/backend/internal/collector"
	collectorapi "walk-sensor/backend/internal/collector/api"
	"walk-sensor/backend/internal/config"
	apicommon "walk-sensor/backend/internal/shared/api"
	"walk-sensor/backend/internal/shared/helpers"
	"walk-sensor/backend/internal/store"
	"walk-sensor/backend/pkg/discovery"
	"walk-sensor/backend/pkg/mqtt"
	"walk-sensor/backend/pkg/router"
	"walk-sensor/backend/pkg/utils"
	"walk-sensor/web"
)

const browseTimeout = 10 * time.Second

func main() {
	sigCtx, sigCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer sigCancel()

	cfg, err := config.NewCollector()
	if err != nil {
		fatalIfErr(slog.Default(), fmt.Errorf("failed to create config: %w", err))
	}

	defer func() {
		if err := cfg.Close(); err != nil {
			slog.Default().Error("failed to close config", utils.ErrAttr(err))
		}
	}()

	logger := helpers.GetLogger(cfg.Common, "collector")
	logger.Info("Starting collector", slog.String("build", utils.GetBuildVersion()))

	if err := helpers.RunMigrations(logger, cfg.Dialect, cfg.Database); err != nil {
		fatalIfErr(logger, fmt.Errorf("failed to run migrations: %w", err))
	}

	st, err := store.Open(logger, cfg.Dialect, cfg.Database)
	fatalIfErr(logger, err)

	defer utils.LogOnError(logger, st.Close, "failed to close store")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := collector.NewMetrics(reg)

	// MQTT Broker
	var mqttBroker *mqttbroker.Server

	if cfg.MQTTBrokerPort > 0 {
		mqttAddr := fmt.Sprintf(":%d", cfg.MQTTBrokerPort)
		mqttBroker, err = getMQTTServer(logger, mqttAddr)
		fatalIfErr(logger, err)

		go func() {
			logger.Info("MQTT broker listening", slog.String("address", mqttAddr))

			if err := mqttBroker.Serve(); err != nil {
				logger.Error("MQTT broker failed", utils.ErrAttr(err))
				sigCancel()
			}
		}()

		if cfg.MDNSAdvertise {
			host, _ := os.Hostname()
			if err := discovery.Advertise(sigCtx, logger, "walk-collector-"+host, cfg.MQTTBrokerPort); err != nil {
				logger.Warn("mDNS advertisement unavailable", utils.ErrAttr(err))
			}
		}
	}

	brokerURL := cfg.MQTTBroker
	if brokerURL == config.BrokerMDNS {
		broker, err := discovery.Browse(sigCtx, browseTimeout)
		fatalIfErr(logger, err)

		brokerURL = broker.URL()
	}

	mb, err := mqtt.NewMQTTBuilder(logger, mqtt.MQTTClientOptions{
		BrokerURL: brokerURL,
		ClientID:  cfg.MQTTClientID,
		Username:  cfg.MQTTUsername,
		Password:  cfg.MQTTPassword,
	})
	fatalIfErr(logger, err)

	collector.NewHandler(logger, st, metrics).Register(mb, cfg.TopicIdentification, cfg.TopicReadings)

	go func() {
		if err := mb.Connect(sigCtx); err != nil {
			logger.Error("Failed to connect to MQTT broker", utils.ErrAttr(err))
		}
	}()

	// HTTP Server
	rb := router.NewRouteBuilder(logger)
	registerHTTPHandlers(logger, rb, collectorapi.NewHandler(logger, st, mb.Client()), metrics)

	httpServer := apicommon.NewHTTPServer(logger, fmt.Sprintf(":%d", cfg.Port), rb.Router())
	httpServer.StartOnBackground(sigCancel)

	// Wait for signal (either OS or some failure)
	<-sigCtx.Done()
	logger.Info("received signal, shutting down...")

	if err := httpServer.ShutdownWithDefaultTimeout(); err != nil {
		logger.Error("http server shutdown failed", utils.ErrAttr(err))
	}

	logger.Info("disconnecting from MQTT broker...")
	mb.Disconnect()

	if mqttBroker != nil {
		logger.Info("mqtt broker shutting down...")

		if err := mqttBroker.Close(); err != nil {
			logger.Error("mqtt broker shutdown failed", utils.ErrAttr(err))
		}
	}

	logger.Info("collector exited gracefully")
}

func getMQTTServer(l *slog.Logger, addr string) (*mqttbroker.Server, error) {
	server := mqttbroker.New(&mqttbroker.Options{
		Logger: l.With(slog.String("component", "mqtt-broker")),
	})
	tcp := listeners.NewTCP(listeners.Config{ID: "tcp", Address: addr})

	if err := server.AddListener(tcp); err != nil {
		return nil, err
	}

	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, err
	}

	return server, nil
}

// registerHTTPHandlers registers the API, metrics and dashboard routes.
func registerHTTPHandlers(l *slog.Logger, rb *router.RouteBuilder, h *collectorapi.Handler, m *collector.Metrics) {
	l.Info("Registering HTTP handlers...")

	mw := apicommon.NewMiddlewareHandler(l).WithObserver(m.ObserveHTTP)
	rb.Use(mw.RecoveryMiddleware)

	rb.Route("/api", func(rb *router.RouteBuilder) {
		rb.Use(mw.RequestIDMiddleware)
		rb.Use(mw.LoggerMiddleware)

		h.RegisterRoutes(rb)
	})

	rb.Router().Handle("/metrics", m.Handler())

	webapp, err := web.DashboardApp()
	fatalIfErr(l, err)
	webapp.Register(rb.Router(), l)

	rb.Router().HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, webapp.URLBase(), http.StatusMovedPermanently)
	})

	l.Info("HTTP handlers registered successfully", slog.Int("routes", len(rb.Routes())))
}

func fatalIfErr(l *slog.Logger, err error) {
	if err == nil {
		return
	}

	l.Error("error", utils.ErrAttr(err))
	os.Exit(1)
}
