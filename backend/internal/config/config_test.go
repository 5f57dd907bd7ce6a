package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"walk-sensor/backend/pkg/dialect"
)

// setupEnv points DATA_DIR at a temp dir and ENV_FILE at a file that does not exist,
// so a .env in the working directory cannot leak into the test.
func setupEnv(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Setenv(string(EnvDataDir), dir)
	t.Setenv(string(EnvFile), filepath.Join(dir, "missing.env"))

	return dir
}

func TestNewSensorDefaults(t *testing.T) {
	setupEnv(t)

	cfg, err := NewSensor()
	if err != nil {
		t.Fatalf("NewSensor() unexpected error: %v", err)
	}
	defer cfg.Close()

	if cfg.Transport != TransportMQTT {
		t.Errorf("Transport = %q, want %q", cfg.Transport, TransportMQTT)
	}

	if cfg.DeviceType != DefaultDeviceType {
		t.Errorf("DeviceType = %q, want %q", cfg.DeviceType, DefaultDeviceType)
	}

	if cfg.TopicIdentification != "esp32/id" || cfg.TopicReadings != "esp32/walk" {
		t.Errorf("topics = %q, %q, want esp32/id, esp32/walk", cfg.TopicIdentification, cfg.TopicReadings)
	}

	if cfg.StepInterval != 10*time.Millisecond {
		t.Errorf("StepInterval = %s, want 10ms", cfg.StepInterval)
	}

	if cfg.IdentificationInterval != time.Hour {
		t.Errorf("IdentificationInterval = %s, want 1h", cfg.IdentificationInterval)
	}

	if cfg.ReadingsInterval != 10*time.Second {
		t.Errorf("ReadingsInterval = %s, want 10s", cfg.ReadingsInterval)
	}

	if cfg.MQTTClientID != "" {
		t.Errorf("MQTTClientID = %q, want empty so the device address can be used", cfg.MQTTClientID)
	}

	if cfg.LogOutput != os.Stdout {
		t.Error("LogOutput should default to stdout")
	}
}

func TestNewSensorOverrides(t *testing.T) {
	setupEnv(t)
	t.Setenv(string(EnvTransport), "KAFKA")
	t.Setenv(string(EnvKafkaBrokers), "k1:9092, k2:9092,")
	t.Setenv(string(EnvReadingsInterval), "250ms")
	t.Setenv(string(EnvStepInterval), "not-a-duration")
	t.Setenv(string(EnvPrettyPayload), "1")
	t.Setenv(string(EnvLogLevel), "debug")

	cfg, err := NewSensor()
	if err != nil {
		t.Fatalf("NewSensor() unexpected error: %v", err)
	}
	defer cfg.Close()

	if cfg.Transport != TransportKafka {
		t.Errorf("Transport = %q, want %q", cfg.Transport, TransportKafka)
	}

	if want := []string{"k1:9092", "k2:9092"}; !slices.Equal(cfg.KafkaBrokers, want) {
		t.Errorf("KafkaBrokers = %v, want %v", cfg.KafkaBrokers, want)
	}

	if cfg.ReadingsInterval != 250*time.Millisecond {
		t.Errorf("ReadingsInterval = %s, want 250ms", cfg.ReadingsInterval)
	}

	if cfg.StepInterval != 10*time.Millisecond {
		t.Errorf("StepInterval = %s, want default 10ms for unparsable value", cfg.StepInterval)
	}

	if !cfg.PrettyPayload {
		t.Error("PrettyPayload = false, want true")
	}

	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelDebug)
	}
}

func TestNewSensorValidation(t *testing.T) {
	tests := []struct {
		name  string
		key   EnvKey
		value string
		want  string
	}{
		{name: "unknown transport", key: EnvTransport, value: "carrier-pigeon", want: "unsupported transport"},
		{name: "negative interval", key: EnvReadingsInterval, value: "-1s", want: "READINGS_INTERVAL must be positive"},
		{name: "zero timeout", key: EnvPublishTimeout, value: "0s", want: "PUBLISH_TIMEOUT must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupEnv(t)
			t.Setenv(string(tt.key), tt.value)

			_, err := NewSensor()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("NewSensor() error = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestNewCollector(t *testing.T) {
	dir := setupEnv(t)

	cfg, err := NewCollector()
	if err != nil {
		t.Fatalf("NewCollector() unexpected error: %v", err)
	}
	defer cfg.Close()

	if cfg.Dialect != dialect.SQLite {
		t.Errorf("Dialect = %q, want %q", cfg.Dialect, dialect.SQLite)
	}

	if want := filepath.Join(dir, "database.sqlite"); cfg.Database != want {
		t.Errorf("Database = %q, want %q", cfg.Database, want)
	}

	if cfg.MQTTClientID != "walk-collector" {
		t.Errorf("MQTTClientID = %q, want walk-collector", cfg.MQTTClientID)
	}

	if cfg.Port != 8080 || cfg.MQTTBrokerPort != 1883 {
		t.Errorf("ports = %d, %d, want 8080, 1883", cfg.Port, cfg.MQTTBrokerPort)
	}
}

func TestNewCollectorPostgres(t *testing.T) {
	setupEnv(t)
	t.Setenv(string(EnvDBDialect), "postgres")
	t.Setenv(string(EnvDBUser), "walk user")
	t.Setenv(string(EnvDBPass), "p@ss")
	t.Setenv(string(EnvDBHost), "db")

	cfg, err := NewCollector()
	if err != nil {
		t.Fatalf("NewCollector() unexpected error: %v", err)
	}
	defer cfg.Close()

	want := "postgresql://walk+user:p%40ss@db:5432/walk?sslmode=disable"
	if cfg.Database != want {
		t.Errorf("Database = %q, want %q", cfg.Database, want)
	}

	t.Setenv(string(EnvDBDialect), "oracle")

	if _, err := NewCollector(); err == nil {
		t.Error("NewCollector() with unsupported dialect expected error, got nil")
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := setupEnv(t)

	envPath := filepath.Join(dir, "test.env")
	content := "DEVICE_TYPE=from-file\nTOPIC_READINGS=file/walk\n"

	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}

	t.Setenv(string(EnvFile), envPath)
	t.Setenv(string(EnvTopicReadings), "env/walk")

	// DEVICE_TYPE must come from the file only. t.Setenv restores the original value afterwards.
	t.Setenv(string(EnvDeviceType), "")
	os.Unsetenv(string(EnvDeviceType))

	cfg, err := NewSensor()
	if err != nil {
		t.Fatalf("NewSensor() unexpected error: %v", err)
	}
	defer cfg.Close()

	if cfg.DeviceType != "from-file" {
		t.Errorf("DeviceType = %q, want from-file", cfg.DeviceType)
	}

	if cfg.TopicReadings != "env/walk" {
		t.Errorf("TopicReadings = %q, want env/walk since the environment wins", cfg.TopicReadings)
	}
}

func TestLogToFile(t *testing.T) {
	dir := setupEnv(t)
	t.Setenv(string(EnvLogToFile), "true")

	cfg, err := NewCollector()
	if err != nil {
		t.Fatalf("NewCollector() unexpected error: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "collector.log")); err != nil {
		t.Errorf("log file not created: %v", err)
	}

	if err := cfg.Close(); err != nil {
		t.Errorf("Close() unexpected error: %v", err)
	}
}
