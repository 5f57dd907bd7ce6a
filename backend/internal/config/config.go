package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"walk-sensor/backend/pkg/dialect"
)

type EnvKey string

const (
	EnvFile EnvKey = "ENV_FILE"

	EnvDataDir   EnvKey = "DATA_DIR"
	EnvLogLevel  EnvKey = "LOG_LEVEL"
	EnvLogToFile EnvKey = "LOG_TO_FILE"

	EnvMQTTBroker   EnvKey = "MQTT_BROKER"
	EnvMQTTClientID EnvKey = "MQTT_CLIENT_ID"
	EnvMQTTUsername EnvKey = "MQTT_USERNAME"
	EnvMQTTPassword EnvKey = "MQTT_PASSWORD"

	EnvTopicIdentification EnvKey = "TOPIC_IDENTIFICATION"
	EnvTopicReadings       EnvKey = "TOPIC_READINGS"

	// Sensor
	EnvTransport              EnvKey = "TRANSPORT"
	EnvKafkaBrokers           EnvKey = "KAFKA_BROKERS"
	EnvDeviceAddress          EnvKey = "DEVICE_ADDRESS"
	EnvDeviceType             EnvKey = "DEVICE_TYPE"
	EnvSensorProfile          EnvKey = "SENSOR_PROFILE"
	EnvStepInterval           EnvKey = "STEP_INTERVAL"
	EnvIdentificationInterval EnvKey = "IDENTIFICATION_INTERVAL"
	EnvReadingsInterval       EnvKey = "READINGS_INTERVAL"
	EnvPublishTimeout         EnvKey = "PUBLISH_TIMEOUT"
	EnvPrettyPayload          EnvKey = "PRETTY_PAYLOAD"

	// Collector
	EnvPort           EnvKey = "PORT"
	EnvMQTTBrokerPort EnvKey = "MQTT_SERVER_PORT"
	EnvMDNSAdvertise  EnvKey = "MDNS_ADVERTISE"

	EnvDBDialect EnvKey = "DB_DIALECT"
	EnvDBHost    EnvKey = "DB_HOST"
	EnvDBPort    EnvKey = "DB_PORT"
	EnvDBName    EnvKey = "DB_NAME"
	EnvDBUser    EnvKey = "DB_USER"
	EnvDBPass    EnvKey = "DB_PASSWORD"
	EnvDBSSLMode EnvKey = "DB_SSLMODE"
)

const (
	TransportMQTT  = "mqtt"
	TransportKafka = "kafka"

	// BrokerMDNS as MQTT_BROKER makes the sensor look the broker up over mDNS.
	BrokerMDNS = "mdns"

	DefaultDeviceType = "ESP32-devkit-V4"
)

// Common holds the settings shared by the sensor and the collector.
type Common struct {
	DataDir   string
	LogLevel  slog.Leveler
	LogOutput io.Writer

	// MQTT configuration
	MQTTBroker   string
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string

	TopicIdentification string
	TopicReadings       string
}

// Sensor is the configuration of the simulated device.
type Sensor struct {
	Common

	Transport    string
	KafkaBrokers []string

	DeviceAddress string
	DeviceType    string
	SensorProfile string

	StepInterval           time.Duration
	IdentificationInterval time.Duration
	ReadingsInterval       time.Duration
	PublishTimeout         time.Duration
	PrettyPayload          bool
}

// Collector is the configuration of the receiving side.
type Collector struct {
	Common

	Port     int
	Database string
	Dialect  dialect.Dialect

	// MQTT Server configuration
	MQTTBrokerPort int
	MDNSAdvertise  bool
}

// NewSensor reads the sensor configuration from the environment.
func NewSensor() (*Sensor, error) {
	common, err := newCommon("sensor")
	if err != nil {
		return nil, err
	}

	cfg := &Sensor{
		Common:                 common,
		Transport:              strings.ToLower(getStringEnv(EnvTransport, TransportMQTT)),
		KafkaBrokers:           getListEnv(EnvKafkaBrokers, []string{"127.0.0.1:9092"}),
		DeviceAddress:          getStringEnv(EnvDeviceAddress, ""),
		DeviceType:             getStringEnv(EnvDeviceType, DefaultDeviceType),
		SensorProfile:          getStringEnv(EnvSensorProfile, ""),
		StepInterval:           getDurationEnv(EnvStepInterval, 10*time.Millisecond),
		IdentificationInterval: getDurationEnv(EnvIdentificationInterval, time.Hour),
		ReadingsInterval:       getDurationEnv(EnvReadingsInterval, 10*time.Second),
		PublishTimeout:         getDurationEnv(EnvPublishTimeout, 5*time.Second),
		PrettyPayload:          getBoolEnv(EnvPrettyPayload, false),
	}

	if err := cfg.validate(); err != nil {
		_ = cfg.Close()
		return nil, err
	}

	return cfg, nil
}

func (c *Sensor) validate() error {
	switch c.Transport {
	case TransportMQTT, TransportKafka:
	default:
		return fmt.Errorf("unsupported transport: %s", c.Transport)
	}

	if c.Transport == TransportKafka && len(c.KafkaBrokers) == 0 {
		return errors.New("at least one kafka broker is required")
	}

	intervals := map[EnvKey]time.Duration{
		EnvStepInterval:           c.StepInterval,
		EnvIdentificationInterval: c.IdentificationInterval,
		EnvReadingsInterval:       c.ReadingsInterval,
		EnvPublishTimeout:         c.PublishTimeout,
	}
	for key, d := range intervals {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", key, d)
		}
	}

	return nil
}

// NewCollector reads the collector configuration from the environment.
func NewCollector() (*Collector, error) {
	common, err := newCommon("collector")
	if err != nil {
		return nil, err
	}

	if common.MQTTClientID == "" {
		common.MQTTClientID = "walk-collector"
	}

	dbDialect := dialect.Dialect(strings.ToLower(getStringEnv(EnvDBDialect, string(dialect.SQLite))))
	if err := dbDialect.Validate(); err != nil {
		_ = closeLog(common.LogOutput)
		return nil, fmt.Errorf("invalid database dialect: %w", err)
	}

	// Build database connection string based on dialect
	var dbConnString string

	switch dbDialect {
	case dialect.SQLite:
		dbConnString = filepath.Join(common.DataDir, "database.sqlite")
	case dialect.PostgreSQL:
		host := getStringEnv(EnvDBHost, "localhost")
		port := getIntEnv(EnvDBPort, 5432)
		dbName := getStringEnv(EnvDBName, "walk")
		user := getStringEnv(EnvDBUser, "walk")
		password := getStringEnv(EnvDBPass, "")
		sslmode := getStringEnv(EnvDBSSLMode, "disable")

		dbConnString = fmt.Sprintf(
			"postgresql://%s:%s@%s/%s?sslmode=%s",
			url.QueryEscape(user),
			url.QueryEscape(password),
			net.JoinHostPort(host, strconv.Itoa(port)),
			dbName, sslmode,
		)
	}

	return &Collector{
		Common:         common,
		Port:           getIntEnv(EnvPort, 8080),
		Database:       dbConnString,
		Dialect:        dbDialect,
		MQTTBrokerPort: getIntEnv(EnvMQTTBrokerPort, 1883),
		MDNSAdvertise:  getBoolEnv(EnvMDNSAdvertise, false),
	}, nil
}

func newCommon(binary string) (Common, error) {
	if err := loadEnvFile(getStringEnv(EnvFile, ".env")); err != nil {
		return Common{}, err
	}

	// Get data directory
	dataDir := getStringEnv(EnvDataDir, "data")

	// Ensure data directory exists
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return Common{}, fmt.Errorf("failed to create data directory: %w", err)
	}

	var logOutput io.Writer = os.Stdout

	if getBoolEnv(EnvLogToFile, false) {
		logPath := filepath.Join(dataDir, binary+".log")

		f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
		if err != nil {
			return Common{}, fmt.Errorf("failed to open log file: %w", err)
		}

		logOutput = f
	}

	return Common{
		DataDir:             dataDir,
		LogLevel:            getLogLevelEnv(EnvLogLevel, slog.LevelInfo),
		LogOutput:           logOutput,
		MQTTBroker:          getStringEnv(EnvMQTTBroker, "tcp://127.0.0.1:1883"),
		MQTTClientID:        getStringEnv(EnvMQTTClientID, ""),
		MQTTUsername:        getStringEnv(EnvMQTTUsername, ""),
		MQTTPassword:        getStringEnv(EnvMQTTPassword, ""),
		TopicIdentification: getStringEnv(EnvTopicIdentification, "esp32/id"),
		TopicReadings:       getStringEnv(EnvTopicReadings, "esp32/walk"),
	}, nil
}

// loadEnvFile loads path into the environment. Variables that are already set win.
// A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}

	return nil
}

func (c *Common) Close() error {
	return closeLog(c.LogOutput)
}

func closeLog(w io.Writer) error {
	if f, ok := w.(*os.File); ok {
		if f != os.Stdout && f != os.Stderr {
			return f.Close()
		}
	}

	return nil
}

func getStringEnv(key EnvKey, defaultVal string) string {
	val, exists := os.LookupEnv(string(key))
	if !exists {
		return defaultVal
	}

	return val
}

func getListEnv(key EnvKey, defaultVal []string) []string {
	val, exists := os.LookupEnv(string(key))
	if !exists {
		return defaultVal
	}

	var out []string

	for item := range strings.SplitSeq(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}

	return out
}

func getBoolEnv(key EnvKey, defaultVal bool) bool {
	val, exists := os.LookupEnv(string(key))
	if !exists {
		return defaultVal
	}

	val = strings.ToLower(val)
	switch val {
	case "true", "1":
		return true
	default:
		return false
	}
}

func getIntEnv(key EnvKey, defaultVal int) int {
	val, exists := os.LookupEnv(string(key))
	if !exists {
		return defaultVal
	}

	if intVal, err := strconv.Atoi(val); err == nil {
		return intVal
	}

	return defaultVal
}

func getDurationEnv(key EnvKey, defaultVal time.Duration) time.Duration {
	val, exists := os.LookupEnv(string(key))
	if !exists {
		return defaultVal
	}

	if d, err := time.ParseDuration(val); err == nil {
		return d
	}

	return defaultVal
}

func getLogLevelEnv(key EnvKey, defaultVal slog.Leveler) slog.Leveler {
	val, exists := os.LookupEnv(string(key))
	if !exists {
		return defaultVal
	}

	switch strings.ToUpper(val) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	}

	return defaultVal
}
