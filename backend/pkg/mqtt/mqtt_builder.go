package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"walk-sensor/backend/pkg/utils"
)

const (
	defaultKeepAlive        = 30 * time.Second
	defaultSubscribeTimeout = 10 * time.Second
	connectWarnEvery        = 30 * time.Second
	disconnectQuiesceMillis = 250
)

// MQTTBuilder collects the topics a process publishes and subscribes to, then
// owns the paho client that serves them.
type MQTTBuilder struct {
	client        mqtt.Client
	wrappedClient *MQTTClient
	l             *slog.Logger
	opts          MQTTClientOptions
	operationIDs  map[string]struct{}
	publications  map[string]*PublicationSpec
	subscriptions map[string]*SubscriptionSpec
	connected     atomic.Bool

	runConnectOnce atomic.Bool
}

// MQTTClientOptions contains configuration for creating an MQTT client.
type MQTTClientOptions struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	// KeepAlive defaults to 30s. Devices publishing every few seconds can
	// afford much longer values.
	KeepAlive time.Duration
	// SubscribeTimeout bounds the subscribe round trip after each (re)connect.
	SubscribeTimeout time.Duration
}

func (o *MQTTClientOptions) validate() error {
	switch {
	case o.BrokerURL == "":
		return errors.New("broker URL is required")
	case o.ClientID == "":
		return errors.New("client ID is required")
	}

	if o.KeepAlive <= 0 {
		o.KeepAlive = defaultKeepAlive
	}

	if o.SubscribeTimeout <= 0 {
		o.SubscribeTimeout = defaultSubscribeTimeout
	}

	return nil
}

func NewMQTTBuilder(l *slog.Logger, opts MQTTClientOptions) (*MQTTBuilder, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	mb := &MQTTBuilder{
		l:             l.With(slog.String("component", "mqtt"), slog.String("clientID", opts.ClientID)),
		opts:          opts,
		operationIDs:  make(map[string]struct{}),
		publications:  make(map[string]*PublicationSpec),
		subscriptions: make(map[string]*SubscriptionSpec),
	}

	mb.client = mqtt.NewClient(mb.pahoOptions())
	mb.wrappedClient = &MQTTClient{client: mb.client, builder: mb}

	mb.l.Info("MQTT client prepared", slog.String("broker", opts.BrokerURL))

	return mb, nil
}

// pahoOptions retries the first connect every 5s and backs reconnects off to 15s.
func (mb *MQTTBuilder) pahoOptions() *mqtt.ClientOptions {
	o := mqtt.NewClientOptions().
		AddBroker(mb.opts.BrokerURL).
		SetClientID(mb.opts.ClientID).
		SetKeepAlive(mb.opts.KeepAlive).
		SetConnectTimeout(5 * time.Second).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(15 * time.Second).
		SetOnConnectHandler(mb.onConnect).
		SetConnectionLostHandler(mb.onConnectionLost).
		SetReconnectingHandler(mb.onReconnecting)

	if mb.opts.Username != "" {
		o.SetUsername(mb.opts.Username)
	}

	if mb.opts.Password != "" {
		o.SetPassword(mb.opts.Password)
	}

	return o
}

func (mb *MQTTBuilder) Client() *MQTTClient {
	return mb.wrappedClient
}

// checkRegistration holds the rules shared by publications and subscriptions.
func (mb *MQTTBuilder) checkRegistration(topic, operationID string, params []TopicParameter) error {
	if mb.runConnectOnce.Load() {
		return errors.New("operations must be registered before Connect")
	}

	if err := validateTopicPattern(topic); err != nil {
		return fmt.Errorf("invalid topic pattern: %w", err)
	}

	if _, dup := mb.operationIDs[operationID]; dup {
		return fmt.Errorf("duplicate operationID: %s", operationID)
	}

	if err := validateParameters(topic, params); err != nil {
		return fmt.Errorf("invalid topic parameters in operationID %s: %w", operationID, err)
	}

	return nil
}

// RegisterPublish declares a topic this client may publish on. Send and
// Publish refuse topics that match no registered pattern.
func (mb *MQTTBuilder) RegisterPublish(topic string, spec PublicationSpec) error {
	if err := validatePublicationSpec(spec); err != nil {
		return fmt.Errorf("invalid publication spec: %w", err)
	}

	if err := mb.checkRegistration(topic, spec.OperationID, spec.TopicParameters); err != nil {
		return err
	}

	for _, pub := range mb.publications {
		if pub.pattern == topic {
			return fmt.Errorf("topic %s already registered by operationID %s", topic, pub.OperationID)
		}
	}

	spec.pattern = topic
	spec.TopicMQTT = convertTopicToMQTT(topic)

	mb.operationIDs[spec.OperationID] = struct{}{}
	mb.publications[spec.OperationID] = &spec

	mb.l.Debug("Publication registered", slog.String("operationID", spec.OperationID), slog.String("topic", topic))

	return nil
}

func (mb *MQTTBuilder) MustRegisterPublish(topic string, spec PublicationSpec) {
	if err := mb.RegisterPublish(topic, spec); err != nil {
		mb.l.Error("Failed to register publication", slog.String("operationID", spec.OperationID), slog.String("topic", topic), utils.ErrAttr(err))
		os.Exit(1)
	}
}

// RegisterSubscribe routes messages matching topic to spec.Handler. The
// broker subscription itself is made on every (re)connect.
func (mb *MQTTBuilder) RegisterSubscribe(topic string, spec SubscriptionSpec) error {
	if err := validateSubscriptionSpec(spec); err != nil {
		return fmt.Errorf("invalid subscription spec: %w", err)
	}

	if err := mb.checkRegistration(topic, spec.OperationID, spec.TopicParameters); err != nil {
		return err
	}

	spec.TopicMQTT = convertTopicToMQTT(topic)

	mb.operationIDs[spec.OperationID] = struct{}{}
	mb.subscriptions[spec.OperationID] = &spec
	mb.client.AddRoute(spec.TopicMQTT, spec.Handler)

	mb.l.Debug("Subscription registered", slog.String("operationID", spec.OperationID), slog.String("topic", topic))

	return nil
}

func (mb *MQTTBuilder) MustRegisterSubscribe(topic string, spec SubscriptionSpec) {
	if err := mb.RegisterSubscribe(topic, spec); err != nil {
		mb.l.Error("Failed to register subscription", slog.String("operationID", spec.OperationID), slog.String("topic", topic), utils.ErrAttr(err))
		os.Exit(1)
	}
}

// Connect freezes the registry and blocks until the first connection
// succeeds or ctx ends. Paho keeps retrying in the background after a
// cancelled Connect until Disconnect.
func (mb *MQTTBuilder) Connect(ctx context.Context) error {
	if mb.runConnectOnce.Swap(true) {
		return errors.New("connect already called")
	}

	mb.l.Info("Connecting to MQTT broker", slog.String("broker", mb.opts.BrokerURL))

	token := mb.client.Connect()

	warn := time.NewTicker(connectWarnEvery)
	defer warn.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for MQTT broker: %w", ctx.Err())
		case <-warn.C:
			mb.l.Warn("Still waiting for the first MQTT connection")
		case <-token.Done():
			if err := token.Error(); err != nil {
				return fmt.Errorf("failed to connect to MQTT broker: %w", err)
			}

			return nil
		}
	}
}

func (mb *MQTTBuilder) Disconnect() {
	if !mb.client.IsConnected() {
		return
	}

	mb.client.Disconnect(disconnectQuiesceMillis)
	mb.connected.Store(false)
	mb.l.Info("Disconnected from MQTT broker")
}

// onConnect runs on every (re)connect. Handlers are already routed, so only
// the broker side of each subscription needs renewing.
func (mb *MQTTBuilder) onConnect(client mqtt.Client) {
	mb.connected.Store(true)
	mb.l.Info("Connected to MQTT broker", slog.Int("subscriptions", len(mb.subscriptions)))

	if len(mb.subscriptions) == 0 {
		return
	}

	filters := make(map[string]byte, len(mb.subscriptions))
	for _, spec := range mb.subscriptions {
		filters[spec.TopicMQTT] = byte(spec.QoS)
	}

	token := client.SubscribeMultiple(filters, nil)
	if !token.WaitTimeout(mb.opts.SubscribeTimeout) {
		mb.l.Error("Subscribe timed out", slog.Duration("timeout", mb.opts.SubscribeTimeout))
		return
	}

	if err := token.Error(); err != nil {
		mb.l.Error("Subscribe failed", utils.ErrAttr(err))
		return
	}

	for topic := range filters {
		mb.l.Info("Subscribed", slog.String("topic", topic))
	}
}

func (mb *MQTTBuilder) onConnectionLost(_ mqtt.Client, err error) {
	mb.connected.Store(false)
	mb.l.Warn("Connection to MQTT broker lost", utils.ErrAttr(err))
}

func (mb *MQTTBuilder) onReconnecting(_ mqtt.Client, opts *mqtt.ClientOptions) {
	mb.l.Info("Reconnecting to MQTT broker", slog.String("broker", opts.Servers[0].String()))
}

// publicationForTopic returns the publication whose topic pattern matches topic.
func (mb *MQTTBuilder) publicationForTopic(topic string) (*PublicationSpec, bool) {
	for _, pub := range mb.publications {
		if matchTopic(pub.pattern, topic) {
			return pub, true
		}
	}

	return nil, false
}
