package mqtt

import (
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// QoS is the MQTT delivery guarantee for one operation.
type QoS byte

const (
	QoSAtMostOnce QoS = iota
	QoSAtLeastOnce
	QoSExactlyOnce
)

// TopicParameter documents one {name} placeholder of a topic pattern such as
// esp32/{deviceAddress}/walk.
type TopicParameter struct {
	Name        string
	Description string
}

// PublicationSpec declares something this client sends. OperationID must be
// unique across publications and subscriptions of one builder.
type PublicationSpec struct {
	OperationID     string
	Summary         string
	Group           string
	TopicParameters []TopicParameter
	QoS             QoS
	Retained        bool

	// TopicMQTT is set on registration to the pattern with + wildcards.
	TopicMQTT string

	pattern string
}

// SubscriptionSpec declares something this client consumes. Handler runs on
// paho's router goroutine, one message at a time.
type SubscriptionSpec struct {
	OperationID     string
	Summary         string
	Group           string
	TopicParameters []TopicParameter
	QoS             QoS
	Handler         mqtt.MessageHandler

	// TopicMQTT is set on registration to the pattern with + wildcards.
	TopicMQTT string
}
