package mqtt

import (
	"context"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"walk-sensor/backend/pkg/utils"
)

type MQTTClient struct {
	client  mqtt.Client
	builder *MQTTBuilder
}

// Publish serializes payload to JSON and sends it to actualTopic using the publication
// spec identified by operationID. It does not validate the topic against the spec.
func (c *MQTTClient) Publish(operationID string, actualTopic string, payload any) error {
	pub, ok := c.builder.publications[operationID]
	if !ok {
		return fmt.Errorf("publication not found for operationID %s", operationID)
	}

	bytes, err := utils.ToJSON(payload)
	if err != nil {
		return fmt.Errorf("failed to serialize payload: %w", err)
	}

	return c.publish(context.Background(), pub, actualTopic, bytes)
}

// Send publishes an already encoded payload on topic. The topic must match a
// registered publication, whose QoS and retain flag are used.
func (c *MQTTClient) Send(ctx context.Context, topic string, payload []byte) error {
	pub, ok := c.builder.publicationForTopic(topic)
	if !ok {
		return fmt.Errorf("no publication registered for topic %s", topic)
	}

	return c.publish(ctx, pub, topic, payload)
}

func (c *MQTTClient) publish(ctx context.Context, pub *PublicationSpec, topic string, payload []byte) error {
	token := c.client.Publish(topic, byte(pub.QoS), pub.Retained, payload)

	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish to topic %s: %w", topic, ctx.Err())
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, err)
	}

	return nil
}

// IsConnected reports whether the connection to the broker is currently open.
func (c *MQTTClient) IsConnected() bool {
	return c.builder.connected.Load() && c.client.IsConnectionOpen()
}
