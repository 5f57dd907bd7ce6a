package mqtt

import (
	"errors"
	"fmt"
	"strings"
)

// validateTopicPattern validates an MQTT topic pattern with {param} placeholders.
// Valid patterns:
// - Parameters must be in {paramName} format (e.g., devices/{deviceAddress}/walk)
// - Parameter names must start with a letter and contain only alphanumeric characters and underscores
// - Wildcards '#' and '+' are NOT supported for explicitness.
func validateTopicPattern(topic string) error {
	if topic == "" {
		return errors.New("topic cannot be empty")
	}

	if strings.HasPrefix(topic, "/") {
		return errors.New("leading slash is not allowed")
	}

	if strings.HasSuffix(topic, "/") {
		return errors.New("trailing slash is not allowed")
	}

	for segment := range strings.SplitSeq(topic, "/") {
		if segment == "" {
			return errors.New("empty segments are not allowed")
		}

		if strings.Contains(segment, "#") {
			return errors.New("multi-level wildcard '#' is not supported - use explicit parameters {param} instead")
		}

		if strings.Contains(segment, "+") {
			return errors.New("wildcard '+' is not supported - use parameter syntax {param} instead")
		}

		if name, ok := paramName(segment); ok {
			if !isValidParameterName(name) {
				return fmt.Errorf("invalid parameter name '%s' - must start with a letter and contain only alphanumeric characters and underscores", name)
			}
		} else if strings.ContainsAny(segment, "{}") {
			return errors.New("invalid parameter syntax - use {paramName} format")
		}
	}

	return nil
}

// paramName returns the name inside a {param} segment.
func paramName(segment string) (string, bool) {
	if strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}") && len(segment) >= 2 {
		return segment[1 : len(segment)-1], true
	}

	return "", false
}

func isValidParameterName(name string) bool {
	if name == "" {
		return false
	}

	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '_'):
		default:
			return false
		}
	}

	return true
}

// convertTopicToMQTT converts a parameterized topic (devices/{deviceAddress}/walk)
// to an MQTT wildcard pattern (devices/+/walk).
func convertTopicToMQTT(topic string) string {
	segments := strings.Split(topic, "/")
	for i, segment := range segments {
		if _, ok := paramName(segment); ok {
			segments[i] = "+"
		}
	}

	return strings.Join(segments, "/")
}

// matchTopic reports whether a concrete topic matches a {param} pattern.
func matchTopic(pattern, topic string) bool {
	ps := strings.Split(pattern, "/")
	ts := strings.Split(topic, "/")

	if len(ps) != len(ts) {
		return false
	}

	for i := range ps {
		if _, ok := paramName(ps[i]); ok {
			if ts[i] == "" {
				return false
			}

			continue
		}

		if ps[i] != ts[i] {
			return false
		}
	}

	return true
}

// validateQoS validates a QoS level.
func validateQoS(qos QoS) error {
	if qos != QoSAtMostOnce && qos != QoSAtLeastOnce && qos != QoSExactlyOnce {
		return errors.New("qos must be 0, 1, or 2")
	}

	return nil
}

// validateParameters checks that every {param} in topic is documented and vice versa.
func validateParameters(topic string, topicParams []TopicParameter) error {
	params := map[string]struct{}{}

	for segment := range strings.SplitSeq(topic, "/") {
		if name, ok := paramName(segment); ok {
			params[name] = struct{}{}
		}
	}

	documented := map[string]struct{}{}

	for _, p := range topicParams {
		if p.Name == "" {
			return fmt.Errorf("parameter name required for topic %s", topic)
		}

		if p.Description == "" {
			return fmt.Errorf("parameter Description required for topic %s", topic)
		}

		if _, exists := params[p.Name]; !exists {
			return fmt.Errorf("documented parameter %s not found in topic", p.Name)
		}

		documented[p.Name] = struct{}{}
	}

	for name := range params {
		if _, exists := documented[name]; !exists {
			return fmt.Errorf("topic parameter %s not documented", name)
		}
	}

	return nil
}

func validateCommon(operationID, summary, group string, qos QoS) error {
	if operationID == "" {
		return errors.New("operationID is required")
	}

	if summary == "" {
		return errors.New("summary is required")
	}

	if group == "" {
		return errors.New("group is required")
	}

	return validateQoS(qos)
}

// validatePublicationSpec validates a publication specification.
func validatePublicationSpec(spec PublicationSpec) error {
	return validateCommon(spec.OperationID, spec.Summary, spec.Group, spec.QoS)
}

// validateSubscriptionSpec validates a subscription specification.
func validateSubscriptionSpec(spec SubscriptionSpec) error {
	if err := validateCommon(spec.OperationID, spec.Summary, spec.Group, spec.QoS); err != nil {
		return err
	}

	if spec.Handler == nil {
		return errors.New("handler is required")
	}

	return nil
}
