package mqtt

import (
	"fmt"
	"strings"
)

// Topics builds the topic set for the light entities under one prefix.
type Topics struct {
	prefix string
}

// NewTopics creates a topic builder for the given prefix.
func NewTopics(prefix string) Topics {
	return Topics{prefix: prefix}
}

// Command returns the set topic for a device.
func (t Topics) Command(device string) string {
	return fmt.Sprintf("%v/light/%v/set", t.prefix, device)
}

// CommandWildcard matches every device's set topic.
func (t Topics) CommandWildcard() string {
	return fmt.Sprintf("%v/light/+/set", t.prefix)
}

// State returns the state topic for a device.
func (t Topics) State(device string) string {
	return fmt.Sprintf("%v/light/%v/state", t.prefix, device)
}

// DeviceFromCommand extracts the device identifier from a set topic, or
// returns empty when the topic does not match the command pattern.
func (t Topics) DeviceFromCommand(topic string) string {
	rest, ok := strings.CutPrefix(topic, t.prefix+"/light/")
	if !ok {
		return ""
	}
	device, ok := strings.CutSuffix(rest, "/set")
	if !ok || device == "" || strings.Contains(device, "/") {
		return ""
	}
	return device
}
