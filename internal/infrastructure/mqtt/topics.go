package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is the first topic level used by ISM7 installations.
const DefaultTopicPrefix = "Wolf"

// Topic segments.
const (
	segmentStatus = "status"
	segmentAck    = "ack"
	segmentSet    = "set"
)

// Topics builds the bridge's MQTT topics for one gateway.
//
//	topics := mqtt.Topics{Prefix: "Wolf", Gateway: "192.168.1.50"}
//	topics.Status()   // Wolf/192.168.1.50/status
//	topics.Ack()      // Wolf/192.168.1.50/ack
//	topics.Commands() // Wolf/192.168.1.50/+/set/#
//
// Device topics ({prefix}/{gateway}/{device}_{ba}) are built by the device
// registry; Topics only parses them back out of command topics.
type Topics struct {
	Prefix  string
	Gateway string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// Root returns the gateway topic, e.g. "Wolf/192.168.1.50".
func (t Topics) Root() string {
	return fmt.Sprintf("%s/%s", t.prefix(), t.Gateway)
}

// Status returns the retained availability and health topic.
func (t Topics) Status() string {
	return fmt.Sprintf("%s/%s", t.Root(), segmentStatus)
}

// Ack returns the topic command outcomes are published on.
func (t Topics) Ack() string {
	return fmt.Sprintf("%s/%s", t.Root(), segmentAck)
}

// Commands returns the wildcard pattern matching every device command.
// "#" also matches the bare "{device}/set" topic.
func (t Topics) Commands() string {
	return fmt.Sprintf("%s/+/%s/#", t.Root(), segmentSet)
}

// Command is a parsed command topic.
type Command struct {
	// DeviceTopic is the device topic the command addresses.
	DeviceTopic string

	// Path holds the segments after "set": empty for a JSON object
	// command, otherwise parameter name, optional PTID and value selector.
	Path []string
}

// ParseCommand splits a command topic into the device topic and the path
// below "set".
//
// Example:
//
//	Wolf/192.168.1.50/HG_0x08/set/Betriebsart/text
//	→ DeviceTopic "Wolf/192.168.1.50/HG_0x08", Path ["Betriebsart", "text"]
//
// Returns:
//   - Command: The parsed command
//   - bool: false if the topic is not a command topic of this gateway
func (t Topics) ParseCommand(topic string) (Command, bool) {
	rest, ok := strings.CutPrefix(topic, t.Root()+"/")
	if !ok {
		return Command{}, false
	}

	parts := strings.Split(rest, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] != segmentSet {
		return Command{}, false
	}

	path := parts[2:]
	for _, p := range path {
		if p == "" {
			return Command{}, false
		}
	}

	return Command{
		DeviceTopic: t.Root() + "/" + parts[0],
		Path:        path,
	}, true
}
