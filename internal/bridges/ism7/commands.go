package ism7

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/ism7-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/ism7-bridge/internal/ism7/device"
)

// handleMQTTMessage processes a message on the command wildcard topic.
//
// The outcome is published on the ack topic. A returned error is logged
// by the MQTT client.
func (b *Bridge) handleMQTTMessage(topic string, payload []byte) error {
	cmd, ok := b.topics.ParseCommand(topic)
	if !ok {
		b.logger.Warn("ignoring message on unexpected topic", "topic", topic)
		return nil
	}

	ctx, cancel := context.WithTimeout(b.bridgeContext(), commandTimeout)
	defer cancel()

	n, status, err := b.executeCommand(ctx, cmd, payload)

	ack := AckMessage{Topic: topic, Status: status, Writes: n, Timestamp: time.Now().UTC()}
	if err != nil {
		ack.Error = err.Error()
	}
	b.publishAck(ack)
	b.emit(ChannelAcks, ack)
	b.metrics.Command(string(status))

	switch status {
	case AckAccepted:
		b.logger.Info("command executed", "topic", topic, "writes", n)
	case AckIgnored:
		b.logger.Warn("command matched no writable parameter", "topic", topic)
	default:
		return fmt.Errorf("command %s %s: %w", topic, status, err)
	}
	return nil
}

// executeCommand resolves a command into writes and sends them on the
// running session.
func (b *Bridge) executeCommand(ctx context.Context, cmd mqtt.Command, payload []byte) (int, AckStatus, error) {
	writes, err := b.resolveCommand(cmd, payload)
	if err != nil {
		return 0, AckRejected, err
	}
	if len(writes) == 0 {
		return 0, AckIgnored, nil
	}

	s := b.activeSession()
	if s == nil {
		return len(writes), AckFailed, ErrNoSession
	}
	if err := s.Write(ctx, writes); err != nil {
		return len(writes), AckFailed, err
	}
	return len(writes), AckAccepted, nil
}

// resolveCommand maps a command onto register writes: a JSON object for
// {device}/set, a flat value for {device}/set/{parameter}/...
func (b *Bridge) resolveCommand(cmd mqtt.Command, payload []byte) ([]device.Write, error) {
	if len(cmd.Path) == 0 {
		dec := json.NewDecoder(strings.NewReader(string(payload)))
		dec.UseNumber()
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
		}
		return b.registry.WriteRequestJSON(cmd.DeviceTopic, obj)
	}
	return b.registry.WriteRequest(cmd.DeviceTopic, cmd.Path, flatValue(payload))
}

// flatValue returns the command value of a single-parameter command.
// A JSON string literal is unquoted; anything else is used as sent.
func flatValue(payload []byte) string {
	v := strings.TrimSpace(string(payload))
	if strings.HasPrefix(v, `"`) {
		var s string
		if err := json.Unmarshal([]byte(v), &s); err == nil {
			return s
		}
	}
	return v
}

func (b *Bridge) publishAck(ack AckMessage) {
	payload, err := json.Marshal(ack)
	if err != nil {
		b.logger.Error("failed to encode command ack", "error", err)
		return
	}
	if err := b.mqtt.Publish(b.topics.Ack(), payload, b.cfg.QoS, false); err != nil {
		b.logger.Warn("failed to publish command ack", "topic", ack.Topic, "error", err)
	}
}
