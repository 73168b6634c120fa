package ism7

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nerrad567/ism7-bridge/internal/infrastructure/config"
	"github.com/nerrad567/ism7-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/ism7-bridge/internal/ism7/device"
	"github.com/nerrad567/ism7-bridge/internal/ism7/session"
)

// Metric kinds of published messages.
const (
	kindDocument  = "document"
	kindDatapoint = "datapoint"
)

// Publish sends a batch of decoded values downstream.
//
// Depending on the publish mode, each device document goes to the device
// topic and each datapoint to its own topic, with the JSON-encoded value
// as payload. Datapoints are also written to InfluxDB when configured.
//
// MQTT failures are logged and counted, never returned, so a broker
// outage does not end the gateway session.
func (b *Bridge) Publish(_ context.Context, batch device.Batch) error {
	mode := b.cfg.Mode

	for _, doc := range batch.Documents {
		b.emit(ChannelValues, ValuesEvent{Topic: doc.Topic, Device: b.deviceKey(doc.Topic), Values: doc.Values})
	}
	if mode == config.PublishJSON || mode == config.PublishBoth {
		for _, doc := range batch.Documents {
			b.publishValue(kindDocument, doc.Topic, doc.Values)
		}
	}
	if mode == config.PublishSeparate || mode == config.PublishBoth {
		for _, dp := range batch.Datapoints {
			b.publishValue(kindDatapoint, dp.Topic, dp.Value)
		}
	}

	if b.influx != nil {
		now := time.Now()
		for _, dp := range batch.Datapoints {
			b.influx.WriteParameter(influxdb.Parameter{
				Gateway:   b.cfg.Gateway,
				Device:    b.deviceKey(dp.Topic),
				Parameter: dp.Parameter,
				PTID:      dp.PTID,
				Value:     dp.Value,
			}, now)
		}
	}
	return nil
}

func (b *Bridge) publishValue(kind, topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		b.metrics.PublishFailed()
		b.logger.Error("failed to encode value", "topic", topic, "error", err)
		return
	}
	if err := b.mqtt.Publish(topic, payload, b.cfg.QoS, b.cfg.Retain); err != nil {
		b.metrics.PublishFailed()
		b.logger.Warn("failed to publish value", "topic", topic, "error", err)
		return
	}
	b.metrics.Published(kind, 1)
}

// deviceKey returns the device level of a topic below the gateway root,
// e.g. "HG_0x08" for "Wolf/192.168.1.50/HG_0x08/Kesseltemperatur".
func (b *Bridge) deviceKey(topic string) string {
	rest := strings.TrimPrefix(topic, b.topics.Root()+"/")
	key, _, _ := strings.Cut(rest, "/")
	return key
}

var _ session.Publisher = (*Bridge)(nil)
