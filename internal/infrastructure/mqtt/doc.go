// Package mqtt provides MQTT client connectivity for the ISM7 bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) on the gateway status topic
//   - Topic building and command topic parsing
//
// # Topics
//
//	Wolf/{gateway}/status                         availability and health (retained)
//	Wolf/{gateway}/{device}_{ba}                  merged device document (retained)
//	Wolf/{gateway}/{device}_{ba}/{param}          single value (retained)
//	Wolf/{gateway}/{device}_{ba}/set              JSON object command
//	Wolf/{gateway}/{device}_{ba}/set/{param}[/…]  single value command
//
// # Usage
//
//	topics := mqtt.Topics{Prefix: "Wolf", Gateway: cfg.Gateway.Host}
//	client, err := mqtt.Connect(cfg.MQTT, topics.Status())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(topics.Commands(), 1, func(topic string, payload []byte) error {
//	    cmd, ok := topics.ParseCommand(topic)
//	    ...
//	})
package mqtt
