package ism7

import "time"

// HealthStatus is the bridge health published on the status topic.
type HealthStatus string

const (
	// HealthHealthy means MQTT is connected and the gateway session is subscribed.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded means the bridge runs but MQTT or the gateway is not ready.
	HealthDegraded HealthStatus = "degraded"

	// HealthStarting is published once before the first session.
	HealthStarting HealthStatus = "starting"

	// HealthStopping is published on graceful shutdown.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is the retained document on {prefix}/{gateway}/status.
// The MQTT client's own online/offline payload shares the topic and the
// "status" key.
type HealthMessage struct {
	Status        HealthStatus  `json:"status"`
	Gateway       string        `json:"gateway"`
	Version       string        `json:"version,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	Reason        string        `json:"reason,omitempty"`
	Session       SessionStatus `json:"session"`
	Devices       int           `json:"devices"`
	BusDevices    int           `json:"bus_devices"`
}

// SessionStatus describes the current gateway session.
type SessionStatus struct {
	ID         string `json:"id,omitempty"`
	State      string `json:"state"`
	Reconnects int64  `json:"reconnects"`
	LastError  string `json:"last_error,omitempty"`
}

// AckStatus is the outcome of a write command.
type AckStatus string

const (
	// AckAccepted means the gateway acknowledged every write.
	AckAccepted AckStatus = "accepted"

	// AckIgnored means the command matched no writable parameter.
	AckIgnored AckStatus = "ignored"

	// AckRejected means the command value could not be encoded.
	AckRejected AckStatus = "rejected"

	// AckFailed means the writes could not be delivered to the gateway.
	AckFailed AckStatus = "failed"
)

// AckMessage is published on {prefix}/{gateway}/ack after each command.
type AckMessage struct {
	Topic     string    `json:"topic"`
	Status    AckStatus `json:"status"`
	Writes    int       `json:"writes"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ValuesEvent carries one device document to live event subscribers.
type ValuesEvent struct {
	Topic  string         `json:"topic"`
	Device string         `json:"device"`
	Values map[string]any `json:"values"`
}

// SessionEvent reports a gateway session state change.
type SessionEvent struct {
	Session string `json:"session"`
	From    string `json:"from"`
	To      string `json:"to"`
}
