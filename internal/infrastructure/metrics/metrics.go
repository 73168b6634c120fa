package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/ism7-bridge/internal/ism7/protocol"
	"github.com/nerrad567/ism7-bridge/internal/ism7/session"
	"github.com/nerrad567/ism7-bridge/internal/ism7/transport"
)

var _ session.Observer = (*Metrics)(nil)

const namespace = "ism7"

// Session states reported by the state gauge, in lifecycle order.
var sessionStates = []string{
	session.StateConnecting,
	session.StateAuthenticating,
	session.StateFetchingConfig,
	session.StateBootstrapping,
	session.StateSubscribed,
	session.StateClosed,
}

// Command outcomes. They match the bridge's ack statuses.
const (
	CommandAccepted = "accepted"
	CommandIgnored  = "ignored"
	CommandRejected = "rejected"
	CommandFailed   = "failed"
)

// Metrics holds every bridge metric and the registry they are registered in.
//
// Thread Safety: All methods are safe for concurrent use.
type Metrics struct {
	registry *prometheus.Registry

	sessionState    *prometheus.GaugeVec
	sessionsStarted prometheus.Counter
	sessionErrors   prometheus.Counter
	reconnects      prometheus.Counter
	framesReceived  *prometheus.CounterVec
	bundles         *prometheus.CounterVec
	telegrams       *prometheus.CounterVec
	busDevices      prometheus.Gauge
	published       *prometheus.CounterVec
	publishErrors   prometheus.Counter
	commands        *prometheus.CounterVec
}

// New creates a Metrics instance with its own registry. The registry also
// carries the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		sessionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_state",
			Help:      "Current gateway session state (1 for the active state, 0 otherwise).",
		}, []string{"state"}),
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Gateway sessions started.",
		}),
		sessionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_errors_total",
			Help:      "Gateway sessions that ended with an error.",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_attempts_total",
			Help:      "Gateway connection attempts after a failure.",
		}),
		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Frames received from the gateway by payload type.",
		}, []string{"type"}),
		bundles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bundles_total",
			Help:      "Bundle responses received by bundle type.",
		}, []string{"type"}),
		telegrams: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telegrams_total",
			Help:      "Telegram results in bundle responses by outcome.",
		}, []string{"result"}),
		busDevices: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bus_devices",
			Help:      "Bus devices reported by the gateway in the current session.",
		}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_messages_published_total",
			Help:      "MQTT messages published by kind (document or datapoint).",
		}, []string{"kind"}),
		publishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_publish_errors_total",
			Help:      "Failed MQTT publishes.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Write commands received over MQTT by outcome.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.sessionState,
		m.sessionsStarted,
		m.sessionErrors,
		m.reconnects,
		m.framesReceived,
		m.bundles,
		m.telegrams,
		m.busDevices,
		m.published,
		m.publishErrors,
		m.commands,
	)

	for _, s := range sessionStates {
		m.sessionState.WithLabelValues(s).Set(0)
	}
	m.sessionState.WithLabelValues(session.StateClosed).Set(1)

	return m
}

// Registry returns the registry the metrics are registered in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ─── Session observer ───────────────────────────────────────────────

// StateChanged moves the state gauge to the new state.
func (m *Metrics) StateChanged(_, _, to string) {
	for _, s := range sessionStates {
		v := 0.0
		if s == to {
			v = 1
		}
		m.sessionState.WithLabelValues(s).Set(v)
	}
}

// BusDevicesDiscovered records how many bus devices the gateway reported.
func (m *Metrics) BusDevicesDiscovered(_ context.Context, _ string, devices []protocol.BusDevice) {
	m.busDevices.Set(float64(len(devices)))
}

// FrameReceived counts one inbound frame.
func (m *Metrics) FrameReceived(t transport.PayloadType) {
	m.framesReceived.WithLabelValues(strconv.Itoa(int(t))).Inc()
}

// BundleCompleted counts one bundle response and its telegram outcomes.
func (m *Metrics) BundleCompleted(t protocol.BundleType, ok, failed int) {
	m.bundles.WithLabelValues(string(t)).Inc()
	m.telegrams.WithLabelValues("ok").Add(float64(ok))
	m.telegrams.WithLabelValues("failed").Add(float64(failed))
}

// ─── Bridge counters ────────────────────────────────────────────────

// SessionStarted counts a new session.
func (m *Metrics) SessionStarted() {
	m.sessionsStarted.Inc()
}

// SessionEnded counts a session that ended with err, if non-nil, and
// resets the per-session gauges.
func (m *Metrics) SessionEnded(err error) {
	if err != nil {
		m.sessionErrors.Inc()
	}
	m.busDevices.Set(0)
	m.StateChanged("", "", session.StateClosed)
}

// ReconnectAttempt counts one reconnect attempt.
func (m *Metrics) ReconnectAttempt() {
	m.reconnects.Inc()
}

// Published counts n messages of kind published to MQTT.
func (m *Metrics) Published(kind string, n int) {
	m.published.WithLabelValues(kind).Add(float64(n))
}

// PublishFailed counts one failed MQTT publish.
func (m *Metrics) PublishFailed() {
	m.publishErrors.Inc()
}

// Command counts one MQTT write command with the given outcome.
func (m *Metrics) Command(result string) {
	m.commands.WithLabelValues(result).Inc()
}
