package ism7

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/ism7-bridge/internal/infrastructure/config"
	"github.com/nerrad567/ism7-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/ism7-bridge/internal/infrastructure/metrics"
	"github.com/nerrad567/ism7-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/ism7-bridge/internal/ism7/device"
	"github.com/nerrad567/ism7-bridge/internal/ism7/protocol"
	"github.com/nerrad567/ism7-bridge/internal/ism7/session"
)

// Bridge operation constants.
const (
	// commandTimeout bounds one write command including the gateway ack.
	commandTimeout = 10 * time.Second

	// inventoryTimeout bounds inventory writes made outside a session context.
	inventoryTimeout = 5 * time.Second

	defaultReconnectInitial = 5 * time.Second
	defaultReconnectMax     = 2 * time.Minute

	// backoffFactor grows the reconnect delay after each failed attempt.
	backoffFactor = 1.5
)

// Logger is the structured logger used by the bridge.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MQTTClient is the part of the MQTT client the bridge uses.
// It is satisfied by *mqtt.Client.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// ParameterWriter records parameter history. It is satisfied by *influxdb.Client.
type ParameterWriter interface {
	WriteParameter(p influxdb.Parameter, ts time.Time) bool
}

// Inventory persists bus devices and session history. It is satisfied by
// *inventory.SQLiteRepository.
type Inventory interface {
	RecordBusDevices(ctx context.Context, gateway string, devices []protocol.BusDevice, seen time.Time) error
	StartSession(ctx context.Context, id, gateway string, started time.Time) error
	EndSession(ctx context.Context, id string, ended time.Time, cause error) error
}

// EventSink receives live bridge events, typically the status API's
// WebSocket hub. Broadcast must not block.
type EventSink interface {
	Broadcast(channel string, payload any)
}

// Event channels.
const (
	ChannelValues  = "values"
	ChannelAcks    = "acks"
	ChannelSession = "session"
)

// Config holds the bridge settings.
type Config struct {
	// Gateway is the gateway host. It is the second topic level.
	Gateway  string
	Password string

	KeepAlive    time.Duration
	PushInterval time.Duration

	TopicPrefix string

	// Mode is config.PublishJSON, config.PublishSeparate or config.PublishBoth.
	Mode   string
	Retain bool
	QoS    byte

	HealthInterval time.Duration

	ReconnectInitial time.Duration
	ReconnectMax     time.Duration

	// MaxAttempts limits consecutive failed sessions. 0 means unlimited.
	MaxAttempts int

	Version string
}

// ConfigFrom maps the application config onto bridge settings.
func ConfigFrom(cfg *config.Config, version string) Config {
	return Config{
		Gateway:          cfg.Gateway.Host,
		Password:         cfg.Gateway.Password,
		KeepAlive:        cfg.GetKeepAlive(),
		PushInterval:     cfg.GetPushInterval(),
		TopicPrefix:      cfg.Publish.TopicPrefix,
		Mode:             cfg.Publish.Mode,
		Retain:           cfg.Publish.Retain,
		QoS:              byte(cfg.MQTT.QoS),
		HealthInterval:   cfg.GetHealthInterval(),
		ReconnectInitial: time.Duration(cfg.Gateway.Reconnect.InitialDelay) * time.Second,
		ReconnectMax:     time.Duration(cfg.Gateway.Reconnect.MaxDelay) * time.Second,
		MaxAttempts:      cfg.Gateway.Reconnect.MaxAttempts,
		Version:          version,
	}
}

// Options holds the bridge collaborators.
type Options struct {
	Config Config

	// MQTT, Dialer and Registry are required.
	MQTT     MQTTClient
	Dialer   Dialer
	Registry *device.Registry

	// Metrics defaults to a private metrics.New() instance.
	Metrics *metrics.Metrics

	// Influx, Inventory and Events are optional.
	Influx    ParameterWriter
	Inventory Inventory
	Events    EventSink

	Logger Logger
}

// Status is a snapshot of the bridge state.
type Status struct {
	Gateway       string        `json:"gateway"`
	Session       SessionStatus `json:"session"`
	Devices       int           `json:"devices"`
	BusDevices    int           `json:"bus_devices"`
	MQTTConnected bool          `json:"mqtt_connected"`
}

// Bridge connects one ISM7 gateway to MQTT.
//
// It runs gateway sessions back to back, reconnecting with capped
// exponential backoff, publishes decoded values and turns MQTT commands
// into register writes on the running session.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	cfg       Config
	mqtt      MQTTClient
	dialer    Dialer
	registry  *device.Registry
	metrics   *metrics.Metrics
	influx    ParameterWriter
	inventory Inventory
	events    EventSink
	logger    Logger
	topics    mqtt.Topics
	health    *HealthReporter

	mu         sync.RWMutex
	current    *session.Session
	state      string
	lastErr    string
	busDevices int
	ctx        context.Context
	cancel     context.CancelFunc

	reconnects atomic.Int64
	subscribed atomic.Bool
	running    atomic.Bool

	wg sync.WaitGroup
}

// New creates a bridge. Call Run to start it.
func New(opts Options) (*Bridge, error) {
	if opts.MQTT == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Dialer == nil {
		return nil, fmt.Errorf("gateway dialer is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if opts.Config.Gateway == "" {
		return nil, fmt.Errorf("gateway host is required")
	}

	cfg := opts.Config
	if cfg.Mode == "" {
		cfg.Mode = config.PublishBoth
	}
	if cfg.ReconnectInitial <= 0 {
		cfg.ReconnectInitial = defaultReconnectInitial
	}
	if cfg.ReconnectMax < cfg.ReconnectInitial {
		cfg.ReconnectMax = max(defaultReconnectMax, cfg.ReconnectInitial)
	}

	b := &Bridge{
		cfg:       cfg,
		mqtt:      opts.MQTT,
		dialer:    opts.Dialer,
		registry:  opts.Registry,
		metrics:   opts.Metrics,
		influx:    opts.Influx,
		inventory: opts.Inventory,
		events:    opts.Events,
		logger:    opts.Logger,
		topics:    mqtt.Topics{Prefix: cfg.TopicPrefix, Gateway: cfg.Gateway},
		state:     session.StateClosed,
		ctx:       context.Background(),
	}
	if b.metrics == nil {
		b.metrics = metrics.New()
	}
	if b.logger == nil {
		b.logger = noopLogger{}
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		Gateway:   cfg.Gateway,
		Version:   cfg.Version,
		Topic:     b.topics.Status(),
		Interval:  cfg.HealthInterval,
		Publisher: opts.MQTT,
		Source:    b,
	}, b.logger)

	return b, nil
}

// Topics returns the MQTT topics of this bridge.
func (b *Bridge) Topics() mqtt.Topics {
	return b.topics
}

// Run subscribes to commands and runs gateway sessions until ctx is
// cancelled or Stop is called.
//
// Returns:
//   - error: nil on shutdown, ErrReconnectExhausted when MaxAttempts
//     consecutive sessions failed, or a command subscription error
func (b *Bridge) Run(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return fmt.Errorf("bridge already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	b.mu.Lock()
	b.ctx, b.cancel = ctx, cancel
	b.mu.Unlock()

	if err := b.health.PublishStarting(); err != nil {
		b.logger.Warn("failed to publish starting status", "error", err)
	}

	commands := b.topics.Commands()
	if err := b.mqtt.Subscribe(commands, b.cfg.QoS, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	defer func() {
		if err := b.mqtt.Unsubscribe(commands); err != nil {
			b.logger.Debug("unsubscribe from commands", "error", err)
		}
	}()
	b.logger.Info("subscribed to commands", "topic", commands)

	b.health.Start(ctx)
	defer b.health.Stop()
	defer b.wg.Wait()

	delay := b.cfg.ReconnectInitial
	failures := 0
	for {
		reachedSubscribed, err := b.runSession(ctx)
		if ctx.Err() != nil {
			b.logger.Info("bridge stopped", "gateway", b.cfg.Gateway)
			return nil
		}

		if reachedSubscribed {
			delay = b.cfg.ReconnectInitial
			failures = 0
		}
		failures++
		if b.cfg.MaxAttempts > 0 && failures >= b.cfg.MaxAttempts {
			return fmt.Errorf("%w: %d consecutive failures: %w", ErrReconnectExhausted, failures, err)
		}

		b.reconnects.Add(1)
		b.metrics.ReconnectAttempt()
		b.logger.Warn("gateway session ended, reconnecting",
			"gateway", b.cfg.Gateway,
			"error", err,
			"attempt", failures,
			"delay", delay,
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay = nextDelay(delay, b.cfg.ReconnectMax)
	}
}

// Stop cancels Run. It does not wait for Run to return.
func (b *Bridge) Stop() {
	b.mu.RLock()
	cancel := b.cancel
	b.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

// nextDelay grows d by backoffFactor, capped at limit.
func nextDelay(d, limit time.Duration) time.Duration {
	next := time.Duration(float64(d) * backoffFactor)
	if next > limit {
		return limit
	}
	return next
}

// runSession dials the gateway and runs one session to completion.
// It reports whether the session reached the subscribed state.
func (b *Bridge) runSession(ctx context.Context) (bool, error) {
	b.subscribed.Store(false)

	conn, err := b.dialer.DialContext(ctx)
	if err != nil {
		b.setLastError(err)
		return false, err
	}

	s := session.New(conn, b.registry, b, session.Config{
		Host:         b.cfg.Gateway,
		Password:     b.cfg.Password,
		KeepAlive:    b.cfg.KeepAlive,
		PushInterval: b.cfg.PushInterval,
	}, session.Options{
		Logger:   b.logger,
		Observer: &sessionObserver{b: b},
	})

	b.setSession(s)
	defer b.setSession(nil)

	b.metrics.SessionStarted()
	if b.inventory != nil {
		if err := b.inventory.StartSession(ctx, s.ID(), b.cfg.Gateway, time.Now()); err != nil {
			b.logger.Warn("failed to record session start", "session", s.ID(), "error", err)
		}
	}

	err = s.Run(ctx)

	cause := err
	if ctx.Err() != nil {
		cause = nil
	}
	b.metrics.SessionEnded(cause)
	b.setLastError(cause)
	if b.inventory != nil {
		ictx, cancel := context.WithTimeout(context.Background(), inventoryTimeout)
		if ierr := b.inventory.EndSession(ictx, s.ID(), time.Now(), cause); ierr != nil {
			b.logger.Warn("failed to record session end", "session", s.ID(), "error", ierr)
		}
		cancel()
	}

	return b.subscribed.Load(), err
}

func (b *Bridge) setSession(s *session.Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = s
	if s == nil {
		b.state = session.StateClosed
		b.busDevices = 0
	}
}

func (b *Bridge) setLastError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		b.lastErr = ""
		return
	}
	b.lastErr = err.Error()
}

func (b *Bridge) activeSession() *session.Session {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current
}

func (b *Bridge) bridgeContext() context.Context {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ctx
}

// Status returns a snapshot of the bridge state.
func (b *Bridge) Status() Status {
	b.mu.RLock()
	st := Status{
		Gateway: b.cfg.Gateway,
		Session: SessionStatus{
			State:      b.state,
			Reconnects: b.reconnects.Load(),
			LastError:  b.lastErr,
		},
		BusDevices: b.busDevices,
	}
	if b.current != nil {
		st.Session.ID = b.current.ID()
	}
	b.mu.RUnlock()

	st.Devices = len(b.registry.Devices())
	st.MQTTConnected = b.mqtt.IsConnected()
	return st
}

// Devices lists the running devices of the registry.
func (b *Bridge) Devices() []device.Info {
	return b.registry.Devices()
}

func (b *Bridge) emit(channel string, payload any) {
	if b.events != nil {
		b.events.Broadcast(channel, payload)
	}
}

// publishHealthAsync publishes the health document without blocking the
// session callback that triggered it.
func (b *Bridge) publishHealthAsync() {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := b.health.PublishNow(); err != nil {
			b.logger.Warn("failed to publish health", "error", err)
		}
	}()
}
