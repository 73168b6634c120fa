package ism7

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/ism7-bridge/internal/ism7/session"
)

const defaultHealthInterval = 30 * time.Second

// HealthPublisher publishes health documents, typically the MQTT client.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// StatusSource reports the live bridge status.
type StatusSource interface {
	Status() Status
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	Gateway string
	Version string

	// Topic is the retained status topic.
	Topic string

	// Interval is the publish period. Default: 30 seconds.
	Interval time.Duration

	Publisher HealthPublisher
	Source    StatusSource
}

// HealthReporter publishes the bridge health document periodically and
// on demand.
//
// Thread Safety: All methods are safe for concurrent use.
type HealthReporter struct {
	cfg       HealthReporterConfig
	startTime time.Time

	// publishMu serialises publishes so on-demand and periodic reports
	// reach the broker in order.
	publishMu sync.Mutex

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger Logger
}

// NewHealthReporter creates a reporter. Call Start to begin periodic reports.
func NewHealthReporter(cfg HealthReporterConfig, logger Logger) *HealthReporter {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultHealthInterval
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &HealthReporter{
		cfg:       cfg,
		startTime: time.Now(),
		done:      make(chan struct{}),
		logger:    logger,
	}
}

// Start launches the report loop. It ends when ctx is cancelled or Stop
// is called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop ends the report loop and publishes a final "stopping" status.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		if err := h.publish(HealthStopping, "bridge stopping"); err != nil {
			h.logger.Warn("failed to publish stopping status", "error", err)
		}
	})
}

// PublishStarting publishes a "starting" status.
func (h *HealthReporter) PublishStarting() error {
	return h.publish(HealthStarting, "bridge starting")
}

// PublishNow publishes the current health immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publish(status, reason)
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logger.Warn("failed to publish health", "error", err)
			}
		}
	}
}

func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.cfg.Publisher == nil || !h.cfg.Publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}
	if h.cfg.Source == nil {
		return HealthHealthy, ""
	}

	st := h.cfg.Source.Status()
	if st.Session.State != session.StateSubscribed {
		return HealthDegraded, fmt.Sprintf("gateway session %s", st.Session.State)
	}
	return HealthHealthy, ""
}

func (h *HealthReporter) message(status HealthStatus, reason string) HealthMessage {
	msg := HealthMessage{
		Status:        status,
		Gateway:       h.cfg.Gateway,
		Version:       h.cfg.Version,
		Timestamp:     time.Now().UTC(),
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Reason:        reason,
		Session:       SessionStatus{State: session.StateClosed},
	}
	if h.cfg.Source != nil {
		st := h.cfg.Source.Status()
		msg.Session = st.Session
		msg.Devices = st.Devices
		msg.BusDevices = st.BusDevices
	}
	return msg
}

func (h *HealthReporter) publish(status HealthStatus, reason string) error {
	if h.cfg.Publisher == nil || h.cfg.Topic == "" {
		return nil
	}

	payload, err := json.Marshal(h.message(status, reason))
	if err != nil {
		return fmt.Errorf("marshalling health message: %w", err)
	}

	h.publishMu.Lock()
	defer h.publishMu.Unlock()
	return h.cfg.Publisher.Publish(h.cfg.Topic, payload, 1, true)
}
