package ism7

import (
	"context"
	"time"

	"github.com/nerrad567/ism7-bridge/internal/ism7/protocol"
	"github.com/nerrad567/ism7-bridge/internal/ism7/session"
	"github.com/nerrad567/ism7-bridge/internal/ism7/transport"
)

// sessionObserver feeds session progress into metrics, the inventory and
// the health document.
type sessionObserver struct {
	b *Bridge
}

func (o *sessionObserver) StateChanged(sessionID, from, to string) {
	b := o.b
	b.metrics.StateChanged(sessionID, from, to)

	b.mu.Lock()
	b.state = to
	b.mu.Unlock()
	b.emit(ChannelSession, SessionEvent{Session: sessionID, From: from, To: to})

	if to == session.StateSubscribed && from != session.StateSubscribed {
		b.subscribed.Store(true)
		b.setLastError(nil)
		b.logger.Info("gateway subscribed", "gateway", b.cfg.Gateway, "session", sessionID)
		b.publishHealthAsync()
	}
}

func (o *sessionObserver) BusDevicesDiscovered(ctx context.Context, sessionID string, devices []protocol.BusDevice) {
	b := o.b
	b.metrics.BusDevicesDiscovered(ctx, sessionID, devices)

	b.mu.Lock()
	b.busDevices = len(devices)
	b.mu.Unlock()

	if b.inventory == nil {
		return
	}
	ictx, cancel := context.WithTimeout(ctx, inventoryTimeout)
	defer cancel()
	if err := b.inventory.RecordBusDevices(ictx, b.cfg.Gateway, devices, time.Now()); err != nil {
		b.logger.Warn("failed to record bus devices", "session", sessionID, "error", err)
	}
}

func (o *sessionObserver) FrameReceived(t transport.PayloadType) {
	o.b.metrics.FrameReceived(t)
}

func (o *sessionObserver) BundleCompleted(t protocol.BundleType, ok, failed int) {
	o.b.metrics.BundleCompleted(t, ok, failed)
}

var _ session.Observer = (*sessionObserver)(nil)
