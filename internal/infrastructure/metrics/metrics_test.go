package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/nerrad567/ism7-bridge/internal/ism7/protocol"
	"github.com/nerrad567/ism7-bridge/internal/ism7/session"
	"github.com/nerrad567/ism7-bridge/internal/ism7/transport"
)

// value reads the current value of a gauge or counter.
func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()

	var pb dto.Metric
	if err := m.Write(&pb); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	switch {
	case pb.Gauge != nil:
		return pb.Gauge.GetValue()
	case pb.Counter != nil:
		return pb.Counter.GetValue()
	}
	t.Fatalf("metric is neither gauge nor counter")
	return 0
}

func TestStateGauge(t *testing.T) {
	m := New()

	if got := value(t, m.sessionState.WithLabelValues(session.StateClosed)); got != 1 {
		t.Errorf("initial closed = %v, want 1", got)
	}

	m.StateChanged("s1", session.StateConnecting, session.StateAuthenticating)
	m.StateChanged("s1", session.StateAuthenticating, session.StateSubscribed)

	for _, s := range sessionStates {
		want := 0.0
		if s == session.StateSubscribed {
			want = 1
		}
		if got := value(t, m.sessionState.WithLabelValues(s)); got != want {
			t.Errorf("state %s = %v, want %v", s, got, want)
		}
	}

	m.SessionEnded(errors.New("keep-alive timeout"))
	if got := value(t, m.sessionState.WithLabelValues(session.StateClosed)); got != 1 {
		t.Errorf("closed after SessionEnded = %v, want 1", got)
	}
	if got := value(t, m.sessionErrors); got != 1 {
		t.Errorf("session errors = %v, want 1", got)
	}
}

func TestObserverCounters(t *testing.T) {
	m := New()

	m.FrameReceived(transport.PayloadType(4))
	m.FrameReceived(transport.PayloadType(4))
	m.FrameReceived(transport.PayloadType(15))
	m.BundleCompleted(protocol.BundlePull, 3, 1)
	m.BundleCompleted(protocol.BundlePush, 2, 0)
	m.BusDevicesDiscovered(context.Background(), "s1", []protocol.BusDevice{{BusAddress: "0x08"}, {BusAddress: "0x35"}})

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"frames type 4", value(t, m.framesReceived.WithLabelValues("4")), 2},
		{"frames type 15", value(t, m.framesReceived.WithLabelValues("15")), 1},
		{"pull bundles", value(t, m.bundles.WithLabelValues("pull")), 1},
		{"push bundles", value(t, m.bundles.WithLabelValues("push")), 1},
		{"telegrams ok", value(t, m.telegrams.WithLabelValues("ok")), 5},
		{"telegrams failed", value(t, m.telegrams.WithLabelValues("failed")), 1},
		{"bus devices", value(t, m.busDevices), 2},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}

	m.SessionEnded(nil)
	if got := value(t, m.busDevices); got != 0 {
		t.Errorf("bus devices after SessionEnded = %v, want 0", got)
	}
	if got := value(t, m.sessionErrors); got != 0 {
		t.Errorf("session errors after clean end = %v, want 0", got)
	}
}

func TestBridgeCounters(t *testing.T) {
	m := New()

	m.SessionStarted()
	m.ReconnectAttempt()
	m.ReconnectAttempt()
	m.Published("document", 2)
	m.Published("datapoint", 7)
	m.PublishFailed()
	m.Command(CommandAccepted)
	m.Command(CommandRejected)
	m.Command(CommandRejected)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"sessions", value(t, m.sessionsStarted), 1},
		{"reconnects", value(t, m.reconnects), 2},
		{"documents", value(t, m.published.WithLabelValues("document")), 2},
		{"datapoints", value(t, m.published.WithLabelValues("datapoint")), 7},
		{"publish errors", value(t, m.publishErrors), 1},
		{"accepted", value(t, m.commands.WithLabelValues(CommandAccepted)), 1},
		{"rejected", value(t, m.commands.WithLabelValues(CommandRejected)), 2},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.SessionStarted()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		"ism7_sessions_started_total 1",
		`ism7_session_state{state="closed"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestIndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.SessionStarted()

	if got := value(t, b.sessionsStarted); got != 0 {
		t.Errorf("second instance sessions = %v, want 0", got)
	}
}
