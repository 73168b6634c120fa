package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/ism7-bridge/internal/bridges/ism7"
	"github.com/nerrad567/ism7-bridge/internal/ism7/session"
)

// defaultSessionLimit caps /sessions when no limit is given.
const defaultSessionLimit = 50

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status        string        `json:"status"`
	Version       string        `json:"version"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	Bridge        ism7.Status   `json:"bridge"`
	WebSocket     WSClientCount `json:"websocket"`
}

// WSClientCount reports connected WebSocket clients.
type WSClientCount struct {
	Clients int `json:"clients"`
}

// DeviceResponse describes one running device.
type DeviceResponse struct {
	Name            string `json:"name"`
	Topic           string `json:"topic"`
	ReadBusAddress  string `json:"read_bus_address"`
	WriteBusAddress string `json:"write_bus_address"`
	TemplateID      int    `json:"template_id"`
	Parameters      int    `json:"parameters"`
}

// BusDeviceResponse describes one inventoried bus device.
type BusDeviceResponse struct {
	Gateway          string    `json:"gateway"`
	BusAddress       string    `json:"bus_address"`
	SoftwareVersion  string    `json:"sw_version,omitempty"`
	SoftwareRevision string    `json:"sw_revision,omitempty"`
	Config           string    `json:"config,omitempty"`
	DeviceID         string    `json:"device_id,omitempty"`
	FirstSeen        time.Time `json:"first_seen"`
	LastSeen         time.Time `json:"last_seen"`
}

// SessionResponse describes one gateway session.
type SessionResponse struct {
	ID        string     `json:"id"`
	Gateway   string     `json:"gateway"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// handleHealth reports bridge health. It answers 503 while the gateway
// session is not subscribed or MQTT is down, so it can serve as a
// readiness probe.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	st := s.bridge.Status()

	resp := HealthResponse{
		Status:        "ok",
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Bridge:        st,
		WebSocket:     WSClientCount{Clients: s.hub.ClientCount()},
	}

	code := http.StatusOK
	if st.Session.State != session.StateSubscribed || !st.MQTTConnected {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.bridge.Devices()
	out := make([]DeviceResponse, 0, len(devices))
	for _, d := range devices {
		out = append(out, DeviceResponse{
			Name:            d.Name,
			Topic:           d.Topic,
			ReadBusAddress:  d.ReadBusAddress.String(),
			WriteBusAddress: d.WriteBusAddress.String(),
			TemplateID:      d.TemplateID,
			Parameters:      d.Parameters,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": out, "count": len(out)})
}

func (s *Server) handleListBusDevices(w http.ResponseWriter, r *http.Request) {
	if s.inventory == nil {
		writeNotFound(w, "inventory not configured")
		return
	}

	devices, err := s.inventory.ListBusDevices(r.Context(), r.URL.Query().Get("gateway"))
	if err != nil {
		s.logger.Error("listing bus devices", "error", err)
		writeInternalError(w, "failed to list bus devices")
		return
	}

	out := make([]BusDeviceResponse, 0, len(devices))
	for _, d := range devices {
		out = append(out, BusDeviceResponse{
			Gateway:          d.Gateway,
			BusAddress:       d.BusAddress,
			SoftwareVersion:  d.SoftwareVersion,
			SoftwareRevision: d.SoftwareRevision,
			Config:           d.Config,
			DeviceID:         d.DeviceID,
			FirstSeen:        d.FirstSeen,
			LastSeen:         d.LastSeen,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"bus_devices": out, "count": len(out)})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if s.inventory == nil {
		writeNotFound(w, "inventory not configured")
		return
	}

	limit := defaultSessionLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	sessions, err := s.inventory.ListSessions(r.Context(), r.URL.Query().Get("gateway"), limit)
	if err != nil {
		s.logger.Error("listing sessions", "error", err)
		writeInternalError(w, "failed to list sessions")
		return
	}

	out := make([]SessionResponse, 0, len(sessions))
	for _, rec := range sessions {
		out = append(out, SessionResponse{
			ID:        rec.ID,
			Gateway:   rec.Gateway,
			StartedAt: rec.StartedAt,
			EndedAt:   rec.EndedAt,
			Error:     rec.Error,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out, "count": len(out)})
}
