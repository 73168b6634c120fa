package inventory

import "time"

// BusDevice is a device the gateway reported on its bus.
type BusDevice struct {
	Gateway          string
	BusAddress       string
	SoftwareVersion  string
	SoftwareRevision string
	Config           string
	DeviceID         string
	FirstSeen        time.Time
	LastSeen         time.Time
}

// SessionRecord is one gateway session.
type SessionRecord struct {
	ID        string
	Gateway   string
	StartedAt time.Time
	EndedAt   *time.Time

	// Error is the terminal error text, empty for a clean shutdown.
	Error string
}
