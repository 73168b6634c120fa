package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nerrad567/ism7-bridge/internal/ism7/protocol"
)

// Repository defines the inventory persistence operations.
type Repository interface {
	RecordBusDevices(ctx context.Context, gateway string, devices []protocol.BusDevice, seen time.Time) error
	ListBusDevices(ctx context.Context, gateway string) ([]BusDevice, error)
	CountBusDevices(ctx context.Context, gateway string) (int, error)

	StartSession(ctx context.Context, id, gateway string, started time.Time) error
	EndSession(ctx context.Context, id string, ended time.Time, cause error) error
	ListSessions(ctx context.Context, gateway string, limit int) ([]SessionRecord, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed inventory repository.
// The bus_devices and sessions tables must already exist.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// RecordBusDevices upserts the reported devices. first_seen is kept from
// the earliest report, everything else is overwritten.
func (r *SQLiteRepository) RecordBusDevices(ctx context.Context, gateway string, devices []protocol.BusDevice, seen time.Time) error {
	if len(devices) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	const query = `INSERT INTO bus_devices
		(gateway, bus_address, sw_version, sw_revision, config, device_id, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (gateway, bus_address) DO UPDATE SET
			sw_version = excluded.sw_version,
			sw_revision = excluded.sw_revision,
			config = excluded.config,
			device_id = excluded.device_id,
			last_seen = excluded.last_seen`

	ts := formatTime(seen)
	for _, d := range devices {
		if _, err := tx.ExecContext(ctx, query,
			gateway, d.BusAddress, d.SoftwareVersion, d.SoftwareRevision, d.Config, d.DeviceID, ts, ts,
		); err != nil {
			return fmt.Errorf("upserting bus device %s/%s: %w", gateway, d.BusAddress, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing bus devices: %w", err)
	}
	return nil
}

// ListBusDevices returns the devices of gateway ordered by bus address.
// An empty gateway lists every gateway.
func (r *SQLiteRepository) ListBusDevices(ctx context.Context, gateway string) ([]BusDevice, error) {
	const query = `SELECT gateway, bus_address, sw_version, sw_revision, config, device_id, first_seen, last_seen
		FROM bus_devices
		WHERE (? = '' OR gateway = ?)
		ORDER BY gateway, bus_address`

	rows, err := r.db.QueryContext(ctx, query, gateway, gateway)
	if err != nil {
		return nil, fmt.Errorf("querying bus devices: %w", err)
	}
	defer rows.Close()

	var out []BusDevice
	for rows.Next() {
		var (
			d                   BusDevice
			firstSeen, lastSeen string
		)
		if err := rows.Scan(&d.Gateway, &d.BusAddress, &d.SoftwareVersion, &d.SoftwareRevision,
			&d.Config, &d.DeviceID, &firstSeen, &lastSeen); err != nil {
			return nil, fmt.Errorf("scanning bus device: %w", err)
		}
		d.FirstSeen = parseTime(firstSeen)
		d.LastSeen = parseTime(lastSeen)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating bus devices: %w", err)
	}
	return out, nil
}

// CountBusDevices returns how many devices gateway has reported.
func (r *SQLiteRepository) CountBusDevices(ctx context.Context, gateway string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bus_devices WHERE gateway = ?`, gateway).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting bus devices: %w", err)
	}
	return n, nil
}

// StartSession records the start of a session.
func (r *SQLiteRepository) StartSession(ctx context.Context, id, gateway string, started time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, gateway, started_at) VALUES (?, ?, ?)`,
		id, gateway, formatTime(started))
	if err != nil {
		return fmt.Errorf("inserting session %s: %w", id, err)
	}
	return nil
}

// EndSession closes a session record. cause is nil for a clean shutdown.
func (r *SQLiteRepository) EndSession(ctx context.Context, id string, ended time.Time, cause error) error {
	var errText sql.NullString
	if cause != nil {
		errText = sql.NullString{String: cause.Error(), Valid: true}
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ?, error = ? WHERE id = ?`,
		formatTime(ended), errText, id)
	if err != nil {
		return fmt.Errorf("updating session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating session %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// ListSessions returns the most recent sessions of gateway, newest first.
// A limit of zero or less returns every session.
func (r *SQLiteRepository) ListSessions(ctx context.Context, gateway string, limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = -1
	}

	const query = `SELECT id, gateway, started_at, ended_at, error
		FROM sessions
		WHERE gateway = ?
		ORDER BY started_at DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, gateway, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var (
			s         SessionRecord
			startedAt string
			endedAt   sql.NullString
			errText   sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Gateway, &startedAt, &endedAt, &errText); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		s.StartedAt = parseTime(startedAt)
		if endedAt.Valid {
			t := parseTime(endedAt.String)
			s.EndedAt = &t
		}
		s.Error = errText.String
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return out, nil
}

// timeLayout has fixed-width fractions so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

var _ Repository = (*SQLiteRepository)(nil)
