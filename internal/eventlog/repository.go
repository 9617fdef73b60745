// Package eventlog provides the append-only device event log: typed,
// immutable entries recording light transitions, motion, config changes,
// and device lifecycle.
package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType classifies a log entry.
type EventType string

// Event type constants.
const (
	TypeMotionDetected EventType = "motion_detected"
	TypeLightOn        EventType = "light_on"
	TypeLightOff       EventType = "light_off"
	TypeAutoOff        EventType = "auto_off"
	TypeDeviceOnline   EventType = "device_online"
	TypeConfigChange   EventType = "config_change"
)

// AllTypes returns all valid event type values.
func AllTypes() []EventType {
	return []EventType{
		TypeMotionDetected, TypeLightOn, TypeLightOff,
		TypeAutoOff, TypeDeviceOnline, TypeConfigChange,
	}
}

// Valid reports whether t is a recognised event type.
func (t EventType) Valid() bool {
	for _, known := range AllTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// Event represents a single immutable log entry. Entries are never
// mutated or deleted; ordering is by creation timestamp.
type Event struct {
	ID        string         `json:"id"`
	DeviceID  string         `json:"device_id"`
	Type      EventType      `json:"type"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Filter controls which events to return.
type Filter struct {
	DeviceID string    // required: events belong to one device
	Type     EventType // optional: filter by event type
	Limit    int       // default 50, max 200
}

// Default and maximum page sizes for event queries.
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Repository defines the interface for event log operations.
type Repository interface {
	// Append inserts a new event. The ID and CreatedAt are generated if empty.
	Append(ctx context.Context, event *Event) error

	// List returns events matching the filter, most recent first.
	List(ctx context.Context, filter Filter) ([]Event, error)
}

// SQLiteRepository stores events in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new event log repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Append inserts a new event.
func (r *SQLiteRepository) Append(ctx context.Context, event *Event) error {
	if event.ID == "" {
		event.ID = "evt-" + uuid.NewString()[:8]
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	var detailsJSON *string
	if event.Details != nil {
		b, err := json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("marshalling event details: %w", err)
		}
		s := string(b)
		detailsJSON = &s
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO events (id, device_id, type, message, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		event.ID, event.DeviceID, string(event.Type), event.Message,
		detailsJSON,
		event.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}

	return nil
}

// List returns events for a device, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) ([]Event, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultLimit
	}
	if filter.Limit > MaxLimit {
		filter.Limit = MaxLimit
	}

	query := `SELECT id, device_id, type, message, details, created_at
		FROM events WHERE device_id = ?`
	args := []any{filter.DeviceID}

	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, string(filter.Type))
	}

	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, filter.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		var eventType string
		var detailsJSON sql.NullString
		var createdAt string

		if err := rows.Scan(&event.ID, &event.DeviceID, &eventType,
			&event.Message, &detailsJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}

		event.Type = EventType(eventType)

		if detailsJSON.Valid && detailsJSON.String != "" {
			var details map[string]any
			if json.Unmarshal([]byte(detailsJSON.String), &details) == nil {
				event.Details = details
			}
		}

		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing event timestamp %q: %w", createdAt, err)
		}
		event.CreatedAt = t

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}

	if events == nil {
		events = []Event{}
	}

	return events, nil
}
