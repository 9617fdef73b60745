package device

import (
	"context"
	"time"
)

// SensorReading is an immutable snapshot of the telemetry fields, one
// row per telemetry push, persisted regardless of whether the push
// changed the light state. Used only for historical query; the policy
// never reads it.
type SensorReading struct {
	ID             string    `json:"id"`
	DeviceID       string    `json:"device_id"`
	LDRValue       float64   `json:"ldr_value"`
	Temperature    float64   `json:"temperature"`
	Humidity       float64   `json:"humidity"`
	MotionDetected bool      `json:"motion_detected"`
	LightOn        bool      `json:"light_on"`
	UptimeSeconds  int64     `json:"uptime_seconds"`
	CreatedAt      time.Time `json:"created_at"`
}

// ReadingRepository stores and retrieves sensor reading history.
//
// Implementations must be thread-safe and use UTC timestamps.
type ReadingRepository interface {
	// Record persists a reading snapshot. The ID and CreatedAt are
	// generated if empty.
	Record(ctx context.Context, reading *SensorReading) error

	// ListSince returns readings for a device taken at or after the
	// given instant, ordered oldest first.
	ListSince(ctx context.Context, deviceID string, since time.Time) ([]SensorReading, error)
}
