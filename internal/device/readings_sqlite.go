package device

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SQLiteReadingRepository implements ReadingRepository using SQLite.
type SQLiteReadingRepository struct {
	db *sql.DB
}

// NewSQLiteReadingRepository creates a new SQLite reading repository.
func NewSQLiteReadingRepository(db *sql.DB) *SQLiteReadingRepository {
	return &SQLiteReadingRepository{db: db}
}

// Record inserts a new sensor reading for a device.
func (r *SQLiteReadingRepository) Record(ctx context.Context, reading *SensorReading) error {
	if reading.DeviceID == "" {
		return fmt.Errorf("device id is required")
	}
	if reading.ID == "" {
		reading.ID = "rdg-" + uuid.NewString()[:8]
	}
	if reading.CreatedAt.IsZero() {
		reading.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sensor_readings
			(id, device_id, ldr_value, temperature, humidity, motion_detected, light_on, uptime_seconds, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		reading.ID,
		reading.DeviceID,
		reading.LDRValue,
		reading.Temperature,
		reading.Humidity,
		boolToInt(reading.MotionDetected),
		boolToInt(reading.LightOn),
		reading.UptimeSeconds,
		reading.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting sensor reading: %w", err)
	}

	return nil
}

// ListSince returns readings taken at or after the given instant,
// ordered oldest first for charting.
func (r *SQLiteReadingRepository) ListSince(ctx context.Context, deviceID string, since time.Time) ([]SensorReading, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_id, ldr_value, temperature, humidity, motion_detected, light_on, uptime_seconds, created_at
		 FROM sensor_readings
		 WHERE device_id = ? AND created_at >= ?
		 ORDER BY created_at ASC`,
		deviceID,
		since.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("querying sensor readings: %w", err)
	}
	defer rows.Close()

	readings := make([]SensorReading, 0)
	for rows.Next() {
		var reading SensorReading
		var motionDetected, lightOn int
		var createdAt string

		if err := rows.Scan(&reading.ID, &reading.DeviceID, &reading.LDRValue,
			&reading.Temperature, &reading.Humidity, &motionDetected,
			&lightOn, &reading.UptimeSeconds, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning sensor reading: %w", err)
		}

		reading.MotionDetected = motionDetected != 0
		reading.LightOn = lightOn != 0

		timestamp, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		reading.CreatedAt = timestamp

		readings = append(readings, reading)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sensor readings: %w", err)
	}

	return readings, nil
}

// boolToInt converts a boolean to 0/1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
