package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// SensorPoint carries one committed sensor reading into the mirror.
// Kept as a plain value type so callers outside the device package can
// construct points too.
type SensorPoint struct {
	DeviceID       string
	LDRValue       float64
	Temperature    float64
	Humidity       float64
	MotionDetected bool
	LightOn        bool
	UptimeSeconds  int64
	At             time.Time
}

// WriteSensorReading mirrors a sensor reading as a sensor_reading
// measurement tagged by device id.
//
// The write is non-blocking; data is batched and sent asynchronously.
func (c *Client) WriteSensorReading(p SensorPoint) {
	if !c.IsConnected() {
		return
	}

	at := p.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	point := write.NewPoint(
		"sensor_reading",
		map[string]string{
			"device_id": p.DeviceID,
		},
		map[string]interface{}{
			"ldr_value":       p.LDRValue,
			"temperature":     p.Temperature,
			"humidity":        p.Humidity,
			"motion_detected": p.MotionDetected,
			"light_on":        p.LightOn,
			"uptime_seconds":  p.UptimeSeconds,
		},
		at,
	)

	c.writeAPI.WritePoint(point)
}

// WriteLightTransition records a light state change with the trigger
// that caused it (auto, dashboard, device).
func (c *Client) WriteLightTransition(deviceID string, lightOn bool, trigger string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"light_state",
		map[string]string{
			"device_id": deviceID,
			"trigger":   trigger,
		},
		map[string]interface{}{
			"light_on": lightOn,
		},
		time.Now().UTC(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
// Tags should stay low-cardinality; fields carry the actual data.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
// Use when the timestamp is not "now", such as replayed data.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
