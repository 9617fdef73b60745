// Package influxdb provides the optional sensor metrics mirror.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes, and health monitoring.
//
// # Purpose
//
// SQLite remains the source of truth for sensor readings. When the
// mirror is enabled, every committed reading is also written to
// InfluxDB as a sensor_reading measurement for long-range charting and
// retention beyond what the relational history table holds.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteSensorReading(influxdb.SensorPoint{
//	    DeviceID: "esp32-001",
//	    LDRValue: 312,
//	})
//
// # Error Handling
//
// Write operations are non-blocking; batch errors are delivered via the
// SetOnError callback. Connection and health check errors are returned
// directly. A mirror failure never blocks the ingest path.
package influxdb
