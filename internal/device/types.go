package device

import "time"

// Device represents one physical smart-light controller, keyed by a
// stable identifier reported by the hardware (e.g. "esp32-001").
// This matches the database schema in migrations/20260215_100000_initial_schema.up.sql.
type Device struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// Config is mutable, operator-controlled tuning for the automatic
	// light policy.
	Config Config `json:"config"`

	// State is the canonical device state. It is mutated only through
	// the Reconciler, never directly by read paths.
	State State `json:"state"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone creates an independent copy of the Device. Config and State are
// value types, so a shallow copy is sufficient for cache isolation.
func (d *Device) Clone() *Device {
	if d == nil {
		return nil
	}
	cpy := *d
	return &cpy
}

// Config holds the tunable parameters of the automatic light policy.
type Config struct {
	// DarkThreshold is the LDR value below which the room counts as dark.
	DarkThreshold float64 `json:"dark_threshold"`

	// AutoOffDelay is the delay in seconds before an automatically lit
	// lamp turns off once motion ceases. Enforced by the device firmware;
	// stored here so the device can fetch it.
	AutoOffDelay int `json:"auto_off_delay"`
}

// State holds the current device state.
type State struct {
	LightOn        bool      `json:"light_on"`
	MotionDetected bool      `json:"motion_detected"`
	LDRValue       float64   `json:"ldr_value"`
	Temperature    float64   `json:"temperature"`
	Humidity       float64   `json:"humidity"`
	UptimeSeconds  int64     `json:"uptime_seconds"`
	LastSeenAt     time.Time `json:"last_seen_at"`
}

// Defaults describes the record created lazily on a device's first contact.
type Defaults struct {
	Name          string
	DarkThreshold float64
	AutoOffDelay  int
}

// Default state values for a device that has never reported telemetry.
const (
	defaultLDRValue    = 512
	defaultTemperature = 25.0
	defaultHumidity    = 60.0
)

// NewDevice constructs a Device with the documented creation defaults.
func NewDevice(id string, defaults Defaults, now time.Time) *Device {
	return &Device{
		ID:   id,
		Name: defaults.Name,
		Config: Config{
			DarkThreshold: defaults.DarkThreshold,
			AutoOffDelay:  defaults.AutoOffDelay,
		},
		State: State{
			LightOn:        false,
			MotionDetected: false,
			LDRValue:       defaultLDRValue,
			Temperature:    defaultTemperature,
			Humidity:       defaultHumidity,
			UptimeSeconds:  0,
			LastSeenAt:     now,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Telemetry is a partial state report. Nil fields mean "unchanged".
type Telemetry struct {
	LDRValue       *float64 `json:"ldr_value,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
	Humidity       *float64 `json:"humidity,omitempty"`
	MotionDetected *bool    `json:"motion_detected,omitempty"`
	LightOn        *bool    `json:"light_on,omitempty"`
	UptimeSeconds  *int64   `json:"uptime_seconds,omitempty"`
}

// IsEmpty reports whether no fields are present.
func (t Telemetry) IsEmpty() bool {
	return t.LDRValue == nil && t.Temperature == nil && t.Humidity == nil &&
		t.MotionDetected == nil && t.LightOn == nil && t.UptimeSeconds == nil
}

// ConfigUpdate is a partial config change. Nil fields mean "unchanged".
type ConfigUpdate struct {
	DarkThreshold *float64 `json:"dark_threshold,omitempty"`
	AutoOffDelay  *int     `json:"auto_off_delay,omitempty"`
}

// IsEmpty reports whether no fields are present.
func (c ConfigUpdate) IsEmpty() bool {
	return c.DarkThreshold == nil && c.AutoOffDelay == nil
}
