package device

import (
	"reflect"
	"testing"

	"github.com/nerrad567/lumen-core/internal/eventlog"
)

func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }
func intPtr(v int) *int           { return &v }
func int64Ptr(v int64) *int64     { return &v }

func TestEvaluate(t *testing.T) {
	cfg := Config{DarkThreshold: 400, AutoOffDelay: 60}

	tests := []struct {
		name          string
		state         State
		in            Telemetry
		wantLightOn   bool
		wantAutomatic bool
		wantEvents    []eventlog.EventType
	}{
		{
			name:          "dark with motion turns light on",
			state:         State{LightOn: false},
			in:            Telemetry{LDRValue: floatPtr(300), MotionDetected: boolPtr(true)},
			wantLightOn:   true,
			wantAutomatic: true,
			wantEvents:    []eventlog.EventType{eventlog.TypeLightOn, eventlog.TypeMotionDetected},
		},
		{
			name:          "bright without motion turns light off automatically",
			state:         State{LightOn: true},
			in:            Telemetry{LDRValue: floatPtr(500), MotionDetected: boolPtr(false)},
			wantLightOn:   false,
			wantAutomatic: true,
			wantEvents:    []eventlog.EventType{eventlog.TypeAutoOff},
		},
		{
			name:          "bright with motion keeps light off",
			state:         State{LightOn: false},
			in:            Telemetry{LDRValue: floatPtr(500), MotionDetected: boolPtr(true)},
			wantLightOn:   false,
			wantAutomatic: true,
			wantEvents:    []eventlog.EventType{eventlog.TypeMotionDetected},
		},
		{
			name:          "dark without motion keeps light off",
			state:         State{LightOn: false},
			in:            Telemetry{LDRValue: floatPtr(100), MotionDetected: boolPtr(false)},
			wantLightOn:   false,
			wantAutomatic: true,
			wantEvents:    nil,
		},
		{
			name:          "ldr at threshold is not dark",
			state:         State{LightOn: false},
			in:            Telemetry{LDRValue: floatPtr(400), MotionDetected: boolPtr(true)},
			wantLightOn:   false,
			wantAutomatic: true,
			wantEvents:    []eventlog.EventType{eventlog.TypeMotionDetected},
		},
		{
			name:          "automatic rule overrides explicit light flag",
			state:         State{LightOn: false},
			in:            Telemetry{LDRValue: floatPtr(300), MotionDetected: boolPtr(true), LightOn: boolPtr(false)},
			wantLightOn:   true,
			wantAutomatic: true,
			wantEvents:    []eventlog.EventType{eventlog.TypeLightOn, eventlog.TypeMotionDetected},
		},
		{
			name:        "ldr alone does not trigger the automatic rule",
			state:       State{LightOn: true},
			in:          Telemetry{LDRValue: floatPtr(500)},
			wantLightOn: true,
			wantEvents:  nil,
		},
		{
			name:        "motion alone does not trigger the automatic rule",
			state:       State{LightOn: false},
			in:          Telemetry{MotionDetected: boolPtr(true)},
			wantLightOn: false,
			wantEvents:  []eventlog.EventType{eventlog.TypeMotionDetected},
		},
		{
			name:        "explicit light flag applies without sensor pair",
			state:       State{LightOn: false},
			in:          Telemetry{LightOn: boolPtr(true)},
			wantLightOn: true,
			wantEvents:  []eventlog.EventType{eventlog.TypeLightOn},
		},
		{
			name:        "manual off is light_off not auto_off",
			state:       State{LightOn: true},
			in:          Telemetry{LightOn: boolPtr(false)},
			wantLightOn: false,
			wantEvents:  []eventlog.EventType{eventlog.TypeLightOff},
		},
		{
			name:        "heartbeat changes nothing",
			state:       State{LightOn: true},
			in:          Telemetry{Temperature: floatPtr(22.5), Humidity: floatPtr(55)},
			wantLightOn: true,
			wantEvents:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.state, cfg, tt.in)

			if got.NextLightOn != tt.wantLightOn {
				t.Errorf("NextLightOn = %v, want %v", got.NextLightOn, tt.wantLightOn)
			}
			if got.Automatic != tt.wantAutomatic {
				t.Errorf("Automatic = %v, want %v", got.Automatic, tt.wantAutomatic)
			}
			if !reflect.DeepEqual(got.Events, tt.wantEvents) {
				t.Errorf("Events = %v, want %v", got.Events, tt.wantEvents)
			}
		})
	}
}

// TestEvaluate_Pure verifies that identical inputs yield identical
// output across repeated calls.
func TestEvaluate_Pure(t *testing.T) {
	state := State{LightOn: true, LDRValue: 350, MotionDetected: true}
	cfg := Config{DarkThreshold: 400}
	in := Telemetry{LDRValue: floatPtr(450), MotionDetected: boolPtr(false)}

	first := Evaluate(state, cfg, in)
	for i := 0; i < 10; i++ {
		got := Evaluate(state, cfg, in)
		if !reflect.DeepEqual(got, first) {
			t.Fatalf("call %d: Evaluate() = %+v, want %+v", i, got, first)
		}
	}
}

// TestEvaluate_Idempotent verifies that repeating a bright/no-motion
// push never produces a light transition.
func TestEvaluate_Idempotent(t *testing.T) {
	state := State{LightOn: false}
	cfg := Config{DarkThreshold: 400}
	in := Telemetry{LDRValue: floatPtr(450), MotionDetected: boolPtr(false)}

	for i := 0; i < 5; i++ {
		got := Evaluate(state, cfg, in)
		if got.NextLightOn {
			t.Fatalf("repetition %d: NextLightOn = true, want false", i)
		}
		if len(got.Events) != 0 {
			t.Fatalf("repetition %d: Events = %v, want none", i, got.Events)
		}
		state.LightOn = got.NextLightOn
	}
}
