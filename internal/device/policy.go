package device

import "github.com/nerrad567/lumen-core/internal/eventlog"

// Decision is the output of the automatic light policy for one update.
type Decision struct {
	// NextLightOn is the light state the device should converge to.
	NextLightOn bool

	// Automatic reports whether the automatic rule ran (both ldr_value
	// and motion_detected were present in the update).
	Automatic bool

	// Events are the classified transitions, light transition first.
	// A single update may yield zero, one, or two events.
	Events []eventlog.EventType
}

// Evaluate applies the automatic light policy to an incoming update.
//
// The automatic rule runs only when BOTH ldr_value and motion_detected
// are present in the same update: the light should be on exactly when
// motion is detected and the room is dark. It overrides any explicit
// light_on flag in the same update, since it reflects device
// self-reporting rather than operator intent. When the rule does not
// run, light_on applies if present, otherwise the state is unchanged.
//
// Event classification precedence:
//  1. off->on transition: light_on
//  2. on->off via the automatic rule: auto_off
//  3. on->off otherwise: light_off
//  4. independently, motion_detected=true adds a motion_detected event
//
// Evaluate is pure: no I/O, no clock reads, identical inputs yield
// identical output. Timestamps are assigned by the caller.
func Evaluate(current State, cfg Config, in Telemetry) Decision {
	next := current.LightOn
	automatic := in.LDRValue != nil && in.MotionDetected != nil

	switch {
	case automatic:
		next = *in.MotionDetected && *in.LDRValue < cfg.DarkThreshold
	case in.LightOn != nil:
		next = *in.LightOn
	}

	var events []eventlog.EventType
	switch {
	case !current.LightOn && next:
		events = append(events, eventlog.TypeLightOn)
	case current.LightOn && !next && automatic:
		events = append(events, eventlog.TypeAutoOff)
	case current.LightOn && !next:
		events = append(events, eventlog.TypeLightOff)
	}

	if in.MotionDetected != nil && *in.MotionDetected {
		events = append(events, eventlog.TypeMotionDetected)
	}

	return Decision{
		NextLightOn: next,
		Automatic:   automatic,
		Events:      events,
	}
}
