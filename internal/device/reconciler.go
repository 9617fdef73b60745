package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/lumen-core/internal/eventlog"
	"github.com/nerrad567/lumen-core/internal/infrastructure/logging"
)

// maxDeviceIDLen bounds device identifiers accepted from external callers.
const maxDeviceIDLen = 64

// Result is the outcome of a committed reconciliation.
type Result struct {
	// Device is an independent snapshot of the committed state.
	Device *Device `json:"device"`

	// Events are the log entries appended for this reconciliation,
	// light transition first. May be empty for a plain heartbeat.
	Events []eventlog.Event `json:"events"`

	// Created reports whether the device was created by this call.
	Created bool `json:"created"`
}

// Reconciler merges update intents (telemetry pushes, manual toggles,
// config changes) into canonical per-device state.
//
// All mutations for a single device are serialised behind a per-device
// mutex held for the whole load-evaluate-persist sequence, so
// concurrent updates to the same device never interleave. Updates to
// different devices proceed in parallel. The lock is never held while
// notifying observers; fanout is the caller's concern and happens after
// Reconcile returns.
//
// The device state UPDATE is the atomicity boundary: if it fails the
// reconciliation fails with no partial effects. Event log and sensor
// reading appends are best-effort auxiliary writes; their failure is
// logged but never surfaced to the caller.
type Reconciler struct {
	repo     Repository
	events   eventlog.Repository
	readings ReadingRepository
	defaults Defaults
	logger   *logging.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewReconciler creates a Reconciler.
func NewReconciler(repo Repository, events eventlog.Repository, readings ReadingRepository, defaults Defaults, logger *logging.Logger) *Reconciler {
	return &Reconciler{
		repo:     repo,
		events:   events,
		readings: readings,
		defaults: defaults,
		logger:   logger.With("component", "reconciler"),
		locks:    make(map[string]*sync.Mutex),
	}
}

// lockFor returns the mutex serialising updates for one device id.
// Locks are created on first contact and retained for the process
// lifetime; the fleet is small (one lock per physical controller).
func (r *Reconciler) lockFor(id string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[id] = lock
	}
	return lock
}

// GetOrCreate loads a device, creating it with the documented defaults
// on first contact. Creation appends a device_online event.
func (r *Reconciler) GetOrCreate(ctx context.Context, id string) (*Result, error) {
	if err := validateDeviceID(id); err != nil {
		return nil, err
	}

	lock := r.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	dev, created, err := r.getOrCreateLocked(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &Result{Device: dev.Clone(), Created: created}
	if created {
		result.Events = r.appendEvents(ctx, []eventlog.Event{onlineEvent(id)})
	}
	return result, nil
}

// ApplyTelemetry merges a telemetry push into device state, runs the
// automatic light policy, persists the result, records a sensor reading
// snapshot unconditionally, and appends one log entry per classified
// event.
func (r *Reconciler) ApplyTelemetry(ctx context.Context, id string, in Telemetry) (*Result, error) {
	if err := validateDeviceID(id); err != nil {
		return nil, err
	}

	lock := r.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	dev, created, err := r.getOrCreateLocked(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	decision := Evaluate(dev.State, dev.Config, in)

	mergeTelemetry(&dev.State, in)
	dev.State.LightOn = decision.NextLightOn
	dev.State.LastSeenAt = now

	if err := r.repo.Save(ctx, dev); err != nil {
		return nil, fmt.Errorf("saving device %s: %w", id, err)
	}

	// One reading per push, even when nothing changed.
	r.recordReading(ctx, dev, now)

	entries := make([]eventlog.Event, 0, len(decision.Events)+1)
	for _, kind := range decision.Events {
		entries = append(entries, classifiedEvent(dev, kind, decision.Automatic, sourceDevice, now))
	}
	if created {
		entries = append(entries, onlineEvent(id))
	}

	return &Result{
		Device:  dev.Clone(),
		Events:  r.appendEvents(ctx, entries),
		Created: created,
	}, nil
}

// Toggle flips the light state on operator request. The automatic
// policy never runs here; the intent carries only the inverted flag.
func (r *Reconciler) Toggle(ctx context.Context, id string) (*Result, error) {
	if err := validateDeviceID(id); err != nil {
		return nil, err
	}

	lock := r.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	dev, created, err := r.getOrCreateLocked(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	next := !dev.State.LightOn
	decision := Evaluate(dev.State, dev.Config, Telemetry{LightOn: &next})

	dev.State.LightOn = decision.NextLightOn
	dev.State.LastSeenAt = now

	if err := r.repo.Save(ctx, dev); err != nil {
		return nil, fmt.Errorf("saving device %s: %w", id, err)
	}

	entries := make([]eventlog.Event, 0, len(decision.Events)+1)
	for _, kind := range decision.Events {
		entries = append(entries, classifiedEvent(dev, kind, false, sourceDashboard, now))
	}
	if created {
		entries = append(entries, onlineEvent(id))
	}

	return &Result{
		Device:  dev.Clone(),
		Events:  r.appendEvents(ctx, entries),
		Created: created,
	}, nil
}

// UpdateConfig applies a partial config change. State is never touched
// and the policy never runs; a single config_change event records the
// old and new values.
func (r *Reconciler) UpdateConfig(ctx context.Context, id string, update ConfigUpdate) (*Result, error) {
	if err := validateDeviceID(id); err != nil {
		return nil, err
	}
	if update.IsEmpty() {
		return nil, ErrEmptyUpdate
	}
	if update.DarkThreshold != nil && *update.DarkThreshold < 0 {
		return nil, fmt.Errorf("%w: dark_threshold must not be negative", ErrInvalidConfig)
	}
	if update.AutoOffDelay != nil && *update.AutoOffDelay < 0 {
		return nil, fmt.Errorf("%w: auto_off_delay must not be negative", ErrInvalidConfig)
	}

	lock := r.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	dev, created, err := r.getOrCreateLocked(ctx, id)
	if err != nil {
		return nil, err
	}

	old := dev.Config
	if update.DarkThreshold != nil {
		dev.Config.DarkThreshold = *update.DarkThreshold
	}
	if update.AutoOffDelay != nil {
		dev.Config.AutoOffDelay = *update.AutoOffDelay
	}

	if err := r.repo.Save(ctx, dev); err != nil {
		return nil, fmt.Errorf("saving device %s: %w", id, err)
	}

	entries := []eventlog.Event{{
		DeviceID: id,
		Type:     eventlog.TypeConfigChange,
		Message: fmt.Sprintf("Config updated: threshold=%.0f, delay=%d",
			dev.Config.DarkThreshold, dev.Config.AutoOffDelay),
		Details: map[string]any{
			"old": map[string]any{"dark_threshold": old.DarkThreshold, "auto_off_delay": old.AutoOffDelay},
			"new": map[string]any{"dark_threshold": dev.Config.DarkThreshold, "auto_off_delay": dev.Config.AutoOffDelay},
		},
	}}
	if created {
		entries = append(entries, onlineEvent(id))
	}

	return &Result{
		Device:  dev.Clone(),
		Events:  r.appendEvents(ctx, entries),
		Created: created,
	}, nil
}

// getOrCreateLocked implements idempotent get-or-create. The caller
// must hold the per-device lock. A concurrent first contact that slips
// past the lock (e.g. a second process) is absorbed by retrying the
// read when the insert reports a duplicate.
func (r *Reconciler) getOrCreateLocked(ctx context.Context, id string) (dev *Device, created bool, err error) {
	dev, err = r.repo.GetByID(ctx, id)
	if err == nil {
		return dev, false, nil
	}
	if !errors.Is(err, ErrDeviceNotFound) {
		return nil, false, fmt.Errorf("loading device %s: %w", id, err)
	}

	dev = NewDevice(id, r.defaults, time.Now().UTC())
	createErr := r.repo.Create(ctx, dev)
	if createErr == nil {
		r.logger.Info("device created", "device_id", id)
		return dev, true, nil
	}
	if errors.Is(createErr, ErrDeviceExists) {
		dev, err = r.repo.GetByID(ctx, id)
		if err != nil {
			return nil, false, fmt.Errorf("reloading device %s: %w", id, err)
		}
		return dev, false, nil
	}

	return nil, false, fmt.Errorf("creating device %s: %w", id, createErr)
}

// recordReading persists a reading snapshot of the merged state.
// Best-effort: failure is logged, never propagated.
func (r *Reconciler) recordReading(ctx context.Context, dev *Device, now time.Time) {
	reading := &SensorReading{
		DeviceID:       dev.ID,
		LDRValue:       dev.State.LDRValue,
		Temperature:    dev.State.Temperature,
		Humidity:       dev.State.Humidity,
		MotionDetected: dev.State.MotionDetected,
		LightOn:        dev.State.LightOn,
		UptimeSeconds:  dev.State.UptimeSeconds,
		CreatedAt:      now,
	}
	if err := r.readings.Record(ctx, reading); err != nil {
		r.logger.Warn("sensor reading append failed", "device_id", dev.ID, "error", err)
	}
}

// appendEvents persists log entries best-effort and returns the entries
// that were accepted. Failures are logged, never propagated.
func (r *Reconciler) appendEvents(ctx context.Context, entries []eventlog.Event) []eventlog.Event {
	appended := make([]eventlog.Event, 0, len(entries))
	for i := range entries {
		if err := r.events.Append(ctx, &entries[i]); err != nil {
			r.logger.Warn("event append failed",
				"device_id", entries[i].DeviceID, "type", entries[i].Type, "error", err)
			continue
		}
		appended = append(appended, entries[i])
	}
	return appended
}

// updateSource distinguishes who initiated a light transition for
// message composition.
type updateSource int

const (
	sourceDevice updateSource = iota
	sourceDashboard
)

// classifiedEvent builds the log entry for a policy-classified event.
func classifiedEvent(dev *Device, kind eventlog.EventType, automatic bool, source updateSource, now time.Time) eventlog.Event {
	event := eventlog.Event{
		DeviceID:  dev.ID,
		Type:      kind,
		CreatedAt: now,
	}

	switch kind {
	case eventlog.TypeLightOn:
		switch {
		case automatic:
			event.Message = fmt.Sprintf("Auto-ON: LDR=%.0f, motion=%t", dev.State.LDRValue, dev.State.MotionDetected)
		case source == sourceDashboard:
			event.Message = "Light toggled ON via dashboard"
		default:
			event.Message = "Light reported ON by device"
		}
	case eventlog.TypeAutoOff:
		event.Message = fmt.Sprintf("Auto-OFF: LDR=%.0f, motion=%t", dev.State.LDRValue, dev.State.MotionDetected)
	case eventlog.TypeLightOff:
		if source == sourceDashboard {
			event.Message = "Light toggled OFF via dashboard"
		} else {
			event.Message = "Light reported OFF by device"
		}
	case eventlog.TypeMotionDetected:
		event.Message = fmt.Sprintf("Motion at LDR=%.0f", dev.State.LDRValue)
	default:
		event.Message = string(kind)
	}

	return event
}

// onlineEvent builds the first-contact log entry.
func onlineEvent(id string) eventlog.Event {
	return eventlog.Event{
		DeviceID: id,
		Type:     eventlog.TypeDeviceOnline,
		Message:  fmt.Sprintf("Device %s online", id),
	}
}

// mergeTelemetry copies every present field verbatim into the state.
func mergeTelemetry(state *State, in Telemetry) {
	if in.LDRValue != nil {
		state.LDRValue = *in.LDRValue
	}
	if in.Temperature != nil {
		state.Temperature = *in.Temperature
	}
	if in.Humidity != nil {
		state.Humidity = *in.Humidity
	}
	if in.MotionDetected != nil {
		state.MotionDetected = *in.MotionDetected
	}
	if in.UptimeSeconds != nil {
		state.UptimeSeconds = *in.UptimeSeconds
	}
}

// validateDeviceID checks external device identifiers.
func validateDeviceID(id string) error {
	if id == "" || len(id) > maxDeviceIDLen {
		return ErrInvalidDeviceID
	}
	return nil
}
