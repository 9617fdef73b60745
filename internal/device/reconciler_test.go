package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/lumen-core/internal/eventlog"
	"github.com/nerrad567/lumen-core/internal/infrastructure/config"
	"github.com/nerrad567/lumen-core/internal/infrastructure/logging"
)

// testLogger returns a logger that discards all output.
func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Output: "discard"}, "test")
}

// setupReconciler wires a Reconciler against an in-memory database.
func setupReconciler(t *testing.T) (*Reconciler, *SQLiteRepository, *eventlog.SQLiteRepository) {
	t.Helper()

	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	events := eventlog.NewSQLiteRepository(db)
	readings := NewSQLiteReadingRepository(db)

	rec := NewReconciler(repo, events, readings, testDefaults(), testLogger())
	return rec, repo, events
}

func eventTypes(events []eventlog.Event) []eventlog.EventType {
	types := make([]eventlog.EventType, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}

func TestReconciler_GetOrCreate(t *testing.T) {
	rec, repo, _ := setupReconciler(t)
	ctx := context.Background()

	t.Run("creates on first contact with defaults", func(t *testing.T) {
		result, err := rec.GetOrCreate(ctx, "esp32-001")
		if err != nil {
			t.Fatalf("GetOrCreate() error = %v", err)
		}
		if !result.Created {
			t.Error("Created = false, want true")
		}
		if result.Device.Name != "SmartLight" {
			t.Errorf("Name = %q, want %q", result.Device.Name, "SmartLight")
		}
		if result.Device.Config.DarkThreshold != 400 {
			t.Errorf("DarkThreshold = %v, want 400", result.Device.Config.DarkThreshold)
		}
		if result.Device.State.LDRValue != 512 {
			t.Errorf("LDRValue = %v, want 512", result.Device.State.LDRValue)
		}
		if len(result.Events) != 1 || result.Events[0].Type != eventlog.TypeDeviceOnline {
			t.Errorf("Events = %v, want single device_online", eventTypes(result.Events))
		}
	})

	t.Run("second call returns the existing record", func(t *testing.T) {
		result, err := rec.GetOrCreate(ctx, "esp32-001")
		if err != nil {
			t.Fatalf("GetOrCreate() error = %v", err)
		}
		if result.Created {
			t.Error("Created = true, want false")
		}
		if len(result.Events) != 0 {
			t.Errorf("Events = %v, want none", eventTypes(result.Events))
		}
	})

	t.Run("rejects invalid device id", func(t *testing.T) {
		if _, err := rec.GetOrCreate(ctx, ""); !errors.Is(err, ErrInvalidDeviceID) {
			t.Errorf("GetOrCreate(\"\") error = %v, want ErrInvalidDeviceID", err)
		}

		long := make([]byte, maxDeviceIDLen+1)
		for i := range long {
			long[i] = 'a'
		}
		if _, err := rec.GetOrCreate(ctx, string(long)); !errors.Is(err, ErrInvalidDeviceID) {
			t.Errorf("GetOrCreate(long) error = %v, want ErrInvalidDeviceID", err)
		}
	})

	// Sanity check the persisted row.
	dev, err := repo.GetByID(ctx, "esp32-001")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if dev.State.Temperature != 25.0 || dev.State.Humidity != 60.0 {
		t.Errorf("default climate = (%v, %v), want (25, 60)",
			dev.State.Temperature, dev.State.Humidity)
	}
}

func TestReconciler_ApplyTelemetry(t *testing.T) {
	ctx := context.Background()

	t.Run("dark with motion turns light on", func(t *testing.T) {
		rec, _, _ := setupReconciler(t)

		result, err := rec.ApplyTelemetry(ctx, "esp32-001", Telemetry{
			LDRValue:       floatPtr(300),
			MotionDetected: boolPtr(true),
		})
		if err != nil {
			t.Fatalf("ApplyTelemetry() error = %v", err)
		}
		if !result.Device.State.LightOn {
			t.Error("LightOn = false, want true")
		}

		got := eventTypes(result.Events)
		want := []eventlog.EventType{eventlog.TypeLightOn, eventlog.TypeMotionDetected, eventlog.TypeDeviceOnline}
		if len(got) != len(want) {
			t.Fatalf("Events = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("Events = %v, want %v", got, want)
			}
		}
		if result.Events[0].Message != "Auto-ON: LDR=300, motion=true" {
			t.Errorf("Message = %q, want %q", result.Events[0].Message, "Auto-ON: LDR=300, motion=true")
		}
	})

	t.Run("bright without motion turns lit lamp off", func(t *testing.T) {
		rec, _, _ := setupReconciler(t)

		if _, err := rec.ApplyTelemetry(ctx, "esp32-001", Telemetry{
			LDRValue:       floatPtr(300),
			MotionDetected: boolPtr(true),
		}); err != nil {
			t.Fatalf("setup telemetry error = %v", err)
		}

		result, err := rec.ApplyTelemetry(ctx, "esp32-001", Telemetry{
			LDRValue:       floatPtr(500),
			MotionDetected: boolPtr(false),
		})
		if err != nil {
			t.Fatalf("ApplyTelemetry() error = %v", err)
		}
		if result.Device.State.LightOn {
			t.Error("LightOn = true, want false")
		}
		if len(result.Events) != 1 || result.Events[0].Type != eventlog.TypeAutoOff {
			t.Fatalf("Events = %v, want single auto_off", eventTypes(result.Events))
		}
		if result.Events[0].Message != "Auto-OFF: LDR=500, motion=false" {
			t.Errorf("Message = %q", result.Events[0].Message)
		}
	})

	t.Run("heartbeat merges fields without a transition", func(t *testing.T) {
		rec, _, _ := setupReconciler(t)

		if _, err := rec.GetOrCreate(ctx, "esp32-001"); err != nil {
			t.Fatalf("GetOrCreate() error = %v", err)
		}

		result, err := rec.ApplyTelemetry(ctx, "esp32-001", Telemetry{
			Temperature:   floatPtr(22.5),
			Humidity:      floatPtr(48),
			UptimeSeconds: int64Ptr(3600),
		})
		if err != nil {
			t.Fatalf("ApplyTelemetry() error = %v", err)
		}
		if len(result.Events) != 0 {
			t.Errorf("Events = %v, want none", eventTypes(result.Events))
		}
		if result.Device.State.Temperature != 22.5 {
			t.Errorf("Temperature = %v, want 22.5", result.Device.State.Temperature)
		}
		if result.Device.State.UptimeSeconds != 3600 {
			t.Errorf("UptimeSeconds = %v, want 3600", result.Device.State.UptimeSeconds)
		}
		if result.Device.State.LastSeenAt.IsZero() {
			t.Error("LastSeenAt not set")
		}
	})

	t.Run("records a reading for every push", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewSQLiteRepository(db)
		events := eventlog.NewSQLiteRepository(db)
		readings := NewSQLiteReadingRepository(db)
		rec := NewReconciler(repo, events, readings, testDefaults(), testLogger())

		for i := 0; i < 3; i++ {
			if _, err := rec.ApplyTelemetry(ctx, "esp32-001", Telemetry{
				LDRValue:       floatPtr(500),
				MotionDetected: boolPtr(false),
			}); err != nil {
				t.Fatalf("push %d error = %v", i, err)
			}
		}

		list, err := readings.ListSince(ctx, "esp32-001", time.Now().UTC().Add(-time.Minute))
		if err != nil {
			t.Fatalf("ListSince() error = %v", err)
		}
		if len(list) != 3 {
			t.Errorf("readings = %d, want 3", len(list))
		}
	})

	t.Run("event append failure does not fail the push", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewSQLiteRepository(db)
		readings := NewSQLiteReadingRepository(db)
		rec := NewReconciler(repo, failingEventRepo{}, readings, testDefaults(), testLogger())

		result, err := rec.ApplyTelemetry(ctx, "esp32-001", Telemetry{
			LDRValue:       floatPtr(300),
			MotionDetected: boolPtr(true),
		})
		if err != nil {
			t.Fatalf("ApplyTelemetry() error = %v", err)
		}
		if !result.Device.State.LightOn {
			t.Error("LightOn = false, want true")
		}
		if len(result.Events) != 0 {
			t.Errorf("Events = %v, want none after append failure", eventTypes(result.Events))
		}

		// The state commit must still be visible.
		dev, err := repo.GetByID(ctx, "esp32-001")
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if !dev.State.LightOn {
			t.Error("persisted LightOn = false, want true")
		}
	})
}

func TestReconciler_Toggle(t *testing.T) {
	rec, _, _ := setupReconciler(t)
	ctx := context.Background()

	result, err := rec.Toggle(ctx, "esp32-001")
	if err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if !result.Device.State.LightOn {
		t.Error("first Toggle: LightOn = false, want true")
	}
	if len(result.Events) == 0 || result.Events[0].Type != eventlog.TypeLightOn {
		t.Fatalf("first Toggle events = %v, want light_on first", eventTypes(result.Events))
	}
	if result.Events[0].Message != "Light toggled ON via dashboard" {
		t.Errorf("Message = %q", result.Events[0].Message)
	}

	result, err = rec.Toggle(ctx, "esp32-001")
	if err != nil {
		t.Fatalf("second Toggle() error = %v", err)
	}
	if result.Device.State.LightOn {
		t.Error("second Toggle: LightOn = true, want false")
	}
	if len(result.Events) != 1 || result.Events[0].Type != eventlog.TypeLightOff {
		t.Fatalf("second Toggle events = %v, want single light_off", eventTypes(result.Events))
	}
	if result.Events[0].Message != "Light toggled OFF via dashboard" {
		t.Errorf("Message = %q", result.Events[0].Message)
	}
}

func TestReconciler_UpdateConfig(t *testing.T) {
	rec, repo, _ := setupReconciler(t)
	ctx := context.Background()

	t.Run("applies partial update and logs a config_change", func(t *testing.T) {
		before, err := rec.ApplyTelemetry(ctx, "esp32-001", Telemetry{
			LDRValue:       floatPtr(300),
			MotionDetected: boolPtr(true),
		})
		if err != nil {
			t.Fatalf("setup telemetry error = %v", err)
		}

		result, err := rec.UpdateConfig(ctx, "esp32-001", ConfigUpdate{
			DarkThreshold: floatPtr(350),
		})
		if err != nil {
			t.Fatalf("UpdateConfig() error = %v", err)
		}
		if result.Device.Config.DarkThreshold != 350 {
			t.Errorf("DarkThreshold = %v, want 350", result.Device.Config.DarkThreshold)
		}
		if result.Device.Config.AutoOffDelay != 60 {
			t.Errorf("AutoOffDelay = %v, want unchanged 60", result.Device.Config.AutoOffDelay)
		}
		if len(result.Events) != 1 || result.Events[0].Type != eventlog.TypeConfigChange {
			t.Fatalf("Events = %v, want single config_change", eventTypes(result.Events))
		}
		if result.Events[0].Message != "Config updated: threshold=350, delay=60" {
			t.Errorf("Message = %q", result.Events[0].Message)
		}

		// State must be untouched even with the policy conditions met.
		assertStateUnchanged(t, before.Device.State, result.Device.State)

		dev, err := repo.GetByID(ctx, "esp32-001")
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		assertStateUnchanged(t, before.Device.State, dev.State)
	})

	t.Run("rejects empty update", func(t *testing.T) {
		if _, err := rec.UpdateConfig(ctx, "esp32-001", ConfigUpdate{}); !errors.Is(err, ErrEmptyUpdate) {
			t.Errorf("UpdateConfig() error = %v, want ErrEmptyUpdate", err)
		}
	})

	t.Run("rejects negative values", func(t *testing.T) {
		if _, err := rec.UpdateConfig(ctx, "esp32-001", ConfigUpdate{
			DarkThreshold: floatPtr(-1),
		}); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("UpdateConfig() error = %v, want ErrInvalidConfig", err)
		}
		if _, err := rec.UpdateConfig(ctx, "esp32-001", ConfigUpdate{
			AutoOffDelay: intPtr(-5),
		}); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("UpdateConfig() error = %v, want ErrInvalidConfig", err)
		}
	})
}

// TestReconciler_ConcurrentSameDevice hammers a single device from many
// goroutines and checks that every toggle committed. Interleaved
// read-modify-write cycles would lose transitions.
func TestReconciler_ConcurrentSameDevice(t *testing.T) {
	rec, _, events := setupReconciler(t)
	ctx := context.Background()

	if _, err := rec.GetOrCreate(ctx, "esp32-001"); err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	const workers = 20
	var wg sync.WaitGroup
	errCh := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := rec.Toggle(ctx, "esp32-001"); err != nil {
				errCh <- err
			}
		}()
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Fatalf("Toggle() error = %v", err)
	}

	list, err := events.List(ctx, eventlog.Filter{DeviceID: "esp32-001", Limit: 100})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	transitions := 0
	for _, e := range list {
		if e.Type == eventlog.TypeLightOn || e.Type == eventlog.TypeLightOff {
			transitions++
		}
	}
	if transitions != workers {
		t.Errorf("transitions = %d, want %d", transitions, workers)
	}
}

// TestReconciler_ConcurrentFirstContact races creation of the same
// device; exactly one caller may observe Created.
func TestReconciler_ConcurrentFirstContact(t *testing.T) {
	rec, _, _ := setupReconciler(t)
	ctx := context.Background()

	const workers = 10
	var wg sync.WaitGroup
	created := make(chan bool, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := rec.GetOrCreate(ctx, "esp32-fresh")
			if err != nil {
				t.Errorf("GetOrCreate() error = %v", err)
				return
			}
			created <- result.Created
		}()
	}
	wg.Wait()
	close(created)

	count := 0
	for c := range created {
		if c {
			count++
		}
	}
	if count != 1 {
		t.Errorf("Created observed %d times, want exactly 1", count)
	}
}

// assertStateUnchanged compares the device-visible state fields,
// ignoring LastSeenAt.
func assertStateUnchanged(t *testing.T, want, got State) {
	t.Helper()

	if got.LightOn != want.LightOn || got.MotionDetected != want.MotionDetected ||
		got.LDRValue != want.LDRValue || got.Temperature != want.Temperature ||
		got.Humidity != want.Humidity || got.UptimeSeconds != want.UptimeSeconds {
		t.Errorf("state changed:\n got %+v\nwant %+v", got, want)
	}
}

// failingEventRepo rejects every append.
type failingEventRepo struct{}

func (failingEventRepo) Append(context.Context, *eventlog.Event) error {
	return fmt.Errorf("event store unavailable")
}

func (failingEventRepo) List(context.Context, eventlog.Filter) ([]eventlog.Event, error) {
	return nil, fmt.Errorf("event store unavailable")
}
