// Package device implements the state reconciliation core of Lumen.
//
// Each physical smart-light controller has exactly one canonical Device
// record. Every update intent — a telemetry push from the hardware, a
// manual toggle from the dashboard, a config change from the settings
// page — flows through the Reconciler, which merges the intent into
// device state under a per-device lock, runs the automatic light
// policy, persists the result, and classifies the transition into
// typed log events.
//
// # Key Types
//
//   - Device: the canonical record (config + state)
//   - Telemetry / ConfigUpdate: partial update intents (nil = unchanged)
//   - Evaluate: the pure automatic light policy
//   - Reconciler: the orchestrator (load, evaluate, persist, classify)
//   - Repository / ReadingRepository: SQLite persistence contracts
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db)
//	readings := device.NewSQLiteReadingRepository(db)
//	events := eventlog.NewSQLiteRepository(db)
//	rec := device.NewReconciler(repo, events, readings, defaults, logger)
//
//	result, err := rec.ApplyTelemetry(ctx, "esp32-001", telemetry)
//	if err != nil {
//	    return err
//	}
//	hub.BroadcastUpdate(result) // fanout happens after the commit
//
// # Thread Safety
//
// The Reconciler is safe for concurrent use. Updates for the same
// device id are serialised; updates for different ids run in parallel.
// Repository implementations must also be thread-safe.
package device
