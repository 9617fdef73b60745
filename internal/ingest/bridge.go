// Package ingest feeds MQTT telemetry pushes into the reconciler.
//
// Controllers that hold a persistent broker connection publish the same
// JSON payload they would POST to /api/sensor/{deviceId}. The bridge
// validates the device against the allowed key list, applies the push,
// fans the committed result out to watching dashboards, and echoes the
// authoritative state back on the device's retained state topic.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/lumen-core/internal/device"
	"github.com/nerrad567/lumen-core/internal/infrastructure/logging"
	"github.com/nerrad567/lumen-core/internal/infrastructure/mqtt"
)

// applyTimeout bounds a single telemetry reconciliation.
const applyTimeout = 5 * time.Second

// MQTTClient is the broker surface the bridge needs.
// Satisfied by *mqtt.Client; mocked in tests.
type MQTTClient interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	PublishRetained(topic string, payload []byte) error
	IsConnected() bool
}

// Broadcaster delivers committed results to connected dashboards.
// Satisfied by *api.Hub. Optional; nil disables fanout.
type Broadcaster interface {
	BroadcastUpdate(result *device.Result)
}

// Bridge subscribes to telemetry topics and drives the reconciler.
//
// All methods are safe for concurrent use; the paho library invokes the
// message handler from its own goroutines.
type Bridge struct {
	mqtt        MQTTClient
	reconciler  *device.Reconciler
	broadcaster Broadcaster
	allowed     map[string]struct{}
	qos         byte
	logger      *logging.Logger

	ctx       context.Context
	ctxCancel context.CancelFunc
	stopOnce  sync.Once
}

// Options holds configuration for creating a bridge.
type Options struct {
	// MQTT is the connected broker client.
	MQTT MQTTClient

	// Reconciler applies telemetry pushes.
	Reconciler *device.Reconciler

	// Broadcaster is optional dashboard fanout. If nil, commits are
	// still persisted and echoed but nothing reaches WebSocket clients.
	Broadcaster Broadcaster

	// AllowedKeys lists the device identifiers accepted on the ingest
	// path. Pushes for any other id are rejected.
	AllowedKeys []string

	// QoS is the subscription QoS level.
	QoS byte

	// Logger is optional structured logging.
	Logger *logging.Logger
}

// New creates a bridge. Call Start to begin operation.
func New(opts Options) (*Bridge, error) {
	if opts.MQTT == nil {
		return nil, fmt.Errorf("mqtt client is required")
	}
	if opts.Reconciler == nil {
		return nil, fmt.Errorf("reconciler is required")
	}

	allowed := make(map[string]struct{}, len(opts.AllowedKeys))
	for _, key := range opts.AllowedKeys {
		allowed[key] = struct{}{}
	}

	logger := opts.Logger
	if logger != nil {
		logger = logger.With("component", "ingest")
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Bridge{
		mqtt:        opts.MQTT,
		reconciler:  opts.Reconciler,
		broadcaster: opts.Broadcaster,
		allowed:     allowed,
		qos:         opts.QoS,
		logger:      logger,
		ctx:         ctx,
		ctxCancel:   cancel,
	}, nil
}

// Start subscribes to the telemetry wildcard topic.
func (b *Bridge) Start() error {
	topic := mqtt.Topics{}.AllDeviceTelemetry()
	if err := b.mqtt.Subscribe(topic, b.qos, b.handleTelemetry); err != nil {
		return fmt.Errorf("subscribe to telemetry: %w", err)
	}

	if b.logger != nil {
		b.logger.Info("telemetry ingest started", "topic", topic, "allowed_devices", len(b.allowed))
	}

	return nil
}

// Stop unsubscribes and aborts in-flight reconciliations.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.ctxCancel()

		if b.mqtt.IsConnected() {
			//nolint:errcheck
			b.mqtt.Unsubscribe(mqtt.Topics{}.AllDeviceTelemetry())
		}

		if b.logger != nil {
			b.logger.Info("telemetry ingest stopped")
		}
	})
}

// stateEcho is published retained on the device state topic after every
// committed push so a reconnecting controller immediately sees the
// authoritative light state and config.
type stateEcho struct {
	DeviceID  string        `json:"device_id"`
	LightOn   bool          `json:"light_on"`
	State     device.State  `json:"state"`
	Config    device.Config `json:"config"`
	Timestamp string        `json:"timestamp"`
}

// handleTelemetry processes one telemetry push. Returned errors are
// logged by the MQTT client wrapper; they never abort the subscription.
func (b *Bridge) handleTelemetry(topic string, payload []byte) error {
	deviceID, err := mqtt.Topics{}.DeviceIDFromTopic(topic)
	if err != nil {
		return err
	}

	if _, ok := b.allowed[deviceID]; !ok {
		return fmt.Errorf("device %q not in allowed key list", deviceID)
	}

	var telemetry device.Telemetry
	if err := json.Unmarshal(payload, &telemetry); err != nil {
		return fmt.Errorf("parse telemetry for %s: %w", deviceID, err)
	}

	ctx, cancel := context.WithTimeout(b.ctx, applyTimeout)
	defer cancel()

	result, err := b.reconciler.ApplyTelemetry(ctx, deviceID, telemetry)
	if err != nil {
		return fmt.Errorf("apply telemetry for %s: %w", deviceID, err)
	}

	if b.broadcaster != nil {
		b.broadcaster.BroadcastUpdate(result)
	}

	b.publishStateEcho(result)
	return nil
}

// publishStateEcho mirrors the committed state onto the retained state
// topic. Echo failures are logged, never propagated: the push itself
// already committed.
func (b *Bridge) publishStateEcho(result *device.Result) {
	echo := stateEcho{
		DeviceID:  result.Device.ID,
		LightOn:   result.Device.State.LightOn,
		State:     result.Device.State,
		Config:    result.Device.Config,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	data, err := json.Marshal(echo)
	if err != nil {
		if b.logger != nil {
			b.logger.Error("marshal state echo failed", "device_id", result.Device.ID, "error", err)
		}
		return
	}

	topic := mqtt.Topics{}.DeviceState(result.Device.ID)
	if err := b.mqtt.PublishRetained(topic, data); err != nil {
		if b.logger != nil {
			b.logger.Warn("state echo publish failed", "device_id", result.Device.ID, "error", err)
		}
	}
}
