package mqtt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/lumen-core/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
// Broker-backed tests require a running Mosquitto at 127.0.0.1:1883.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "lumen-test",
			TLS:      false,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// skipIfNoBroker skips the test when no local broker is reachable.
func skipIfNoBroker(t *testing.T) *Client {
	t.Helper()

	client, err := Connect(testConfig())
	if err != nil {
		t.Skip("MQTT broker not available, skipping integration test")
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"DeviceTelemetry", Topics{}.DeviceTelemetry("esp32-001"), "lumen/device/esp32-001/telemetry"},
		{"DeviceState", Topics{}.DeviceState("esp32-001"), "lumen/device/esp32-001/state"},
		{"SystemStatus", Topics{}.SystemStatus(), "lumen/system/status"},
		{"AllDeviceTelemetry", Topics{}.AllDeviceTelemetry(), "lumen/device/+/telemetry"},
		{"AllDeviceStates", Topics{}.AllDeviceStates(), "lumen/device/+/state"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestDeviceIDFromTopic(t *testing.T) {
	tests := []struct {
		topic   string
		want    string
		wantErr bool
	}{
		{"lumen/device/esp32-001/telemetry", "esp32-001", false},
		{"lumen/device/esp32-001/state", "esp32-001", false},
		{"lumen/system/status", "", true},
		{"lumen/device//telemetry", "", true},
		{"other/device/esp32-001/telemetry", "", true},
		{"lumen/device/esp32-001", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			got, err := Topics{}.DeviceIDFromTopic(tt.topic)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTopic) {
					t.Errorf("DeviceIDFromTopic(%q) error = %v, want ErrInvalidTopic", tt.topic, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DeviceIDFromTopic(%q) error = %v", tt.topic, err)
			}
			if got != tt.want {
				t.Errorf("DeviceIDFromTopic(%q) = %q, want %q", tt.topic, got, tt.want)
			}
		})
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on empty client error = %v, want nil", err)
	}
}

func TestIsConnected_InitialState(t *testing.T) {
	client := &Client{}

	if client.IsConnected() {
		t.Error("IsConnected() should be false for uninitialised client")
	}
}

func TestConnect(t *testing.T) {
	client := skipIfNoBroker(t)

	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
}

func TestConnectInvalidBroker(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Port = 19999

	_, err := Connect(cfg)
	if err == nil {
		t.Fatal("Connect() expected error for invalid broker")
	}
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestHealthCheck(t *testing.T) {
	client := skipIfNoBroker(t)

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v, want nil", err)
	}
}

func TestHealthCheckCancelled(t *testing.T) {
	client := skipIfNoBroker(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := client.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() expected error for cancelled context")
	}
}

func TestHealthCheckDisconnected(t *testing.T) {
	client := skipIfNoBroker(t)
	client.Close()

	err := client.HealthCheck(context.Background())
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestPublishValidation(t *testing.T) {
	client := skipIfNoBroker(t)

	t.Run("empty topic", func(t *testing.T) {
		err := client.Publish("", []byte("test"), 1, false)
		if !errors.Is(err, ErrInvalidTopic) {
			t.Errorf("Publish() error = %v, want ErrInvalidTopic", err)
		}
	})

	t.Run("invalid QoS", func(t *testing.T) {
		err := client.Publish("lumen/test", []byte("test"), 3, false)
		if !errors.Is(err, ErrInvalidQoS) {
			t.Errorf("Publish() error = %v, want ErrInvalidQoS", err)
		}
	})
}

func TestSubscribeValidation(t *testing.T) {
	client := skipIfNoBroker(t)

	t.Run("empty topic", func(t *testing.T) {
		err := client.Subscribe("", 1, func(string, []byte) error { return nil })
		if !errors.Is(err, ErrInvalidTopic) {
			t.Errorf("Subscribe() error = %v, want ErrInvalidTopic", err)
		}
	})

	t.Run("nil handler", func(t *testing.T) {
		err := client.Subscribe("lumen/test", 1, nil)
		if !errors.Is(err, ErrSubscribeFailed) {
			t.Errorf("Subscribe() error = %v, want ErrSubscribeFailed", err)
		}
	})
}

func TestSubscriptionTracking(t *testing.T) {
	client := skipIfNoBroker(t)

	topic := "lumen/test/tracking"
	handler := func(string, []byte) error { return nil }

	if err := client.Subscribe(topic, 1, handler); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if !client.HasSubscription(topic) {
		t.Error("HasSubscription() = false, want true")
	}
	if client.SubscriptionCount() != 1 {
		t.Errorf("SubscriptionCount() = %d, want 1", client.SubscriptionCount())
	}

	if err := client.Unsubscribe(topic); err != nil {
		t.Errorf("Unsubscribe() error = %v", err)
	}

	if client.HasSubscription(topic) {
		t.Error("HasSubscription() = true after Unsubscribe(), want false")
	}
}

func TestPublishSubscribeRoundtrip(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "lumen-test-pub"

	pubClient, err := Connect(cfg)
	if err != nil {
		t.Skip("MQTT broker not available, skipping integration test")
	}
	defer pubClient.Close()

	cfg.Broker.ClientID = "lumen-test-sub"
	subClient, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() subscriber error = %v", err)
	}
	defer subClient.Close()

	topic := Topics{}.DeviceTelemetry("test-roundtrip")
	expectedPayload := `{"ldr_value":300,"motion_detected":true}`
	received := make(chan string, 1)

	err = subClient.Subscribe(topic, 1, func(_ string, payload []byte) error {
		received <- string(payload)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if err := pubClient.PublishString(topic, expectedPayload, 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case payload := <-received:
		if payload != expectedPayload {
			t.Errorf("received payload = %q, want %q", payload, expectedPayload)
		}
	case <-time.After(5 * time.Second):
		t.Error("timeout waiting for message")
	}
}

func TestWildcardSubscription(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "lumen-test-wild-pub"

	pubClient, err := Connect(cfg)
	if err != nil {
		t.Skip("MQTT broker not available, skipping integration test")
	}
	defer pubClient.Close()

	cfg.Broker.ClientID = "lumen-test-wild-sub"
	subClient, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() subscriber error = %v", err)
	}
	defer subClient.Close()

	received := make(chan string, 3)
	err = subClient.Subscribe(Topics{}.AllDeviceTelemetry(), 1,
		func(topic string, _ []byte) error {
			received <- topic
			return nil
		})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	devices := []string{"esp32-001", "esp32-002", "esp32-003"}
	for _, id := range devices {
		topic := Topics{}.DeviceTelemetry(id)
		if err := pubClient.PublishString(topic, `{"ldr_value":500}`, 1, false); err != nil {
			t.Fatalf("Publish(%s) error = %v", topic, err)
		}
	}

	got := make(map[string]bool)
	timeout := time.After(5 * time.Second)
	for range devices {
		select {
		case topic := <-received:
			got[topic] = true
		case <-timeout:
			t.Fatalf("timeout; received %d of %d messages", len(got), len(devices))
		}
	}

	for _, id := range devices {
		if !got[Topics{}.DeviceTelemetry(id)] {
			t.Errorf("did not receive message for device %s", id)
		}
	}
}
