// Lumen Core - smart light backend
//
// This is the main entry point for the lumen backend. It serves the
// dashboard REST API and WebSocket fanout, ingests telemetry from ESP32
// controllers over HTTP and optionally MQTT, and mirrors sensor history
// to InfluxDB when enabled.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/lumen-core/migrations"

	"github.com/nerrad567/lumen-core/internal/api"
	"github.com/nerrad567/lumen-core/internal/auth"
	"github.com/nerrad567/lumen-core/internal/device"
	"github.com/nerrad567/lumen-core/internal/eventlog"
	"github.com/nerrad567/lumen-core/internal/infrastructure/config"
	"github.com/nerrad567/lumen-core/internal/infrastructure/database"
	"github.com/nerrad567/lumen-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/lumen-core/internal/infrastructure/logging"
	"github.com/nerrad567/lumen-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/lumen-core/internal/ingest"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for
// testability. Returning an error lets main handle exit codes
// consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Lumen Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Repositories
	deviceRepo := device.NewSQLiteRepository(db.DB)
	events := eventlog.NewSQLiteRepository(db.DB)

	var readings device.ReadingRepository = device.NewSQLiteReadingRepository(db.DB)

	// Connect to InfluxDB (optional sensor metrics mirror)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})

		// Every committed reading is mirrored into the time-series store.
		readings = &mirroredReadings{ReadingRepository: readings, mirror: influxClient}
	} else {
		log.Info("InfluxDB disabled")
	}

	// Domain services
	reconciler := device.NewReconciler(deviceRepo, events, readings, device.Defaults{
		Name:          cfg.Devices.DefaultName,
		DarkThreshold: cfg.Devices.DarkThreshold,
		AutoOffDelay:  cfg.Devices.AutoOffDelay,
	}, log)

	authSvc := auth.NewService(
		auth.NewUserRepository(db.DB),
		cfg.Security.JWT.Secret,
		cfg.TokenTTL(),
		log,
	)

	// HTTP API
	srv, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Devices:    cfg.Devices,
		Logger:     log,
		Reconciler: reconciler,
		Events:     events,
		Readings:   readings,
		Auth:       authSvc,
		DB:         db,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := srv.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()
	log.Info("API server started",
		"host", cfg.API.Host,
		"port", cfg.API.Port,
		"tls", cfg.API.TLS.Enabled,
	)

	// MQTT telemetry ingest (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		bridge, bridgeErr := ingest.New(ingest.Options{
			MQTT:        mqttClient,
			Reconciler:  reconciler,
			Broadcaster: srv.Hub(),
			AllowedKeys: cfg.Devices.AllowedKeys,
			QoS:         byte(cfg.MQTT.QoS),
			Logger:      log,
		})
		if bridgeErr != nil {
			return fmt.Errorf("creating telemetry ingest: %w", bridgeErr)
		}
		if startErr := bridge.Start(); startErr != nil {
			return fmt.Errorf("starting telemetry ingest: %w", startErr)
		}
		defer func() {
			log.Info("stopping telemetry ingest")
			bridge.Stop()
		}()
	} else {
		log.Info("MQTT ingest disabled")
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. Telemetry ingest (if enabled)
	// 2. MQTT (if enabled)
	// 3. API server
	// 4. InfluxDB (if enabled)
	// 5. Database

	log.Info("Lumen Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses LUMEN_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("LUMEN_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// mqttClient and influxClient may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// mirroredReadings decorates the SQLite reading repository with the
// InfluxDB mirror. SQLite stays the source of truth; a mirror write
// happens only after the relational insert succeeds, and mirror
// failures surface through the client's async error callback.
type mirroredReadings struct {
	device.ReadingRepository
	mirror *influxdb.Client
}

// Record implements device.ReadingRepository.
func (m *mirroredReadings) Record(ctx context.Context, reading *device.SensorReading) error {
	if err := m.ReadingRepository.Record(ctx, reading); err != nil {
		return err
	}

	m.mirror.WriteSensorReading(influxdb.SensorPoint{
		DeviceID:       reading.DeviceID,
		LDRValue:       reading.LDRValue,
		Temperature:    reading.Temperature,
		Humidity:       reading.Humidity,
		MotionDetected: reading.MotionDetected,
		LightOn:        reading.LightOn,
		UptimeSeconds:  reading.UptimeSeconds,
		At:             reading.CreatedAt,
	})

	return nil
}
