// VoltGrid Core - Microgrid Control Plane
//
// This is the main entry point for the VoltGrid Core application.
// VoltGrid supervises a site-local microgrid:
//   - Component registry and directed power-flow topology
//   - Lifecycle command orchestration (start, standby, stop, charge, discharge)
//   - Live telemetry fan-out and historical recording
//   - Operating-bound enforcement via device driver bridges
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/voltgrid/voltgrid-core/migrations"

	"github.com/voltgrid/voltgrid-core/internal/api"
	"github.com/voltgrid/voltgrid-core/internal/audit"
	"github.com/voltgrid/voltgrid-core/internal/bounds"
	"github.com/voltgrid/voltgrid-core/internal/bridges/fieldbus"
	"github.com/voltgrid/voltgrid-core/internal/component"
	"github.com/voltgrid/voltgrid-core/internal/infrastructure/config"
	"github.com/voltgrid/voltgrid-core/internal/infrastructure/database"
	"github.com/voltgrid/voltgrid-core/internal/infrastructure/influxdb"
	"github.com/voltgrid/voltgrid-core/internal/infrastructure/logging"
	"github.com/voltgrid/voltgrid-core/internal/infrastructure/mqtt"
	"github.com/voltgrid/voltgrid-core/internal/lifecycle"
	"github.com/voltgrid/voltgrid-core/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting VoltGrid Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
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

	// Open database
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

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Load the component registry
	componentRepo := component.NewSQLiteRepository(db.DB)
	registry := component.NewRegistry(componentRepo)
	registry.SetLogger(log)

	if reloadErr := registry.Reload(ctx); reloadErr != nil {
		return fmt.Errorf("loading component registry: %w", reloadErr)
	}
	log.Info("component registry loaded", "components", registry.Count())

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional telemetry history)
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
	} else {
		log.Info("InfluxDB disabled")
	}

	// Create the fieldbus adapter (the driver boundary)
	adapter, err := fieldbus.NewAdapter(fieldbus.AdapterOptions{
		TopicPrefix:    cfg.Fieldbus.TopicPrefix,
		RequestTimeout: cfg.Fieldbus.GetRequestTimeout(),
		MQTTClient:     &mqttFieldbusAdapter{client: mqttClient},
		Components:     registry,
		Logger:         log,
	})
	if err != nil {
		return fmt.Errorf("creating fieldbus adapter: %w", err)
	}

	// Telemetry fan-out. History sink is optional; the capability check
	// is answered by the fieldbus adapter.
	var history telemetry.History
	if influxClient != nil {
		history = influxClient
	}
	broker := telemetry.NewBroker(adapter, history,
		cfg.Telemetry.BufferSize, telemetry.OverflowPolicy(cfg.Telemetry.OverflowPolicy))
	broker.SetLogger(log)
	adapter.SetTelemetrySink(broker)

	if startErr := adapter.Start(); startErr != nil {
		return fmt.Errorf("starting fieldbus adapter: %w", startErr)
	}
	log.Info("fieldbus adapter started", "topic_prefix", cfg.Fieldbus.TopicPrefix)

	// Lifecycle orchestrator
	orchestrator := lifecycle.New(registry, adapter, mqttClient, lifecycle.Options{
		ActionTimeout: cfg.Orchestrator.GetActionTimeout(),
		NonBlocking:   cfg.Orchestrator.NonBlocking,
	})
	orchestrator.SetLogger(log)

	// Bound update handler
	boundsHandler := bounds.NewHandler(registry, adapter)
	boundsHandler.SetLogger(log)

	// Command audit trail
	auditRepo := audit.NewSQLiteRepository(db.DB)

	// HTTP API and streaming endpoints
	apiServer, err := api.New(api.Deps{
		Config:       cfg.API,
		WS:           cfg.WebSocket,
		Microgrid:    cfg.Microgrid,
		Logger:       log,
		Registry:     registry,
		Orchestrator: orchestrator,
		Broker:       broker,
		Bounds:       boundsHandler,
		Adapter:      adapter,
		Audit:        auditRepo,
		Version:      version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started",
		"address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
	)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal",
		"microgrid_id", cfg.Microgrid.ID,
	)

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. MQTT
	// 4. Database

	log.Info("VoltGrid Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses VOLTGRID_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("VOLTGRID_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// mqttFieldbusAdapter adapts the infrastructure MQTT client to the fieldbus
// adapter's MQTTClient interface. The difference is the Subscribe handler
// signature:
// - Infrastructure mqtt: func(topic string, payload []byte) error
// - Fieldbus expects:    func(topic string, payload []byte)
type mqttFieldbusAdapter struct {
	client *mqtt.Client
}

// Publish implements fieldbus.MQTTClient.
func (a *mqttFieldbusAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements fieldbus.MQTTClient.
func (a *mqttFieldbusAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// IsConnected implements fieldbus.MQTTClient.
func (a *mqttFieldbusAdapter) IsConnected() bool {
	return a.client.IsConnected()
}
