// ISM7 Bridge
//
// Connects a Wolf ISM7 heating gateway to MQTT. Decoded register values
// are published per device and per parameter, MQTT commands are written
// back to the bus, and values are optionally recorded in InfluxDB.
//
// Configuration is read from configs/config.yaml or the file named by
// ISM7_CONFIG; secrets can be supplied through ISM7_* environment variables.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/ism7-bridge/internal/api"
	"github.com/nerrad567/ism7-bridge/internal/bridges/ism7"
	"github.com/nerrad567/ism7-bridge/internal/infrastructure/config"
	"github.com/nerrad567/ism7-bridge/internal/infrastructure/database"
	"github.com/nerrad567/ism7-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/ism7-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/ism7-bridge/internal/infrastructure/metrics"
	"github.com/nerrad567/ism7-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/ism7-bridge/internal/inventory"
	"github.com/nerrad567/ism7-bridge/internal/ism7/catalog"
	"github.com/nerrad567/ism7-bridge/internal/ism7/device"
	"github.com/nerrad567/ism7-bridge/migrations"
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

// run wires the bridge and blocks until ctx is cancelled or the bridge
// gives up reconnecting.
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting ISM7 bridge",
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

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Device model
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	registry, err := device.NewRegistry(cat, deviceConfigs(cfg.Devices), device.Options{
		TopicPrefix: cfg.Publish.TopicPrefix,
		Translate:   cfg.Catalog.Translate,
	}, log)
	if err != nil {
		return fmt.Errorf("creating device registry: %w", err)
	}
	log.Info("device registry initialised",
		"catalog", cfg.Catalog.Path,
		"configured_devices", len(cfg.Devices),
	)

	// Inventory database
	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	repo := inventory.NewSQLiteRepository(db.DB)
	log.Info("database ready", "path", cfg.Database.Path)

	m := metrics.New()

	// MQTT
	topics := mqtt.Topics{Prefix: cfg.Publish.TopicPrefix, Gateway: cfg.Gateway.Host}
	mqttClient, err := mqtt.Connect(cfg.MQTT, topics.Status())
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

	// InfluxDB (optional)
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
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	// Gateway bridge
	dialer, err := ism7.NewTLSDialer(cfg.Gateway, cfg.GetDialTimeout())
	if err != nil {
		return fmt.Errorf("configuring gateway TLS: %w", err)
	}

	opts := ism7.Options{
		Config:    ism7.ConfigFrom(cfg, version),
		MQTT:      mqttClient,
		Dialer:    dialer,
		Registry:  registry,
		Metrics:   m,
		Inventory: repo,
		Logger:    log,
	}
	if influxClient != nil {
		opts.Influx = influxClient
	}

	var hub *api.Hub
	if cfg.Metrics.Enabled {
		hub = api.NewHub(log)
		opts.Events = hub
	}

	bridge, err := ism7.New(opts)
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}

	// Status server (optional)
	if cfg.Metrics.Enabled {
		server, err := api.New(api.Deps{
			Config:    cfg.Metrics,
			Logger:    log,
			Bridge:    bridge,
			Metrics:   m,
			Inventory: repo,
			Hub:       hub,
			Version:   version,
		})
		if err != nil {
			return fmt.Errorf("creating status server: %w", err)
		}
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("starting status server: %w", err)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing status server", "error", closeErr)
			}
		}()
	}

	log.Info("initialisation complete, connecting to gateway", "gateway", dialer.Address())

	if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("bridge: %w", err)
	}

	log.Info("ISM7 bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses ISM7_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("ISM7_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// deviceConfigs maps the configured devices onto registry configs.
func deviceConfigs(in []config.DeviceConfig) []device.Config {
	out := make([]device.Config, 0, len(in))
	for _, d := range in {
		out = append(out, device.Config{
			ReadBusAddress:  d.ReadBusAddress,
			WriteBusAddress: d.WriteBusAddress,
			Template:        d.Template,
			Parameters:      d.Parameters,
		})
	}
	return out
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Returns:
//   - error: First health check failure, or nil if all healthy
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
