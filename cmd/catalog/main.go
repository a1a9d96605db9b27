// SMM Catalog - plant, device and user registry for the smart plant
// monitoring system.
//
// Field agents register themselves over REST and refresh their records
// periodically; a background sweeper evicts plants and devices that stop
// refreshing. Change events are announced on MQTT when a broker is
// configured, and sweep statistics are written to InfluxDB when enabled.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	_ "github.com/d-khalang/SMM/migrations"

	"github.com/d-khalang/SMM/internal/api"
	"github.com/d-khalang/SMM/internal/bus"
	"github.com/d-khalang/SMM/internal/catalog"
	"github.com/d-khalang/SMM/internal/infrastructure/config"
	"github.com/d-khalang/SMM/internal/infrastructure/database"
	"github.com/d-khalang/SMM/internal/infrastructure/influxdb"
	"github.com/d-khalang/SMM/internal/infrastructure/logging"
	"github.com/d-khalang/SMM/internal/infrastructure/mongodb"
	"github.com/d-khalang/SMM/internal/infrastructure/mqtt"
	"github.com/d-khalang/SMM/internal/metrics"
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

// run is the application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting SMM catalog",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	if err := loadDotEnv(); err != nil {
		return err
	}

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

	// Open the document store
	repo, closeStore, err := openStore(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer closeStore()

	m := metrics.New()

	registry := catalog.NewRegistry(repo)
	registry.SetLogger(log.Component("registry"))
	registry.SetObserver(m)

	if seedErr := registry.SeedSettings(ctx, catalog.Settings{
		Broker:    catalog.Broker{IP: cfg.Seed.Broker.IP, Port: cfg.Seed.Broker.Port},
		MainTopic: cfg.Seed.MainTopic,
	}); seedErr != nil {
		return fmt.Errorf("seeding settings: %w", seedErr)
	}
	mainTopic, err := registry.MainTopic(ctx)
	if err != nil {
		return err
	}
	log.Info("catalog settings ready", "main_topic", mainTopic)

	// Connect to MQTT broker (optional)
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := startBus(cfg.MQTT, mainTopic, registry, log)
		if mqttErr != nil {
			return mqttErr
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	} else {
		log.Info("MQTT disabled, catalog events are not announced")
	}

	sweeper := catalog.NewSweeper(registry, cfg.StalenessThreshold(), cfg.SweepInterval())

	// Connect to InfluxDB (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(ctx, cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
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
		sweeper.SetStatsWriter(influxClient)
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Start the cleanup sweeper
	sweepCtx, stopSweeper := context.WithCancel(ctx)
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		sweeper.Run(sweepCtx)
	}()
	defer func() {
		stopSweeper()
		<-sweepDone
		log.Info("sweeper stopped")
	}()
	log.Info("sweeper started",
		"threshold", cfg.StalenessThreshold(),
		"interval", cfg.SweepInterval(),
	)

	// Start the REST front door
	server, err := api.New(api.Deps{
		Config:   cfg.API,
		Logger:   log.Component("api"),
		Registry: registry,
		Metrics:  m,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: API server, sweeper, InfluxDB,
	// MQTT, then the document store.
	return nil
}

// getConfigPath returns the configuration file path.
// Uses CATALOG_CONFIG environment variable if set, otherwise default.
// A default path that does not exist means env-only configuration.
func getConfigPath() string {
	if path := os.Getenv("CATALOG_CONFIG"); path != "" {
		return path
	}
	if _, err := os.Stat(defaultConfigPath); err != nil {
		return ""
	}
	return defaultConfigPath
}

// loadDotEnv loads a .env file from the working directory when present.
// Variables already set in the environment win.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

// openStore opens the configured document store and returns its repository
// with a function that closes it.
func openStore(ctx context.Context, cfg config.DatabaseConfig, log *logging.Logger) (catalog.Repository, func(), error) {
	cols := catalog.Collections{
		Plants:  cfg.Collections.Plants,
		Devices: cfg.Collections.Devices,
		Users:   cfg.Collections.Users,
		General: cfg.Collections.General,
	}

	switch cfg.Driver {
	case config.DriverMongoDB:
		client, err := mongodb.Connect(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to MongoDB: %w", err)
		}
		repo := catalog.NewMongoRepository(client.Database(), cols)
		if err := repo.EnsureIndexes(ctx); err != nil {
			client.Close(context.Background()) //nolint:errcheck // Already failing
			return nil, nil, fmt.Errorf("creating indexes: %w", err)
		}
		log.Info("MongoDB connected", "database", cfg.Name)

		return repo, func() {
			log.Info("closing MongoDB connection")
			if err := client.Close(context.Background()); err != nil {
				log.Error("error closing MongoDB", "error", err)
			}
		}, nil

	default:
		db, err := database.Open(ctx, database.ConfigFrom(cfg))
		if err != nil {
			return nil, nil, fmt.Errorf("opening database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close() //nolint:errcheck // Already failing
			return nil, nil, fmt.Errorf("running migrations: %w", err)
		}
		log.Info("database connected", "path", db.Path())

		return catalog.NewSQLiteRepository(db.DB, cols), func() {
			log.Info("closing database")
			if err := db.Close(); err != nil {
				log.Error("error closing database", "error", err)
			}
		}, nil
	}
}

// startBus connects to the broker, installs the event announcer on the
// registry and subscribes to device status reports.
func startBus(cfg config.MQTTConfig, mainTopic string, registry *catalog.Registry, log *logging.Logger) (*mqtt.Client, error) {
	client, err := mqtt.Connect(cfg, mainTopic)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	mqttLog := log.Component("mqtt")
	client.SetLogger(mqttLog)
	client.SetOnConnect(func() {
		mqttLog.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		mqttLog.Warn("MQTT disconnected", "error", err)
	})

	registry.SetAnnouncer(bus.NewAnnouncer(client, client.QoS()))
	if err := bus.ListenDeviceStatus(client, client.Topics(), client.QoS(), registry, mqttLog); err != nil {
		client.Close() //nolint:errcheck // Already failing
		return nil, err
	}

	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"client_id", cfg.Broker.ClientID,
		"status_topic", client.Topics().DeviceStatus(),
	)
	return client, nil
}
