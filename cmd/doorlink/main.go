// Doorlink Core - Smart Lock Synchronization Platform
//
// This is the main entry point for the Doorlink Core application.
// Doorlink Core bridges MQTT-connected door locks to a REST API:
//   - Deduplicates and audits every inbound device report
//   - Reconciles device state, passcodes, and cards into SQLite
//   - Tracks issued commands in a ledger with timeout expiry
//   - Pushes owner notifications over WebSocket
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/doorlink-io/doorlink-core/migrations"

	"github.com/doorlink-io/doorlink-core/internal/api"
	"github.com/doorlink-io/doorlink-core/internal/auth"
	"github.com/doorlink-io/doorlink-core/internal/command"
	"github.com/doorlink-io/doorlink-core/internal/door"
	"github.com/doorlink-io/doorlink-core/internal/infrastructure/config"
	"github.com/doorlink-io/doorlink-core/internal/infrastructure/database"
	"github.com/doorlink-io/doorlink-core/internal/infrastructure/influxdb"
	"github.com/doorlink-io/doorlink-core/internal/infrastructure/logging"
	"github.com/doorlink-io/doorlink-core/internal/infrastructure/mqtt"
	"github.com/doorlink-io/doorlink-core/internal/notify"
	"github.com/doorlink-io/doorlink-core/internal/reconcile"
	"github.com/doorlink-io/doorlink-core/internal/record"
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
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Doorlink Core",
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
	db, err := database.Open(ctx, database.Config{
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

	// Repositories share the one database handle
	doorRepo := door.NewSQLiteRepository(db.DB)
	passcodeRepo := door.NewSQLitePasscodeRepository(db.DB)
	cardRepo := door.NewSQLiteCardRepository(db.DB)
	recordRepo := record.NewSQLiteRepository(db.DB)
	userRepo := auth.NewSQLiteUserRepository(db.DB)
	inboxRepo := reconcile.NewSQLiteInboxRepository(db.DB)
	commandRepo := command.NewSQLiteRepository(db.DB)

	// Seed the initial admin account on first boot. The generated password
	// is logged once and must be changed on first login.
	if _, seedErr := auth.SeedAdmin(ctx, userRepo, log); seedErr != nil {
		return fmt.Errorf("seeding admin account: %w", seedErr)
	}

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

	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	var telemetry reconcile.Telemetry
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
		telemetry = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	// Start the WebSocket notification hub
	hub := notify.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	// Wire report reconciliation: every inbound device report is
	// deduplicated, audited, and dispatched to its kind handler.
	registry := reconcile.NewDefaultRegistry(hub, telemetry, cfg.Notifications.CardList, log)
	dispatcher := reconcile.NewDispatcher(db.DB, registry, log)

	qos := byte(cfg.MQTT.QoS)
	for _, pattern := range (mqtt.Topics{}).ReportPatterns() {
		if subErr := mqttClient.Subscribe(pattern, qos, dispatcher.HandleMessage); subErr != nil {
			return fmt.Errorf("subscribing to %s: %w", pattern, subErr)
		}
	}
	log.Info("report subscriptions active", "kinds", registry.Kinds())

	// Command issuing and the timeout sweeper
	publisher := command.NewPublisher(mqttClient)
	commandService := command.NewService(commandRepo, doorRepo, publisher, log)

	sweeper := command.NewSweeper(commandRepo, hub, log)
	go sweeper.Run(ctx)

	// Start the HTTP API
	apiServer, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log,
		Doors:       doorRepo,
		Passcodes:   passcodeRepo,
		Cards:       cardRepo,
		Records:     recordRepo,
		Users:       userRepo,
		Inbox:       inboxRepo,
		Commands:    commandService,
		CommandRepo: commandRepo,
		Publisher:   publisher,
		Dispatcher:  dispatcher,
		Hub:         hub,
		Version:     version,
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
			log.Error("error stopping API server", "error", closeErr)
		}
	}()
	log.Info("API server started",
		"host", cfg.API.Host,
		"port", cfg.API.Port,
		"tls", cfg.API.TLS.Enabled,
	)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. MQTT
	// 4. Database

	log.Info("Doorlink Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses DOORLINK_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("DOORLINK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
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
