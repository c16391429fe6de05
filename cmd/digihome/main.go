// DigiHome Core - device orchestration for DigiPlug smart plugs.
//
// The core bridges plugs on the MQTT broker with the mobile app: it tracks
// devices awaiting a claim, forwards live telemetry to the owner's
// WebSocket, stores five-minute power summaries, runs minute schedules,
// cuts power on overcurrent alerts, and warns accounts nearing their
// monthly electricity budget.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/digihome/digihome-core/internal/account"
	"github.com/digihome/digihome-core/internal/api"
	"github.com/digihome/digihome-core/internal/budget"
	"github.com/digihome/digihome-core/internal/device"
	"github.com/digihome/digihome-core/internal/gateway"
	"github.com/digihome/digihome-core/internal/infrastructure/config"
	"github.com/digihome/digihome-core/internal/infrastructure/database"
	"github.com/digihome/digihome-core/internal/infrastructure/influxdb"
	"github.com/digihome/digihome-core/internal/infrastructure/logging"
	"github.com/digihome/digihome-core/internal/infrastructure/mqtt"
	"github.com/digihome/digihome-core/internal/notify"
	"github.com/digihome/digihome-core/internal/provisioning"
	"github.com/digihome/digihome-core/internal/realtime"
	"github.com/digihome/digihome-core/internal/safety"
	"github.com/digihome/digihome-core/internal/schedule"
	"github.com/digihome/digihome-core/internal/telemetry"
	"github.com/digihome/digihome-core/migrations"
)

// Version information, set at build time via ldflags:
// go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until ctx is cancelled or a
// background loop fails.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting DigiHome Core",
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
	defer log.Close() //nolint:errcheck // Best-effort flush of the log file on exit

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

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	devices := device.NewSQLiteRepository(db.DB)
	accounts := account.NewSQLiteRepository(db.DB)
	schedules := schedule.NewSQLiteRepository(db.DB)
	powerLogs := telemetry.NewSQLiteRepository(db.DB)
	history := notify.NewSQLiteRepository(db.DB)

	router := realtime.NewRouter()
	router.SetLogger(log.Component("realtime"))

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
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
	mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	health := map[string]api.HealthChecker{
		"database": db,
		"mqtt":     mqttClient,
	}

	var sink telemetry.SummarySink
	influxClient, err := influxdb.Connect(ctx, cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB mirror disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		sink = influxClient
		health["influxdb"] = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	var pusher notify.Pusher
	if cfg.Push.Enabled {
		fcm, fcmErr := notify.NewFCMPusher(ctx, cfg.Push)
		if fcmErr != nil {
			return fmt.Errorf("configuring push delivery: %w", fcmErr)
		}
		pusher = fcm
	} else {
		log.Warn("push delivery disabled, notifications are stored only")
	}
	notifier := notify.NewService(accounts, pusher, history, log.Component("notify"))

	tracker := provisioning.NewTracker(cfg.Provisioning.ClaimTimeout, log.Component("provisioning"))
	claimer := provisioning.NewClaimer(tracker, devices, log.Component("provisioning"))

	pipeline := telemetry.New(telemetry.Config{
		FlushInterval: cfg.Telemetry.FlushInterval,
		IngestRate:    cfg.Telemetry.IngestRate,
		IngestBurst:   cfg.Telemetry.IngestBurst,
	}, telemetry.Deps{
		Devices: devices,
		Router:  router,
		Repo:    powerLogs,
		Sink:    sink,
		Logger:  log.Component("telemetry"),
	})

	gw := gateway.New(gateway.Config{
		Workers:   cfg.Telemetry.DispatchWorkers,
		QueueSize: cfg.Telemetry.QueueSize,
		QoS:       mqttClient.QoS(),
	}, mqttClient, mqttClient.Topics(), gateway.Handlers{
		Claims:    tracker,
		Telemetry: pipeline,
		Status:    devices,
	}, log.Component("gateway"))

	gw.SetAlertHandler(safety.NewHandler(devices, gw, notifier, log.Component("safety")))

	engine := schedule.NewEngine(schedules, devices, gw, router, cfg.Location(), log.Component("schedule"))

	monitor := budget.NewMonitor(budget.Config{
		RunAt:     cfg.Budget.RunAt,
		WarnRatio: cfg.Budget.WarnRatio,
		Tariffs:   cfg.Budget.Tariffs,
		Location:  cfg.Location(),
	}, accounts, devices, powerLogs, notifier, log.Component("budget"))

	if subErr := mqttClient.Subscribe(mqttClient.Topics().All(), mqttClient.QoS(), gw.HandleMessage); subErr != nil {
		return fmt.Errorf("subscribing to device topics: %w", subErr)
	}

	apiDeps := api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		Logger:   log.Component("api"),
		Devices:  devices,
		Accounts: accounts,
		Claimer:  claimer,
		Commands: gw,
		Router:   router,
		Health:   health,
		Version:  version,
	}
	if cfg.Budget.Enabled {
		apiDeps.Budget = monitor
	}
	server, err := api.New(apiDeps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return gw.Run(gctx) })
	g.Go(func() error { return pipeline.Run(gctx) })
	g.Go(func() error { return engine.Run(gctx) })
	if cfg.Budget.Enabled {
		g.Go(func() error { return monitor.Run(gctx) })
	} else {
		log.Info("budget monitor disabled")
	}

	log.Info("DigiHome Core started")
	if err := g.Wait(); err != nil {
		return fmt.Errorf("background loop failed: %w", err)
	}
	log.Info("shutdown signal received, stopping")
	return nil
}

// getConfigPath returns DIGIHOME_CONFIG, falling back to the default path.
func getConfigPath() string {
	if path := os.Getenv("DIGIHOME_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
