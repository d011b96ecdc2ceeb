// React - workflow automation engine
//
// This is the main entry point for the react engine. It listens for
// action events on MQTT, matches them against the actors of the loaded
// workflows and dispatches the resulting reactions back over MQTT,
// optionally after a delay, a schedule or a state condition.
//
// All engine state lives on a single event loop goroutine. MQTT
// messages, timers and HTTP requests hand their work to that loop.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/gray-logic-react/migrations"

	"github.com/nerrad567/gray-logic-react/internal/api"
	"github.com/nerrad567/gray-logic-react/internal/audit"
	"github.com/nerrad567/gray-logic-react/internal/dispatch"
	"github.com/nerrad567/gray-logic-react/internal/engine"
	"github.com/nerrad567/gray-logic-react/internal/eventloop"
	"github.com/nerrad567/gray-logic-react/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-react/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-react/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-react/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-react/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-react/internal/scheduler"
	"github.com/nerrad567/gray-logic-react/internal/state"
	"github.com/nerrad567/gray-logic-react/internal/trace"
	"github.com/nerrad567/gray-logic-react/internal/workflow"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/config.yaml"

	// shutdownTimeout bounds forced reactions and connection teardown.
	shutdownTimeout = 15 * time.Second

	// pruneInterval is how often expired traces are dropped.
	pruneInterval = 5 * time.Minute
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the engine together and blocks until ctx is cancelled.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting react engine",
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

	// Trace store and audit trail, optionally backed by SQLite
	var repo trace.Repository
	var auditRepo audit.Repository
	if cfg.React.TracePersist {
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
		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database ready", "path", cfg.Database.Path)
		repo = trace.NewSQLiteRepository(db.DB)
		auditRepo = audit.NewSQLiteRepository(db.DB)
	}
	traces := trace.NewStore(cfg.TraceRetention(), repo)
	traces.SetLogger(log.Component("trace"))

	// Event loop and timer. The loop outlives ctx so shutdown can still
	// drive forced reactions through it.
	loop := eventloop.New()
	loop.SetLogger(log.Component("eventloop"))
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	go loop.Run(loopCtx)

	timer := scheduler.New(func(fn func()) {
		if !loop.Post(fn) {
			log.Warn("timer fired after event loop stopped")
		}
	}, log.Component("scheduler"))
	timer.Start()
	defer func() {
		<-timer.Stop().Done()
	}()

	states := state.NewStore()
	states.SetLogger(log.Component("state"))

	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))
	go hub.Run(loopCtx)

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	dispatchers := dispatch.Fanout{dispatch.NewHubDispatcher(hub)}
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
		mqttClient.SetLogger(log.Component("mqtt"))
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
		dispatchers = append(dispatchers, dispatch.NewMQTTDispatcher(mqttClient))
	} else {
		log.Info("MQTT disabled")
	}

	var loopback *dispatch.Loopback
	if cfg.React.Loopback {
		loopback = dispatch.NewLoopback()
		loopback.SetLogger(log.Component("loopback"))
		dispatchers = append(dispatchers, loopback)
	}

	rt := engine.New(engine.Options{
		States:       states,
		Timer:        timer,
		Dispatcher:   dispatchers,
		Traces:       traces,
		Location:     cfg.Location(),
		MaxCallDepth: cfg.React.MaxCallDepth,
		Logger:       log.Component("engine"),
	})
	if loopback != nil {
		loopback.Bind(rt)
	}
	dispatch.NewRelay(hub).Attach(rt)

	// Connect to InfluxDB (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, connErr := influxdb.Connect(ctx, cfg.InfluxDB)
		if connErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connErr)
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
		dispatch.NewTelemetry(influxClient, time.Now).Attach(rt)
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	reload := newReloader(cfg.React.WorkflowsFile, loop, rt, log)
	if _, err := reload(ctx); err != nil {
		return fmt.Errorf("loading workflows: %w", err)
	}

	if mqttClient != nil {
		ingress := dispatch.NewIngress(mqttClient, loop, rt, states, byte(cfg.MQTT.QoS)) //nolint:gosec // qos validated 0-2
		ingress.SetLogger(log.Component("ingress"))
		if err := ingress.Start(); err != nil {
			return fmt.Errorf("starting MQTT ingress: %w", err)
		}
	}

	srv, err := api.New(api.Deps{
		Config:  cfg.API,
		WS:      cfg.WebSocket,
		Logger:  log,
		Runtime: rt,
		Loop:    loop,
		Traces:  traces,
		Reload:  reload,
		Audit:   auditRepo,
		Hub:     hub,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()

	go pruneTraces(ctx, traces, log)
	go reloadOnHangup(ctx, reload, log)

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := loop.Do(shutdownCtx, func() { rt.Shutdown(shutdownCtx) }); err != nil {
		log.Error("engine shutdown incomplete", "error", err)
	}
	stopLoop()
	<-loop.Done()

	log.Info("react engine stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses REACT_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("REACT_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// newReloader returns a function that reads the workflows file and
// swaps the loaded workflows on the event loop. Invalid workflows are
// logged and skipped.
func newReloader(path string, loop *eventloop.Loop, rt *engine.ReactRuntime, log *logging.Logger) api.ReloadFunc {
	return func(ctx context.Context) (*workflow.LoadResult, error) {
		res, err := workflow.LoadFile(path)
		if err != nil {
			return nil, err
		}
		for id, problems := range res.Errors {
			log.Error("workflow skipped", "workflow_id", id, "problems", problems)
		}
		if err := loop.Do(ctx, func() { rt.Load(res.Workflows) }); err != nil {
			return nil, fmt.Errorf("applying workflows: %w", err)
		}
		log.Info("workflows loaded", "path", path, "loaded", len(res.Workflows), "skipped", len(res.Errors))
		return res, nil
	}
}

// pruneTraces drops expired traces until ctx is cancelled.
func pruneTraces(ctx context.Context, traces *trace.Store, log *logging.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := traces.Prune(ctx, now)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error("pruning traces", "error", err)
				continue
			}
			if n > 0 {
				log.Debug("pruned traces", "count", n)
			}
		}
	}
}

// reloadOnHangup reloads the workflows file on SIGHUP.
func reloadOnHangup(ctx context.Context, reload api.ReloadFunc, log *logging.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if _, err := reload(ctx); err != nil {
				log.Error("workflow reload failed", "error", err)
			}
		}
	}
}
