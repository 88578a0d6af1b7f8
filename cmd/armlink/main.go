// Armlink - armband hub
//
// This is the main entry point for the Armlink hub. The hub tracks every
// armband announced by the driver over MQTT, keeps the latest telemetry of
// each one, and sends lock/unlock/vibrate/streaming commands back.
//
// Sessions are stored in SQLite; lifecycle events and hub statistics are
// optionally written to InfluxDB. When enabled, an HTTP API and WebSocket
// stream expose the armbands to authenticated clients.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/armlink/internal/api"
	"github.com/nerrad567/armlink/internal/auth"
	"github.com/nerrad567/armlink/internal/bridges/driver"
	"github.com/nerrad567/armlink/internal/hub"
	"github.com/nerrad567/armlink/internal/infrastructure/config"
	"github.com/nerrad567/armlink/internal/infrastructure/database"
	"github.com/nerrad567/armlink/internal/infrastructure/influxdb"
	"github.com/nerrad567/armlink/internal/infrastructure/logging"
	"github.com/nerrad567/armlink/internal/infrastructure/mqtt"
	"github.com/nerrad567/armlink/internal/session"
	_ "github.com/nerrad567/armlink/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

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
	log.Info("starting Armlink",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := config.Path()
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

	policy, err := hub.ParseUnlockPolicy(cfg.Hub.UnlockOnConnect)
	if err != nil {
		return fmt.Errorf("unlock policy: %w", err)
	}

	// Open database
	db, err := database.Open(database.FromConfig(cfg.Database))
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

	// Sessions left open by an unclean shutdown can never be ended normally.
	sessions := session.NewSQLiteRepository(db.DB)
	stale, err := sessions.CloseStale(ctx, cfg.Hub.ID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("closing stale sessions: %w", err)
	}
	if stale > 0 {
		log.Warn("closed stale sessions", "count", stale)
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
	mqttClient.SetLogger(log.Component("mqtt"))
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

	recorders := hub.MultiRecorder{
		session.NewRecorder(sessions, cfg.Hub.ID, log.Component("session")),
	}

	// Connect to InfluxDB (optional)
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
		recorders = append(recorders, influxdb.NewRecorder(influxClient, cfg.Hub.ID))
	} else {
		log.Info("InfluxDB disabled")
	}

	// The WebSocket hub has to exist before the armband hub so it can take
	// part in the recorder chain.
	var (
		authn *auth.Authenticator
		wsHub *api.WSHub
	)
	if cfg.API.Enabled {
		authn, err = auth.NewAuthenticator(cfg.Security.Clients)
		if err != nil {
			return fmt.Errorf("loading API clients: %w", err)
		}
		if authn.Len() == 0 {
			log.Warn("API enabled with no clients configured")
		}
		wsHub = api.NewWSHub(cfg.WebSocket, log.Component("api"))
		recorders = append(recorders, wsHub)
	}

	bridge, err := driver.New(driver.Options{
		MQTTClient: mqttClient,
		QoS:        byte(cfg.MQTT.QoS),
		Source:     cfg.Hub.ID,
		Logger:     log.Component("bridge"),
	})
	if err != nil {
		return fmt.Errorf("creating driver bridge: %w", err)
	}
	defer func() {
		log.Info("stopping driver bridge")
		if closeErr := bridge.Close(); closeErr != nil {
			log.Error("error stopping driver bridge", "error", closeErr)
		}
	}()

	h, err := hub.New(hub.Options{
		Sensors:      cfg.Hub.Sensors,
		Discovery:    bridge,
		Samples:      bridge,
		Sink:         bridge,
		UnlockPolicy: policy,
		Recorder:     recorders,
		Logger:       log.Component("hub"),
	})
	if err != nil {
		return fmt.Errorf("creating hub: %w", err)
	}
	// Runs before the bridge closes so the release commands still go out.
	defer func() {
		log.Info("shutting down devices")
		h.ShutdownAll()
	}()

	if err := h.Start(); err != nil {
		return fmt.Errorf("starting hub: %w", err)
	}
	log.Info("listening for armbands", "hub_id", cfg.Hub.ID)

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	if cfg.API.Enabled {
		apiServer, apiErr := api.New(api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Security: cfg.Security,
			Logger:   log.Component("api"),
			Hub:      h,
			Auth:     authn,
			Sessions: sessions,
			Bridge:   bridge,
			MQTT:     mqttClient,
			DB:       db,
			WSHub:    wsHub,
			HubID:    cfg.Hub.ID,
			Version:  version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if err := apiServer.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		// Closed before the hub shuts down so no request races ShutdownAll.
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	if interval := cfg.GetStatusInterval(); interval > 0 {
		go statusLoop(ctx, interval, cfg.Hub.ID, h, bridge, mqttClient, influxClient, log)
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 0. API server (if enabled)
	// 1. Hub shutdown (devices released, sessions ended)
	// 2. Driver bridge
	// 3. InfluxDB (if enabled)
	// 4. MQTT
	// 5. Database

	log.Info("Armlink stopped")
	return nil
}

// healthCheck verifies all infrastructure connections are healthy.
// influxClient may be nil if disabled.
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

// StatusReport is published on the system stats topic.
type StatusReport struct {
	HubID     string       `json:"hub_id"`
	Version   string       `json:"version"`
	Timestamp time.Time    `json:"timestamp"`
	Hub       hub.Stats    `json:"hub"`
	Bridge    driver.Stats `json:"bridge"`
}

// statsSource is the part of *driver.Bridge the status loop reads.
type statsSource interface {
	Stats() driver.Stats
}

// jsonPublisher is the part of *mqtt.Client the status loop writes to.
type jsonPublisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// hubStatsWriter is the part of *influxdb.Client the status loop writes to.
type hubStatsWriter interface {
	WriteHubStats(hubID string, connected, unlocked, streaming int)
}

func buildStatusReport(hubID string, h *hub.Hub, bridge statsSource, now time.Time) StatusReport {
	return StatusReport{
		HubID:     hubID,
		Version:   version,
		Timestamp: now,
		Hub:       h.Stats(),
		Bridge:    bridge.Stats(),
	}
}

// publishStatus sends one report. influx may be nil.
func publishStatus(report StatusReport, pub jsonPublisher, influx hubStatsWriter) error {
	if influx != nil {
		influx.WriteHubStats(report.HubID, report.Hub.Connected, report.Hub.Unlocked, report.Hub.Streaming)
	}
	return pub.PublishJSON(mqtt.Topics{}.SystemStats(), report, false)
}

// statusLoop publishes hub statistics every interval until ctx is cancelled.
func statusLoop(ctx context.Context, interval time.Duration, hubID string, h *hub.Hub,
	bridge statsSource, pub jsonPublisher, influxClient *influxdb.Client, log *logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// A nil *influxdb.Client must not become a non-nil interface.
	var influx hubStatsWriter
	if influxClient != nil {
		influx = influxClient
	}

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			report := buildStatusReport(hubID, h, bridge, now.UTC())
			if err := publishStatus(report, pub, influx); err != nil {
				log.Warn("publishing hub status failed", "error", err)
			}
		}
	}
}
