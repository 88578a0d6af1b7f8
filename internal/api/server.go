package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/armlink/internal/auth"
	"github.com/nerrad567/armlink/internal/bridges/driver"
	"github.com/nerrad567/armlink/internal/hub"
	"github.com/nerrad567/armlink/internal/infrastructure/config"
	"github.com/nerrad567/armlink/internal/infrastructure/database"
	"github.com/nerrad567/armlink/internal/infrastructure/logging"
	"github.com/nerrad567/armlink/internal/session"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// BridgeStatsProvider reports driver bridge counters. *driver.Bridge implements it.
type BridgeStatsProvider interface {
	Stats() driver.Stats
}

// ConnectionChecker reports broker connectivity. *mqtt.Client implements it.
type ConnectionChecker interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Hub      *hub.Hub
	Auth     *auth.Authenticator

	Sessions session.Repository  // optional: /sessions returns 503 without it
	Bridge   BridgeStatsProvider // optional
	MQTT     ConnectionChecker   // optional
	DB       *database.DB        // optional

	// WSHub is shared with the hub's recorder chain so lifecycle events
	// reach WebSocket clients. A private one is created if nil.
	WSHub *WSHub

	HubID   string
	Version string
}

// Server is the HTTP API server for Armlink.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	hub       *hub.Hub
	auth      *auth.Authenticator
	sessions  session.Repository
	bridge    BridgeStatsProvider
	mqtt      ConnectionChecker
	db        *database.DB
	hubID     string
	version   string
	startTime time.Time

	server  *http.Server
	ws      *WSHub
	tickets *ticketStore
	cancel  context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Hub == nil {
		return nil, fmt.Errorf("hub is required")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("authenticator is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		hub:       deps.Hub,
		auth:      deps.Auth,
		sessions:  deps.Sessions,
		bridge:    deps.Bridge,
		mqtt:      deps.MQTT,
		db:        deps.DB,
		hubID:     deps.HubID,
		version:   deps.Version,
		startTime: time.Now(),
		ws:        deps.WSHub,
		tickets:   newTicketStore(),
	}
	if s.ws == nil {
		s.ws = NewWSHub(deps.WS, deps.Logger)
	}

	return s, nil
}

// WSHub returns the server's WebSocket hub.
func (s *Server) WSHub() *WSHub {
	return s.ws
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, the frame broadcaster and ticket cleanup, then
// launches the HTTP listener in a background goroutine. Listen errors after
// startup are logged.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.ws.Run(srvCtx)
	go s.cleanTicketsLoop(srvCtx)
	if interval := time.Duration(s.wsCfg.FrameInterval) * time.Millisecond; interval > 0 {
		go s.frameLoop(srvCtx, interval)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports whether the server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

// frameLoop broadcasts the armband frame to subscribed clients every interval.
// Ticks with no subscribers skip the snapshot.
func (s *Server) frameLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.ws.HasSubscribers(ChannelFrame) {
				continue
			}
			s.ws.Broadcast(ChannelFrame, s.currentFrame())
		}
	}
}

// FramePayload is one armband frame as sent to clients and returned by
// GET /armbands/frame.
type FramePayload struct {
	Count int       `json:"count"`
	Frame hub.Frame `json:"frame"`
}

func (s *Server) currentFrame() FramePayload {
	n := s.hub.Count()
	return FramePayload{Count: n, Frame: s.hub.Frame(n)}
}
