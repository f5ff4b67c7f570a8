// Package api provides the HTTP REST API and WebSocket endpoint for
// Doorlink Core.
//
// It exposes door management, command issue (lock/unlock/sync), passcode
// and IC card provisioning intents, the door audit trail, and the MQTT
// inbox audit surface to user interfaces.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/doorlink-io/doorlink-core/internal/auth"
	"github.com/doorlink-io/doorlink-core/internal/command"
	"github.com/doorlink-io/doorlink-core/internal/door"
	"github.com/doorlink-io/doorlink-core/internal/infrastructure/config"
	"github.com/doorlink-io/doorlink-core/internal/infrastructure/logging"
	"github.com/doorlink-io/doorlink-core/internal/notify"
	"github.com/doorlink-io/doorlink-core/internal/record"
	"github.com/doorlink-io/doorlink-core/internal/reconcile"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger

	Doors     door.Repository
	Passcodes door.PasscodeRepository
	Cards     door.CardRepository
	Records   record.Repository
	Users     auth.UserRepository
	Inbox     reconcile.InboxRepository

	Commands    *command.Service      // nil disables command endpoints
	CommandRepo command.Repository    // ledger reads for the commands listing
	Publisher   *command.Publisher    // nil disables provisioning intents
	Dispatcher  *reconcile.Dispatcher // nil disables inbox reprocessing

	Hub *notify.Hub // If set, the server uses this hub instead of creating its own

	Version string
}

// Server is the HTTP API server for Doorlink Core.
//
// It manages the HTTP listener, routes, middleware, and the WebSocket
// notification hub. The server is created with New() and started with Start().
type Server struct {
	cfg    config.APIConfig
	wsCfg  config.WebSocketConfig
	secCfg config.SecurityConfig
	logger *logging.Logger

	doors       door.Repository
	passcodes   door.PasscodeRepository
	cards       door.CardRepository
	records     record.Repository
	users       auth.UserRepository
	inbox       reconcile.InboxRepository
	commands    *command.Service
	commandRepo command.Repository
	publisher   *command.Publisher
	dispatcher  *reconcile.Dispatcher

	version     string
	server      *http.Server
	hub         *notify.Hub
	externalHub bool               // true if hub was injected externally
	cancel      context.CancelFunc // cancels background goroutines on Close()
	tickets     *ticketStore
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, repositories)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Doors == nil {
		return nil, fmt.Errorf("door repository is required")
	}
	if deps.Users == nil {
		return nil, fmt.Errorf("user repository is required")
	}

	s := &Server{
		cfg:         deps.Config,
		wsCfg:       deps.WS,
		secCfg:      deps.Security,
		logger:      deps.Logger,
		doors:       deps.Doors,
		passcodes:   deps.Passcodes,
		cards:       deps.Cards,
		records:     deps.Records,
		users:       deps.Users,
		inbox:       deps.Inbox,
		commands:    deps.Commands,
		commandRepo: deps.CommandRepo,
		publisher:   deps.Publisher,
		dispatcher:  deps.Dispatcher,
		version:     deps.Version,
		tickets:     newTicketStore(),
	}

	// Use an externally-provided hub when the reconciliation handlers also
	// need it for owner notifications.
	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	}

	return s, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, and launches the HTTP
// listener in a background goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = notify.NewHub(s.wsCfg, s.logger)
		go s.hub.Run(srvCtx)
	}

	// Periodic ticket cleanup to prevent memory leaks.
	go s.cleanTicketsLoop(srvCtx)

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
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
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Cancel background goroutines (hub, ticket cleanup).
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

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
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
