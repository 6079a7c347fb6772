// Package api provides the HTTP REST API and WebSocket server for VoltGrid Core.
//
// It exposes the component registry, lifecycle commands, live telemetry
// streams and operating-bound updates to operator dashboards and external
// energy management systems.
//
// Lifecycle matches the rest of the infrastructure layer:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// All methods are safe for concurrent use.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/voltgrid/voltgrid-core/internal/audit"
	"github.com/voltgrid/voltgrid-core/internal/bounds"
	"github.com/voltgrid/voltgrid-core/internal/component"
	"github.com/voltgrid/voltgrid-core/internal/driver"
	"github.com/voltgrid/voltgrid-core/internal/infrastructure/config"
	"github.com/voltgrid/voltgrid-core/internal/infrastructure/logging"
	"github.com/voltgrid/voltgrid-core/internal/lifecycle"
	"github.com/voltgrid/voltgrid-core/internal/telemetry"
)

// In-flight requests get this long to finish before shutdown closes their
// connections.
const gracefulShutdownTimeout = 10 * time.Second

// Deps collects everything the server needs. Broker, Bounds and Audit are
// optional; their endpoints refuse requests when absent.
type Deps struct {
	Config       config.APIConfig
	WS           config.WebSocketConfig
	Microgrid    config.MicrogridConfig
	Logger       *logging.Logger
	Registry     *component.Registry
	Orchestrator *lifecycle.Orchestrator
	Broker       *telemetry.Broker
	Bounds       *bounds.Handler
	Adapter      driver.Adapter
	Audit        audit.Repository
	Version      string
}

// Server is the HTTP API server for VoltGrid Core.
//
// It manages the HTTP listener, routes, middleware, and the WebSocket
// streaming endpoints. The server is created with New() and started with
// Start().
type Server struct {
	cfg          config.APIConfig
	wsCfg        config.WebSocketConfig
	microgrid    config.MicrogridConfig
	logger       *logging.Logger
	registry     *component.Registry
	orchestrator *lifecycle.Orchestrator
	broker       *telemetry.Broker
	bounds       *bounds.Handler
	adapter      driver.Adapter
	audit        audit.Repository
	version      string
	server       *http.Server
	streamCtx    context.Context    // ends streaming connections on Close()
	cancel       context.CancelFunc // cancels streamCtx
}

// New validates required dependencies and builds the server. Nothing
// listens until Start.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("component registry is required")
	}
	if deps.Orchestrator == nil {
		return nil, fmt.Errorf("lifecycle orchestrator is required")
	}
	if deps.Adapter == nil {
		return nil, fmt.Errorf("driver adapter is required")
	}
	return &Server{
		cfg:          deps.Config,
		wsCfg:        deps.WS,
		microgrid:    deps.Microgrid,
		logger:       deps.Logger,
		registry:     deps.Registry,
		orchestrator: deps.Orchestrator,
		broker:       deps.Broker,
		bounds:       deps.Bounds,
		adapter:      deps.Adapter,
		audit:        deps.Audit,
		version:      deps.Version,
	}, nil
}

// Start builds the router and begins serving in a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop streaming connections
	// independently of the parent context.
	s.streamCtx, s.cancel = context.WithCancel(ctx)

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

// Close ends the streaming connections, then drains the HTTP server.
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
