package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/d-khalang/SMM/internal/catalog"
	"github.com/d-khalang/SMM/internal/infrastructure/config"
	"github.com/d-khalang/SMM/internal/infrastructure/logging"
	"github.com/d-khalang/SMM/internal/metrics"
)

// shutdownGrace bounds how long Close waits for in-flight requests.
const shutdownGrace = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Logger   *logging.Logger
	Registry *catalog.Registry
	Metrics  *metrics.Metrics // optional; /metrics answers 404 without it
	Version  string
}

// Server is the catalog's REST front door.
type Server struct {
	cfg      config.APIConfig
	logger   *logging.Logger
	registry *catalog.Registry
	metrics  *metrics.Metrics
	version  string

	server   *http.Server
	listener net.Listener
}

// New checks deps and builds a Server. Nothing listens until Start.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Logger == nil:
		return nil, errors.New("logger is required")
	case deps.Registry == nil:
		return nil, errors.New("catalog registry is required")
	}

	return &Server{
		cfg:      deps.Config,
		logger:   deps.Logger,
		registry: deps.Registry,
		metrics:  deps.Metrics,
		version:  deps.Version,
	}, nil
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// Start binds the configured address and serves in the background. A bind
// failure, such as a port in use, is returned here rather than logged later.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("binding %s: %w", addr, err)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       seconds(s.cfg.Timeouts.Read),
		ReadHeaderTimeout: seconds(s.cfg.Timeouts.Read),
		WriteTimeout:      seconds(s.cfg.Timeouts.Write),
		IdleTimeout:       seconds(s.cfg.Timeouts.Idle),
	}

	tlsOn := s.cfg.TLS.Enabled
	s.logger.Info("API server listening", "address", ln.Addr().String(), "tls", tlsOn)
	go func() {
		var serveErr error
		if tlsOn {
			serveErr = s.server.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			serveErr = s.server.Serve(ln)
		}
		if !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("API server stopped", "error", serveErr)
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start. With port 0 in the
// config this is where the kernel-chosen port shows up.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close drains in-flight requests for up to shutdownGrace.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports whether the server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("api health check: %w", err)
	}
	if s.server == nil {
		return errors.New("api server not started")
	}
	return nil
}
