package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/digihome/digihome-core/internal/account"
	"github.com/digihome/digihome-core/internal/budget"
	"github.com/digihome/digihome-core/internal/device"
	"github.com/digihome/digihome-core/internal/gateway"
	"github.com/digihome/digihome-core/internal/infrastructure/config"
	"github.com/digihome/digihome-core/internal/infrastructure/logging"
	"github.com/digihome/digihome-core/internal/provisioning"
	"github.com/digihome/digihome-core/internal/realtime"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// CommandSender publishes device commands.
type CommandSender interface {
	SendCommand(deviceID string, cmd gateway.Command) error
}

// BudgetChecker runs the budget evaluation for one account.
type BudgetChecker interface {
	CheckAccount(ctx context.Context, accountID string, now time.Time) (budget.Report, error)
}

// HealthChecker is a dependency reported by the health endpoint.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger

	Devices  device.Repository
	Accounts account.Repository
	Claimer  *provisioning.Claimer
	Commands CommandSender
	Router   *realtime.Router
	Budget   BudgetChecker // optional: nil disables /budget/check

	// Health maps a component name to its checker.
	Health  map[string]HealthChecker
	Version string
}

// Server is the HTTP API server.
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	secCfg   config.SecurityConfig
	logger   *logging.Logger
	devices  device.Repository
	accounts account.Repository
	claimer  *provisioning.Claimer
	commands CommandSender
	router   *realtime.Router
	budget   BudgetChecker
	health   map[string]HealthChecker
	version  string
	server   *http.Server
}

// New creates a new API server. The server is not started until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Devices == nil {
		return nil, fmt.Errorf("device repository is required")
	}
	if deps.Router == nil {
		return nil, fmt.Errorf("connection router is required")
	}
	if deps.Security.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	return &Server{
		cfg:      deps.Config,
		wsCfg:    deps.WS,
		secCfg:   deps.Security,
		logger:   deps.Logger,
		devices:  deps.Devices,
		accounts: deps.Accounts,
		claimer:  deps.Claimer,
		commands: deps.Commands,
		router:   deps.Router,
		budget:   deps.Budget,
		health:   deps.Health,
		version:  deps.Version,
	}, nil
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening in a background goroutine. Use Close to stop.
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.Timeouts.ReadTimeout(),
		ReadHeaderTimeout: s.cfg.Timeouts.ReadTimeout(),
		WriteTimeout:      s.cfg.Timeouts.WriteTimeout(),
		IdleTimeout:       s.cfg.Timeouts.IdleTimeout(),
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

// Close gracefully shuts down the API server, waiting up to 10 seconds
// for in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
