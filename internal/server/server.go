// Package server wires the HTTP surface (§6.1) onto the orchestrator
// (C11): chi routing, CORS, OIDC bearer-token authentication, graceful
// shutdown and systemd socket activation, grounded on the teacher's
// net/http server loop (app's original internal/server/server.go).
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/goodtune/yacgo/internal/auth"
	"github.com/goodtune/yacgo/internal/config"
	"github.com/goodtune/yacgo/internal/metrics"
	"github.com/goodtune/yacgo/internal/orchestrator"
	"github.com/goodtune/yacgo/internal/plugin"
	"github.com/goodtune/yacgo/internal/repo"
	"github.com/goodtune/yacgo/internal/schema"
	"github.com/goodtune/yacgo/internal/specs"
	"github.com/goodtune/yacgo/internal/tmpl"
	"github.com/goodtune/yacgo/internal/validator"

	"net/http"
)

// Server is the yacgo configuration service.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
}

// New creates a new Server.
func New(cfg *config.Config, logger *slog.Logger) *Server {
	return &Server{cfg: cfg, logger: logger}
}

// Run starts the server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	backend := repo.NewGitBackend(repo.GitOptions{
		URL:               s.cfg.Repo.URL,
		Branch:            s.cfg.Repo.Branch,
		SSHKeyFile:        s.cfg.Repo.SSHKeyFile,
		SSHKnownHostsFile: s.cfg.Repo.SSHKnownHostsFile,
		WorkDir:           s.cfg.Repo.WorkDir,
		DirtyMaxAge:       s.cfg.DirtyMaxAge(),
		Logger:            s.logger,
	})

	// An on-disk spec (not "."-prefixed) is read once at startup and
	// memoized for the life of the process (§9 open question).
	var rawSpec []byte
	if !specs.IsRepoPath(s.cfg.Spec.Path) {
		b, err := os.ReadFile(s.cfg.Spec.Path)
		if err != nil {
			return fmt.Errorf("reading spec file %s: %w", s.cfg.Spec.Path, err)
		}
		rawSpec = b
	}

	engine := tmpl.New(tmpl.BuiltinFunctions(), false)
	reg := plugin.NewRegistry()
	schema.RegisterBuiltins(reg, engine)
	validator.RegisterBuiltins(reg)

	orch := &orchestrator.Orchestrator{
		Backend:  backend,
		SpecPath: s.cfg.Spec.Path,
		RawSpec:  rawSpec,
		Env:      s.cfg.Env,
		Engine:   engine,
		Registry: reg,
		Logger:   s.logger,
	}

	verifier, err := auth.NewVerifier(ctx, s.cfg)
	if err != nil {
		return fmt.Errorf("initializing OIDC verifier: %w", err)
	}

	api := NewAPI(s.cfg, orch, verifier, s.logger)

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORS.Origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))
	r.Use(metrics.Middleware)

	api.RegisterRoutes(r)

	ln, err := s.createListener()
	if err != nil {
		return fmt.Errorf("creating listener: %w", err)
	}

	httpServer := &http.Server{Handler: r}

	if s.cfg.Metrics.Enabled {
		go metrics.Serve(s.cfg.Metrics.Listen, s.logger)
	}

	shutdownCtx, cancel := signal.NotifyContext(ctx, shutdownSignals()...)
	defer cancel()

	go func() {
		<-shutdownCtx.Done()
		s.logger.Info("server_shutdown", "msg", "shutting down")
		httpServer.Shutdown(context.Background())
	}()

	setupPlatformSignals(s.logger)

	s.logger.Info("server_ready", "listen", s.cfg.Server.Listen, "msg", "ready to accept connections")

	notifySystemd("READY=1")

	if err := httpServer.Serve(ln); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	notifySystemd("STOPPING=1")
	return nil
}

func (s *Server) createListener() (net.Listener, error) {
	addr := s.cfg.Server.Listen

	if s.cfg.Server.SystemdSocketActivation {
		if fds := os.Getenv("LISTEN_FDS"); fds == "1" {
			f := os.NewFile(3, "systemd-socket")
			return net.FileListener(f)
		}
		s.logger.Warn("systemd socket activation configured but LISTEN_FDS not set, falling back to configured address")
	}

	if strings.HasPrefix(addr, "unix://") {
		sockPath := strings.TrimPrefix(addr, "unix://")
		os.Remove(sockPath)
		return net.Listen("unix", sockPath)
	}

	return net.Listen("tcp", addr)
}

func notifySystemd(state string) {
	socketPath := os.Getenv("NOTIFY_SOCKET")
	if socketPath == "" {
		return
	}
	conn, err := net.Dial("unixgram", socketPath)
	if err != nil {
		return
	}
	defer conn.Close()
	conn.Write([]byte(state))
}
