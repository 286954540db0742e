// Package server wires every component together and owns their lifecycle.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/ccdb/ccdb/api"
	"github.com/ccdb/ccdb/bot"
	"github.com/ccdb/ccdb/claude"
	"github.com/ccdb/ccdb/config"
	"github.com/ccdb/ccdb/db"
	"github.com/ccdb/ccdb/discord"
	"github.com/ccdb/ccdb/log"
	"github.com/ccdb/ccdb/scheduler"
)

const (
	sessionSweepDays = 30
	askSweepHours    = 48
)

// Server owns and coordinates all application components
type Server struct {
	cfg *config.Config

	gateway    *discord.Gateway
	supervisor *bot.Supervisor
	scheduler  *scheduler.Scheduler

	router *gin.Engine
	http   *http.Server
}

// New creates a server with all components initialized but not started
func New(cfg *config.Config) (*Server, error) {
	s := &Server{cfg: cfg}

	log.Info().Str("path", cfg.DatabasePath).Msg("opening database")
	if err := db.Open(cfg.DatabasePath); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s.sweepStaleRows()
	s.applySettings()

	gateway, err := discord.NewGateway(cfg.DiscordBotToken)
	if err != nil {
		return nil, err
	}
	s.gateway = gateway

	base := claude.NewRunner(claude.Options{
		Command:        cfg.ClaudeCommand,
		Model:          cfg.ClaudeModel,
		PermissionMode: cfg.ClaudePermissionMode,
		WorkingDir:     cfg.ClaudeWorkingDir,
		TimeoutSeconds: cfg.SessionTimeoutSeconds,
		APIPort:        cfg.APIPort,
		APISecret:      cfg.APISecret,
	})

	s.supervisor = bot.NewSupervisor(cfg, gateway, base)
	s.supervisor.Start()

	notifier := NewNotifier(cfg, gateway)
	s.scheduler = scheduler.New(s.supervisor, notifier)

	s.setupRouter(notifier)

	log.Info().Msg("server initialized")
	return s, nil
}

// sweepStaleRows prunes rows that outlived their usefulness across restarts
func (s *Server) sweepStaleRows() {
	if n, err := db.CleanupOldSessions(sessionSweepDays); err != nil {
		log.Warn().Err(err).Msg("session sweep failed")
	} else if n > 0 {
		log.Info().Int64("deleted", n).Msg("stale sessions swept")
	}
	if n, err := db.CleanupOldPendingAsks(askSweepHours); err != nil {
		log.Warn().Err(err).Msg("pending ask sweep failed")
	} else if n > 0 {
		log.Info().Int64("deleted", n).Msg("stale pending asks swept")
	}
}

// applySettings picks up runtime-tunable knobs from the settings table
func (s *Server) applySettings() {
	if model, err := db.GetSetting("model"); err == nil && model != "" {
		s.cfg.ClaudeModel = model
		log.Info().Str("model", model).Msg("model override from settings")
	}
	if level, err := db.GetSetting("log_level"); err == nil && level != "" {
		log.SetLevel(level)
	}
}

func (s *Server) setupRouter(notifier *Notifier) {
	if !s.cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(log.GinLogger())
	s.router.Use(gzip.Gzip(gzip.DefaultCompression))
	s.router.SetTrustedProxies(nil)

	handlers := api.NewHandlers(notifier, true, s.cfg.DiscordChannelID)
	api.RegisterRoutes(s.router, handlers, s.cfg.APISecret)

	s.http = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.APIHost, s.cfg.APIPort),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          log.StdErrorLogger(),
	}
}

// Run connects the gateway, replays pending resumes, and serves HTTP.
// Blocks until the HTTP listener stops.
func (s *Server) Run(ctx context.Context) error {
	if err := s.gateway.Open(); err != nil {
		return err
	}

	s.supervisor.ResumePending()
	s.scheduler.Start(ctx)

	log.Info().Str("addr", s.http.Addr).Msg("http api listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops everything in dependency order: no new work, then live
// runs marked for resume, then transports.
func (s *Server) Shutdown(ctx context.Context) {
	log.Info().Msg("shutting down")

	s.scheduler.Stop()
	s.supervisor.Shutdown(ctx)

	if err := s.http.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown failed")
	}
	if err := s.gateway.Close(); err != nil {
		log.Warn().Err(err).Msg("gateway close failed")
	}
	if err := db.Close(); err != nil {
		log.Warn().Err(err).Msg("database close failed")
	}

	log.Info().Msg("shutdown complete")
}
