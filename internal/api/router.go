package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"sosnet/internal/api/handlers/http/incidents"
	"sosnet/internal/api/handlers/http/stream"
	"sosnet/internal/api/handlers/http/system"
	"sosnet/internal/config"
	"sosnet/internal/middleware"
)

type Handlers struct {
	Incidents *incidents.Handler
	Stream    *stream.Handler
	System    *system.Handler
	Metrics   http.Handler
}

type Server struct {
	logger *slog.Logger
	router  *chi.Mux
	streams *stream.Handler
	cfg     config.Config
}

func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger, h Handlers) *Server {
	return &Server{
		logger:  logger,
		router:  InitRouter(ctx, cfg, h, logger),
		streams: h.Stream,
		cfg:     *cfg,
	}
}

func (s *Server) Router() http.Handler { return s.router }

func InitRouter(ctx context.Context, cfg *config.Config, h Handlers, logger *slog.Logger) *chi.Mux {
	r := chi.NewMux()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Logger)

	r.Route("/api/v1", func(api chi.Router) {
		api.With(
			middleware.Limit(ctx, cfg.RateLimit.RPS, cfg.RateLimit.Burst, 10*time.Minute, logger),
			middleware.RequireLocationCapability(cfg.Capability.RequireLocation, logger),
		).Post("/reports", h.Incidents.SubmitReport)

		api.Route("/incidents", func(ir chi.Router) {
			ir.Get("/", h.Incidents.Snapshot)
			ir.Get("/stream", h.Stream.Stream)

			ir.Route("/{id}", func(rr chi.Router) {
				rr.Get("/", h.Incidents.GetIncident)
				rr.Get("/events", h.Incidents.IncidentEvents)
				rr.Patch("/state", h.Incidents.TransitionState)
			})
		})

		api.Get("/reporters/{reporterId}/incidents", h.Incidents.ReporterIncidents)

		api.Get("/health", h.System.SystemHealth)
	})

	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}

	return r
}

// Run serves until ctx is canceled, then shuts down gracefully. Hijacked
// WebSocket connections are closed through the stream handler.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Http.Port,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Http.ReadTimeout,
		WriteTimeout: s.cfg.Http.WriteTimeout,
		IdleTimeout:  30 * time.Second,
	}
	if s.streams != nil {
		srv.RegisterOnShutdown(s.streams.Close)
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("Starting HTTP server",
			slog.String("addr", srv.Addr),
			slog.Duration("read_timeout", s.cfg.Http.ReadTimeout),
			slog.Duration("write_timeout", s.cfg.Http.WriteTimeout),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("ListenAndServe error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down HTTP server", slog.String("reason", ctx.Err().Error()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Http.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Server shutdown failed", slog.Any("error", err))
			return err
		}
		return nil

	case err := <-errChan:
		return err
	}
}
