// Package server exposes tracker status and operator controls over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/gardenctl/internal/auth"
	"github.com/danmuck/gardenctl/internal/guide"
	"github.com/danmuck/gardenctl/internal/history"
	"github.com/danmuck/gardenctl/internal/observability"
	"github.com/danmuck/gardenctl/internal/tracker"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const version = "0.1.0"

// Deps are the components the API reads and controls. Tracker is required;
// a nil Guide, History or Ingest disables the matching routes.
type Deps struct {
	Tracker     *tracker.Tracker
	Guide       *guide.Guide
	History     *history.Index
	Ingest      http.Handler
	OpcodeFile  string
	GuideOutput string

	// Token guards the POST routes and /ingest; nil leaves them open.
	Token auth.Validator

	// Clients reports connected host bridges for /health.
	Clients func() int
}

type Server struct {
	Addr    string
	Started time.Time

	deps   Deps
	router *gin.Engine
	http   *http.Server
}

func New(addr string, corsOrigins []string, deps Deps) *Server {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(observability.Component("http")))
	r.Use(observability.RequestMetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		Addr:    addr,
		Started: time.Now(),
		deps:    deps,
		router:  r,
	}
	s.RegisterRoutes()
	return s
}

func (s *Server) HTTPRouter() *gin.Engine { return s.router }

// Serve blocks until ctx is cancelled or the listener fails.
func (s *Server) Serve(ctx context.Context) error {
	s.http = &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("server.Serve listen=%s", s.Addr)
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msgf("server.Serve stopped listen=%s", s.Addr)
	return nil
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
