// Package commandserver exposes the engine's transport, track, and
// project-index state over an Echo-based REST surface, grounded on
// internal/httpcontroller's Server (echo.New, middleware stack, AutoTLS
// via autocert) but scoped to this engine's own resources instead of the
// teacher's dashboard/detections/species pages.
package commandserver

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/resonantfield/tapedeck/internal/conf"
	"github.com/resonantfield/tapedeck/internal/engine"
	"github.com/resonantfield/tapedeck/internal/logging"
	"github.com/resonantfield/tapedeck/internal/recorder"
	"github.com/resonantfield/tapedeck/internal/sessionstore"
)

const shutdownTimeout = 5 * time.Second

// Server is the echo-backed command surface bound to a single running
// Engine, Recorder, and session index.
type Server struct {
	echo     *echo.Echo
	settings *conf.APIConfig
	engine   *engine.Engine
	recorder *recorder.Recorder
	store    *sessionstore.Store
}

// New builds the command surface. store may be nil if no session index is
// configured; recent-projects and session-history endpoints then respond
// 503.
func New(settings *conf.APIConfig, eng *engine.Engine, rec *recorder.Recorder, store *sessionstore.Store) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	log := logging.ForService("commandserver")
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORS())

	s := &Server{echo: e, settings: settings, engine: eng, recorder: rec, store: store}

	if settings.APIKey != "" {
		e.Use(s.apiKeyAuth)
	}

	s.routes()
	_ = log
	return s
}

func (s *Server) apiKeyAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		got := c.Request().Header.Get("Authorization")
		want := "Bearer " + s.settings.APIKey
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid api key")
		}
		return next(c)
	}
}

func (s *Server) routes() {
	s.echo.GET("/healthz", s.handleHealth)

	transport := s.echo.Group("/transport")
	transport.GET("", s.handleTransportState)
	transport.POST("/play", s.handlePlay)
	transport.POST("/pause", s.handlePause)
	transport.POST("/stop", s.handleStop)
	transport.POST("/record", s.handleRecord)
	transport.POST("/seek", s.handleSeek)

	tracks := s.echo.Group("/tracks")
	tracks.POST("", s.handleCreateTrack)
	tracks.DELETE("/:id", s.handleDeleteTrack)
	tracks.POST("/:id/gain", s.handleSetGain)
	tracks.POST("/:id/pan", s.handleSetPan)
	tracks.POST("/:id/mute", s.handleToggleMute)
	tracks.POST("/:id/solo", s.handleToggleSolo)
	tracks.GET("/:id/meter", s.handleTrackMeter)

	recorderGroup := s.echo.Group("/recorder")
	recorderGroup.POST("/arm", s.handleRecorderArm)
	recorderGroup.POST("/finish", s.handleRecorderFinish)

	s.echo.GET("/meter/master", s.handleMasterMeter)
	s.echo.GET("/projects/recent", s.handleRecentProjects)
	s.echo.GET("/sessions", s.handleRecordingSessions)
}

// Start begins serving on the configured listen address. It blocks until
// the context is cancelled or the server errors.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		if err := s.echo.Start(s.settings.Listen); err != nil && err != http.ErrServerClosed {
			errChan <- err
			return
		}
		errChan <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func statusError(c echo.Context, err error) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": fmt.Sprint(err)})
}
