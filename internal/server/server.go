// Package server exposes the document library, playback progress and
// bookmarks over HTTP. It is the server half of the upload flow; the
// player itself stays in the CLI.
//
// Authentication lives in front of this service. Requests name an
// already authenticated principal in the X-User-ID header.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/yamunaarun/narrato-audio-book/internal/library"
	"github.com/yamunaarun/narrato-audio-book/internal/store"
	"github.com/yamunaarun/narrato-audio-book/narrate"
)

const headerUserID = "X-User-ID"

const userContextKey = "user_id"

// Config contains HTTP server settings.
type Config struct {
	Host            string        `yaml:"host" env:"NARRATO_HTTP_HOST" envDefault:"127.0.0.1"`
	Port            int           `yaml:"port" env:"NARRATO_HTTP_PORT" envDefault:"8080"`
	AllowedOrigins  []string      `yaml:"allowed_origins" env:"NARRATO_HTTP_ORIGINS" envSeparator:","`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"NARRATO_HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:            "127.0.0.1",
		Port:            8080,
		AllowedOrigins:  []string{"*"},
		ShutdownTimeout: 10 * time.Second,
	}
}

// Validate checks if the server configuration is valid.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive, got %v", c.ShutdownTimeout)
	}

	return nil
}

// Server is the REST API over the library and playback stores.
type Server struct {
	cfg    Config
	echo   *echo.Echo
	logger *log.Logger

	lib       *library.Library
	progress  *store.Progress
	bookmarks *store.Bookmarks
}

// New wires up an unstarted server. A nil logger discards output.
func New(cfg Config, lib *library.Library, progress *store.Progress, bookmarks *store.Bookmarks, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	s := &Server{
		cfg:       cfg,
		echo:      echo.New(),
		logger:    logger,
		lib:       lib,
		progress:  progress,
		bookmarks: bookmarks,
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Validator = &requestValidator{v: validator.New()}

	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, headerUserID},
	}))
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogMethod:  true,
		LogURI:     true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Warn("request",
					"method", v.Method, "uri", v.URI,
					"status", v.Status, "latency", v.Latency, "err", v.Error)
				return nil
			}
			s.logger.Info("request",
				"method", v.Method, "uri", v.URI,
				"status", v.Status, "latency", v.Latency)
			return nil
		},
	}))

	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/healthz", s.health)

	api := s.echo.Group("/api", s.requireUser)
	api.POST("/documents", s.createDocument)
	api.GET("/documents", s.listDocuments)
	api.GET("/documents/:id", s.getDocument)
	api.DELETE("/documents/:id", s.deleteDocument)
	api.GET("/documents/:id/progress", s.getProgress)
	api.PUT("/documents/:id/progress", s.putProgress)
	api.GET("/documents/:id/bookmarks", s.listBookmarks)
	api.POST("/documents/:id/bookmarks", s.createBookmark)
	api.DELETE("/bookmarks/:id", s.deleteBookmark)
}

// Start begins serving and blocks until the listener fails or
// Shutdown runs. A clean shutdown reads as a nil error.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.logger.Info("http server listening", "addr", addr)

	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// requireUser extracts the principal from the X-User-ID header and
// stashes it on the request context.
func (s *Server) requireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user := strings.TrimSpace(c.Request().Header.Get(headerUserID))
		if user == "" {
			return c.JSON(http.StatusUnauthorized,
				errorBody("missing_user", "X-User-ID header is required"))
		}
		if len(user) > 64 {
			return c.JSON(http.StatusBadRequest,
				errorBody("invalid_user", "X-User-ID must be at most 64 characters"))
		}
		c.Set(userContextKey, user)
		return next(c)
	}
}

func currentUser(c echo.Context) string {
	user, _ := c.Get(userContextKey).(string)
	return user
}

// httpError maps domain errors to an HTTP status with a stable error
// code. Anything unrecognized becomes a 500.
func (s *Server) httpError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, narrate.ErrDocumentNotFound):
		return c.JSON(http.StatusNotFound, errorBody("document_not_found", err.Error()))

	case errors.Is(err, store.ErrBookmarkNotFound):
		return c.JSON(http.StatusNotFound, errorBody("bookmark_not_found", err.Error()))

	case errors.Is(err, narrate.ErrCheckpointMissing):
		return c.JSON(http.StatusNotFound, errorBody("no_progress", err.Error()))

	case errors.Is(err, narrate.ErrUnsupportedFormat):
		return c.JSON(http.StatusUnsupportedMediaType, errorBody("unsupported_format", err.Error()))

	case errors.Is(err, narrate.ErrExtractionFailed):
		return c.JSON(http.StatusUnprocessableEntity, errorBody("extraction_failed", err.Error()))

	default:
		s.logger.Error("request failed", "uri", c.Request().RequestURI, "err", err)
		return c.JSON(http.StatusInternalServerError, errorBody("internal_error", err.Error()))
	}
}

func errorBody(code, message string) map[string]interface{} {
	return map[string]interface{}{
		"error":   code,
		"message": message,
	}
}

// requestValidator adapts go-playground/validator to echo.Validator.
type requestValidator struct {
	v *validator.Validate
}

func (rv *requestValidator) Validate(i interface{}) error {
	return rv.v.Struct(i)
}
