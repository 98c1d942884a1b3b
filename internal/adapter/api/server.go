package api

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/couchcryptid/rain-nowcast-service/internal/domain"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// NewApp creates the Fiber app with centralized error handling and request
// logging. Routes are added with RegisterRoutes.
func NewApp(logger *slog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "rain-nowcast",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          updateTimeout + 5*time.Second,
		ErrorHandler:          errorHandler(logger),
	})
	app.Use(recover.New())
	app.Use(requestLogger(logger))
	return app
}

// StatusFor maps an update failure to an HTTP status code.
func StatusFor(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fiber.StatusGatewayTimeout
	}
	switch domain.ErrorKind(err) {
	case "prerequisite", "internal":
		return fiber.StatusConflict
	case "not_found":
		return fiber.StatusNotFound
	case "timeout":
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusBadGateway
	}
}

func errorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := StatusFor(err)
		if code >= fiber.StatusInternalServerError {
			logger.Warn("request failed", "path", c.Path(), "status", code, "error", err)
		}
		return c.Status(code).JSON(fiber.Map{
			"error":   true,
			"kind":    domain.ErrorKind(err),
			"message": err.Error(),
		})
	}
}

func requestLogger(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		logger.Debug("api request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"duration", time.Since(start),
		)
		return err
	}
}

// Server runs the API app on addr.
type Server struct {
	app    *fiber.App
	addr   string
	logger *slog.Logger
}

// NewServer wraps app for listening on addr.
func NewServer(app *fiber.App, addr string, logger *slog.Logger) *Server {
	return &Server{app: app, addr: addr, logger: logger}
}

// Run serves until ctx is cancelled, then shuts the app down within
// shutdownTimeout.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api server starting", "addr", s.addr)
		errCh <- s.app.Listen(s.addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("api server stopped")
	return nil
}
