package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jtarchie/scrub/server"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	Matcher `embed:""`

	Port              int    `default:"8080"                        env:"SCRUB_PORT"                         help:"Port to run the server on"`
	BasicAuthUsername string `env:"SCRUB_BASIC_AUTH_USERNAME"       help:"Username for basic auth on /api"`
	BasicAuthPassword string `env:"SCRUB_BASIC_AUTH_PASSWORD"       help:"Password for basic auth on /api"`
	BodyLimit         string `default:"4M"                         help:"Maximum request body size (e.g., '4M')"`
}

func (c *Server) Run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return c.Execute(ctx, logger)
}

// Execute serves the API until ctx is cancelled.
func (c *Server) Execute(ctx context.Context, logger *slog.Logger) error {
	logger = logger.WithGroup("server")

	redactor, err := c.Redactor(ctx, logger)
	if err != nil {
		return err
	}

	router, err := server.NewRouter(logger, redactor, server.RouterOptions{
		BasicAuthUsername: c.BasicAuthUsername,
		BasicAuthPassword: c.BasicAuthPassword,
		BodyLimit:         c.BodyLimit,
	})
	if err != nil {
		return fmt.Errorf("could not create router: %w", err)
	}

	errs := make(chan error, 1)

	go func() {
		logger.Info("server.starting", "port", c.Port)
		errs <- router.Start(fmt.Sprintf(":%d", c.Port))
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("could not start server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err = router.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("could not shutdown server: %w", err)
	}

	logger.Info("server.stopped")

	return nil
}
