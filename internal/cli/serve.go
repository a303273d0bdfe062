package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/tweet-datasource/internal/config"
	"github.com/Sternrassler/tweet-datasource/pkg/datasource"
	"github.com/Sternrassler/tweet-datasource/pkg/metrics"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// maxRequestBytes bounds the size of an execute request body.
const maxRequestBytes = 1 << 20

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the datasource over HTTP",
	Long: `Serve the datasource over HTTP.

Routes:
  POST /execute    run one JSON request envelope
  GET  /metadata   datasource metadata
  GET  /health     liveness probe
  GET  /metrics    Prometheus metrics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = servePort
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, cleanup := buildService(ctx, cfg)
		defer cleanup()

		e := newServer(svc, cfg.Server)
		return runServer(ctx, e, fmt.Sprintf(":%d", cfg.Server.Port), cfg.Server.ShutdownTimeout)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "listen port (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}

// newServer builds the HTTP surface around svc.
func newServer(svc *datasource.Service, sc config.ServerConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(requestIDMiddleware())
	e.Use(requestLogger())
	e.Use(middleware.Recover())

	h := &handler{svc: svc, timeout: sc.RequestTimeout}
	e.POST("/execute", h.execute)
	e.GET("/metadata", h.metadata)
	e.GET("/health", h.health)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	return e
}

type handler struct {
	svc     *datasource.Service
	timeout time.Duration
}

// execute always answers 200; failures travel inside the envelope.
func (h *handler) execute(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxRequestBytes))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unable to read request body")
	}

	ctx := c.Request().Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	return c.JSONBlob(http.StatusOK, []byte(h.svc.Execute(ctx, string(body))))
}

func (h *handler) metadata(c echo.Context) error {
	return c.JSONBlob(http.StatusOK, []byte(h.svc.Metadata()))
}

func (h *handler) health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// runServer serves until ctx is cancelled, then shuts down gracefully.
func runServer(ctx context.Context, e *echo.Echo, addr string, shutdownTimeout time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("Starting datasource server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("Server exited properly")
	return nil
}
