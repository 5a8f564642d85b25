package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/fleet-support/internal/api/http"
	"github.com/spec-kit/fleet-support/internal/api/http/handlers"
	"github.com/spec-kit/fleet-support/internal/auth"
	"github.com/spec-kit/fleet-support/internal/config"
	"github.com/spec-kit/fleet-support/internal/events"
	"github.com/spec-kit/fleet-support/internal/observability"
	"github.com/spec-kit/fleet-support/internal/service"
	"github.com/spec-kit/fleet-support/internal/worker"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(cfg.App.Addr())
	}()
	logger.Info("http server started",
		zap.String("addr", cfg.App.Addr()),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("env", cfg.App.Env))

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("fiber listen: %w", err)
	}
	return app.ShutdownWithTimeout(shutdownTimeout)
}

// buildApp wires storage, services and routes. cleanup releases storage
// connections and must run after the server has stopped.
func buildApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*fiber.App, func(), error) {
	st, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	agents, err := openAgentDirectory(cfg, st, logger)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	loc, err := cfg.Metrics.Location()
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, logger, cfg.Notification), logger)

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:        st.tickets,
		Agents:            agents,
		Dispatcher:        dispatcher,
		History:           st.history,
		Logger:            logger,
		MetricsWindowDays: cfg.Metrics.DefaultWindowDays,
		MetricsLocation:   loc,
	})

	var authMiddleware *auth.AuthMiddleware
	if cfg.Auth.JWTSecret != "" {
		authMiddleware = auth.NewAuthMiddleware(auth.NewTokenManager(cfg.Auth.JWTSecret, 0), agents)
	} else {
		logger.Warn("AUTH_JWT_SECRET not set; API is unauthenticated")
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, observability.NewMetrics(), cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, st.checks),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Agents:         handlers.NewAgentsHandler(ticketService),
		Metrics:        handlers.NewMetricsHandler(ticketService),
		AuthMiddleware: authMiddleware,
	})
	return app, st.Close, nil
}
