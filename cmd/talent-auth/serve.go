package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/goliatone/go-print"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	auth "github.com/talentoenlinea/talent-auth"
	"github.com/talentoenlinea/talent-auth/activitymap"
	"github.com/talentoenlinea/talent-auth/config"
	"github.com/talentoenlinea/talent-auth/middleware/jwtware"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Serve the reset code issue and verify endpoints, the email change
endpoint and the prometheus metrics.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	logger := setupLogger(cfg, nil)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, repo, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	app, err := newServer(cfg, repo, auth.NewSlogLogger(logger))
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", cfg.HTTP.Addr)
		return app.Listen(cfg.HTTP.Addr)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	return g.Wait()
}

func newServer(cfg config.Config, repo auth.RepositoryManager, logger auth.Logger) (*fiber.App, error) {
	reg := prometheus.NewRegistry()
	auth.RegisterMetrics(reg)

	activity := auth.ActivitySinkFunc(func(_ context.Context, event auth.ActivityEvent) error {
		logger.Info("activity: %s", print.MaybePrettyJSON(activitymap.Normalize(event)))
		return nil
	})

	issue := auth.NewIssueResetCodeHandler(repo.Subjects(), repo.ResetCodes(), auth.NewLogMailer(logger)).
		WithTTL(cfg.Reset.CodeTTL).
		WithActivitySink(activity).
		WithLogger(logger)

	verify := auth.NewVerifyResetCodeHandler(repo.Subjects(), repo.ResetCodes()).
		WithMinPasswordLength(cfg.Reset.MinPassword).
		WithActivitySink(activity).
		WithLogger(logger)

	changeEmail := auth.NewChangeEmailHandler(repo.Subjects()).
		WithActivitySink(activity).
		WithLogger(logger)

	tokens := auth.NewTokenService(cfg.Token.SigningKey,
		auth.WithTokenIssuer(cfg.Token.Issuer),
		auth.WithTokenTTL(cfg.Token.TTL),
	)

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		AppName:               "talent-auth",
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	auth.RegisterResetRoutes(app, issue, verify,
		auth.WithControllerLogger(logger),
		auth.WithControllerDebug(cfg.Log.Debug),
		auth.WithIssueRateLimit(cfg.HTTP.IssueRateLimit),
		auth.WithChangeEmail(changeEmail, jwtware.New(jwtware.Config{Tokens: tokens})),
	)

	return app, nil
}
