package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"dialogues/internal/config"
	"dialogues/internal/handler"
	"dialogues/internal/metrics"
	"dialogues/internal/middleware"
	"dialogues/internal/notify"
	"dialogues/internal/service"
	"dialogues/pkg/logger"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP server",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "migrate",
				Usage: "Apply the database schema before starting",
			},
		},
		Action: serve,
	}
}

func serve(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	appLogger := logger.New(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	defer store.Close()

	if c.Bool("migrate") {
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		appLogger.Info("Database schema applied")
	}

	// Метрики процесса и сервиса в отдельном реестре
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.New(registry)

	notifier := notify.New()
	services := service.NewServices(store.repos, cfg, notifier, appMetrics, appLogger)

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.AccessSecret, services.User, appLogger)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(services.RateLimit, appLogger)

	handlers := handler.NewHandlers(services, cfg, appMetrics, store.ping, appLogger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.NewRouter(
		handlers,
		authMiddleware,
		rateLimitMiddleware,
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		cfg,
		appLogger,
	)

	// Отмена baseCtx закрывает открытые потоки, иначе Shutdown ждал бы их до таймаута
	baseCtx, cancelStreams := context.WithCancel(context.Background())
	defer cancelStreams()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return baseCtx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		appLogger.Info("Starting server", "addr", srv.Addr, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info("Shutting down server...")

		cancelStreams()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		appLogger.Error("Server stopped with error", "error", err)
		return err
	}

	appLogger.Info("Server exited")
	return nil
}
