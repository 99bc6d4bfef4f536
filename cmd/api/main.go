package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/davemarrero/learnhub-backend/api/controllers"
	"github.com/davemarrero/learnhub-backend/api/routes"
	"github.com/davemarrero/learnhub-backend/internal/analytics"
	"github.com/davemarrero/learnhub-backend/internal/auth"
	"github.com/davemarrero/learnhub-backend/internal/content"
	"github.com/davemarrero/learnhub-backend/internal/courses"
	"github.com/davemarrero/learnhub-backend/internal/enrollments"
	"github.com/davemarrero/learnhub-backend/internal/notes"
	"github.com/davemarrero/learnhub-backend/internal/notifications"
	"github.com/davemarrero/learnhub-backend/internal/progress"
	"github.com/davemarrero/learnhub-backend/internal/realtime"
	"github.com/davemarrero/learnhub-backend/internal/search"
	"github.com/davemarrero/learnhub-backend/internal/users"
	"github.com/davemarrero/learnhub-backend/pkg/bigquery"
	"github.com/davemarrero/learnhub-backend/pkg/config"
	"github.com/davemarrero/learnhub-backend/pkg/db"
	"github.com/davemarrero/learnhub-backend/pkg/email"
	"github.com/davemarrero/learnhub-backend/pkg/logger"
	"github.com/davemarrero/learnhub-backend/pkg/metrics"
	"github.com/davemarrero/learnhub-backend/pkg/migrate"
	"github.com/davemarrero/learnhub-backend/pkg/pubsub"
	"github.com/davemarrero/learnhub-backend/pkg/queue"
	"github.com/davemarrero/learnhub-backend/pkg/redis"
	pkgsearch "github.com/davemarrero/learnhub-backend/pkg/search"
	"github.com/davemarrero/learnhub-backend/pkg/storage/gcs"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gcsClient, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap object storage", err)
		os.Exit(1)
	}
	defer gcsClient.Close()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer pubsubClient.Close()

	searchClient, err := pkgsearch.NewClient(ctx, cfg.Elasticsearch, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap elasticsearch", err)
		os.Exit(1)
	}

	bigqueryClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap bigquery", err)
		os.Exit(1)
	}
	defer bigqueryClient.Close()

	emailClient, err := email.NewClient(cfg.Sendgrid, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap email", err)
		os.Exit(1)
	}

	queueClient, err := queue.NewClient(cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap task queue", err)
		os.Exit(1)
	}
	defer queueClient.Close()

	gormDB := dbClient.DB()
	usersRepo := users.NewRepository(gormDB)
	registry := realtime.NewRegistry(logg, metrics.NewRealtimeMetrics(prometheus.DefaultRegisterer))

	authService, err := auth.NewService(usersRepo, queueClient, cfg.JWT, cfg.Password)
	if err != nil {
		logg.Error(ctx, "failed to create auth service", err)
		os.Exit(1)
	}
	userService, err := users.NewService(usersRepo)
	if err != nil {
		logg.Error(ctx, "failed to create user service", err)
		os.Exit(1)
	}
	courseService, err := courses.NewService(courses.NewRepository(gormDB), queueClient)
	if err != nil {
		logg.Error(ctx, "failed to create course service", err)
		os.Exit(1)
	}
	contentService, err := content.NewService(content.NewRepository(gormDB))
	if err != nil {
		logg.Error(ctx, "failed to create content service", err)
		os.Exit(1)
	}
	enrollService, err := enrollments.NewService(enrollments.NewRepository(gormDB))
	if err != nil {
		logg.Error(ctx, "failed to create enrollment service", err)
		os.Exit(1)
	}
	progressService, err := progress.NewService(progress.NewRepository(gormDB), registry)
	if err != nil {
		logg.Error(ctx, "failed to create progress service", err)
		os.Exit(1)
	}
	noteService, err := notes.NewService(notes.NewRepository(gormDB))
	if err != nil {
		logg.Error(ctx, "failed to create note service", err)
		os.Exit(1)
	}
	notificationService, err := notifications.NewService(notifications.NewRepository(gormDB))
	if err != nil {
		logg.Error(ctx, "failed to create notification service", err)
		os.Exit(1)
	}
	searchService, err := search.NewService(searchClient, logg)
	if err != nil {
		logg.Error(ctx, "failed to create search service", err)
		os.Exit(1)
	}

	recorder := analytics.NewRecorder(bigqueryClient, cfg.BigQuery, logg)

	dispatcher, err := notifications.NewDispatcher(
		notificationService,
		courseService,
		userService,
		registry,
		emailClient,
		redisClient,
		pubsubClient.ContentEventsSubscription(),
		logg,
	)
	if err != nil {
		logg.Error(ctx, "failed to create content event dispatcher", err)
		os.Exit(1)
	}
	go func() {
		if err := dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "content event dispatcher stopped unexpectedly", err)
		}
	}()

	readiness := map[string]controllers.Pinger{
		"database":      dbClient,
		"redis":         redisClient,
		"gcs":           gcsClient,
		"pubsub":        pubsubClient,
		"elasticsearch": searchClient,
		"bigquery":      bigqueryClient,
	}

	handler := routes.NewRouter(
		cfg,
		logg,
		readiness,
		redisClient,
		gcsClient,
		queueClient,
		recorder,
		authService,
		userService,
		courseService,
		contentService,
		enrollService,
		progressService,
		noteService,
		notificationService,
		searchService,
		registry,
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	startCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(startCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(startCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	}
}
