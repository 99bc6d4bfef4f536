package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/davemarrero/learnhub-backend/internal/content"
	"github.com/davemarrero/learnhub-backend/internal/courses"
	"github.com/davemarrero/learnhub-backend/internal/enrollments"
	"github.com/davemarrero/learnhub-backend/internal/notifications"
	"github.com/davemarrero/learnhub-backend/internal/search"
	"github.com/davemarrero/learnhub-backend/internal/transcode"
	"github.com/davemarrero/learnhub-backend/internal/users"
	"github.com/davemarrero/learnhub-backend/pkg/config"
	"github.com/davemarrero/learnhub-backend/pkg/db"
	"github.com/davemarrero/learnhub-backend/pkg/email"
	"github.com/davemarrero/learnhub-backend/pkg/logger"
	"github.com/davemarrero/learnhub-backend/pkg/metrics"
	"github.com/davemarrero/learnhub-backend/pkg/migrate"
	"github.com/davemarrero/learnhub-backend/pkg/pubsub"
	"github.com/davemarrero/learnhub-backend/pkg/queue"
	pkgsearch "github.com/davemarrero/learnhub-backend/pkg/search"
	"github.com/davemarrero/learnhub-backend/pkg/storage/gcs"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "worker",
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

	contentService, err := content.NewService(content.NewRepository(gormDB))
	if err != nil {
		logg.Error(ctx, "failed to create content service", err)
		os.Exit(1)
	}
	courseService, err := courses.NewService(courses.NewRepository(gormDB), queueClient)
	if err != nil {
		logg.Error(ctx, "failed to create course service", err)
		os.Exit(1)
	}
	userService, err := users.NewService(users.NewRepository(gormDB))
	if err != nil {
		logg.Error(ctx, "failed to create user service", err)
		os.Exit(1)
	}
	enrollService, err := enrollments.NewService(enrollments.NewRepository(gormDB))
	if err != nil {
		logg.Error(ctx, "failed to create enrollment service", err)
		os.Exit(1)
	}

	runner, err := transcode.NewExecRunner(cfg.Transcode.FFmpegPath, cfg.Transcode.FFprobePath)
	if err != nil {
		logg.Error(ctx, "failed to locate ffmpeg binaries", err)
		os.Exit(1)
	}

	pipelineMetrics := metrics.NewPipelineMetrics(prometheus.DefaultRegisterer)
	pipeline, err := transcode.NewPipeline(
		runner,
		gcsClient,
		contentService,
		queueClient,
		pubsubClient,
		pipelineMetrics,
		logg,
		cfg.Transcode,
	)
	if err != nil {
		logg.Error(ctx, "failed to create transcode pipeline", err)
		os.Exit(1)
	}

	transcodeHandler, err := transcode.NewTaskHandler(pipeline, logg, cfg.Queue.SoftTimeLimit)
	if err != nil {
		logg.Error(ctx, "failed to create transcode handler", err)
		os.Exit(1)
	}
	searchHandler, err := search.NewTaskHandler(searchClient, contentService, courseService, userService, enrollService, logg)
	if err != nil {
		logg.Error(ctx, "failed to create search handler", err)
		os.Exit(1)
	}
	welcomeHandler, err := notifications.NewWelcomeEmailHandler(userService, emailClient, logg)
	if err != nil {
		logg.Error(ctx, "failed to create welcome email handler", err)
		os.Exit(1)
	}

	server, err := queue.NewServer(queue.ServerOptions{
		RedisConfig:  cfg.Redis,
		QueueConfig:  cfg.Queue,
		Logger:       logg,
		ErrorHandler: transcode.NewErrorHandler(contentService, pubsubClient, pipelineMetrics, logg),
	})
	if err != nil {
		logg.Error(ctx, "failed to create worker server", err)
		os.Exit(1)
	}

	mux := asynq.NewServeMux()
	transcodeHandler.Register(mux)
	searchHandler.Register(mux)
	welcomeHandler.Register(mux)

	startCtx := logg.WithFields(ctx, map[string]any{
		"env":               cfg.App.Env,
		"video_concurrency": cfg.Queue.VideoConcurrency,
	})
	logg.Info(startCtx, "starting worker")

	if err := server.Start(mux); err != nil {
		logg.Error(startCtx, "worker failed to start", err)
		os.Exit(1)
	}

	<-ctx.Done()
	logg.Info(startCtx, "worker shutting down")
	server.Shutdown()
}
