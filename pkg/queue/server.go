package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/davemarrero/learnhub-backend/pkg/config"
	"github.com/davemarrero/learnhub-backend/pkg/logger"
)

// RetryPolicy is the processing contract for video tasks: a fixed
// delay between attempts and a bounded attempt count. Exhaustion is
// surfaced through the server's error handler so the content row can
// be marked failed.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

// DelayFunc returns the fixed backoff regardless of attempt number.
func (p RetryPolicy) DelayFunc(n int, err error, task *asynq.Task) time.Duration {
	return p.Backoff
}

// ServerOptions bundle the knobs for the worker-side server.
type ServerOptions struct {
	RedisConfig  config.RedisConfig
	QueueConfig  config.QueueConfig
	Logger       *logger.Logger
	ErrorHandler asynq.ErrorHandler
}

// NewServer builds the asynq consumer with per-queue weighting so
// video work and maintenance work drain independently.
func NewServer(opts ServerOptions) (*asynq.Server, error) {
	connOpt, err := connOptFromConfig(opts.RedisConfig)
	if err != nil {
		return nil, err
	}

	qcfg := opts.QueueConfig
	policy := RetryPolicy{MaxRetries: qcfg.TranscodeMaxRetries, Backoff: qcfg.RetryBackoff}

	concurrency := qcfg.VideoConcurrency + qcfg.MaintenanceConcurrency
	if concurrency <= 0 {
		concurrency = 10
	}

	serverCfg := asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueVideoProcessing: weightOrDefault(qcfg.VideoConcurrency, 2),
			QueueMaintenance:     weightOrDefault(qcfg.MaintenanceConcurrency, 8),
		},
		RetryDelayFunc: policy.DelayFunc,
		ErrorHandler:   opts.ErrorHandler,
	}

	if opts.Logger != nil {
		serverCfg.Logger = &asynqLogger{logg: opts.Logger}
	}

	return asynq.NewServer(connOpt, serverCfg), nil
}

func weightOrDefault(weight, fallback int) int {
	if weight <= 0 {
		return fallback
	}
	return weight
}

// TranscodeOptions returns the per-enqueue options implementing the
// transcode retry/timeout contract.
func TranscodeOptions(qcfg config.QueueConfig) []asynq.Option {
	return []asynq.Option{
		asynq.Queue(QueueVideoProcessing),
		asynq.MaxRetry(qcfg.TranscodeMaxRetries),
		asynq.Timeout(qcfg.HardTimeLimit),
	}
}

// PreviewOptions returns the options for preview-clip tasks. Previews
// are cheap compared to the full ladder, so they get a shorter leash.
func PreviewOptions() []asynq.Option {
	return []asynq.Option{
		asynq.Queue(QueueVideoProcessing),
		asynq.MaxRetry(2),
		asynq.Timeout(10 * time.Minute),
	}
}

// MaintenanceOptions returns the default options for maintenance tasks.
func MaintenanceOptions() []asynq.Option {
	return []asynq.Option{
		asynq.Queue(QueueMaintenance),
		asynq.MaxRetry(5),
		asynq.Timeout(5 * time.Minute),
	}
}

type asynqLogger struct {
	logg *logger.Logger
}

func sprint(args []interface{}) string {
	return strings.TrimSpace(fmt.Sprintln(args...))
}

func (l *asynqLogger) Debug(args ...interface{}) { l.logg.Debug(context.Background(), sprint(args)) }
func (l *asynqLogger) Info(args ...interface{})  { l.logg.Info(context.Background(), sprint(args)) }
func (l *asynqLogger) Warn(args ...interface{})  { l.logg.Warn(context.Background(), sprint(args)) }
func (l *asynqLogger) Error(args ...interface{}) {
	l.logg.Error(context.Background(), sprint(args), nil)
}
func (l *asynqLogger) Fatal(args ...interface{}) {
	l.logg.Error(context.Background(), sprint(args), nil)
}
