package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/davemarrero/learnhub-backend/pkg/config"
	"github.com/davemarrero/learnhub-backend/pkg/logger"
)

// Enqueuer is the producer surface services depend on.
type Enqueuer interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Client wraps the asynq producer used by API-side services.
type Client struct {
	inner *asynq.Client
	logg  *logger.Logger
}

// NewClient builds the task producer from the shared redis settings.
func NewClient(cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opt, err := connOptFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{inner: asynq.NewClient(opt), logg: logg}, nil
}

func connOptFromConfig(cfg config.RedisConfig) (asynq.RedisConnOpt, error) {
	if cfg.URL != "" {
		opt, err := asynq.ParseRedisURI(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		return opt, nil
	}
	if cfg.Address == "" {
		return nil, errors.New("redis url or address is required")
	}
	return asynq.RedisClientOpt{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	}, nil
}

// Enqueue submits the task and logs its queue placement.
func (c *Client) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if c == nil || c.inner == nil {
		return nil, errors.New("queue client not initialized")
	}
	info, err := c.inner.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	if c.logg != nil {
		logCtx := c.logg.WithFields(ctx, map[string]any{
			"task_type": task.Type(),
			"task_id":   info.ID,
			"queue":     info.Queue,
		})
		c.logg.Info(logCtx, "task enqueued")
	}
	return info, nil
}

// Close releases the producer connection.
func (c *Client) Close() error {
	if c == nil || c.inner == nil {
		return nil
	}
	return c.inner.Close()
}
