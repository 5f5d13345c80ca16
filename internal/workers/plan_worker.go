package workers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/nutricoach/internal/dispatch"
	"github.com/yoockh/nutricoach/internal/services"
)

const (
	DefaultPlanStream = "plan:stream"
	DefaultPlanGroup  = "plan-workers"
)

// PlanWorkerPool consumes plan jobs from a redis stream. Each job is
// attempted once; the user is told about failures and can ask again.
type PlanWorkerPool struct {
	Redis      *redis.Client
	Plans      services.PlanService
	Dispatcher dispatch.Dispatcher
	NumWorkers int
	Timeout    time.Duration

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
}

func (p *PlanWorkerPool) defaults() {
	if p.Stream == "" {
		p.Stream = DefaultPlanStream
	}
	if p.Group == "" {
		p.Group = DefaultPlanGroup
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "c"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 2
	}
	if p.Timeout <= 0 {
		p.Timeout = 2 * time.Minute
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}
}

// Enqueue adds a job for chatID. It makes the pool a services.PlanQueue.
func (p *PlanWorkerPool) Enqueue(ctx context.Context, chatID string) error {
	stream := p.Stream
	if stream == "" {
		stream = DefaultPlanStream
	}
	return p.Redis.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: 10000,
		Approx: true,
		Values: map[string]any{"chat_id": chatID, "queued_at": time.Now().UTC().Format(time.RFC3339)},
	}).Err()
}

func (p *PlanWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Plans == nil || p.Dispatcher == nil {
		return errors.New("PlanWorkerPool missing dependency: Redis/Plans/Dispatcher must be set")
	}
	p.defaults()

	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // ignore BUSYGROUP

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go p.runConsumer(ctx, consumer)
	}
	return nil
}

func (p *PlanWorkerPool) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    1,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				chatID, _ := msg.Values["chat_id"].(string)
				if chatID != "" {
					RunPlanJob(ctx, p.Plans, p.Dispatcher, p.Logger, p.Timeout, chatID)
				}
				_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
			}
		}
	}
}

// RunPlanJob generates the plan for chatID and tells the user how it went.
func RunPlanJob(ctx context.Context, plans services.PlanService, d dispatch.Dispatcher, logger *logrus.Logger, timeout time.Duration, chatID string) {
	log := logger.WithFields(logrus.Fields{"chat_id": chatID, "op": "RunPlanJob"})

	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	plan, err := plans.Generate(jobCtx, chatID)
	if err != nil {
		log.WithError(err).Error("plan generation failed")
		if err := d.Send(ctx, chatID, services.PlanFailed()); err != nil {
			log.WithError(err).Warn("failed to notify user")
		}
		return
	}
	log.WithFields(logrus.Fields{"days": len(plan.Days), "ms": time.Since(start).Milliseconds()}).Info("plan generated")

	if err := d.Send(ctx, chatID, services.PlanReady(plan)); err != nil {
		log.WithError(err).Warn("failed to send plan")
	}
}

// InlineQueue runs jobs in a goroutine of the current process. It replaces
// the stream when redis is not configured.
type InlineQueue struct {
	Plans      services.PlanService
	Dispatcher dispatch.Dispatcher
	Logger     *logrus.Logger
	Timeout    time.Duration
}

func (q *InlineQueue) Enqueue(_ context.Context, chatID string) error {
	timeout := q.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	go RunPlanJob(context.Background(), q.Plans, q.Dispatcher, q.Logger, timeout, chatID)
	return nil
}
