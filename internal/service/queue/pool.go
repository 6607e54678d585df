// Package queue 持久化分析任务的 worker 池：租约领取、心跳续约、过期回收
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	applog "github.com/ashwinyue/report-insight/internal/logger"
	"github.com/ashwinyue/report-insight/internal/metrics"
	"github.com/ashwinyue/report-insight/internal/model"
	"github.com/ashwinyue/report-insight/internal/repository"
	"github.com/ashwinyue/report-insight/internal/service/analysis"
)

// Processor 执行一个已领取的任务
type Processor interface {
	Process(ctx context.Context, job *model.AnalysisJob) error
}

// Options worker 池配置
type Options struct {
	Concurrency       int
	PollInterval      time.Duration
	LeaseDuration     time.Duration
	HeartbeatInterval time.Duration
	InstanceID        string
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.LeaseDuration <= 0 {
		o.LeaseDuration = 5 * time.Minute
	}
	if o.HeartbeatInterval <= 0 || o.HeartbeatInterval >= o.LeaseDuration {
		o.HeartbeatInterval = o.LeaseDuration / 3
	}
	if o.InstanceID == "" {
		o.InstanceID = uuid.New().String()[:8]
	}
	return o
}

// Pool 固定并发的 worker 池
type Pool struct {
	jobs      repository.JobStore
	processor Processor
	opts      Options
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	wake   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewPool 创建 worker 池
func NewPool(jobs repository.JobStore, processor Processor, opts Options, m *metrics.Metrics) *Pool {
	if m == nil {
		m = metrics.Default()
	}
	opts = opts.withDefaults()
	return &Pool{
		jobs:      jobs,
		processor: processor,
		opts:      opts,
		metrics:   m,
		logger:    applog.Component("worker_pool").With().Str("instance", opts.InstanceID).Logger(),
		wake:      make(chan struct{}, 1),
	}
}

// Start 启动 worker；重复调用无效
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.opts.Concurrency; i++ {
		owner := fmt.Sprintf("%s-%d", p.opts.InstanceID, i)
		p.wg.Add(1)
		go p.worker(ctx, owner)
	}
	p.logger.Info().Int("concurrency", p.opts.Concurrency).Msg("worker pool started")
}

// Stop 停止领取新任务，并等待进行中的任务结束
func (p *Pool) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	p.wg.Wait()
	p.logger.Info().Msg("worker pool stopped")
}

// Notify 有新任务入队时唤醒一个空闲 worker
func (p *Pool) Notify() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Pool) worker(ctx context.Context, owner string) {
	defer p.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		processed, err := p.RunOnce(ctx, owner)
		if err != nil && ctx.Err() == nil {
			p.logger.Error().Err(err).Str("owner", owner).Msg("claim failed")
		}
		if processed {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-p.wake:
		case <-time.After(p.opts.PollInterval):
		}
	}
}

// RunOnce 领取并执行一个任务，没有可领取任务时返回 false
func (p *Pool) RunOnce(ctx context.Context, owner string) (bool, error) {
	job, err := p.jobs.Claim(ctx, owner, p.opts.LeaseDuration)
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	p.metrics.JobsClaimed.Inc()
	if job.Reclaimed() {
		p.metrics.JobsReclaimed.Inc()
		p.logger.Warn().Str("job_id", job.ID).Int("attempts", job.Attempts).Msg("reclaimed job after lease expiry")
	}

	p.execute(ctx, owner, job)
	return true, nil
}

// execute 任务一旦开始就运行到终态，关闭池不会中断它
func (p *Pool) execute(ctx context.Context, owner string, job *model.AnalysisJob) {
	runCtx := context.WithoutCancel(ctx)
	logger := p.logger.With().Str("job_id", job.ID).Str("file_id", job.FileID).Str("owner", owner).Logger()

	p.metrics.JobsInFlight.Inc()
	defer p.metrics.JobsInFlight.Dec()

	stopHeartbeat := p.heartbeat(runCtx, logger, job.ID, owner)
	err := p.process(runCtx, job)
	stopHeartbeat()

	status := model.JobDone
	lastErr := ""
	switch {
	case err == nil:
	case errors.Is(err, analysis.ErrNotPending), errors.Is(err, analysis.ErrFileNotFound):
		lastErr = err.Error()
		logger.Info().Err(err).Msg("job skipped")
	default:
		status = model.JobFailed
		lastErr = err.Error()
	}

	if err := p.jobs.Finish(runCtx, job.ID, owner, status, lastErr); err != nil {
		logger.Error().Err(err).Msg("failed to finish job")
		return
	}
	p.metrics.JobsFinished.WithLabelValues(string(status)).Inc()
}

func (p *Pool) process(ctx context.Context, job *model.AnalysisJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processor panic: %v", r)
		}
	}()
	return p.processor.Process(ctx, job)
}

// heartbeat 定期续约，返回停止函数
func (p *Pool) heartbeat(ctx context.Context, logger zerolog.Logger, jobID, owner string) func() {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		ticker := time.NewTicker(p.opts.HeartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				ok, err := p.jobs.Heartbeat(ctx, jobID, owner, p.opts.LeaseDuration)
				if err != nil {
					logger.Warn().Err(err).Msg("heartbeat failed")
					continue
				}
				if !ok {
					logger.Warn().Msg("lease lost")
				}
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
	}
}
