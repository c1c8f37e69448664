// Package scheduler 按策略周期性地同步执行任务，同一时刻只运行一轮。
package scheduler

import (
	"context"
	"time"

	"trendpilot/internal/logger"
)

type Scheduler struct {
	Policy Policy

	nowFn func() time.Time
	after func(d time.Duration) <-chan time.Time
}

func New(policy Policy) *Scheduler {
	return &Scheduler{Policy: policy, nowFn: time.Now, after: time.After}
}

// Run 阻塞直到 ctx 结束。task 同步执行，上一轮结束前不会开始下一轮。
func (s *Scheduler) Run(ctx context.Context, task func(ctx context.Context)) {
	if s == nil || task == nil {
		return
	}
	if s.Policy == nil {
		logger.Warnf("Scheduler: policy is nil, exit")
		return
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}
	if s.after == nil {
		s.after = time.After
	}
	startAt := s.nowFn().UTC()
	logger.Infof("Scheduler: started policy=%s at=%s", s.Policy, startAt.Format(time.RFC3339))

	var last time.Time
	for {
		now := s.nowFn()
		wait := s.Policy.Wait(now, last)
		if wait > 0 {
			logger.Infof("Scheduler: 下一轮将在 %s 执行 (in %s) | uptime=%s",
				now.Add(wait).UTC().Format(time.RFC3339),
				wait.Truncate(time.Second),
				now.UTC().Sub(startAt).Truncate(time.Second))
			select {
			case <-ctx.Done():
				logger.Infof("Scheduler: ctx done, exit")
				return
			case <-s.after(wait):
			}
		} else if ctx.Err() != nil {
			logger.Infof("Scheduler: ctx done, exit")
			return
		}
		last = s.nowFn()
		task(ctx)
	}
}
