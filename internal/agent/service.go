package agent

import (
	"context"
	"errors"
	"time"

	"trendpilot/internal/logger"
	"trendpilot/internal/pkg/circuit"
	"trendpilot/internal/scheduler"
)

// Service 在调度策略下循环执行 Session 周期。
type Service struct {
	session *Session
	sched   *scheduler.Scheduler
	breaker *circuit.CircuitBreaker
}

func NewService(session *Session, policy scheduler.Policy) *Service {
	breaker := circuit.NewCircuitBreaker("Cycle."+session.Symbol(), 5, 2*time.Minute)
	breaker.SetStateChangeHandler(func(name string, from, to circuit.State) {
		logger.Warnf("Cycle: breaker %s %s -> %s", name, from, to)
	})
	return &Service{
		session: session,
		sched:   scheduler.New(policy),
		breaker: breaker,
	}
}

func (s *Service) Session() *Session { return s.session }

// Run 先完成交易所初始化（失败直接返回），再进入周期循环直到 ctx 结束。
func (s *Service) Run(ctx context.Context) error {
	if s.session.TestMode() {
		logger.Infof("当前为模拟模式，不会真实下单")
	} else {
		logger.Infof("实盘交易模式，请谨慎操作！")
	}
	logger.Infof("交易对: %s 周期: %s", s.session.Symbol(), s.session.Timeframe())

	if err := s.session.Setup(ctx); err != nil {
		return err
	}
	s.session.Restore(ctx)

	s.sched.Run(ctx, s.tick)
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// tick 只在周期之间响应 ctx；已开始的周期即使收到退出信号也会跑完。
func (s *Service) tick(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	if !s.breaker.Allow() {
		logger.Warnf("Cycle: circuit breaker open, skip tick symbol=%s retry_in=%s", s.session.Symbol(), s.breaker.RetryIn().Round(time.Second))
		return
	}
	if _, err := s.session.RunCycle(ctx); err != nil {
		s.breaker.RecordFailure()
		return
	}
	s.breaker.RecordSuccess()
}
