package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"trendpilot/internal/config"
)

const DefaultGrace = 10 * time.Second

// Policy 决定下一轮周期的等待时长。last 为上一轮开始时间，首轮为零值。
type Policy interface {
	Wait(now, last time.Time) time.Duration
	String() string
}

// AlignPolicy 对齐到 Period 整点（UTC）。整点后 Grace 内视为已到点，立即执行。
type AlignPolicy struct {
	Period time.Duration
	Grace  time.Duration
}

func (p AlignPolicy) Wait(now, last time.Time) time.Duration {
	if p.Period <= 0 {
		return 0
	}
	now = now.UTC()
	boundary := now.Truncate(p.Period)
	since := now.Sub(boundary)
	if since < p.Grace && (last.IsZero() || last.UTC().Before(boundary)) {
		return 0
	}
	return boundary.Add(p.Period).Sub(now)
}

func (p AlignPolicy) String() string {
	return fmt.Sprintf("align(period=%s grace=%s)", p.Period, p.Grace)
}

// FixedPolicy 首轮立即执行，之后每轮结束后休眠 Interval。
type FixedPolicy struct {
	Interval time.Duration
}

func (p FixedPolicy) Wait(_, last time.Time) time.Duration {
	if last.IsZero() {
		return 0
	}
	return p.Interval
}

func (p FixedPolicy) String() string {
	return fmt.Sprintf("fixed(interval=%s)", p.Interval)
}

// FromConfig 根据 schedule.mode 构造策略。
func FromConfig(cfg config.ScheduleConfig) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Mode)) {
	case "", "align":
		period, ok := ParsePeriod(cfg.Period)
		if !ok {
			return nil, fmt.Errorf("schedule.period invalid: %q", cfg.Period)
		}
		return AlignPolicy{Period: period, Grace: time.Duration(cfg.GraceSeconds) * time.Second}, nil
	case "fixed":
		if cfg.IntervalSeconds <= 0 {
			return nil, fmt.Errorf("schedule.interval_seconds must be > 0")
		}
		return FixedPolicy{Interval: time.Duration(cfg.IntervalSeconds) * time.Second}, nil
	default:
		return nil, fmt.Errorf("unknown schedule.mode %q", cfg.Mode)
	}
}

// ParsePeriod 解析 "15m" "1h" "4h" "1d" "1w"。
func ParsePeriod(period string) (time.Duration, bool) {
	period = strings.ToLower(strings.TrimSpace(period))
	if len(period) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(period[:len(period)-1])
	if err != nil || n <= 0 {
		return 0, false
	}
	unit := time.Minute
	switch period[len(period)-1] {
	case 'm':
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	default:
		return 0, false
	}
	return time.Duration(n) * unit, true
}
