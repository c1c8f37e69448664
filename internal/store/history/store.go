// Package history 持久化信号历史，进程重启后恢复最近的决策记忆。
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"trendpilot/internal/decision"

	_ "modernc.org/sqlite"
)

// SignalStore 以 SQLite 保存每个交易对的信号序列。
type SignalStore struct {
	mu sync.Mutex
	db *sql.DB
}

// Open 打开（必要时创建）信号历史库。
func Open(path string) (*SignalStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("signal history path 不能为空")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SignalStore{db: db}, nil
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS signal_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			ts INTEGER NOT NULL,
			action TEXT NOT NULL,
			reason TEXT,
			stop_loss REAL NOT NULL DEFAULT 0,
			take_profit REAL NOT NULL DEFAULT 0,
			confidence TEXT NOT NULL,
			is_fallback INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_signal_history_symbol_id ON signal_history(symbol, id DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("init signal history schema: %w", err)
		}
	}
	return nil
}

// Append 追加一条信号。
func (s *SignalStore) Append(ctx context.Context, symbol string, sig decision.Signal) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO signal_history(symbol, ts, action, reason, stop_loss, take_profit, confidence, is_fallback, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		normalizeSymbol(symbol), sig.Timestamp, string(sig.Action), sig.Reason,
		sig.StopLoss, sig.TakeProfit, string(sig.Confidence), boolToInt(sig.IsFallback), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("append signal: %w", err)
	}
	return nil
}

// Load 返回最近 limit 条信号，按写入顺序升序排列。
func (s *SignalStore) Load(ctx context.Context, symbol string, limit int) ([]decision.Signal, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = decision.DefaultHistorySize
	}
	rows, err := db.QueryContext(ctx,
		`SELECT ts, action, reason, stop_loss, take_profit, confidence, is_fallback
		 FROM signal_history WHERE symbol = ? ORDER BY id DESC LIMIT ?`,
		normalizeSymbol(symbol), limit)
	if err != nil {
		return nil, fmt.Errorf("load signals: %w", err)
	}
	defer rows.Close()

	var out []decision.Signal
	for rows.Next() {
		var (
			sig        decision.Signal
			action     string
			confidence string
			reason     sql.NullString
			fallback   int
		)
		if err := rows.Scan(&sig.Timestamp, &action, &reason, &sig.StopLoss, &sig.TakeProfit, &confidence, &fallback); err != nil {
			return nil, err
		}
		sig.Action = decision.Action(action)
		sig.Confidence = decision.Confidence(confidence)
		sig.Reason = reason.String
		sig.IsFallback = fallback != 0
		out = append(out, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Close 关闭底层 DB。
func (s *SignalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SignalStore) conn() (*sql.DB, error) {
	if s == nil {
		return nil, fmt.Errorf("signal history store 未初始化")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, fmt.Errorf("signal history store 已关闭")
	}
	return s.db, nil
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
