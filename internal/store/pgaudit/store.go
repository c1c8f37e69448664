// Package pgaudit 把 trade_logs 审计记录写入 PostgreSQL。
package pgaudit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"trendpilot/internal/logger"
	"trendpilot/internal/store"
	"trendpilot/internal/store/model"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const schema = `CREATE TABLE IF NOT EXISTS trade_logs (
	id BIGSERIAL PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	symbol TEXT NOT NULL DEFAULT '',
	timeframe TEXT NOT NULL DEFAULT '',
	price DOUBLE PRECISION NOT NULL DEFAULT 0,
	price_change DOUBLE PRECISION NOT NULL DEFAULT 0,
	raw_response_text TEXT NOT NULL DEFAULT '',
	signal TEXT NOT NULL DEFAULT '',
	reason TEXT NOT NULL DEFAULT '',
	stop_loss DOUBLE PRECISION NOT NULL DEFAULT 0,
	take_profit DOUBLE PRECISION NOT NULL DEFAULT 0,
	confidence TEXT NOT NULL DEFAULT '',
	current_position JSONB,
	operation_type TEXT NOT NULL DEFAULT '',
	required_margin DOUBLE PRECISION NOT NULL DEFAULT 0,
	order_status TEXT NOT NULL DEFAULT '',
	updated_position JSONB,
	extra JSONB
);
CREATE INDEX IF NOT EXISTS idx_trade_logs_created_at ON trade_logs (created_at DESC);`

// insertColumns 与 model.TradeLogModel 的 db 标签一致（id 由数据库生成）。
var insertColumns = []string{
	"created_at", "symbol", "timeframe", "price", "price_change", "raw_response_text",
	"signal", "reason", "stop_loss", "take_profit", "confidence", "current_position",
	"operation_type", "required_margin", "order_status", "updated_position", "extra",
}

var insertQuery = buildInsert()

func buildInsert() string {
	named := make([]string, len(insertColumns))
	for i, col := range insertColumns {
		named[i] = ":" + col
	}
	return fmt.Sprintf("INSERT INTO trade_logs (%s) VALUES (%s)",
		strings.Join(insertColumns, ", "), strings.Join(named, ", "))
}

const recentQuery = `SELECT * FROM trade_logs ORDER BY created_at DESC, id DESC LIMIT $1`

// Store 为 PostgreSQL 审计存储。
type Store struct {
	db *sqlx.DB
}

var _ store.AuditStore = (*Store)(nil)

// Open 连接数据库、校验连通性并确保表结构存在。
func Open(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("pgaudit: dsn 不能为空")
	}
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure trade_logs schema: %w", err)
	}
	logger.Infof("PostgreSQL 审计存储已连接")
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record 追加一条审计记录。
func (s *Store) Record(ctx context.Context, rec store.AuditRecord) error {
	m, err := store.ToModel(rec)
	if err != nil {
		return err
	}
	_, err = s.db.NamedExecContext(ctx, insertQuery, m)
	return err
}

// Recent 返回最近 limit 条记录，最新在前。
func (s *Store) Recent(ctx context.Context, limit int) ([]store.AuditRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []model.TradeLogModel
	if err := s.db.SelectContext(ctx, &rows, recentQuery, limit); err != nil {
		return nil, err
	}
	out := make([]store.AuditRecord, 0, len(rows))
	for _, m := range rows {
		rec, err := store.FromModel(m)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
