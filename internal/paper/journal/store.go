package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"strato/internal/paper"
)

// Store 模拟盘成交流水的 SQLite 持久化。会话本身是易失的，
// 流水单独落盘方便事后复盘。
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// NewStore 打开（必要时创建）流水库并建表。
func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("journal store: 数据库路径不能为空")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS paper_transactions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    tx_time INTEGER NOT NULL,
    tx_type TEXT NOT NULL,
    symbol TEXT NOT NULL,
    quantity REAL NOT NULL,
    price REAL NOT NULL,
    total REAL NOT NULL,
    profit_loss REAL,
    raw_json TEXT
);
CREATE INDEX IF NOT EXISTS idx_paper_tx_session ON paper_transactions(session_id, tx_time);
`)
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append 写入一条成交记录。
func (s *Store) Append(ctx context.Context, sessionID string, tx paper.Transaction) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("journal store 未初始化")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	raw, _ := json.Marshal(tx)
	var pl sql.NullFloat64
	if tx.ProfitLoss != nil {
		pl = sql.NullFloat64{Float64: *tx.ProfitLoss, Valid: true}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO paper_transactions (session_id, tx_time, tx_type, symbol, quantity, price, total, profit_loss, raw_json)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, tx.Time.UnixMilli(), tx.Type, tx.Symbol, tx.Quantity, tx.Price, tx.Total, pl, string(raw))
	return err
}

// ListBySession 按时间顺序取一个会话的全部流水。
func (s *Store) ListBySession(ctx context.Context, sessionID string) ([]paper.Transaction, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("journal store 未初始化")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx, `
SELECT tx_time, tx_type, symbol, quantity, price, total, profit_loss
FROM paper_transactions
WHERE session_id = ?
ORDER BY tx_time ASC, id ASC`, strings.TrimSpace(sessionID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []paper.Transaction
	for rows.Next() {
		var (
			ms int64
			tx paper.Transaction
			pl sql.NullFloat64
		)
		if err := rows.Scan(&ms, &tx.Type, &tx.Symbol, &tx.Quantity, &tx.Price, &tx.Total, &pl); err != nil {
			return nil, err
		}
		tx.Time = time.UnixMilli(ms)
		if pl.Valid {
			v := pl.Float64
			tx.ProfitLoss = &v
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}
