package paper

import (
	"time"

	"strato/internal/strategy"
)

// Status 会话状态，active → stopped 单向且终态。
type Status string

const (
	StatusActive  Status = "active"
	StatusStopped Status = "stopped"
)

// Settings 会话级别的交易参数。
type Settings struct {
	Symbols      []string `json:"symbols"`
	TimePeriod   string   `json:"time_period"`
	RiskPerTrade float64  `json:"risk_per_trade"`
}

// Position 单 symbol 的持仓，quantity 归零即整体移除。
type Position struct {
	Symbol       string    `json:"symbol"`
	Quantity     float64   `json:"quantity"`
	AverageCost  float64   `json:"average_cost"`
	CurrentPrice float64   `json:"current_price"`
	OpenTime     time.Time `json:"open_time"`
	LastUpdated  time.Time `json:"last_updated"`
}

// Transaction 不可变成交记录。ProfitLoss 只在卖出时出现。
type Transaction struct {
	Time       time.Time `json:"time"`
	Type       string    `json:"type"`
	Symbol     string    `json:"symbol"`
	Quantity   float64   `json:"quantity"`
	Price      float64   `json:"price"`
	Total      float64   `json:"total"`
	ProfitLoss *float64  `json:"profit_loss,omitempty"`
}

// Metrics 每轮更新后重算的绩效指标。TotalTrades 只数卖出（完成的回合）。
type Metrics struct {
	PortfolioValue float64 `json:"portfolio_value"`
	TotalPnL       float64 `json:"total_pnl"`
	PercentReturn  float64 `json:"percent_return"`
	TotalTrades    int     `json:"total_trades"`
	WinningTrades  int     `json:"winning_trades"`
	WinRate        float64 `json:"win_rate"`
}

// SessionError 被跳过的信号或失败的求值，带时间戳记入会话。
type SessionError struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// Session 模拟盘会话聚合根。Strategy 是创建时的快照，
// 之后对策略的编辑不影响已运行的会话。
type Session struct {
	ID             string               `json:"id"`
	UserID         string               `json:"user_id"`
	Strategy       *strategy.Strategy   `json:"strategy"`
	Status         Status               `json:"status"`
	StartTime      time.Time            `json:"start_time"`
	EndTime        *time.Time           `json:"end_time,omitempty"`
	InitialCapital float64              `json:"initial_capital"`
	CurrentCapital float64              `json:"current_capital"`
	CashBalance    float64              `json:"cash_balance"`
	Positions      map[string]*Position `json:"positions"`
	Transactions   []Transaction        `json:"transactions"`
	Metrics        Metrics              `json:"metrics"`
	Settings       Settings             `json:"settings"`
	Errors         []SessionError       `json:"errors"`
	LastUpdated    time.Time            `json:"last_updated"`
}

// RecordError 追加一条带时间戳的会话错误。
func (s *Session) RecordError(err error) {
	if s == nil || err == nil {
		return
	}
	s.Errors = append(s.Errors, SessionError{Time: time.Now(), Message: err.Error()})
}

// Stopped reports whether trading is over for this session.
func (s *Session) Stopped() bool {
	return s != nil && s.Status == StatusStopped
}
