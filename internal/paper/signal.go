package paper

import "time"

// 信号动作。
const (
	ActionBuy        = "buy"
	ActionSell       = "sell"
	ActionStopLoss   = "stop_loss"
	ActionTakeProfit = "take_profit"
)

// Signal 一次交易意图，尚未作用于任何持仓。
// Price 为 0 表示市价成交，执行时落到行情快照的现价。
type Signal struct {
	Action     string    `json:"action"`
	Symbol     string    `json:"symbol"`
	OrderType  string    `json:"order_type"`
	Price      float64   `json:"price,omitempty"`
	Quantity   float64   `json:"quantity,omitempty"`
	RiskLevel  float64   `json:"risk_level,omitempty"`
	Percentage float64   `json:"percentage,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
