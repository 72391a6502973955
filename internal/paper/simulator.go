package paper

import (
	"context"
	"math"
	"strings"
	"time"

	"strato/internal/logger"
	"strato/internal/market"
	"strato/internal/pkg/trading"
)

// Journal 成交流水的持久化出口。Append 失败只记日志，不影响会话状态。
type Journal interface {
	Append(ctx context.Context, sessionID string, tx Transaction) error
}

// Simulator 把信号作用到会话的现金与持仓上。所有方法都假定调用方
// 已经对单个会话做了串行化（manager 持有每会话锁）。
type Simulator struct {
	journal Journal
}

func NewSimulator(journal Journal) *Simulator {
	return &Simulator{journal: journal}
}

// Cycle 一轮完整更新：执行信号、按市价刷新持仓、重算指标。三步固定顺序。
func (sim *Simulator) Cycle(ctx context.Context, session *Session, signals []Signal, md map[string]market.Snapshot) {
	if session == nil {
		return
	}
	sim.ApplySignals(ctx, session, signals, md)
	sim.markToMarket(session, md)
	sim.RecomputeMetrics(session)
	session.LastUpdated = time.Now()
}

// ApplySignals 逐个执行信号。单个信号失败记入 session.Errors 并跳过，
// 同一轮剩余信号照常执行。
func (sim *Simulator) ApplySignals(ctx context.Context, session *Session, signals []Signal, md map[string]market.Snapshot) {
	for _, sig := range signals {
		if err := sim.apply(ctx, session, sig, md); err != nil {
			session.RecordError(err)
		}
	}
}

func (sim *Simulator) apply(ctx context.Context, session *Session, sig Signal, md map[string]market.Snapshot) error {
	symbol := strings.ToUpper(strings.TrimSpace(sig.Symbol))
	price := sig.Price
	if price <= 0 {
		if snap, ok := md[symbol]; ok {
			price = snap.Price
		}
	}
	if price <= 0 {
		return &InvalidPriceError{Symbol: symbol, Price: price}
	}
	switch sig.Action {
	case ActionBuy:
		return sim.buy(ctx, session, symbol, sig, price)
	case ActionSell:
		return sim.sell(ctx, session, symbol, sig, price)
	case ActionStopLoss, ActionTakeProfit:
		// Descriptive signals: they record intent but move no cash.
		logger.Debugf("[paper] session %s noted %s for %s at %.4f", session.ID, sig.Action, symbol, price)
		return nil
	default:
		return &UnknownActionError{Subtype: sig.Action}
	}
}

func (sim *Simulator) buy(ctx context.Context, session *Session, symbol string, sig Signal, price float64) error {
	qty := sig.Quantity
	if qty <= 0 {
		risk := sig.RiskLevel
		if risk <= 0 {
			risk = session.Settings.RiskPerTrade
		}
		qty = trading.ResolveQuantity(session.CashBalance, risk, price)
	}
	if qty <= 0 {
		return &InsufficientFundsError{Symbol: symbol, Cost: price, Cash: session.CashBalance}
	}
	cost := trading.Cost(qty, price)
	if cost > session.CashBalance {
		return &InsufficientFundsError{Symbol: symbol, Cost: cost, Cash: session.CashBalance}
	}
	now := time.Now()
	if session.Positions == nil {
		session.Positions = make(map[string]*Position)
	}
	pos, ok := session.Positions[symbol]
	if ok {
		pos.AverageCost = trading.WeightedAverageCost(pos.Quantity, pos.AverageCost, qty, price)
		pos.Quantity += qty
		pos.CurrentPrice = price
		pos.LastUpdated = now
	} else {
		session.Positions[symbol] = &Position{
			Symbol:       symbol,
			Quantity:     qty,
			AverageCost:  price,
			CurrentPrice: price,
			OpenTime:     now,
			LastUpdated:  now,
		}
	}
	session.CashBalance -= cost
	sim.record(ctx, session, Transaction{
		Time:     now,
		Type:     ActionBuy,
		Symbol:   symbol,
		Quantity: qty,
		Price:    price,
		Total:    cost,
	})
	return nil
}

func (sim *Simulator) sell(ctx context.Context, session *Session, symbol string, sig Signal, price float64) error {
	pos, ok := session.Positions[symbol]
	if !ok {
		return &PositionNotFoundError{Symbol: symbol}
	}
	qty := sig.Quantity
	if qty <= 0 {
		if sig.Percentage > 0 {
			qty = math.Floor(pos.Quantity * sig.Percentage)
			if qty <= 0 {
				// 比例切不出一股整数，这轮不卖。清仓必须显式给 quantity
				// 或 percentage >= 1。
				logger.Debugf("[paper] session %s sell %s: %.2f%% of %.4f shares floors to zero, skipped",
					session.ID, symbol, sig.Percentage*100, pos.Quantity)
				return nil
			}
		} else {
			qty = pos.Quantity
		}
	}
	if qty > pos.Quantity {
		return &InsufficientSharesError{Symbol: symbol, Want: qty, Have: pos.Quantity}
	}
	saleValue := trading.Cost(qty, price)
	profitLoss := trading.ProfitLoss(price, pos.AverageCost, qty)
	now := time.Now()
	pos.Quantity -= qty
	pos.CurrentPrice = price
	pos.LastUpdated = now
	if pos.Quantity <= 0 {
		delete(session.Positions, symbol)
	}
	session.CashBalance += saleValue
	sim.record(ctx, session, Transaction{
		Time:       now,
		Type:       ActionSell,
		Symbol:     symbol,
		Quantity:   qty,
		Price:      price,
		Total:      saleValue,
		ProfitLoss: &profitLoss,
	})
	return nil
}

func (sim *Simulator) record(ctx context.Context, session *Session, tx Transaction) {
	session.Transactions = append(session.Transactions, tx)
	if sim.journal == nil {
		return
	}
	if err := sim.journal.Append(ctx, session.ID, tx); err != nil {
		logger.Warnf("[paper] journal append failed session=%s: %v", session.ID, err)
	}
}

// markToMarket 用最新行情刷新持仓现价。没有该 symbol 行情的持仓保持不动。
func (sim *Simulator) markToMarket(session *Session, md map[string]market.Snapshot) {
	now := time.Now()
	for symbol, pos := range session.Positions {
		snap, ok := md[symbol]
		if !ok || snap.Price <= 0 {
			continue
		}
		pos.CurrentPrice = snap.Price
		pos.LastUpdated = now
	}
}

// RecomputeMetrics 重算组合价值与绩效。完成交易只数卖出。
func (sim *Simulator) RecomputeMetrics(session *Session) {
	value := session.CashBalance
	for _, pos := range session.Positions {
		value += pos.Quantity * pos.CurrentPrice
	}
	m := Metrics{PortfolioValue: value}
	m.TotalPnL = value - session.InitialCapital
	if session.InitialCapital > 0 {
		m.PercentReturn = m.TotalPnL / session.InitialCapital * 100
	}
	for _, tx := range session.Transactions {
		if tx.Type != ActionSell {
			continue
		}
		m.TotalTrades++
		if tx.ProfitLoss != nil && *tx.ProfitLoss > 0 {
			m.WinningTrades++
		}
	}
	if m.TotalTrades > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades) * 100
	}
	session.Metrics = m
	session.CurrentCapital = value
}
