package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"strato/internal/action"
	"strato/internal/condition"
	"strato/internal/indicator"
	"strato/internal/market"
	"strato/internal/paper"
	"strato/internal/strategy"
)

func newTestInterpreter() *Interpreter {
	return NewInterpreter(indicator.NewRegistry(), condition.NewRegistry(), action.NewRegistry())
}

func trendingMarket(symbol string, closes ...float64) map[string]market.Snapshot {
	candles := make([]market.Candle, len(closes))
	for i, c := range closes {
		candles[i] = market.Candle{Time: int64(i) * 60_000, Open: c, High: c + 1, Low: c - 1, Close: c}
	}
	return map[string]market.Snapshot{
		symbol: {Symbol: symbol, Price: closes[len(closes)-1], History: candles},
	}
}

func TestRunComputesIndicatorsByBlockID(t *testing.T) {
	it := newTestInterpreter()
	st := &strategy.Strategy{
		ID:      "s1",
		Symbols: []string{"BTC"},
		Blocks: []strategy.Block{
			{ID: "sma1", Type: "indicator", Subtype: "sma", Settings: map[string]any{"period": 3}},
		},
	}
	res, evalErr := it.Run(st, trendingMarket("BTC", 1, 2, 3, 4, 5))
	assert.Nil(t, evalErr)
	assert.Contains(t, res.Indicators, "sma1")
	assert.Equal(t, 4.0, res.Indicators["sma1"].Value)
	assert.Empty(t, res.Signals)
}

func TestRunTrueConditionFiresAction(t *testing.T) {
	it := newTestInterpreter()
	st := &strategy.Strategy{
		ID:      "s1",
		Symbols: []string{"BTC"},
		Blocks: []strategy.Block{
			{ID: "sma1", Type: "indicator", Subtype: "sma", Settings: map[string]any{"period": 2}},
			{ID: "c1", Type: "condition", Subtype: "threshold", Settings: map[string]any{"source": "sma1", "operator": ">", "value": 3}},
			{ID: "a1", Type: "action", Subtype: "buy", Settings: map[string]any{"symbol": "BTC"}},
		},
	}
	res, evalErr := it.Run(st, trendingMarket("BTC", 1, 2, 3, 4, 5))
	assert.Nil(t, evalErr)
	assert.Len(t, res.Signals, 1)
	assert.Equal(t, paper.ActionBuy, res.Signals[0].Action)
	assert.Equal(t, 5.0, res.Signals[0].Price)
}

// 任何一个条件成立时，策略里的每个动作积木都发信号——积木之间没有图连接。
func TestRunAnyTrueConditionFiresAllActions(t *testing.T) {
	it := newTestInterpreter()
	st := &strategy.Strategy{
		ID:      "s1",
		Symbols: []string{"BTC"},
		Blocks: []strategy.Block{
			{ID: "c-true", Type: "condition", Subtype: "threshold", Settings: map[string]any{"source": "btc.close", "operator": ">", "value": 0}},
			{ID: "c-false", Type: "condition", Subtype: "threshold", Settings: map[string]any{"source": "btc.close", "operator": "<", "value": 0}},
			{ID: "a-buy", Type: "action", Subtype: "buy", Settings: map[string]any{"symbol": "BTC"}},
			{ID: "a-stop", Type: "action", Subtype: "stop_loss", Settings: map[string]any{"symbol": "BTC", "price": 4}},
		},
	}
	res, evalErr := it.Run(st, trendingMarket("BTC", 4, 5))
	assert.Nil(t, evalErr)
	assert.Len(t, res.Signals, 2)
	actions := []string{res.Signals[0].Action, res.Signals[1].Action}
	assert.Contains(t, actions, paper.ActionBuy)
	assert.Contains(t, actions, paper.ActionStopLoss)
}

// 两个条件同时成立、一个买入积木 → 买两次。重复执行是设计内行为。
func TestRunTwoTrueConditionsDuplicateSignals(t *testing.T) {
	it := newTestInterpreter()
	st := &strategy.Strategy{
		ID:      "s1",
		Symbols: []string{"BTC"},
		Blocks: []strategy.Block{
			{ID: "c1", Type: "condition", Subtype: "threshold", Settings: map[string]any{"source": "btc.close", "operator": ">", "value": 0}},
			{ID: "c2", Type: "condition", Subtype: "threshold", Settings: map[string]any{"source": "btc.close", "operator": ">=", "value": 5}},
			{ID: "a1", Type: "action", Subtype: "buy", Settings: map[string]any{"symbol": "BTC"}},
		},
	}
	res, evalErr := it.Run(st, trendingMarket("BTC", 4, 5))
	assert.Nil(t, evalErr)
	assert.Len(t, res.Signals, 2)
	for _, sig := range res.Signals {
		assert.Equal(t, paper.ActionBuy, sig.Action)
		assert.Equal(t, "BTC", sig.Symbol)
	}
}

func TestRunNoTrueConditionNoSignals(t *testing.T) {
	it := newTestInterpreter()
	st := &strategy.Strategy{
		ID:      "s1",
		Symbols: []string{"BTC"},
		Blocks: []strategy.Block{
			{ID: "c1", Type: "condition", Subtype: "threshold", Settings: map[string]any{"source": "btc.close", "operator": "<", "value": 0}},
			{ID: "a1", Type: "action", Subtype: "buy", Settings: map[string]any{"symbol": "BTC"}},
		},
	}
	res, evalErr := it.Run(st, trendingMarket("BTC", 4, 5))
	assert.Nil(t, evalErr)
	assert.Empty(t, res.Signals)
}

func TestRunFailedIndicatorReturnsTypedError(t *testing.T) {
	it := newTestInterpreter()
	st := &strategy.Strategy{
		ID:      "s1",
		Symbols: []string{"BTC"},
		Blocks: []strategy.Block{
			{ID: "sma1", Type: "indicator", Subtype: "sma", Settings: map[string]any{"period": 50}},
		},
	}
	res, evalErr := it.Run(st, trendingMarket("BTC", 1, 2, 3))
	assert.NotNil(t, evalErr)
	assert.Equal(t, "sma1", evalErr.BlockID)
	var insufficient *indicator.InsufficientDataError
	assert.ErrorAs(t, evalErr, &insufficient)
	assert.Empty(t, res.Signals)
	assert.Empty(t, res.Indicators)
}

func TestRunUnknownSubtypeReturnsTypedError(t *testing.T) {
	it := newTestInterpreter()
	st := &strategy.Strategy{
		ID:      "s1",
		Symbols: []string{"BTC"},
		Blocks: []strategy.Block{
			{ID: "x1", Type: "condition", Subtype: "volume_spike"},
		},
	}
	_, evalErr := it.Run(st, trendingMarket("BTC", 1, 2))
	assert.NotNil(t, evalErr)
	var unknown *condition.UnknownConditionError
	assert.ErrorAs(t, evalErr, &unknown)
}

func TestRunNilStrategy(t *testing.T) {
	it := newTestInterpreter()
	_, evalErr := it.Run(nil, nil)
	assert.NotNil(t, evalErr)
}

func TestHistoryForExplicitSymbol(t *testing.T) {
	md := trendingMarket("ETH", 1, 2, 3)
	st := &strategy.Strategy{Symbols: []string{"BTC"}}
	history := historyFor(map[string]any{"symbol": "eth"}, st, md)
	assert.Len(t, history, 3)
}
