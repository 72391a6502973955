package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"strato/internal/indicator"
	"strato/internal/market"
)

func envWithSeries(series1, series2 []float64) Env {
	return Env{
		Indicators: map[string]indicator.Result{
			"fast": {Series: series1},
			"slow": {Series: series2},
		},
	}
}

func TestCrossoverDirections(t *testing.T) {
	// fast 从 9 升到 10，slow 从 10 跌到 9：向上交叉。
	env := envWithSeries([]float64{9, 10}, []float64{10, 9})

	t.Run("above", func(t *testing.T) {
		ok, err := evalCrossover(env, map[string]any{"source1": "fast", "source2": "slow", "direction": "above"})
		assert.NoError(t, err)
		assert.True(t, ok)
	})
	t.Run("below", func(t *testing.T) {
		ok, err := evalCrossover(env, map[string]any{"source1": "fast", "source2": "slow", "direction": "below"})
		assert.NoError(t, err)
		assert.False(t, ok)
	})
	t.Run("any", func(t *testing.T) {
		ok, err := evalCrossover(env, map[string]any{"source1": "fast", "source2": "slow", "direction": "any"})
		assert.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestCrossoverMissingHistoryIsFalse(t *testing.T) {
	// slow 只有一个值，previous 不可用 → false 而不是报错。
	env := envWithSeries([]float64{9, 10}, []float64{10})
	ok, err := evalCrossover(env, map[string]any{"source1": "fast", "source2": "slow", "direction": "above"})
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestCrossoverLiteralSource(t *testing.T) {
	env := envWithSeries([]float64{9, 11}, nil)
	ok, err := evalCrossover(env, map[string]any{"source1": "fast", "source2": 10, "direction": "above"})
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestThresholdOperators(t *testing.T) {
	env := Env{Indicators: map[string]indicator.Result{"rsi": {Series: []float64{25, 28}}}}
	cases := []struct {
		op   string
		val  float64
		want bool
	}{
		{"<", 30, true},
		{">", 30, false},
		{">=", 28, true},
		{"<=", 27, false},
		{"==", 28, true},
	}
	for _, tc := range cases {
		ok, err := evalThreshold(env, map[string]any{"source": "rsi", "operator": tc.op, "value": tc.val})
		assert.NoError(t, err, tc.op)
		assert.Equal(t, tc.want, ok, "operator %s", tc.op)
	}
}

func TestThresholdUnresolvedSourceIsFalse(t *testing.T) {
	ok, err := evalThreshold(Env{}, map[string]any{"source": "missing", "operator": ">", "value": 1})
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestPriceFieldSource(t *testing.T) {
	env := Env{
		Market: map[string]market.Snapshot{
			"BTC": {Symbol: "BTC", History: []market.Candle{
				{Open: 1, High: 3, Low: 0.5, Close: 2},
				{Open: 2, High: 5, Low: 1.5, Close: 4},
			}},
		},
	}
	cur, ok := env.current("btc.close")
	assert.True(t, ok)
	assert.Equal(t, 4.0, cur)
	prev, ok := env.previous("btc.close")
	assert.True(t, ok)
	assert.Equal(t, 2.0, prev)
}

func TestIndicatorSubSeriesSource(t *testing.T) {
	env := Env{
		Indicators: map[string]indicator.Result{
			"macd1": {SeriesBy: map[string][]float64{"histogram": {-1, 2}}},
		},
	}
	cur, ok := env.current("macd1.histogram")
	assert.True(t, ok)
	assert.Equal(t, 2.0, cur)
}

func TestRegistryUnknownCondition(t *testing.T) {
	r := NewRegistry()
	_, err := r.Evaluate("volume_spike", Env{}, nil)
	var unknown *UnknownConditionError
	assert.ErrorAs(t, err, &unknown)
	assert.Equal(t, "volume_spike", unknown.Subtype)
}

func snapshotOf(candles ...market.Candle) Env {
	return Env{Market: map[string]market.Snapshot{"BTC": {Symbol: "BTC", History: candles}}}
}

func TestPriceActionPatterns(t *testing.T) {
	t.Run("bullish and bearish", func(t *testing.T) {
		env := snapshotOf(
			market.Candle{Open: 10, High: 11, Low: 9, Close: 10.5},
			market.Candle{Open: 10, High: 12, Low: 9.5, Close: 11},
		)
		ok, err := evalPriceAction(env, map[string]any{"symbol": "BTC", "pattern": "bullish"})
		assert.NoError(t, err)
		assert.True(t, ok)
		ok, err = evalPriceAction(env, map[string]any{"symbol": "BTC", "pattern": "bearish"})
		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("doji body under 10 percent of range", func(t *testing.T) {
		env := snapshotOf(
			market.Candle{Open: 10, High: 11, Low: 9, Close: 10.5},
			market.Candle{Open: 10, High: 11, Low: 9, Close: 10.05},
		)
		ok, err := evalPriceAction(env, map[string]any{"symbol": "BTC", "pattern": "doji"})
		assert.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("hammer", func(t *testing.T) {
		env := snapshotOf(
			market.Candle{Open: 10, High: 11, Low: 9, Close: 10.5},
			// 阳线，下影线 2.5 > 2×实体 1，上影线 0.5 < 实体。
			market.Candle{Open: 10, High: 11.5, Low: 7.5, Close: 11},
		)
		ok, err := evalPriceAction(env, map[string]any{"symbol": "BTC", "pattern": "hammer"})
		assert.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("bullish engulfing", func(t *testing.T) {
		env := snapshotOf(
			market.Candle{Open: 10, High: 10.5, Low: 9, Close: 9.5},
			market.Candle{Open: 9.3, High: 11, Low: 9.2, Close: 10.2},
		)
		ok, err := evalPriceAction(env, map[string]any{"symbol": "BTC", "pattern": "bullish_engulfing"})
		assert.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("higher high over lookback", func(t *testing.T) {
		env := snapshotOf(
			market.Candle{High: 10, Low: 8},
			market.Candle{High: 11, Low: 9},
			market.Candle{High: 10.5, Low: 9.5},
			market.Candle{High: 12, Low: 10},
		)
		ok, err := evalPriceAction(env, map[string]any{"symbol": "BTC", "pattern": "higher_high", "lookback": 3})
		assert.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("fewer than two candles is false", func(t *testing.T) {
		env := snapshotOf(market.Candle{Open: 10, Close: 11})
		ok, err := evalPriceAction(env, map[string]any{"symbol": "BTC", "pattern": "bullish"})
		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unknown pattern errors", func(t *testing.T) {
		env := snapshotOf(market.Candle{}, market.Candle{})
		_, err := evalPriceAction(env, map[string]any{"symbol": "BTC", "pattern": "three_crows"})
		assert.Error(t, err)
	})
}
