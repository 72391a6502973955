package condition

import (
	"fmt"
	"math"
	"strings"

	"strato/internal/market"
)

type priceActionSettings struct {
	Symbol   string `mapstructure:"symbol"`
	Pattern  string `mapstructure:"pattern"`
	Lookback int    `mapstructure:"lookback"`
}

// evalPriceAction 对最近一两根 K 线做形态匹配。历史不足两根一律 false。
func evalPriceAction(env Env, settings map[string]any) (bool, error) {
	var s priceActionSettings
	if err := decodeSettings(settings, &s); err != nil {
		return false, err
	}
	if s.Lookback <= 0 {
		s.Lookback = 5
	}
	snap, ok := env.Market[strings.ToUpper(strings.TrimSpace(s.Symbol))]
	if !ok || len(snap.History) < 2 {
		return false, nil
	}
	last := snap.History[len(snap.History)-1]
	prev := snap.History[len(snap.History)-2]

	switch strings.ToLower(strings.TrimSpace(s.Pattern)) {
	case "bullish":
		return last.Close > last.Open, nil
	case "bearish":
		return last.Close < last.Open, nil
	case "doji":
		return isDoji(last), nil
	case "hammer":
		return isHammer(last), nil
	case "bullish_engulfing":
		return prev.Close < prev.Open &&
			last.Close > last.Open &&
			last.Open <= prev.Close &&
			last.Close >= prev.Open, nil
	case "bearish_engulfing":
		return prev.Close > prev.Open &&
			last.Close < last.Open &&
			last.Open >= prev.Close &&
			last.Close <= prev.Open, nil
	case "higher_high":
		return extremeOverLookback(snap.History, s.Lookback, func(c market.Candle) float64 { return c.High }, true), nil
	case "lower_low":
		return extremeOverLookback(snap.History, s.Lookback, func(c market.Candle) float64 { return c.Low }, false), nil
	case "higher_close":
		return last.Close > prev.Close, nil
	case "lower_close":
		return last.Close < prev.Close, nil
	default:
		return false, fmt.Errorf("price action pattern %q not recognized", s.Pattern)
	}
}

// isDoji 实体小于整根波幅的 10%。
func isDoji(c market.Candle) bool {
	rng := c.High - c.Low
	if rng <= 0 {
		return false
	}
	return math.Abs(c.Close-c.Open) < rng*0.1
}

// isHammer 下影线超过实体两倍、上影线小于实体，且只认阳线。
func isHammer(c market.Candle) bool {
	if c.Close <= c.Open {
		return false
	}
	body := c.Close - c.Open
	lowerWick := c.Open - c.Low
	upperWick := c.High - c.Close
	return lowerWick > body*2 && upperWick < body
}

// extremeOverLookback 最新 K 线的极值是否严格高于（或低于）回看窗口里的每一根。
func extremeOverLookback(history []market.Candle, lookback int, field func(market.Candle) float64, higher bool) bool {
	if len(history) < 2 {
		return false
	}
	window := lookback
	if window > len(history)-1 {
		window = len(history) - 1
	}
	if window < 1 {
		return false
	}
	latest := field(history[len(history)-1])
	for _, c := range history[len(history)-1-window : len(history)-1] {
		v := field(c)
		if higher && latest <= v {
			return false
		}
		if !higher && latest >= v {
			return false
		}
	}
	return true
}
