package indicator

import (
	"math"

	"github.com/markcheno/go-talib"

	"strato/internal/market"
)

type bollingerSettings struct {
	Period     int     `mapstructure:"period"`
	Deviations float64 `mapstructure:"deviations"`
	Field      string  `mapstructure:"field"`
}

func computeBollinger(history []market.Candle, settings map[string]any) (Result, error) {
	var s bollingerSettings
	if err := decodeSettings(settings, &s); err != nil {
		return Result{}, err
	}
	if s.Period <= 0 {
		s.Period = 20
	}
	if s.Deviations <= 0 {
		s.Deviations = 2
	}
	if s.Field == "" {
		s.Field = "close"
	}
	if len(history) < s.Period {
		return Result{}, &InsufficientDataError{Subtype: "bollinger", Need: s.Period, Have: len(history)}
	}
	values := market.Closes(history, s.Field)
	middle := smaSeries(values, s.Period)
	upper := make([]float64, len(middle))
	lower := make([]float64, len(middle))
	for i := range middle {
		window := values[i : i+s.Period]
		variance := 0.0
		for _, v := range window {
			d := v - middle[i]
			variance += d * d
		}
		// Population deviation, matching the window mean the band is built on.
		sd := math.Sqrt(variance / float64(s.Period))
		upper[i] = middle[i] + s.Deviations*sd
		lower[i] = middle[i] - s.Deviations*sd
	}
	return Result{
		Values: map[string]float64{
			"middle": middle[len(middle)-1],
			"upper":  upper[len(upper)-1],
			"lower":  lower[len(lower)-1],
		},
		SeriesBy: map[string][]float64{
			"middle": middle,
			"upper":  upper,
			"lower":  lower,
		},
		Period: s.Period,
		Settings: map[string]any{
			"period":     s.Period,
			"deviations": s.Deviations,
			"field":      s.Field,
		},
	}, nil
}

type atrSettings struct {
	Period int `mapstructure:"period"`
}

// computeATR 平均真实波幅，交给 talib 计算，前导的未收敛值剔除。
func computeATR(history []market.Candle, settings map[string]any) (Result, error) {
	var s atrSettings
	if err := decodeSettings(settings, &s); err != nil {
		return Result{}, err
	}
	if s.Period <= 0 {
		s.Period = 14
	}
	if len(history) < s.Period+1 {
		return Result{}, &InsufficientDataError{Subtype: "atr", Need: s.Period + 1, Have: len(history)}
	}
	highs := make([]float64, len(history))
	lows := make([]float64, len(history))
	closes := make([]float64, len(history))
	for i, c := range history {
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
	}
	raw := talib.Atr(highs, lows, closes, s.Period)
	series := make([]float64, 0, len(raw))
	for _, v := range raw {
		if v == 0 || math.IsNaN(v) {
			continue
		}
		series = append(series, v)
	}
	if len(series) == 0 {
		return Result{}, &InsufficientDataError{Subtype: "atr", Need: s.Period + 1, Have: len(history)}
	}
	return Result{
		Value:    series[len(series)-1],
		Series:   series,
		Period:   s.Period,
		Settings: map[string]any{"period": s.Period},
	}, nil
}
