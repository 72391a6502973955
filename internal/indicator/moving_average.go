package indicator

import "strato/internal/market"

type maSettings struct {
	Period int    `mapstructure:"period"`
	Field  string `mapstructure:"field"`
}

func (s *maSettings) normalize() {
	if s.Period <= 0 {
		s.Period = 20
	}
	if s.Field == "" {
		s.Field = "close"
	}
}

// smaSeries 滑动窗口均值，窗口右端从 period-1 开始，每个位置产出一个值。
func smaSeries(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	out := make([]float64, 0, len(values)-period+1)
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out = append(out, sum/float64(period))
		}
	}
	return out
}

// emaSeries seeds with the SMA of the first period samples, then smooths
// each following sample with k = 2/(period+1).
func emaSeries(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	k := 2.0 / float64(period+1)
	seed := 0.0
	for _, v := range values[:period] {
		seed += v
	}
	seed /= float64(period)
	out := make([]float64, 0, len(values)-period+1)
	out = append(out, seed)
	prev := seed
	for _, v := range values[period:] {
		prev = (v-prev)*k + prev
		out = append(out, prev)
	}
	return out
}

func computeSMA(history []market.Candle, settings map[string]any) (Result, error) {
	var s maSettings
	if err := decodeSettings(settings, &s); err != nil {
		return Result{}, err
	}
	s.normalize()
	if len(history) < s.Period {
		return Result{}, &InsufficientDataError{Subtype: "sma", Need: s.Period, Have: len(history)}
	}
	series := smaSeries(market.Closes(history, s.Field), s.Period)
	return Result{
		Value:    series[len(series)-1],
		Series:   series,
		Period:   s.Period,
		Settings: map[string]any{"period": s.Period, "field": s.Field},
	}, nil
}

func computeEMA(history []market.Candle, settings map[string]any) (Result, error) {
	var s maSettings
	if err := decodeSettings(settings, &s); err != nil {
		return Result{}, err
	}
	s.normalize()
	if len(history) < s.Period {
		return Result{}, &InsufficientDataError{Subtype: "ema", Need: s.Period, Have: len(history)}
	}
	series := emaSeries(market.Closes(history, s.Field), s.Period)
	return Result{
		Value:    series[len(series)-1],
		Series:   series,
		Period:   s.Period,
		Settings: map[string]any{"period": s.Period, "field": s.Field},
	}, nil
}
