package indicator

import "strato/internal/market"

// rsiGuard 在平均亏损为零时代入的保护值，避免 RS 除零。
const rsiGuard = 0.001

type rsiSettings struct {
	Period     int     `mapstructure:"period"`
	Field      string  `mapstructure:"field"`
	Overbought float64 `mapstructure:"overbought"`
	Oversold   float64 `mapstructure:"oversold"`
}

func computeRSI(history []market.Candle, settings map[string]any) (Result, error) {
	var s rsiSettings
	if err := decodeSettings(settings, &s); err != nil {
		return Result{}, err
	}
	if s.Period <= 0 {
		s.Period = 14
	}
	if s.Field == "" {
		s.Field = "close"
	}
	if s.Overbought == 0 {
		s.Overbought = 70
	}
	if s.Oversold == 0 {
		s.Oversold = 30
	}
	if len(history) < s.Period+1 {
		return Result{}, &InsufficientDataError{Subtype: "rsi", Need: s.Period + 1, Have: len(history)}
	}
	values := market.Closes(history, s.Field)
	gains := make([]float64, len(values)-1)
	losses := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		delta := values[i] - values[i-1]
		if delta > 0 {
			gains[i-1] = delta
		} else {
			losses[i-1] = -delta
		}
	}

	avgGain := 0.0
	avgLoss := 0.0
	for i := 0; i < s.Period; i++ {
		avgGain += gains[i]
		avgLoss += losses[i]
	}
	avgGain /= float64(s.Period)
	avgLoss /= float64(s.Period)

	series := make([]float64, 0, len(gains)-s.Period+1)
	series = append(series, rsiFrom(avgGain, avgLoss))
	// Wilder smoothing for every delta after the seed window.
	for i := s.Period; i < len(gains); i++ {
		avgGain = (avgGain*float64(s.Period-1) + gains[i]) / float64(s.Period)
		avgLoss = (avgLoss*float64(s.Period-1) + losses[i]) / float64(s.Period)
		series = append(series, rsiFrom(avgGain, avgLoss))
	}
	return Result{
		Value:  series[len(series)-1],
		Series: series,
		Period: s.Period,
		Settings: map[string]any{
			"period":     s.Period,
			"field":      s.Field,
			"overbought": s.Overbought,
			"oversold":   s.Oversold,
		},
	}, nil
}

func rsiFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		avgLoss = rsiGuard
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

type macdSettings struct {
	Fast   int    `mapstructure:"fast"`
	Slow   int    `mapstructure:"slow"`
	Signal int    `mapstructure:"signal"`
	Field  string `mapstructure:"field"`
}

func computeMACD(history []market.Candle, settings map[string]any) (Result, error) {
	var s macdSettings
	if err := decodeSettings(settings, &s); err != nil {
		return Result{}, err
	}
	if s.Fast <= 0 {
		s.Fast = 12
	}
	if s.Slow <= 0 {
		s.Slow = 26
	}
	if s.Signal <= 0 {
		s.Signal = 9
	}
	if s.Field == "" {
		s.Field = "close"
	}
	need := s.Slow + s.Signal
	if len(history) < need {
		return Result{}, &InsufficientDataError{Subtype: "macd", Need: need, Have: len(history)}
	}
	values := market.Closes(history, s.Field)
	fast := emaSeries(values, s.Fast)
	slow := emaSeries(values, s.Slow)
	// Index-aligned subtraction over the shorter series, as the block editor
	// semantics define it.
	n := len(fast)
	if len(slow) < n {
		n = len(slow)
	}
	macdLine := make([]float64, n)
	for i := 0; i < n; i++ {
		macdLine[i] = fast[i] - slow[i]
	}
	signalLine := emaSeries(macdLine, s.Signal)
	h := len(macdLine)
	if len(signalLine) < h {
		h = len(signalLine)
	}
	histogram := make([]float64, h)
	for i := 0; i < h; i++ {
		histogram[i] = macdLine[i] - signalLine[i]
	}
	return Result{
		Values: map[string]float64{
			"macd":      macdLine[len(macdLine)-1],
			"signal":    signalLine[len(signalLine)-1],
			"histogram": histogram[len(histogram)-1],
		},
		SeriesBy: map[string][]float64{
			"macd":      macdLine,
			"signal":    signalLine,
			"histogram": histogram,
		},
		Period: s.Slow,
		Settings: map[string]any{
			"fast":   s.Fast,
			"slow":   s.Slow,
			"signal": s.Signal,
			"field":  s.Field,
		},
	}, nil
}
