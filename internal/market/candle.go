package market

import "strings"

// Candle 单根 K 线，时间戳为毫秒，序列按旧→新排列。
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Snapshot 某个 symbol 的一次行情快照。
type Snapshot struct {
	Symbol    string   `json:"symbol"`
	Price     float64  `json:"price"`
	Timestamp int64    `json:"timestamp"`
	History   []Candle `json:"history"`
}

// Field returns the named OHLCV component of the candle. Unknown fields
// fall back to close, matching how block settings default price lookups.
func (c Candle) Field(name string) float64 {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "open":
		return c.Open
	case "high":
		return c.High
	case "low":
		return c.Low
	case "volume":
		return c.Volume
	default:
		return c.Close
	}
}

// Last returns the newest candle.
func (s Snapshot) Last() (Candle, bool) {
	if len(s.History) == 0 {
		return Candle{}, false
	}
	return s.History[len(s.History)-1], true
}

// Prev returns the second-to-last candle.
func (s Snapshot) Prev() (Candle, bool) {
	if len(s.History) < 2 {
		return Candle{}, false
	}
	return s.History[len(s.History)-2], true
}

// Closes extracts the requested field as a series, oldest first.
func Closes(history []Candle, field string) []float64 {
	out := make([]float64, len(history))
	for i, c := range history {
		out[i] = c.Field(field)
	}
	return out
}
