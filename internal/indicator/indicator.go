package indicator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"

	"strato/internal/market"
	"strato/internal/strategy"
)

// Result 单个指标积木的计算输出。单序列指标填 Value/Series，
// 多序列指标（MACD、布林带）按子序列名填 Values/SeriesBy。
type Result struct {
	Value    float64              `json:"value,omitempty"`
	Values   map[string]float64   `json:"values,omitempty"`
	Series   []float64            `json:"series,omitempty"`
	SeriesBy map[string][]float64 `json:"series_by,omitempty"`
	Period   int                  `json:"period"`
	Settings map[string]any       `json:"settings,omitempty"`
}

// seriesFor picks the series addressed by a sub-series name ("" selects the
// single-series payload, or "macd"/"signal"/"histogram" etc. for multi).
func (r Result) seriesFor(sub string) []float64 {
	sub = strings.ToLower(strings.TrimSpace(sub))
	if sub == "" {
		if len(r.Series) > 0 {
			return r.Series
		}
		return nil
	}
	if r.SeriesBy == nil {
		return nil
	}
	return r.SeriesBy[sub]
}

// Latest returns the newest value of the addressed series.
func (r Result) Latest(sub string) (float64, bool) {
	s := r.seriesFor(sub)
	if len(s) == 0 {
		return 0, false
	}
	return s[len(s)-1], true
}

// Previous returns the value one step before the newest.
func (r Result) Previous(sub string) (float64, bool) {
	s := r.seriesFor(sub)
	if len(s) < 2 {
		return 0, false
	}
	return s[len(s)-2], true
}

// InsufficientDataError 表示历史 K 线长度不足以计算该指标。
type InsufficientDataError struct {
	Subtype string
	Need    int
	Have    int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("indicator %s needs %d candles, have %d", e.Subtype, e.Need, e.Have)
}

// Handler computes one indicator subtype over a candle history. Handlers are
// pure: the full series is recomputed from the supplied history on every call.
type Handler func(history []market.Candle, settings map[string]any) (Result, error)

// Registry maps indicator subtypes to handlers.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry 返回注册了全部内建指标的 registry。
func NewRegistry() *Registry {
	r := &Registry{handlers: make(map[string]Handler)}
	r.Register("sma", computeSMA)
	r.Register("ema", computeEMA)
	r.Register("rsi", computeRSI)
	r.Register("macd", computeMACD)
	r.Register("bollinger", computeBollinger)
	r.Register("atr", computeATR)
	return r
}

func (r *Registry) Register(subtype string, h Handler) {
	if h == nil {
		return
	}
	r.handlers[strings.ToLower(strings.TrimSpace(subtype))] = h
}

// Known reports whether the subtype has a handler.
func (r *Registry) Known(subtype string) bool {
	_, ok := r.handlers[strings.ToLower(strings.TrimSpace(subtype))]
	return ok
}

// Subtypes lists registered subtypes, sorted.
func (r *Registry) Subtypes() []string {
	out := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Compute dispatches to the handler for subtype.
func (r *Registry) Compute(subtype string, history []market.Candle, settings map[string]any) (Result, error) {
	h, ok := r.handlers[strings.ToLower(strings.TrimSpace(subtype))]
	if !ok {
		return Result{}, &strategy.UnknownBlockTypeError{BlockType: strategy.BlockTypeIndicator, Subtype: subtype}
	}
	return h(history, settings)
}

func decodeSettings(settings map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if settings == nil {
		return nil
	}
	return dec.Decode(settings)
}
