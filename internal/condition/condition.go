package condition

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	"strato/internal/indicator"
	"strato/internal/market"
)

// UnknownConditionError 条件子类型没有对应的处理器。
type UnknownConditionError struct {
	Subtype string
}

func (e *UnknownConditionError) Error() string {
	return fmt.Sprintf("unknown condition subtype %q", e.Subtype)
}

// Env 条件求值的上下文：行情快照与本轮已算好的指标结果。
type Env struct {
	Market     map[string]market.Snapshot
	Indicators map[string]indicator.Result
}

// Handler evaluates one condition subtype. A handler never fails on missing
// data, it returns false instead.
type Handler func(env Env, settings map[string]any) (bool, error)

// Registry maps condition subtypes to handlers.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry 返回注册了全部内建条件的 registry。
func NewRegistry() *Registry {
	r := &Registry{handlers: make(map[string]Handler)}
	r.Register("crossover", evalCrossover)
	r.Register("threshold", evalThreshold)
	r.Register("price_action", evalPriceAction)
	return r
}

func (r *Registry) Register(subtype string, h Handler) {
	if h == nil {
		return
	}
	r.handlers[strings.ToLower(strings.TrimSpace(subtype))] = h
}

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

// Evaluate dispatches to the handler for subtype.
func (r *Registry) Evaluate(subtype string, env Env, settings map[string]any) (bool, error) {
	h, ok := r.handlers[strings.ToLower(strings.TrimSpace(subtype))]
	if !ok {
		return false, &UnknownConditionError{Subtype: subtype}
	}
	return h(env, settings)
}

// current 解析一个数据源的最新值。数据源依次尝试：
// 数字字面量、指标积木 ID（可带 ".子序列"）、"SYMBOL.field" 价格查询。
// 解析不出来返回 false，条件按不成立处理。
func (e Env) current(src any) (float64, bool) {
	return e.resolve(src, false)
}

// previous 解析一个数据源上一步的值。
func (e Env) previous(src any) (float64, bool) {
	return e.resolve(src, true)
}

func (e Env) resolve(src any, prev bool) (float64, bool) {
	switch v := src.(type) {
	case nil:
		return 0, false
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		return e.resolveRef(v, prev)
	default:
		return 0, false
	}
}

func (e Env) resolveRef(ref string, prev bool) (float64, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return 0, false
	}
	// 整串先当指标 ID 试（积木 ID 本身可能含点）。
	if res, ok := e.Indicators[ref]; ok {
		return pick(res, "", prev)
	}
	head, sub, hasDot := strings.Cut(ref, ".")
	if hasDot {
		if res, ok := e.Indicators[head]; ok {
			return pick(res, sub, prev)
		}
		if snap, ok := e.Market[strings.ToUpper(head)]; ok {
			return candleField(snap, sub, prev)
		}
	}
	if v, err := strconv.ParseFloat(ref, 64); err == nil {
		return v, true
	}
	return 0, false
}

func pick(res indicator.Result, sub string, prev bool) (float64, bool) {
	if prev {
		return res.Previous(sub)
	}
	return res.Latest(sub)
}

func candleField(snap market.Snapshot, field string, prev bool) (float64, bool) {
	var (
		c  market.Candle
		ok bool
	)
	if prev {
		c, ok = snap.Prev()
	} else {
		c, ok = snap.Last()
	}
	if !ok {
		return 0, false
	}
	return c.Field(field), true
}

type crossoverSettings struct {
	Source1   any    `mapstructure:"source1"`
	Source2   any    `mapstructure:"source2"`
	Direction string `mapstructure:"direction"`
}

func evalCrossover(env Env, settings map[string]any) (bool, error) {
	var s crossoverSettings
	if err := decodeSettings(settings, &s); err != nil {
		return false, err
	}
	cur1, ok1 := env.current(s.Source1)
	cur2, ok2 := env.current(s.Source2)
	prev1, ok3 := env.previous(s.Source1)
	prev2, ok4 := env.previous(s.Source2)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return false, nil
	}
	above := prev1 <= prev2 && cur1 > cur2
	below := prev1 >= prev2 && cur1 < cur2
	switch strings.ToLower(strings.TrimSpace(s.Direction)) {
	case "", "above":
		return above, nil
	case "below":
		return below, nil
	case "any":
		return above || below, nil
	default:
		return false, fmt.Errorf("crossover direction %q not recognized", s.Direction)
	}
}

type thresholdSettings struct {
	Source   any     `mapstructure:"source"`
	Operator string  `mapstructure:"operator"`
	Value    float64 `mapstructure:"value"`
}

func evalThreshold(env Env, settings map[string]any) (bool, error) {
	var s thresholdSettings
	if err := decodeSettings(settings, &s); err != nil {
		return false, err
	}
	cur, ok := env.current(s.Source)
	if !ok {
		return false, nil
	}
	switch strings.TrimSpace(s.Operator) {
	case ">":
		return cur > s.Value, nil
	case "<":
		return cur < s.Value, nil
	case "==":
		return cur == s.Value, nil
	case ">=":
		return cur >= s.Value, nil
	case "<=":
		return cur <= s.Value, nil
	default:
		return false, fmt.Errorf("threshold operator %q not recognized", s.Operator)
	}
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
