package action

import (
	"sort"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"strato/internal/logger"
	"strato/internal/market"
	"strato/internal/paper"
)

// Handler generates a signal for one action subtype. A nil signal with a nil
// error means "nothing to do this cycle" (missing price data is logged, not
// treated as a failure).
type Handler func(settings map[string]any, md map[string]market.Snapshot) (*paper.Signal, error)

// Registry maps action subtypes to handlers.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry 返回注册了全部内建动作的 registry。
func NewRegistry() *Registry {
	r := &Registry{handlers: make(map[string]Handler)}
	r.Register("buy", genBuy)
	r.Register("sell", genSell)
	r.Register("stop_loss", genStopLoss)
	r.Register("take_profit", genTakeProfit)
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

// Generate dispatches to the handler for subtype.
func (r *Registry) Generate(subtype string, settings map[string]any, md map[string]market.Snapshot) (*paper.Signal, error) {
	h, ok := r.handlers[strings.ToLower(strings.TrimSpace(subtype))]
	if !ok {
		return nil, &paper.UnknownActionError{Subtype: subtype}
	}
	return h(settings, md)
}

type orderSettings struct {
	Symbol     string  `mapstructure:"symbol"`
	OrderType  string  `mapstructure:"order_type"`
	Price      float64 `mapstructure:"price"`
	Quantity   float64 `mapstructure:"quantity"`
	RiskLevel  float64 `mapstructure:"risk_level"`
	Percentage float64 `mapstructure:"percentage"`
}

func (s *orderSettings) normalize() {
	s.Symbol = strings.ToUpper(strings.TrimSpace(s.Symbol))
	if s.OrderType == "" {
		s.OrderType = "market"
	}
}

// executionPrice 设置里给了限价就用限价，否则落到行情现价。
// 没有任何可用价格返回 0，调用方按"本轮无信号"处理。
func executionPrice(s orderSettings, md map[string]market.Snapshot) float64 {
	if s.Price > 0 {
		return s.Price
	}
	if snap, ok := md[s.Symbol]; ok && snap.Price > 0 {
		return snap.Price
	}
	return 0
}

func genBuy(settings map[string]any, md map[string]market.Snapshot) (*paper.Signal, error) {
	var s orderSettings
	if err := decodeSettings(settings, &s); err != nil {
		return nil, err
	}
	s.normalize()
	price := executionPrice(s, md)
	if price <= 0 {
		logger.Debugf("[action] buy %s skipped: no price data", s.Symbol)
		return nil, nil
	}
	return &paper.Signal{
		Action:    paper.ActionBuy,
		Symbol:    s.Symbol,
		OrderType: s.OrderType,
		Price:     price,
		Quantity:  s.Quantity,
		RiskLevel: s.RiskLevel,
		Timestamp: time.Now(),
	}, nil
}

func genSell(settings map[string]any, md map[string]market.Snapshot) (*paper.Signal, error) {
	var s orderSettings
	if err := decodeSettings(settings, &s); err != nil {
		return nil, err
	}
	s.normalize()
	price := executionPrice(s, md)
	if price <= 0 {
		logger.Debugf("[action] sell %s skipped: no price data", s.Symbol)
		return nil, nil
	}
	return &paper.Signal{
		Action:     paper.ActionSell,
		Symbol:     s.Symbol,
		OrderType:  s.OrderType,
		Price:      price,
		Quantity:   s.Quantity,
		Percentage: sellFraction(s.Percentage),
		Timestamp:  time.Now(),
	}, nil
}

// sellFraction 把 percentage 归一成 0–1 的小数。前端既会发 50 也会发 0.5，
// 大于 1 按百分比除以 100，缺省卖出全部。
func sellFraction(pct float64) float64 {
	switch {
	case pct <= 0:
		return 1
	case pct > 1:
		return pct / 100
	default:
		return pct
	}
}

// genStopLoss 止损是一次性的描述信号：记录触发参数，不做后续盯盘。
func genStopLoss(settings map[string]any, md map[string]market.Snapshot) (*paper.Signal, error) {
	return genWatch(paper.ActionStopLoss, settings, md)
}

// genTakeProfit 止盈同上。
func genTakeProfit(settings map[string]any, md map[string]market.Snapshot) (*paper.Signal, error) {
	return genWatch(paper.ActionTakeProfit, settings, md)
}

func genWatch(action string, settings map[string]any, md map[string]market.Snapshot) (*paper.Signal, error) {
	var s orderSettings
	if err := decodeSettings(settings, &s); err != nil {
		return nil, err
	}
	s.normalize()
	price := executionPrice(s, md)
	if price <= 0 {
		logger.Debugf("[action] %s %s skipped: no price data", action, s.Symbol)
		return nil, nil
	}
	return &paper.Signal{
		Action:     action,
		Symbol:     s.Symbol,
		OrderType:  s.OrderType,
		Price:      price,
		Percentage: s.Percentage,
		Timestamp:  time.Now(),
	}, nil
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
