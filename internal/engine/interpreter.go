package engine

import (
	"fmt"
	"strings"

	"strato/internal/action"
	"strato/internal/condition"
	"strato/internal/indicator"
	"strato/internal/logger"
	"strato/internal/market"
	"strato/internal/paper"
	"strato/internal/strategy"
)

// Result 一轮策略求值的输出：待执行的信号加上按积木 ID 索引的指标结果。
type Result struct {
	Signals    []paper.Signal              `json:"signals"`
	Indicators map[string]indicator.Result `json:"indicators"`
}

// EvaluationError 求值中途失败。失败的轮次不产生任何信号，
// 调用方把错误记入会话而不是中断整个更新。
type EvaluationError struct {
	BlockID string
	Subtype string
	Err     error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("strategy evaluation failed at block %s (%s): %v", e.BlockID, e.Subtype, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// Interpreter 按 指标 → 条件 → 动作 的顺序跑一轮策略。
// 每个成立的条件都让全部动作积木各发一次信号：两个条件同时成立、
// 一个买入积木，就买两次。积木之间没有图连接语义，position 只是展示顺序。
type Interpreter struct {
	indicators *indicator.Registry
	conditions *condition.Registry
	actions    *action.Registry
}

func NewInterpreter(indicators *indicator.Registry, conditions *condition.Registry, actions *action.Registry) *Interpreter {
	return &Interpreter{indicators: indicators, conditions: conditions, actions: actions}
}

// Run evaluates one strategy against one market snapshot set. A failed run
// returns an empty Result and the evaluation error, never a partial one.
func (it *Interpreter) Run(st *strategy.Strategy, md map[string]market.Snapshot) (res Result, evalErr *EvaluationError) {
	if st == nil {
		return Result{}, &EvaluationError{Err: fmt.Errorf("strategy is nil")}
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[engine] strategy %s panicked: %v", st.ID, r)
			res = Result{}
			evalErr = &EvaluationError{Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	indicators := make(map[string]indicator.Result)
	for _, block := range st.BlocksOf(strategy.BlockTypeIndicator) {
		history := historyFor(block.Settings, st, md)
		result, err := it.indicators.Compute(block.Subtype, history, block.Settings)
		if err != nil {
			return Result{}, &EvaluationError{BlockID: block.ID, Subtype: block.Subtype, Err: err}
		}
		indicators[block.ID] = result
	}

	env := condition.Env{Market: md, Indicators: indicators}
	actionBlocks := st.BlocksOf(strategy.BlockTypeAction)
	var signals []paper.Signal
	for _, block := range st.BlocksOf(strategy.BlockTypeCondition) {
		ok, err := it.conditions.Evaluate(block.Subtype, env, block.Settings)
		if err != nil {
			return Result{}, &EvaluationError{BlockID: block.ID, Subtype: block.Subtype, Err: err}
		}
		if !ok {
			continue
		}
		for _, ab := range actionBlocks {
			sig, err := it.actions.Generate(ab.Subtype, ab.Settings, md)
			if err != nil {
				return Result{}, &EvaluationError{BlockID: ab.ID, Subtype: ab.Subtype, Err: err}
			}
			if sig != nil {
				signals = append(signals, *sig)
			}
		}
	}
	return Result{Signals: signals, Indicators: indicators}, nil
}

// historyFor 选出指标积木要吃的 K 线序列：settings 指了 symbol 用指定的，
// 否则退回策略 symbol 列表里的第一个。
func historyFor(settings map[string]any, st *strategy.Strategy, md map[string]market.Snapshot) []market.Candle {
	symbol := ""
	if raw, ok := settings["symbol"]; ok {
		if s, ok := raw.(string); ok {
			symbol = strings.ToUpper(strings.TrimSpace(s))
		}
	}
	if symbol == "" && len(st.Symbols) > 0 {
		symbol = strings.ToUpper(strings.TrimSpace(st.Symbols[0]))
	}
	if snap, ok := md[symbol]; ok {
		return snap.History
	}
	return nil
}
