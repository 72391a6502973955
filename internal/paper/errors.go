package paper

import "fmt"

// UnknownActionError 信号动作没有对应的处理器。
type UnknownActionError struct {
	Subtype string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown action subtype %q", e.Subtype)
}

// InvalidPriceError 执行价非正。
type InvalidPriceError struct {
	Symbol string
	Price  float64
}

func (e *InvalidPriceError) Error() string {
	return fmt.Sprintf("invalid execution price %.4f for %s", e.Price, e.Symbol)
}

// InsufficientFundsError 现金不足以覆盖买入成本。
type InsufficientFundsError struct {
	Symbol string
	Cost   float64
	Cash   float64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds for %s: need %.2f, have %.2f", e.Symbol, e.Cost, e.Cash)
}

// PositionNotFoundError 卖出时没有对应持仓。
type PositionNotFoundError struct {
	Symbol string
}

func (e *PositionNotFoundError) Error() string {
	return fmt.Sprintf("no open position for %s", e.Symbol)
}

// InsufficientSharesError 卖出数量超过持仓数量。
type InsufficientSharesError struct {
	Symbol string
	Want   float64
	Have   float64
}

func (e *InsufficientSharesError) Error() string {
	return fmt.Sprintf("insufficient shares for %s: want %.0f, have %.0f", e.Symbol, e.Want, e.Have)
}
