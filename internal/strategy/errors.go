package strategy

import (
	"errors"
	"fmt"
)

// ErrNotFound 查询的策略不存在。
var ErrNotFound = errors.New("strategy not found")

// UnknownBlockTypeError 积木的类型或子类型没有对应的处理器。
type UnknownBlockTypeError struct {
	BlockType string
	Subtype   string
}

func (e *UnknownBlockTypeError) Error() string {
	if e.Subtype == "" {
		return fmt.Sprintf("unknown block type %q", e.BlockType)
	}
	return fmt.Sprintf("unknown %s subtype %q", e.BlockType, e.Subtype)
}
