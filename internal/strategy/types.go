package strategy

import (
	"strings"
	"time"
)

// 积木块类型。策略由三类积木按 position 排序组成。
const (
	BlockTypeIndicator = "indicator"
	BlockTypeCondition = "condition"
	BlockTypeAction    = "action"
)

// Block 一个策略积木：类型 + 子类型 + 自由形态的 settings。
type Block struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Subtype  string         `json:"subtype"`
	Settings map[string]any `json:"settings,omitempty"`
	Position int            `json:"position"`
}

// Strategy 用户保存的策略文档。Blocks 保持用户给定的顺序，
// 求值时按类型分组而不是按 position 串行执行。
type Strategy struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Blocks    []Block   `json:"blocks"`
	Symbols   []string  `json:"symbols"`
	Timeframe string    `json:"timeframe,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BlocksOf returns the blocks of one type, in declaration order.
func (s *Strategy) BlocksOf(blockType string) []Block {
	if s == nil {
		return nil
	}
	out := make([]Block, 0, len(s.Blocks))
	for _, b := range s.Blocks {
		if strings.EqualFold(b.Type, blockType) {
			out = append(out, b)
		}
	}
	return out
}

// Clone 深拷贝策略，会话快照用，避免后续编辑影响已运行的会话。
func (s *Strategy) Clone() *Strategy {
	if s == nil {
		return nil
	}
	dup := *s
	dup.Blocks = make([]Block, len(s.Blocks))
	for i, b := range s.Blocks {
		nb := b
		if b.Settings != nil {
			nb.Settings = make(map[string]any, len(b.Settings))
			for k, v := range b.Settings {
				nb.Settings[k] = v
			}
		}
		dup.Blocks[i] = nb
	}
	dup.Symbols = append([]string(nil), s.Symbols...)
	return &dup
}
