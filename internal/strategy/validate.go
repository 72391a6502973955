package strategy

import (
	"fmt"
	"strings"
)

// SchemaChecker 校验积木 settings 的外部 schema 注册表。
type SchemaChecker interface {
	KnownSubtype(kind, subtype string) bool
	ValidateSettings(kind, subtype string, settings map[string]any) error
}

// Validate 保存前的结构校验：名字、积木类型、子类型已注册、settings 过 schema。
// 未知子类型在这里就拒绝，而不是等到求值时才失败。
func Validate(s *Strategy, schemas SchemaChecker) error {
	if s == nil {
		return fmt.Errorf("strategy is nil")
	}
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("strategy name is required")
	}
	if len(s.Blocks) == 0 {
		return fmt.Errorf("strategy %q has no blocks", s.Name)
	}
	seen := make(map[string]struct{}, len(s.Blocks))
	for i, b := range s.Blocks {
		id := strings.TrimSpace(b.ID)
		if id == "" {
			return fmt.Errorf("block #%d has no id", i)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate block id %q", id)
		}
		seen[id] = struct{}{}
		kind := strings.ToLower(strings.TrimSpace(b.Type))
		switch kind {
		case BlockTypeIndicator, BlockTypeCondition, BlockTypeAction:
		default:
			return &UnknownBlockTypeError{BlockType: b.Type}
		}
		sub := strings.ToLower(strings.TrimSpace(b.Subtype))
		if sub == "" {
			return fmt.Errorf("block %s has no subtype", id)
		}
		if schemas != nil {
			if !schemas.KnownSubtype(kind, sub) {
				return &UnknownBlockTypeError{BlockType: kind, Subtype: b.Subtype}
			}
			if err := schemas.ValidateSettings(kind, sub, b.Settings); err != nil {
				return fmt.Errorf("block %s settings invalid: %w", id, err)
			}
		}
	}
	return nil
}
