package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"strato/internal/config"
	"strato/internal/engine"
	"strato/internal/logger"
	"strato/internal/market"
	"strato/internal/paper"
	"strato/internal/strategy"
)

// StrategySource 策略文档的来源（通常是 strategy.Store）。
type StrategySource interface {
	Get(ctx context.Context, id string) (*strategy.Strategy, error)
}

// CreateOptions 创建会话时可覆盖的参数，零值落到配置默认。
type CreateOptions struct {
	InitialCapital float64  `json:"initial_capital"`
	Symbols        []string `json:"symbols"`
	TimePeriod     string   `json:"time_period"`
	RiskPerTrade   float64  `json:"risk_per_trade"`
}

// Manager 模拟盘会话的生命周期：创建、按行情更新、停止、删除。
// 所有修改操作都要求调用者身份与会话 owner 一致。
type Manager struct {
	repo       Repository
	strategies StrategySource
	schemas    strategy.SchemaChecker
	interp     *engine.Interpreter
	sim        *paper.Simulator
	defaults   config.PaperConfig
}

func NewManager(repo Repository, strategies StrategySource, schemas strategy.SchemaChecker, interp *engine.Interpreter, sim *paper.Simulator, defaults config.PaperConfig) *Manager {
	return &Manager{
		repo:       repo,
		strategies: strategies,
		schemas:    schemas,
		interp:     interp,
		sim:        sim,
		defaults:   defaults,
	}
}

// CreateSession 从持久化的策略建一个 active 会话。策略在这一刻被快照，
// 之后的策略编辑不影响会话。
func (m *Manager) CreateSession(ctx context.Context, userID, strategyID string, opts CreateOptions) (*paper.Session, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUnauthorized
	}
	st, err := m.strategies.Get(ctx, strategyID)
	if err != nil {
		return nil, err
	}
	if st.OwnerID != userID {
		return nil, ErrUnauthorized
	}
	if err := strategy.Validate(st, m.schemas); err != nil {
		return nil, err
	}
	if m.defaults.MaxSessions > 0 && len(m.repo.ListByUser(userID)) >= m.defaults.MaxSessions {
		return nil, fmt.Errorf("session limit reached (%d)", m.defaults.MaxSessions)
	}

	capital := opts.InitialCapital
	if capital <= 0 {
		capital = m.defaults.InitialCapital
	}
	risk := opts.RiskPerTrade
	if risk <= 0 {
		risk = m.defaults.RiskPerTrade
	}
	period := strings.TrimSpace(opts.TimePeriod)
	if period == "" {
		period = m.defaults.TimePeriod
	}
	symbols := normalizeSymbols(opts.Symbols)
	if len(symbols) == 0 {
		symbols = normalizeSymbols(st.Symbols)
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("session has no symbols")
	}

	now := time.Now()
	s := &paper.Session{
		ID:             uuid.NewString(),
		UserID:         userID,
		Strategy:       st.Clone(),
		Status:         paper.StatusActive,
		StartTime:      now,
		InitialCapital: capital,
		CurrentCapital: capital,
		CashBalance:    capital,
		Positions:      make(map[string]*paper.Position),
		Settings: paper.Settings{
			Symbols:      symbols,
			TimePeriod:   period,
			RiskPerTrade: risk,
		},
		LastUpdated: now,
	}
	m.repo.Put(s)
	logger.Infof("[session] created %s user=%s strategy=%s capital=%.2f", s.ID, userID, strategyID, capital)
	return s, nil
}

// UpdateSession 用一批行情跑一轮完整更新。已停止的会话原样返回，不再交易。
// 求值失败记入 session.Errors，模拟器照常跑 mark-to-market 和指标重算。
func (m *Manager) UpdateSession(ctx context.Context, id, userID string, md map[string]market.Snapshot) (*paper.Session, error) {
	var out *paper.Session
	err := m.repo.Update(id, func(s *paper.Session) error {
		if s.UserID != userID {
			return ErrUnauthorized
		}
		out = s
		if s.Stopped() {
			return nil
		}
		var signals []paper.Signal
		res, evalErr := m.interp.Run(s.Strategy, md)
		if evalErr != nil {
			s.RecordError(evalErr)
		} else {
			signals = res.Signals
		}
		m.sim.Cycle(ctx, s, signals, md)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// StopSession 把会话置为 stopped（终态）。重复停止是安全的空操作，
// endTime 保持第一次停止时的值。
func (m *Manager) StopSession(ctx context.Context, id, userID string) (*paper.Session, error) {
	var out *paper.Session
	err := m.repo.Update(id, func(s *paper.Session) error {
		if s.UserID != userID {
			return ErrUnauthorized
		}
		out = s
		if s.Stopped() {
			return nil
		}
		now := time.Now()
		s.Status = paper.StatusStopped
		s.EndTime = &now
		s.LastUpdated = now
		logger.Infof("[session] stopped %s user=%s", id, userID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteSession 删除会话，任何状态都可删。返回是否真的删掉了。
func (m *Manager) DeleteSession(ctx context.Context, id, userID string) (bool, error) {
	s, ok := m.repo.Get(id)
	if !ok {
		return false, ErrNotFound
	}
	if s.UserID != userID {
		return false, ErrUnauthorized
	}
	return m.repo.Delete(id), nil
}

// GetSession 按 ID 取会话，带 owner 校验。
func (m *Manager) GetSession(id, userID string) (*paper.Session, error) {
	s, ok := m.repo.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	if s.UserID != userID {
		return nil, ErrUnauthorized
	}
	return s, nil
}

// ListSessions 列出用户的全部会话，新的在前。
func (m *Manager) ListSessions(userID string) []*paper.Session {
	return m.repo.ListByUser(userID)
}

func normalizeSymbols(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, s := range raw {
		sym := strings.ToUpper(strings.TrimSpace(s))
		if sym == "" {
			continue
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	return out
}
