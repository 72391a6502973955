package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"strato/internal/action"
	"strato/internal/condition"
	"strato/internal/config"
	"strato/internal/engine"
	"strato/internal/indicator"
	"strato/internal/market"
	"strato/internal/paper"
	"strato/internal/strategy"
)

type MockStrategySource struct {
	mock.Mock
}

func (m *MockStrategySource) Get(ctx context.Context, id string) (*strategy.Strategy, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*strategy.Strategy), args.Error(1)
}

// allowAllSchemas 接受任何子类型，settings 不校验。
type allowAllSchemas struct{}

func (allowAllSchemas) KnownSubtype(kind, subtype string) bool { return true }
func (allowAllSchemas) ValidateSettings(kind, subtype string, settings map[string]any) error {
	return nil
}

func testStrategy(owner string) *strategy.Strategy {
	return &strategy.Strategy{
		ID:      "strat-1",
		OwnerID: owner,
		Name:    "trend follower",
		Symbols: []string{"BTC"},
		Blocks: []strategy.Block{
			{ID: "c1", Type: "condition", Subtype: "threshold", Settings: map[string]any{"source": "btc.close", "operator": ">", "value": 0}},
			{ID: "a1", Type: "action", Subtype: "buy", Settings: map[string]any{"symbol": "BTC", "quantity": 1}},
		},
	}
}

func newTestManager(t *testing.T, src StrategySource) *Manager {
	t.Helper()
	interp := engine.NewInterpreter(indicator.NewRegistry(), condition.NewRegistry(), action.NewRegistry())
	return NewManager(
		NewMemoryRepository(),
		src,
		allowAllSchemas{},
		interp,
		paper.NewSimulator(nil),
		config.PaperConfig{InitialCapital: 10000, RiskPerTrade: 0.02, TimePeriod: "1d", MaxSessions: 5},
	)
}

func marketData(price float64) map[string]market.Snapshot {
	return map[string]market.Snapshot{
		"BTC": {Symbol: "BTC", Price: price, History: []market.Candle{
			{Open: price - 2, High: price - 1, Low: price - 3, Close: price - 1},
			{Open: price - 1, High: price + 1, Low: price - 2, Close: price},
		}},
	}
}

func TestCreateSessionSnapshotsStrategy(t *testing.T) {
	src := new(MockStrategySource)
	st := testStrategy("user-1")
	src.On("Get", mock.Anything, "strat-1").Return(st, nil)
	m := newTestManager(t, src)

	s, err := m.CreateSession(context.Background(), "user-1", "strat-1", CreateOptions{})
	assert.NoError(t, err)
	assert.Equal(t, paper.StatusActive, s.Status)
	assert.Equal(t, 10000.0, s.CashBalance)
	assert.Equal(t, []string{"BTC"}, s.Settings.Symbols)

	// 会话持有快照：改原策略不影响会话。
	st.Name = "renamed"
	assert.Equal(t, "trend follower", s.Strategy.Name)
	src.AssertExpectations(t)
}

func TestCreateSessionRejectsForeignStrategy(t *testing.T) {
	src := new(MockStrategySource)
	src.On("Get", mock.Anything, "strat-1").Return(testStrategy("someone-else"), nil)
	m := newTestManager(t, src)

	_, err := m.CreateSession(context.Background(), "user-1", "strat-1", CreateOptions{})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestCreateSessionOverrides(t *testing.T) {
	src := new(MockStrategySource)
	src.On("Get", mock.Anything, "strat-1").Return(testStrategy("user-1"), nil)
	m := newTestManager(t, src)

	s, err := m.CreateSession(context.Background(), "user-1", "strat-1", CreateOptions{
		InitialCapital: 5000,
		RiskPerTrade:   0.1,
		Symbols:        []string{"eth", "ETH", "btc"},
		TimePeriod:     "4h",
	})
	assert.NoError(t, err)
	assert.Equal(t, 5000.0, s.InitialCapital)
	assert.Equal(t, 0.1, s.Settings.RiskPerTrade)
	assert.Equal(t, []string{"ETH", "BTC"}, s.Settings.Symbols)
	assert.Equal(t, "4h", s.Settings.TimePeriod)
}

func TestUpdateSessionExecutesSignals(t *testing.T) {
	src := new(MockStrategySource)
	src.On("Get", mock.Anything, "strat-1").Return(testStrategy("user-1"), nil)
	m := newTestManager(t, src)
	s, err := m.CreateSession(context.Background(), "user-1", "strat-1", CreateOptions{})
	assert.NoError(t, err)

	updated, err := m.UpdateSession(context.Background(), s.ID, "user-1", marketData(100))
	assert.NoError(t, err)
	assert.Empty(t, updated.Errors)
	assert.Contains(t, updated.Positions, "BTC")
	assert.Equal(t, 9900.0, updated.CashBalance)
	assert.Len(t, updated.Transactions, 1)
}

func TestUpdateSessionAuthAndNotFound(t *testing.T) {
	src := new(MockStrategySource)
	src.On("Get", mock.Anything, "strat-1").Return(testStrategy("user-1"), nil)
	m := newTestManager(t, src)
	s, _ := m.CreateSession(context.Background(), "user-1", "strat-1", CreateOptions{})

	_, err := m.UpdateSession(context.Background(), s.ID, "intruder", marketData(100))
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = m.UpdateSession(context.Background(), "nope", "user-1", marketData(100))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStoppedSessionIsNoOp(t *testing.T) {
	src := new(MockStrategySource)
	src.On("Get", mock.Anything, "strat-1").Return(testStrategy("user-1"), nil)
	m := newTestManager(t, src)
	s, _ := m.CreateSession(context.Background(), "user-1", "strat-1", CreateOptions{})
	_, err := m.StopSession(context.Background(), s.ID, "user-1")
	assert.NoError(t, err)

	updated, err := m.UpdateSession(context.Background(), s.ID, "user-1", marketData(100))
	assert.NoError(t, err)
	assert.Empty(t, updated.Positions)
	assert.Empty(t, updated.Transactions)
}

func TestStopSessionTwiceKeepsEndTime(t *testing.T) {
	src := new(MockStrategySource)
	src.On("Get", mock.Anything, "strat-1").Return(testStrategy("user-1"), nil)
	m := newTestManager(t, src)
	s, _ := m.CreateSession(context.Background(), "user-1", "strat-1", CreateOptions{})

	first, err := m.StopSession(context.Background(), s.ID, "user-1")
	assert.NoError(t, err)
	assert.Equal(t, paper.StatusStopped, first.Status)
	assert.NotNil(t, first.EndTime)
	endAt := *first.EndTime

	second, err := m.StopSession(context.Background(), s.ID, "user-1")
	assert.NoError(t, err)
	assert.Equal(t, paper.StatusStopped, second.Status)
	assert.Equal(t, endAt, *second.EndTime)
}

func TestDeleteSession(t *testing.T) {
	src := new(MockStrategySource)
	src.On("Get", mock.Anything, "strat-1").Return(testStrategy("user-1"), nil)
	m := newTestManager(t, src)
	s, _ := m.CreateSession(context.Background(), "user-1", "strat-1", CreateOptions{})

	_, err := m.DeleteSession(context.Background(), s.ID, "intruder")
	assert.ErrorIs(t, err, ErrUnauthorized)

	deleted, err := m.DeleteSession(context.Background(), s.ID, "user-1")
	assert.NoError(t, err)
	assert.True(t, deleted)

	_, err = m.GetSession(s.ID, "user-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListSessionsPerUser(t *testing.T) {
	src := new(MockStrategySource)
	src.On("Get", mock.Anything, "strat-1").Return(testStrategy("user-1"), nil)
	m := newTestManager(t, src)
	_, err := m.CreateSession(context.Background(), "user-1", "strat-1", CreateOptions{})
	assert.NoError(t, err)

	assert.Len(t, m.ListSessions("user-1"), 1)
	assert.Empty(t, m.ListSessions("user-2"))
}

func TestSessionLimit(t *testing.T) {
	src := new(MockStrategySource)
	src.On("Get", mock.Anything, "strat-1").Return(testStrategy("user-1"), nil)
	interp := engine.NewInterpreter(indicator.NewRegistry(), condition.NewRegistry(), action.NewRegistry())
	m := NewManager(NewMemoryRepository(), src, allowAllSchemas{}, interp, paper.NewSimulator(nil),
		config.PaperConfig{InitialCapital: 1000, RiskPerTrade: 0.02, TimePeriod: "1d", MaxSessions: 1})

	_, err := m.CreateSession(context.Background(), "user-1", "strat-1", CreateOptions{})
	assert.NoError(t, err)
	_, err = m.CreateSession(context.Background(), "user-1", "strat-1", CreateOptions{})
	assert.ErrorContains(t, err, "session limit")
}
