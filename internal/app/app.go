package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"strato/internal/action"
	"strato/internal/condition"
	"strato/internal/config"
	"strato/internal/engine"
	"strato/internal/indicator"
	"strato/internal/logger"
	"strato/internal/market"
	"strato/internal/paper"
	"strato/internal/paper/journal"
	"strato/internal/session"
	"strato/internal/strategy"
	"strato/internal/strategy/schema"
	apihttp "strato/internal/transport/http"
)

// App 负责应用级编排：加载配置→初始化依赖→启动 HTTP 服务。
type App struct {
	cfg        *config.Config
	strategies *strategy.Store
	journal    *journal.Store
	server     *apihttp.Server
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)

	strategies, err := strategy.NewStore(cfg.Store.StrategyDB)
	if err != nil {
		return nil, fmt.Errorf("open strategy store: %w", err)
	}
	txJournal, err := journal.NewStore(cfg.Store.JournalDB)
	if err != nil {
		_ = strategies.Close()
		return nil, fmt.Errorf("open journal store: %w", err)
	}
	schemas, err := schema.NewRegistry(cfg.Blocks.SchemaPath)
	if err != nil {
		_ = strategies.Close()
		_ = txJournal.Close()
		return nil, fmt.Errorf("load block schemas: %w", err)
	}

	interp := engine.NewInterpreter(indicator.NewRegistry(), condition.NewRegistry(), action.NewRegistry())
	sim := paper.NewSimulator(txJournal)
	repo := session.NewMemoryRepository()
	manager := session.NewManager(repo, strategies, schemas, interp, sim, cfg.Paper)
	collector := market.NewCollector(market.NewStaticProvider())

	server, err := apihttp.NewServer(apihttp.ServerConfig{
		Addr:       cfg.App.Addr,
		Strategies: strategies,
		Schemas:    schemas,
		Sessions:   manager,
		Collector:  collector,
	})
	if err != nil {
		_ = strategies.Close()
		_ = txJournal.Close()
		return nil, err
	}

	return &App{
		cfg:        cfg,
		strategies: strategies,
		journal:    txJournal,
		server:     server,
	}, nil
}

// Run 启动 HTTP 服务，直到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	logger.Infof("strato listening on %s (env=%s)", a.server.Addr(), a.cfg.App.Env)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	err := group.Wait()
	a.Close()
	return err
}

// Close 释放持久化资源。
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.strategies != nil {
		_ = a.strategies.Close()
	}
	if a.journal != nil {
		_ = a.journal.Close()
	}
}
