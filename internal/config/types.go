package config

import (
	"fmt"
	"strings"
)

// Config 汇总 strato 的全部运行配置。
type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Store  StoreConfig  `mapstructure:"store"`
	Paper  PaperConfig  `mapstructure:"paper"`
	Blocks BlocksConfig `mapstructure:"blocks"`
}

// AppConfig 描述进程级配置。
type AppConfig struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
	LogPath  string `mapstructure:"log_path"`
	Addr     string `mapstructure:"addr"`
}

// StoreConfig 描述持久化路径。
type StoreConfig struct {
	StrategyDB string `mapstructure:"strategy_db"`
	JournalDB  string `mapstructure:"journal_db"`
}

// PaperConfig 描述模拟盘会话的默认参数。
type PaperConfig struct {
	InitialCapital float64 `mapstructure:"initial_capital"`
	RiskPerTrade   float64 `mapstructure:"risk_per_trade"`
	TimePeriod     string  `mapstructure:"time_period"`
	MaxSessions    int     `mapstructure:"max_sessions"`
}

// BlocksConfig 指向积木 schema 模板文件。
type BlocksConfig struct {
	SchemaPath string `mapstructure:"schema_path"`
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.App.Env) == "" {
		c.App.Env = "dev"
	}
	if strings.TrimSpace(c.App.LogLevel) == "" {
		c.App.LogLevel = "info"
	}
	if strings.TrimSpace(c.App.Addr) == "" {
		c.App.Addr = ":9980"
	}
	if strings.TrimSpace(c.Store.StrategyDB) == "" {
		c.Store.StrategyDB = "data/strategies.db"
	}
	if strings.TrimSpace(c.Store.JournalDB) == "" {
		c.Store.JournalDB = "data/journal.db"
	}
	if c.Paper.InitialCapital <= 0 {
		c.Paper.InitialCapital = 10000
	}
	if c.Paper.RiskPerTrade <= 0 {
		c.Paper.RiskPerTrade = 0.02
	}
	if strings.TrimSpace(c.Paper.TimePeriod) == "" {
		c.Paper.TimePeriod = "1d"
	}
	if c.Paper.MaxSessions <= 0 {
		c.Paper.MaxSessions = 50
	}
	if strings.TrimSpace(c.Blocks.SchemaPath) == "" {
		c.Blocks.SchemaPath = "configs/blocks.yaml"
	}
}

func validate(c *Config) error {
	if c.Paper.RiskPerTrade > 1 {
		return fmt.Errorf("paper.risk_per_trade 必须是 0-1 的小数，收到 %.2f", c.Paper.RiskPerTrade)
	}
	switch strings.ToLower(strings.TrimSpace(c.App.LogLevel)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("app.log_level 无效: %s", c.App.LogLevel)
	}
	return nil
}
