package strategy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type strategyModel struct {
	ID        string         `gorm:"column:id;primaryKey"`
	OwnerID   string         `gorm:"column:owner_id;index"`
	Name      string         `gorm:"column:name"`
	Blocks    datatypes.JSON `gorm:"column:blocks;type:TEXT"`
	Symbols   datatypes.JSON `gorm:"column:symbols;type:TEXT"`
	Timeframe string         `gorm:"column:timeframe"`
	CreatedAt int64          `gorm:"column:created_at"`
	UpdatedAt int64          `gorm:"column:updated_at"`
}

func (strategyModel) TableName() string { return "strategies" }

// Store 基于 Gorm + SQLite 的策略文档存储。
type Store struct {
	db *gorm.DB
}

// NewStore 打开（必要时创建）策略库。
func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("strategy store: 数据库路径不能为空")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&strategyModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: keep connection count low to avoid lock contention.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Create persists a new strategy, assigning an id and timestamps.
func (s *Store) Create(ctx context.Context, st *Strategy) (*Strategy, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("strategy store 未初始化")
	}
	if st == nil {
		return nil, fmt.Errorf("strategy is nil")
	}
	now := time.Now()
	st.ID = uuid.NewString()
	st.CreatedAt = now
	st.UpdatedAt = now
	model, err := toModel(st)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return nil, err
	}
	return st, nil
}

// Get fetches one strategy by id.
func (s *Store) Get(ctx context.Context, id string) (*Strategy, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("strategy store 未初始化")
	}
	var model strategyModel
	if err := s.db.WithContext(ctx).Where("id = ?", strings.TrimSpace(id)).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return fromModel(model)
}

// ListByOwner returns all strategies belonging to ownerID, newest first.
func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]*Strategy, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("strategy store 未初始化")
	}
	var models []strategyModel
	if err := s.db.WithContext(ctx).
		Where("owner_id = ?", strings.TrimSpace(ownerID)).
		Order("updated_at DESC, id DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*Strategy, 0, len(models))
	for _, m := range models {
		st, err := fromModel(m)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// Update replaces the mutable fields of an existing strategy.
func (s *Store) Update(ctx context.Context, st *Strategy) (*Strategy, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("strategy store 未初始化")
	}
	if st == nil || strings.TrimSpace(st.ID) == "" {
		return nil, fmt.Errorf("strategy id is required")
	}
	st.UpdatedAt = time.Now()
	model, err := toModel(st)
	if err != nil {
		return nil, err
	}
	res := s.db.WithContext(ctx).Model(&strategyModel{}).
		Where("id = ?", st.ID).
		Updates(map[string]interface{}{
			"name":       model.Name,
			"blocks":     model.Blocks,
			"symbols":    model.Symbols,
			"timeframe":  model.Timeframe,
			"updated_at": model.UpdatedAt,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return st, nil
}

// Delete removes a strategy. Returns ErrNotFound if nothing matched.
func (s *Store) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("strategy store 未初始化")
	}
	res := s.db.WithContext(ctx).Where("id = ?", strings.TrimSpace(id)).Delete(&strategyModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func toModel(st *Strategy) (strategyModel, error) {
	blocks, err := json.Marshal(st.Blocks)
	if err != nil {
		return strategyModel{}, err
	}
	symbols, err := json.Marshal(st.Symbols)
	if err != nil {
		return strategyModel{}, err
	}
	return strategyModel{
		ID:        st.ID,
		OwnerID:   strings.TrimSpace(st.OwnerID),
		Name:      strings.TrimSpace(st.Name),
		Blocks:    datatypes.JSON(blocks),
		Symbols:   datatypes.JSON(symbols),
		Timeframe: strings.TrimSpace(st.Timeframe),
		CreatedAt: st.CreatedAt.UnixMilli(),
		UpdatedAt: st.UpdatedAt.UnixMilli(),
	}, nil
}

func fromModel(m strategyModel) (*Strategy, error) {
	st := &Strategy{
		ID:        m.ID,
		OwnerID:   m.OwnerID,
		Name:      m.Name,
		Timeframe: m.Timeframe,
		CreatedAt: time.UnixMilli(m.CreatedAt),
		UpdatedAt: time.UnixMilli(m.UpdatedAt),
	}
	if len(m.Blocks) > 0 {
		if err := json.Unmarshal(m.Blocks, &st.Blocks); err != nil {
			return nil, fmt.Errorf("strategy %s blocks corrupted: %w", m.ID, err)
		}
	}
	if len(m.Symbols) > 0 {
		if err := json.Unmarshal(m.Symbols, &st.Symbols); err != nil {
			return nil, fmt.Errorf("strategy %s symbols corrupted: %w", m.ID, err)
		}
	}
	return st, nil
}
