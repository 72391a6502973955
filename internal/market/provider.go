package market

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Provider 行情数据的外部协作方。实现方负责抓取与缓存，
// strato 自身从不直接请求第三方行情。
type Provider interface {
	GetMarketData(ctx context.Context, symbol, timePeriod string) (Snapshot, error)
}

// StaticProvider serves snapshots from a fixed in-memory map. It backs tests
// and the HTTP path where the caller supplies market data directly.
type StaticProvider struct {
	mu        sync.RWMutex
	snapshots map[string]Snapshot
}

func NewStaticProvider() *StaticProvider {
	return &StaticProvider{snapshots: make(map[string]Snapshot)}
}

// Put 写入/覆盖某个 symbol 的快照。
func (p *StaticProvider) Put(snap Snapshot) {
	sym := strings.ToUpper(strings.TrimSpace(snap.Symbol))
	if sym == "" {
		return
	}
	snap.Symbol = sym
	p.mu.Lock()
	p.snapshots[sym] = snap
	p.mu.Unlock()
}

func (p *StaticProvider) GetMarketData(_ context.Context, symbol, _ string) (Snapshot, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	p.mu.RLock()
	snap, ok := p.snapshots[sym]
	p.mu.RUnlock()
	if !ok {
		return Snapshot{}, fmt.Errorf("no market data for %s", sym)
	}
	return snap, nil
}
