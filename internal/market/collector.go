package market

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"strato/internal/logger"
)

// Collector 并发收集多个 symbol 的行情。单个 symbol 失败只记录，
// 不会中断同一轮里其它 symbol 的采集。
type Collector struct {
	provider Provider
	limit    int
}

func NewCollector(provider Provider) *Collector {
	return &Collector{provider: provider, limit: 4}
}

// Collect returns a snapshot per symbol plus a per-symbol error map for the
// ones that failed. Only a nil provider is a hard error for the whole call.
func (c *Collector) Collect(ctx context.Context, symbols []string, timePeriod string) (map[string]Snapshot, map[string]error) {
	snapshots := make(map[string]Snapshot, len(symbols))
	failures := make(map[string]error)
	if c == nil || c.provider == nil || len(symbols) == 0 {
		return snapshots, failures
	}

	var mu sync.Mutex
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(c.limit)
	for _, raw := range symbols {
		symbol := strings.ToUpper(strings.TrimSpace(raw))
		if symbol == "" {
			continue
		}
		group.Go(func() error {
			snap, err := c.provider.GetMarketData(ctx, symbol, timePeriod)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Warnf("[market] collect %s failed: %v", symbol, err)
				failures[symbol] = err
				return nil
			}
			snap.Symbol = symbol
			snapshots[symbol] = snap
			return nil
		})
	}
	_ = group.Wait()
	return snapshots, failures
}
