package market

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"strato/internal/logger"
)

// ParsePayload 解析 updateSession 请求体：{"BTC": {price, timestamp, history:[...]}, ...}。
// 数字字段允许以字符串形式出现（前端与脚本经常这样发），单个 symbol
// 解析失败只跳过该 symbol。
func ParsePayload(raw []byte) (map[string]Snapshot, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty market data payload")
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("market data payload is not valid json")
	}
	parsed := gjson.ParseBytes(raw)
	if !parsed.IsObject() {
		return nil, fmt.Errorf("market data payload must be an object keyed by symbol")
	}
	out := make(map[string]Snapshot)
	parsed.ForEach(func(key, value gjson.Result) bool {
		symbol := strings.ToUpper(strings.TrimSpace(key.String()))
		if symbol == "" || !value.IsObject() {
			return true
		}
		snap, err := parseSnapshot(symbol, value)
		if err != nil {
			logger.Warnf("[market] skip payload symbol %s: %v", symbol, err)
			return true
		}
		out[symbol] = snap
		return true
	})
	if len(out) == 0 {
		return nil, fmt.Errorf("market data payload contains no usable symbols")
	}
	return out, nil
}

func parseSnapshot(symbol string, value gjson.Result) (Snapshot, error) {
	snap := Snapshot{
		Symbol:    symbol,
		Price:     value.Get("price").Float(),
		Timestamp: value.Get("timestamp").Int(),
	}
	history := value.Get("history")
	if history.Exists() && !history.IsArray() {
		return Snapshot{}, fmt.Errorf("history must be an array")
	}
	var badCandle error
	history.ForEach(func(_, c gjson.Result) bool {
		if !c.IsObject() {
			badCandle = fmt.Errorf("history entries must be objects")
			return false
		}
		snap.History = append(snap.History, Candle{
			Time:   c.Get("time").Int(),
			Open:   c.Get("open").Float(),
			High:   c.Get("high").Float(),
			Low:    c.Get("low").Float(),
			Close:  c.Get("close").Float(),
			Volume: c.Get("volume").Float(),
		})
		return true
	})
	if badCandle != nil {
		return Snapshot{}, badCandle
	}
	if snap.Price <= 0 {
		if last, ok := snap.Last(); ok {
			snap.Price = last.Close
		}
	}
	if snap.Price <= 0 {
		return Snapshot{}, fmt.Errorf("price missing")
	}
	return snap, nil
}
