package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"log/slog"
)

// 包级日志函数，会话循环、模拟器和 API 层共用。级别与输出
// 由配置在进程启动时设置，之后可随时改。

var (
	levelVar slog.LevelVar // zero value is info
	outputMu sync.RWMutex
	output   = newSlog(os.Stdout)
)

func newSlog(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: &levelVar}))
}

// SetOutput 重定向日志输出（主进程用 MultiWriter 同时写 stdout 与文件）。
func SetOutput(w io.Writer) {
	outputMu.Lock()
	output = newSlog(w)
	outputMu.Unlock()
}

// SetLevel 接受 debug/info/warn/error，其他值按 info 处理。
func SetLevel(level string) {
	levelVar.Set(parseLevel(level))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func active() *slog.Logger {
	outputMu.RLock()
	defer outputMu.RUnlock()
	return output
}

func Debugf(format string, v ...any) {
	active().Debug(fmt.Sprintf(format, v...))
}

func Infof(format string, v ...any) {
	active().Info(fmt.Sprintf(format, v...))
}

func Warnf(format string, v ...any) {
	active().Warn(fmt.Sprintf(format, v...))
}

func Errorf(format string, v ...any) {
	active().Error(fmt.Sprintf(format, v...))
}
