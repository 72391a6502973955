package apihttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"strato/internal/logger"
	"strato/internal/market"
	"strato/internal/session"
	"strato/internal/strategy"
	"strato/internal/strategy/schema"
)

// Server 对外 HTTP 服务：策略 CRUD 与模拟盘会话操作。
type Server struct {
	addr   string
	router *gin.Engine
}

// ServerConfig 描述 HTTP 服务依赖。
type ServerConfig struct {
	Addr       string
	Strategies *strategy.Store
	Schemas    *schema.Registry
	Sessions   *session.Manager
	Collector  *market.Collector
}

// NewServer 构建 HTTP server。
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Strategies == nil || cfg.Sessions == nil {
		return nil, errors.New("http server requires strategy store and session manager")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9980"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	strategyRouter := &StrategyRouter{Store: cfg.Strategies, Schemas: cfg.Schemas}
	strategyRouter.Register(router.Group("/api/strategies"))

	sessionRouter := &SessionRouter{Manager: cfg.Sessions, Collector: cfg.Collector}
	sessionRouter.Register(router.Group("/api/paper/sessions"))

	return &Server{addr: cfg.Addr, router: router}, nil
}

// requestLogger 记录接口调用，便于追踪前端操作。
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		client := c.ClientIP()
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s", method, path, c.Writer.Status(), client, time.Since(start))
	}
}

// Addr 返回监听地址。
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start 启动 HTTP 服务，直到 ctx 取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

// callerID 从请求头取调用者身份。身份网关在上游，这里只信任透传的头。
func callerID(c *gin.Context) string {
	return c.GetHeader("X-User-ID")
}
