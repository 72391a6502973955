package apihttp

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"strato/internal/logger"
	"strato/internal/market"
	"strato/internal/session"
	"strato/internal/strategy"
)

// SessionRouter 模拟盘会话接口。更新接口既接受推送的行情 payload，
// 也可以空 body 触发服务端自行采集。
type SessionRouter struct {
	Manager   *session.Manager
	Collector *market.Collector
}

// Register 将会话路由挂载到给定分组下。
func (r *SessionRouter) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("", r.handleCreate)
	group.GET("", r.handleList)
	group.GET("/:id", r.handleGet)
	group.POST("/:id/update", r.handleUpdate)
	group.POST("/:id/stop", r.handleStop)
	group.DELETE("/:id", r.handleDelete)
}

type createSessionRequest struct {
	StrategyID string                `json:"strategy_id"`
	Options    session.CreateOptions `json:"options"`
}

func (r *SessionRouter) handleCreate(c *gin.Context) {
	userID := callerID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing X-User-ID"})
		return
	}
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s, err := r.Manager.CreateSession(c.Request.Context(), userID, req.StrategyID, req.Options)
	if err != nil {
		writeSessionError(c, err)
		return
	}
	logger.Infof("[api] session created id=%s user=%s ip=%s", s.ID, userID, c.ClientIP())
	c.JSON(http.StatusCreated, s)
}

func (r *SessionRouter) handleList(c *gin.Context) {
	userID := callerID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing X-User-ID"})
		return
	}
	list := r.Manager.ListSessions(userID)
	c.JSON(http.StatusOK, gin.H{"sessions": list, "total": len(list)})
}

func (r *SessionRouter) handleGet(c *gin.Context) {
	s, err := r.Manager.GetSession(c.Param("id"), callerID(c))
	if err != nil {
		writeSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (r *SessionRouter) handleUpdate(c *gin.Context) {
	userID := callerID(c)
	id := c.Param("id")
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var md map[string]market.Snapshot
	if len(body) > 0 {
		md, err = market.ParsePayload(body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	} else {
		// 空 body：按会话自身的 symbol 列表采集行情。
		s, err := r.Manager.GetSession(id, userID)
		if err != nil {
			writeSessionError(c, err)
			return
		}
		if r.Collector == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "market data payload required"})
			return
		}
		md, _ = r.Collector.Collect(c.Request.Context(), s.Settings.Symbols, s.Settings.TimePeriod)
	}
	s, err := r.Manager.UpdateSession(c.Request.Context(), id, userID, md)
	if err != nil {
		writeSessionError(c, err)
		return
	}
	logger.Debugf("[api] session updated id=%s symbols=%d ip=%s", id, len(md), c.ClientIP())
	c.JSON(http.StatusOK, s)
}

func (r *SessionRouter) handleStop(c *gin.Context) {
	s, err := r.Manager.StopSession(c.Request.Context(), c.Param("id"), callerID(c))
	if err != nil {
		writeSessionError(c, err)
		return
	}
	logger.Infof("[api] session stopped id=%s ip=%s", s.ID, c.ClientIP())
	c.JSON(http.StatusOK, s)
}

func (r *SessionRouter) handleDelete(c *gin.Context) {
	deleted, err := r.Manager.DeleteSession(c.Request.Context(), c.Param("id"), callerID(c))
	if err != nil {
		writeSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func writeSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, strategy.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		logger.Errorf("[api] session op failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}
