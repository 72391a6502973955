package apihttp

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"strato/internal/logger"
	"strato/internal/strategy"
	"strato/internal/strategy/schema"
)

// StrategyRouter 策略文档的 CRUD 接口。
type StrategyRouter struct {
	Store   *strategy.Store
	Schemas *schema.Registry
}

// Register 将策略路由挂载到给定分组下。
func (r *StrategyRouter) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("", r.handleCreate)
	group.GET("", r.handleList)
	group.GET("/:id", r.handleGet)
	group.PUT("/:id", r.handleUpdate)
	group.DELETE("/:id", r.handleDelete)
}

type strategyRequest struct {
	Name      string           `json:"name"`
	Blocks    []strategy.Block `json:"blocks"`
	Symbols   []string         `json:"symbols"`
	Timeframe string           `json:"timeframe"`
}

func (r *StrategyRouter) handleCreate(c *gin.Context) {
	userID := callerID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing X-User-ID"})
		return
	}
	var req strategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st := &strategy.Strategy{
		OwnerID:   userID,
		Name:      req.Name,
		Blocks:    req.Blocks,
		Symbols:   req.Symbols,
		Timeframe: req.Timeframe,
	}
	if err := strategy.Validate(st, r.Schemas); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	created, err := r.Store.Create(c.Request.Context(), st)
	if err != nil {
		logger.Errorf("[api] strategy create failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("[api] strategy created id=%s user=%s ip=%s", created.ID, userID, c.ClientIP())
	c.JSON(http.StatusCreated, created)
}

func (r *StrategyRouter) handleList(c *gin.Context) {
	userID := callerID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing X-User-ID"})
		return
	}
	list, err := r.Store.ListByOwner(c.Request.Context(), userID)
	if err != nil {
		logger.Errorf("[api] strategy list failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"strategies": list, "total": len(list)})
}

func (r *StrategyRouter) handleGet(c *gin.Context) {
	userID := callerID(c)
	st, err := r.Store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, strategy.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "strategy not found"})
			return
		}
		logger.Errorf("[api] strategy get failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if st.OwnerID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "strategy does not belong to caller"})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (r *StrategyRouter) handleUpdate(c *gin.Context) {
	userID := callerID(c)
	existing, err := r.Store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, strategy.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "strategy not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if existing.OwnerID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "strategy does not belong to caller"})
		return
	}
	var req strategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	existing.Name = req.Name
	existing.Blocks = req.Blocks
	existing.Symbols = req.Symbols
	existing.Timeframe = req.Timeframe
	if err := strategy.Validate(existing, r.Schemas); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	updated, err := r.Store.Update(c.Request.Context(), existing)
	if err != nil {
		logger.Errorf("[api] strategy update failed id=%s ip=%s err=%v", existing.ID, c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (r *StrategyRouter) handleDelete(c *gin.Context) {
	userID := callerID(c)
	existing, err := r.Store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, strategy.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "strategy not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if existing.OwnerID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "strategy does not belong to caller"})
		return
	}
	if err := r.Store.Delete(c.Request.Context(), existing.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("[api] strategy deleted id=%s user=%s ip=%s", existing.ID, userID, c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
