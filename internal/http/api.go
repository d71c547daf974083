package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"edopro-pics/internal/domain"
	"edopro-pics/internal/downloader"
	"edopro-pics/internal/picsdir"
	"edopro-pics/internal/service"
)

// Handler wires HTTP routes to the download manager and run history.
type Handler struct {
	manager downloader.Manager
	runs    service.RunService
}

func NewHandler(manager downloader.Manager, runs service.RunService) *Handler {
	return &Handler{
		manager: manager,
		runs:    runs,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	api := router.Group("/api")
	{
		api.POST("/start", h.startRun)
		api.POST("/pause", h.pauseRun)
		api.POST("/resume", h.resumeRun)
		api.POST("/cancel", h.cancelRun)
		api.GET("/status", h.status)
		api.POST("/preview", h.preview)
		api.POST("/validate-path", h.validatePath)
		api.GET("/last-path", h.lastPath)
		api.GET("/runs", h.listRuns)
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

type validatePathRequest struct {
	Path string `json:"path" binding:"required"`
}

func (h *Handler) startRun(c *gin.Context) {
	var opts downloader.RunOptions
	if err := c.ShouldBindJSON(&opts); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.manager.StartRun(opts); err != nil {
		if errors.Is(err, domain.ErrAlreadyRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": "a download is already running"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"started": true})
}

func (h *Handler) pauseRun(c *gin.Context) {
	h.manager.Pause()
	c.JSON(http.StatusOK, gin.H{"paused": true})
}

func (h *Handler) resumeRun(c *gin.Context) {
	h.manager.Resume()
	c.JSON(http.StatusOK, gin.H{"paused": false})
}

func (h *Handler) cancelRun(c *gin.Context) {
	h.manager.Cancel()
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

func (h *Handler) status(c *gin.Context) {
	c.JSON(http.StatusOK, h.manager.Status())
}

func (h *Handler) preview(c *gin.Context) {
	var opts downloader.RunOptions
	if err := c.ShouldBindJSON(&opts); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	preview, err := h.manager.Preview(c.Request.Context(), opts)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidPicsDir) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, preview)
}

func (h *Handler) validatePath(c *gin.Context) {
	var req validatePathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	info := picsdir.Analyze(req.Path)
	if info.Valid() && h.runs != nil {
		// remembered so the UI can preselect it next session
		_ = h.runs.RememberPicsPath(c.Request.Context(), info.Path)
	}

	c.JSON(http.StatusOK, info)
}

func (h *Handler) lastPath(c *gin.Context) {
	if h.runs == nil {
		c.JSON(http.StatusOK, gin.H{"path": ""})
		return
	}

	path, err := h.runs.LastPicsPath(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"path": path})
}

func (h *Handler) listRuns(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	if h.runs == nil {
		c.JSON(http.StatusOK, []domain.RunRecord{})
		return
	}

	records, err := h.runs.ListRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if records == nil {
		records = []domain.RunRecord{}
	}

	c.JSON(http.StatusOK, records)
}
