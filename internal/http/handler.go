package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"sentry-service/internal/service"
	"sentry-service/internal/watcher"
)

type Handler struct {
	watchService *service.WatchService
	watch        *watcher.Watcher
	log          zerolog.Logger
}

func NewHandler(
	watchService *service.WatchService,
	watch *watcher.Watcher,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		watchService: watchService,
		watch:        watch,
		log:          log,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	r.GET("/healthz", h.healthz)

	// Public endpoints
	public := r.Group("/api/v1")
	{
		public.GET("/events", h.listEvents)
	}

	// Protected endpoints
	protected := r.Group("/api/v1")
	protected.Use(authMiddleware)
	{
		protected.GET("/events/:id/image", h.getEventImage)
		protected.POST("/events/cleanup", h.cleanupEvents)
	}
}

func (h *Handler) healthz(c *gin.Context) {
	stats := h.watch.Stats()
	status := http.StatusOK
	if stats.State != watcher.StateRunning {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, stats)
}

func (h *Handler) listEvents(c *gin.Context) {
	var from, to *string
	if f := strings.TrimSpace(c.Query("from")); f != "" {
		from = &f
	}
	if t := strings.TrimSpace(c.Query("to")); t != "" {
		to = &t
	}

	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	offset := 0
	if o := c.Query("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	events, err := h.watchService.FindEvents(c.Request.Context(), from, to, limit, offset)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(events))
}

func (h *Handler) getEventImage(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid event id"))
		return
	}

	image, err := h.watchService.GetEventImage(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Data(http.StatusOK, "image/jpeg", image)
}

func (h *Handler) cleanupEvents(c *gin.Context) {
	days := 30
	if d := c.Query("days"); d != "" {
		parsed, err := strconv.Atoi(d)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("invalid days parameter"))
			return
		}
		days = parsed
	}

	deleted, err := h.watchService.CleanupOldEvents(c.Request.Context(), days)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"deleted": deleted,
	})
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}
