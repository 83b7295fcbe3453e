package worker

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler exposes the worker registry over the admin API.
type Handler struct {
	Registry *Registry
}

func NewHandler(registry *Registry) *Handler {
	return &Handler{Registry: registry}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/status", h.status)    // GET  /admin/api/workers/status
	rg.POST("/:id/start", h.start) // POST /admin/api/workers/:id/start
	rg.POST("/:id/stop", h.stop)   // POST /admin/api/workers/:id/stop
}

func (h *Handler) status(c *gin.Context) {
	c.JSON(http.StatusOK, h.Registry.StatusAll())
}

func (h *Handler) start(c *gin.Context) {
	if h.Registry.Start(c.Param("id")) {
		c.JSON(http.StatusOK, gin.H{"status": "started"})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "failed to start worker or already running"})
}

func (h *Handler) stop(c *gin.Context) {
	if h.Registry.Stop(c.Param("id")) {
		c.JSON(http.StatusOK, gin.H{"status": "stopped"})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "failed to stop worker or not running"})
}
