package tally

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sentiment-api/internal/shared/server/respond"
	"sentiment-api/internal/shared/telemetry"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/sentiment/stats", h.stats)
}

func (h *Handler) stats(c *gin.Context) {
	if h.Svc == nil {
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternalError, "service unavailable", nil)
		return
	}
	snap, err := h.Svc.Snapshot(c.Request.Context())
	if err != nil {
		telemetry.Error("tally.snapshot_failed", map[string]any{"error": err})
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternalError, "failed to load sentiment stats", nil)
		return
	}
	respond.OK(c, snap)
}
