package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"warden.app/bot/internal/http/dto"
	"warden.app/bot/internal/restriction"
)

type RestrictionHandler struct {
	source restriction.Source
}

func NewRestrictionHandler(source restriction.Source) *RestrictionHandler {
	return &RestrictionHandler{source: source}
}

func (h *RestrictionHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	records, err := h.source.ListActive(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list restrictions", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list restrictions"})
		return
	}

	now := time.Now()
	resp := make([]dto.RestrictionResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, dto.RestrictionResponse{
			AccountID:        rec.AccountID,
			Label:            rec.Label,
			ExpiresAt:        rec.ExpiresAt,
			RemainingSeconds: int64(rec.Remaining(now) / time.Second),
		})
	}
	c.JSON(http.StatusOK, gin.H{"restrictions": resp})
}
