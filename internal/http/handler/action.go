package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"warden.app/bot/internal/audit"
	"warden.app/bot/internal/http/dto"
)

type ActionLister interface {
	ListRecent(ctx context.Context, limit int) ([]audit.Action, error)
	ListForAccount(ctx context.Context, accountID string, limit int) ([]audit.Action, error)
}

type ActionHandler struct {
	actions ActionLister
}

func NewActionHandler(actions ActionLister) *ActionHandler {
	return &ActionHandler{actions: actions}
}

func (h *ActionHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	var (
		actions []audit.Action
		err     error
	)
	if accountID := c.Query("account_id"); accountID != "" {
		actions, err = h.actions.ListForAccount(ctx, accountID, limit)
	} else {
		actions, err = h.actions.ListRecent(ctx, limit)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to list moderation actions", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list actions"})
		return
	}

	resp := make([]dto.ActionResponse, 0, len(actions))
	for _, a := range actions {
		resp = append(resp, dto.ActionResponse{
			ID:              a.ID,
			AccountID:       a.AccountID,
			AccountLabel:    a.AccountLabel,
			ChannelID:       a.ChannelID,
			MessageID:       a.MessageID,
			Verdict:         a.Verdict,
			Reason:          a.Reason,
			Source:          a.Source,
			RestrictedUntil: a.RestrictedUntil,
			CreatedAt:       a.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"actions": resp})
}
