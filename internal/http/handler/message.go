package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"warden.app/bot/internal/http/dto"
	"warden.app/bot/internal/moderation"
)

type MessageModerator interface {
	HandleMessage(ctx context.Context, msg moderation.Message) (moderation.Outcome, error)
}

type MessageHandler struct {
	moderator MessageModerator
}

func NewMessageHandler(moderator MessageModerator) *MessageHandler {
	return &MessageHandler{moderator: moderator}
}

func (h *MessageHandler) Ingest(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.IngestMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid ingest request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcome, err := h.moderator.HandleMessage(ctx, moderation.Message{
		ID:           req.MessageID,
		ChannelID:    req.ChannelID,
		AccountID:    req.AccountID,
		AccountLabel: req.AccountLabel,
		Content:      req.Content,
		ImageURLs:    req.ImageURLs,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to moderate message", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to moderate message"})
		return
	}

	resp := dto.IngestMessageResponse{
		Verdict:    string(outcome.Verdict),
		Reason:     outcome.Reason,
		Source:     outcome.Source,
		Duplicate:  outcome.Duplicate,
		Restricted: outcome.Restricted,
	}
	if outcome.Restricted {
		resp.RestrictedUntil = &outcome.RestrictedUntil
	}
	c.JSON(http.StatusAccepted, resp)
}
