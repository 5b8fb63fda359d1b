package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"warden.app/bot/internal/classifier"
	"warden.app/bot/internal/http/handler"
	"warden.app/bot/internal/moderation"
)

var _ = Describe("MessageHandler", func() {
	var (
		router    *gin.Engine
		moderator *mockModerator
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		moderator = &mockModerator{}
		h := handler.NewMessageHandler(moderator)
		router.POST("/ingest", h.Ingest)
	})

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/ingest", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	validBody := `{
		"message_id": "m-1",
		"channel_id": "chan-1",
		"account_id": "acct-1",
		"account_label": "alice",
		"content": "hello"
	}`

	It("returns 202 with the moderation outcome", func() {
		until := time.Now().Add(10 * time.Minute)
		moderator.handleFn = func(_ context.Context, msg moderation.Message) (moderation.Outcome, error) {
			Expect(msg.ID).To(Equal("m-1"))
			Expect(msg.AccountLabel).To(Equal("alice"))
			return moderation.Outcome{
				Verdict:         classifier.VerdictFlagged,
				Reason:          "spam link",
				Source:          classifier.SourceModel,
				Restricted:      true,
				RestrictedUntil: until,
			}, nil
		}

		w := post(validBody)

		Expect(w.Code).To(Equal(http.StatusAccepted))
		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["verdict"]).To(Equal("flagged"))
		Expect(resp["restricted"]).To(BeTrue())
		Expect(resp["restricted_until"]).NotTo(BeEmpty())
	})

	It("returns 400 when required fields are missing", func() {
		w := post(`{"content": "hello"}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("returns 500 when moderation fails", func() {
		moderator.handleFn = func(context.Context, moderation.Message) (moderation.Outcome, error) {
			return moderation.Outcome{}, errors.New("enforcer down")
		}

		w := post(validBody)
		Expect(w.Code).To(Equal(http.StatusInternalServerError))
	})
})
