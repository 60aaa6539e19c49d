package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/connorodea/aidentalnotes/internal/auditcontext"
	obscontext "github.com/connorodea/aidentalnotes/internal/observability/context"
	webhookdomain "github.com/connorodea/aidentalnotes/internal/webhook/domain"
)

// maxWebhookBodyBytes caps one provider delivery payload.
const maxWebhookBodyBytes = 1 << 20

// HandleWebhook ingests a billing provider delivery. Redeliveries of an
// already-processed event and ignored event types both acknowledge with 200
// so the provider stops retrying.
func (s *Server) HandleWebhook(c *gin.Context) {
	provider := strings.TrimSpace(c.Param("provider"))

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes+1))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if len(payload) > maxWebhookBodyBytes {
		AbortWithError(c, newValidationError("body", "too_large", "payload exceeds the size limit"))
		return
	}

	ctx := auditcontext.WithRequestID(c.Request.Context(), obscontext.RequestIDFromGin(c))
	ctx = auditcontext.WithActor(ctx, "system", provider)
	ctx = auditcontext.WithIPAddress(ctx, c.ClientIP())

	err = s.webhookSvc.IngestWebhook(ctx, provider, payload, c.Request.Header)
	if err != nil {
		if errors.Is(err, webhookdomain.ErrEventAlreadyProcessed) {
			c.JSON(http.StatusOK, gin.H{"status": "already_processed"})
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
