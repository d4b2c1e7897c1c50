package v1

import (
	"errors"
	"io"
	"net/http"

	"launchpad-backend/internal/delivery/http/middleware"
	"launchpad-backend/internal/delivery/http/response"
	"launchpad-backend/internal/domain"
	"launchpad-backend/pkg/apperror"
	"launchpad-backend/pkg/security"

	"github.com/gin-gonic/gin"
)

// maxWebhookBytes matches the payment provider's documented event size
const maxWebhookBytes = 65536

type WebhookHandler struct {
	webhookUC domain.WebhookUsecase
}

func NewWebhookHandler(public *gin.RouterGroup, webhookUC domain.WebhookUsecase) {
	handler := &WebhookHandler{webhookUC: webhookUC}
	public.POST("/webhooks/stripe", handler.Stripe)
}

// Stripe godoc
// @Summary      Payment provider webhook
// @Description  Verifies the Stripe-Signature header over the raw body and dispatches the event. Handler failures are logged and still acknowledged.
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        Stripe-Signature  header    string  true  "Signature header"
// @Success      200               {object}  response.Response
// @Failure      400               {object}  response.Response
// @Router       /webhooks/stripe [post]
func (h *WebhookHandler) Stripe(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.Error(apperror.New(http.StatusRequestEntityTooLarge, "Payload too large", nil))
			return
		}
		c.Error(apperror.BadRequest("Unable to read request body"))
		return
	}

	if err := h.webhookUC.Handle(c, payload, c.GetHeader("Stripe-Signature")); err != nil {
		security.DefaultLogger().Log(c.Request.Context(), security.SecurityEvent{
			Event:     security.EventWebhookRejected,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			RequestID: c.GetString(middleware.RequestIDKey),
			Details:   map[string]any{"reason": err.Error()},
		})
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Received", gin.H{"received": true})
}
