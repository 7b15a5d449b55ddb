package controllers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"spreadchecker/internal/services"
	"spreadchecker/pkg/utils"
)

// Stripe caps event payloads well under this.
const maxWebhookBody = 1 << 20

type WebhookController struct {
	checkoutService services.CheckoutServiceInterface
}

func NewWebhookController(checkoutService services.CheckoutServiceInterface) *WebhookController {
	return &WebhookController{
		checkoutService: checkoutService,
	}
}

// HandleProcessorWebhook verifies the signature against the raw body and
// dispatches the event. Replays are acknowledged with 200 so the processor
// stops redelivering.
func (w *WebhookController) HandleProcessorWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Unable to read request body")
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if signature == "" {
		utils.RespondError(c, http.StatusBadRequest, "Missing signature header")
		return
	}

	if err := w.checkoutService.HandleWebhook(c.Request.Context(), payload, signature); err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, nil, "Event processed")
}
