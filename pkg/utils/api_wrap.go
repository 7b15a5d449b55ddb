package utils

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

type APIResponse struct {
	Status  string      `json:"status"`
	Code    int         `json:"code"`
	Message string      `json:"message,omitempty"`
	TraceID string      `json:"trace_id,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func RespondSuccess(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusOK, APIResponse{
		Status:  "success",
		Code:    http.StatusOK,
		Message: message,
		TraceID: c.GetString("trace_id"),
		Data:    data,
	})
}

func RespondError(c *gin.Context, code int, message string) {
	c.JSON(code, APIResponse{
		Status:  "error",
		Code:    code,
		Message: message,
		TraceID: c.GetString("trace_id"),
	})
}

// HandleServiceError maps the service error taxonomy onto HTTP responses.
// Validation and invariant errors carry their own message; processor errors
// deliberately do not leak provider details to the caller.
func HandleServiceError(c *gin.Context, err error) {
	var recon *ReconciliationError

	switch {
	case errors.Is(err, ErrCompanyNotFound), errors.Is(err, ErrMemberNotFound):
		RespondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrSeatsBelowUsage),
		errors.Is(err, ErrAdminSeatRequired),
		errors.Is(err, ErrInvalidBillingPeriod),
		errors.Is(err, ErrNoSubscription),
		errors.Is(err, ErrAlreadySubscribed),
		errors.Is(err, ErrAddonAlreadyActive),
		errors.Is(err, ErrAddonNotActive),
		errors.Is(err, ErrNoSeatAvailable),
		errors.Is(err, ErrLastAdmin),
		errors.Is(err, ErrEmailAlreadyExists),
		errors.Is(err, ErrInviteInvalid),
		errors.Is(err, ErrWebhookSignature):
		RespondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrStateConflict):
		RespondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, ErrProcessorUnknownOutcome):
		RespondError(c, http.StatusBadGateway,
			"Payment provider did not respond in time. The operation may still have completed; please check before retrying.")
	case errors.As(err, &recon):
		log.Printf("Reconciliation error: %v", err)
		RespondError(c, http.StatusInternalServerError,
			"The payment succeeded but we could not update your account. Support has been notified.")
	case errors.Is(err, ErrProcessor):
		RespondError(c, http.StatusBadGateway, "Payment provider error, please try again")
	case errors.Is(err, ErrDatabaseError):
		log.Printf("Database error: %v", err)
		RespondError(c, http.StatusInternalServerError, "Internal server error")
	default:
		log.Printf("Unknown error: %v", err)
		RespondError(c, http.StatusInternalServerError, "Internal server error")
	}
}
