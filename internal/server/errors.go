package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/boxoffice/internal/audit/domain"
	"github.com/smallbiznis/boxoffice/internal/authorization"
	inventorydomain "github.com/smallbiznis/boxoffice/internal/inventory/domain"
	orderdomain "github.com/smallbiznis/boxoffice/internal/order/domain"
	paymentdomain "github.com/smallbiznis/boxoffice/internal/payment/domain"
	screeningdomain "github.com/smallbiznis/boxoffice/internal/screening/domain"
	"github.com/smallbiznis/boxoffice/internal/screening/scoring"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
	Details map[string]any    `json:"details,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

// mapError is the single translation from domain errors to HTTP responses.
func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var soldOut *inventorydomain.InsufficientInventoryError
	if errors.As(err, &soldOut) {
		return http.StatusConflict, errorPayload{
			Type:    "insufficient_inventory",
			Message: "not enough tickets available",
			Details: map[string]any{
				"requested": soldOut.Requested,
				"available": soldOut.Available,
			},
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authorization.ErrInvalidActor):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, orderdomain.ErrHoldNotOwned):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, inventorydomain.ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog returns the error type and code recorded on request logs.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	if status >= http.StatusInternalServerError {
		return payload.Type, "internal_error"
	}
	if len(payload.Errors) > 0 {
		return payload.Type, payload.Errors[0].Code
	}
	return payload.Type, strings.SplitN(err.Error(), ":", 2)[0]
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, authorization.ErrInvalidRole),
		errors.Is(err, authorization.ErrInvalidObject),
		errors.Is(err, authorization.ErrInvalidAction),
		errors.Is(err, auditdomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidTimeRange):
		return true
	case isInventoryValidationError(err),
		isOrderValidationError(err),
		isScreeningValidationError(err),
		isPaymentValidationError(err):
		return true
	default:
		return false
	}
}

func isInventoryValidationError(err error) bool {
	switch {
	case errors.Is(err, inventorydomain.ErrInvalidEvent),
		errors.Is(err, inventorydomain.ErrInvalidName),
		errors.Is(err, inventorydomain.ErrInvalidTotal),
		errors.Is(err, inventorydomain.ErrInvalidPrice),
		errors.Is(err, inventorydomain.ErrInvalidFee),
		errors.Is(err, inventorydomain.ErrInvalidCurrency),
		errors.Is(err, inventorydomain.ErrInvalidQuantity),
		errors.Is(err, inventorydomain.ErrInvalidCapacity),
		errors.Is(err, inventorydomain.ErrInvalidID):
		return true
	default:
		return false
	}
}

func isOrderValidationError(err error) bool {
	switch {
	case errors.Is(err, orderdomain.ErrInvalidID),
		errors.Is(err, orderdomain.ErrInvalidHold),
		errors.Is(err, orderdomain.ErrInvalidOwner),
		errors.Is(err, orderdomain.ErrInvalidEmail),
		errors.Is(err, orderdomain.ErrInvalidAmount),
		errors.Is(err, orderdomain.ErrInvalidCode),
		errors.Is(err, orderdomain.ErrMixedCurrency):
		return true
	default:
		return false
	}
}

func isScreeningValidationError(err error) bool {
	switch {
	case errors.Is(err, screeningdomain.ErrInvalidID),
		errors.Is(err, screeningdomain.ErrInvalidArtist),
		errors.Is(err, screeningdomain.ErrInvalidRecording),
		errors.Is(err, screeningdomain.ErrInvalidContext),
		errors.Is(err, screeningdomain.ErrInvalidReviewer),
		errors.Is(err, screeningdomain.ErrInvalidRating),
		errors.Is(err, screeningdomain.ErrInvalidListen),
		errors.Is(err, screeningdomain.ErrListenTooShort),
		errors.Is(err, screeningdomain.ErrInvalidDecision),
		errors.Is(err, screeningdomain.ErrInvalidRankOrder),
		errors.Is(err, screeningdomain.ErrInvalidPageToken),
		errors.Is(err, scoring.ErrInvalidHalfLife),
		errors.Is(err, scoring.ErrInvalidDecayFloor),
		errors.Is(err, scoring.ErrInvalidTiers),
		errors.Is(err, scoring.ErrInvalidMinListen),
		errors.Is(err, scoring.ErrInvalidMinRanking):
		return true
	default:
		return false
	}
}

func isPaymentValidationError(err error) bool {
	switch {
	case errors.Is(err, paymentdomain.ErrInvalidProvider),
		errors.Is(err, paymentdomain.ErrInvalidPayload),
		errors.Is(err, paymentdomain.ErrInvalidSignature),
		errors.Is(err, paymentdomain.ErrInvalidEvent),
		errors.Is(err, paymentdomain.ErrInvalidOrder),
		errors.Is(err, paymentdomain.ErrInvalidCurrency),
		errors.Is(err, paymentdomain.ErrInvalidAmount):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, orderdomain.ErrHoldInUse),
		errors.Is(err, orderdomain.ErrHoldExpired),
		errors.Is(err, orderdomain.ErrInvalidTransition),
		errors.Is(err, orderdomain.ErrTicketNotValid),
		errors.Is(err, screeningdomain.ErrAlreadyDecided):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, orderdomain.ErrHoldInUse):
		return "hold already belongs to an order"
	case errors.Is(err, orderdomain.ErrHoldExpired):
		return "hold expired"
	case errors.Is(err, orderdomain.ErrTicketNotValid):
		return "ticket is not valid"
	case errors.Is(err, screeningdomain.ErrAlreadyDecided):
		return "submission already decided"
	default:
		return "conflict"
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, inventorydomain.ErrTierNotFound),
		errors.Is(err, inventorydomain.ErrHoldNotFound),
		errors.Is(err, orderdomain.ErrOrderNotFound),
		errors.Is(err, orderdomain.ErrHoldNotFound),
		errors.Is(err, orderdomain.ErrTicketNotFound),
		errors.Is(err, screeningdomain.ErrSubmissionNotFound),
		errors.Is(err, screeningdomain.ErrScoreNotCalculated),
		errors.Is(err, paymentdomain.ErrProviderNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		return strings.SplitN(err.Error(), ":", 2)[0]
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}
