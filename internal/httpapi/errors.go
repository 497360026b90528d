package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/MarkoPoloResearchLab/turf/internal/auth"
	"github.com/MarkoPoloResearchLab/turf/internal/gateway"
	"github.com/MarkoPoloResearchLab/turf/pkg/booking"
	"github.com/MarkoPoloResearchLab/turf/pkg/ledger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	codeInvalidRequest      = "invalid_request"
	codeInvalidPayload      = "invalid_payload"
	codeNotFound            = "not_found"
	codeConflict            = "conflict"
	codeSlotUnavailable     = "slot_unavailable"
	codePaymentVerification = "payment_verification_failed"
	codeOrderMismatch       = "order_mismatch"
	codeUnauthorized        = "unauthorized"
	codeForbidden           = "forbidden"
	codeGatewayRejected     = "gateway_rejected"
	codeUnavailable         = "service_unavailable"
	codeTimeout             = "timeout"
	codeInternal            = "internal_error"

	storeOperation        = "store"
	internalErrorMessage  = "internal server error"
	unavailableMessage    = "storage temporarily unavailable"
	responseStatusSuccess = "success"
	responseStatusError   = "error"
)

type errorMapping struct {
	target error
	status int
	code   string
}

// errorMappings is checked in order; the first match wins.
var errorMappings = []errorMapping{
	{booking.ErrPaymentVerificationFailed, http.StatusPaymentRequired, codePaymentVerification},
	{booking.ErrOrderMismatch, http.StatusPaymentRequired, codeOrderMismatch},
	{booking.ErrOrderNotFound, http.StatusPaymentRequired, codeOrderMismatch},

	{booking.ErrBookingNotFound, http.StatusNotFound, codeNotFound},
	{booking.ErrSettingsNotFound, http.StatusNotFound, codeNotFound},
	{ledger.ErrTransactionNotFound, http.StatusNotFound, codeNotFound},
	{ledger.ErrExpenseNotFound, http.StatusNotFound, codeNotFound},
	{auth.ErrUserNotFound, http.StatusNotFound, codeNotFound},

	{booking.ErrSlotUnavailable, http.StatusConflict, codeSlotUnavailable},
	{booking.ErrDuplicateBookingID, http.StatusConflict, codeConflict},
	{booking.ErrDuplicatePayment, http.StatusConflict, codeConflict},
	{booking.ErrPaymentInProgress, http.StatusConflict, codeConflict},
	{booking.ErrSettingsVersionConflict, http.StatusConflict, codeConflict},
	{booking.ErrInvalidStatusTransition, http.StatusConflict, codeConflict},
	{ledger.ErrInvalidStatusTransition, http.StatusConflict, codeConflict},
	{ledger.ErrStatusConflict, http.StatusConflict, codeConflict},
	{ledger.ErrDuplicateTransactionID, http.StatusConflict, codeConflict},
	{auth.ErrDuplicateEmail, http.StatusConflict, codeConflict},

	{auth.ErrInvalidCredentials, http.StatusUnauthorized, codeUnauthorized},
	{auth.ErrInvalidToken, http.StatusUnauthorized, codeUnauthorized},
	{auth.ErrInvalidTokenType, http.StatusUnauthorized, codeUnauthorized},
	{auth.ErrForbidden, http.StatusForbidden, codeForbidden},

	{gateway.ErrOrderRejected, http.StatusBadGateway, codeGatewayRejected},
	{booking.ErrGatewayUnavailable, http.StatusServiceUnavailable, codeUnavailable},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, codeTimeout},

	{booking.ErrInvalidDate, http.StatusBadRequest, codeInvalidRequest},
	{booking.ErrInvalidStartTime, http.StatusBadRequest, codeInvalidRequest},
	{booking.ErrInvalidDuration, http.StatusBadRequest, codeInvalidRequest},
	{booking.ErrInvalidCustomer, http.StatusBadRequest, codeInvalidRequest},
	{booking.ErrInvalidBookingID, http.StatusBadRequest, codeInvalidRequest},
	{booking.ErrInvalidInitials, http.StatusBadRequest, codeInvalidRequest},
	{booking.ErrInvalidBookingStatus, http.StatusBadRequest, codeInvalidRequest},
	{booking.ErrInvalidPaymentStatus, http.StatusBadRequest, codeInvalidRequest},
	{booking.ErrInvalidDiscount, http.StatusBadRequest, codeInvalidRequest},
	{booking.ErrInvalidFeeSchedule, http.StatusBadRequest, codeInvalidRequest},
	{booking.ErrInvalidOperatingHours, http.StatusBadRequest, codeInvalidRequest},
	{booking.ErrInvalidSettings, http.StatusBadRequest, codeInvalidRequest},
	{booking.ErrInvalidPaymentProof, http.StatusBadRequest, codeInvalidRequest},
	{booking.ErrNonConsecutiveSelection, http.StatusBadRequest, codeInvalidRequest},
	{booking.ErrSlotOutsideHours, http.StatusBadRequest, codeInvalidRequest},
	{booking.ErrSlotInPast, http.StatusBadRequest, codeInvalidRequest},
	{ledger.ErrInvalidTransactionID, http.StatusBadRequest, codeInvalidRequest},
	{ledger.ErrInvalidExpenseID, http.StatusBadRequest, codeInvalidRequest},
	{ledger.ErrInvalidAmount, http.StatusBadRequest, codeInvalidRequest},
	{ledger.ErrInvalidCategory, http.StatusBadRequest, codeInvalidRequest},
	{ledger.ErrInvalidPaymentMethod, http.StatusBadRequest, codeInvalidRequest},
	{ledger.ErrInvalidTransactionType, http.StatusBadRequest, codeInvalidRequest},
	{ledger.ErrInvalidTransactionStatus, http.StatusBadRequest, codeInvalidRequest},
	{ledger.ErrInvalidDescription, http.StatusBadRequest, codeInvalidRequest},
	{ledger.ErrVendorRequired, http.StatusBadRequest, codeInvalidRequest},
	{ledger.ErrVendorNotAllowed, http.StatusBadRequest, codeInvalidRequest},
	{ledger.ErrInvalidPeriod, http.StatusBadRequest, codeInvalidRequest},
	{ledger.ErrInvalidPage, http.StatusBadRequest, codeInvalidRequest},
	{auth.ErrInvalidUser, http.StatusBadRequest, codeInvalidRequest},
	{auth.ErrInvalidRole, http.StatusBadRequest, codeInvalidRequest},
	{errInvalidPayload, http.StatusBadRequest, codeInvalidPayload},
}

var errInvalidPayload = errors.New("invalid payload")

type apiError struct {
	status  int
	code    string
	message string
}

// classify maps err onto an HTTP status, a stable code and a client-safe message.
func (server *Server) classify(err error) apiError {
	for _, mapping := range errorMappings {
		if errors.Is(err, mapping.target) {
			return apiError{status: mapping.status, code: mapping.code, message: publicMessage(err)}
		}
	}
	var operationError ledger.OperationError
	if errors.As(err, &operationError) && operationError.Operation() == storeOperation {
		return apiError{status: http.StatusServiceUnavailable, code: codeUnavailable, message: unavailableMessage}
	}
	message := internalErrorMessage
	if !server.config.Production {
		message = err.Error()
	}
	return apiError{status: http.StatusInternalServerError, code: codeInternal, message: message}
}

// publicMessage drops the operation prefixes so clients see the domain reason.
func publicMessage(err error) string {
	for {
		var operationError ledger.OperationError
		if !errors.As(err, &operationError) || operationError.Unwrap() == nil {
			return err.Error()
		}
		err = operationError.Unwrap()
	}
}

func (server *Server) abortWithError(ctx *gin.Context, err error) {
	classified := server.classify(err)
	if classified.status >= http.StatusInternalServerError {
		server.logger.Error("request failed",
			zap.String("route", ctx.FullPath()),
			zap.String(requestIDKey, ctx.GetString(requestIDKey)),
			zap.Int("status", classified.status),
			zap.Error(err),
		)
	}
	ctx.AbortWithStatusJSON(classified.status, errorResponse(classified.code, classified.message))
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"status":  responseStatusError,
		"code":    code,
		"message": message,
	}
}

func respond(ctx *gin.Context, status int, body gin.H) {
	payload := gin.H{"status": responseStatusSuccess}
	for key, value := range body {
		payload[key] = value
	}
	ctx.JSON(status, payload)
}
