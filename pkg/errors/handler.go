package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"medmap-backend/pkg/common"
)

// ErrorHandler maps application and domain errors onto HTTP responses
// using the standard APIResponse envelope, with leveled logging.
type ErrorHandler struct {
	logger        *zap.Logger
	debug         bool
	defaultStatus int
}

// NewErrorHandler creates a new error handler. In debug mode unclassified
// errors leak their message into the response body.
func NewErrorHandler(logger *zap.Logger, debug bool) *ErrorHandler {
	return &ErrorHandler{
		logger:        logger,
		debug:         debug,
		defaultStatus: http.StatusInternalServerError,
	}
}

// GetDomainError extracts a DomainError from an error chain
func GetDomainError(err error) *DomainError {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// Handle processes an error and sends an HTTP response
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	var validationErrs *ValidationErrors
	if errors.As(err, &validationErrs) && validationErrs.HasErrors() {
		first := validationErrs.Errors[0]
		status := first.StatusCode
		if status == 0 {
			status = http.StatusBadRequest
		}

		h.logger.Warn("Validation failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Int("errors", len(validationErrs.Errors)),
		)
		h.respond(w, r, status, domainErrorCode(first), first.Message,
			map[string]interface{}{"fields": validationErrs.ToMap()})
		return
	}

	if appErr := GetAppError(err); appErr != nil {
		status := appErr.HTTPStatus
		if status == 0 {
			status = h.defaultStatus
		}

		details := appErr.Details
		if h.debug && appErr.StackTrace != "" {
			if details == nil {
				details = make(map[string]interface{})
			}
			details["stack_trace"] = appErr.StackTrace
		}

		h.logError(r, appErr, status)
		h.respond(w, r, status, appErrorCode(appErr), appErr.Message, details)
		return
	}

	if domainErr := GetDomainError(err); domainErr != nil {
		status := domainErr.StatusCode
		if status == 0 {
			status = h.defaultStatus
		}

		h.logDomainError(r, domainErr, status)
		h.respond(w, r, status, domainErrorCode(domainErr), domainErr.Message, domainErr.Details)
		return
	}

	// Unclassified error, never leak the message outside debug mode
	status := h.defaultStatus
	message := "An internal error occurred"
	if h.debug {
		message = err.Error()
	}

	h.logger.Error("Unhandled error",
		zap.Error(err),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("request_id", common.ExtractRequestID(r)),
		zap.Int("status", status),
	)

	h.respond(w, r, status, common.StandardErrorCodes.InternalError, message, nil)
}

// HandleStatus sends an error response with a specific status code
func (h *ErrorHandler) HandleStatus(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.logger.Warn("HTTP error",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("message", message),
	)

	h.respond(w, r, status, StatusToErrorCode(status), message, nil)
}

// respond renders the envelope for an error status
func (h *ErrorHandler) respond(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]interface{}) {
	response := common.APIResponse{
		Success: false,
		Error: &common.ErrorInfo{
			Code:    code,
			Message: message,
			Details: details,
		},
		Meta: &common.MetaInfo{
			RequestID: common.ExtractRequestID(r),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode error response", zap.Error(err))
	}
}

// logError logs an application error with appropriate level
func (h *ErrorHandler) logError(r *http.Request, err *AppError, status int) {
	fields := []zap.Field{
		zap.String("error_type", string(err.Type)),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("request_id", common.ExtractRequestID(r)),
	}

	if err.Cause != nil {
		fields = append(fields, zap.Error(err.Cause))
	}

	if err.Details != nil {
		fields = append(fields, zap.Any("details", err.Details))
	}

	// Log based on error type and status
	switch {
	case status >= 500:
		h.logger.Error(err.Message, fields...)
	case status >= 400:
		h.logger.Warn(err.Message, fields...)
	default:
		h.logger.Info(err.Message, fields...)
	}
}

// logDomainError logs a domain error with appropriate level
func (h *ErrorHandler) logDomainError(r *http.Request, err *DomainError, status int) {
	fields := []zap.Field{
		zap.String("error_type", string(err.Type)),
		zap.String("error_code", err.Code),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Bool("retryable", err.Retryable),
	}

	if err.Cause != nil {
		fields = append(fields, zap.Error(err.Cause))
	}

	switch {
	case status >= 500:
		h.logger.Error(err.Message, fields...)
	case status >= 400:
		h.logger.Warn(err.Message, fields...)
	default:
		h.logger.Info(err.Message, fields...)
	}
}

// domainErrorCode maps a domain error type to the envelope error code
func domainErrorCode(err *DomainError) string {
	switch err.Type {
	case DomainValidationError, DomainBusinessRuleError:
		return common.StandardErrorCodes.ValidationError
	case DomainNotFoundError:
		return common.StandardErrorCodes.NotFound
	case DomainConflictError:
		return common.StandardErrorCodes.Conflict
	case DomainAuthorizationError:
		return common.StandardErrorCodes.Forbidden
	case DomainAuthenticationError:
		return common.StandardErrorCodes.Unauthorized
	case DomainRateLimitError:
		return common.StandardErrorCodes.TooManyRequests
	case DomainInfrastructureError:
		if err.StatusCode == http.StatusServiceUnavailable {
			return common.StandardErrorCodes.ServiceUnavailable
		}
		return common.StandardErrorCodes.InternalError
	default:
		return common.StandardErrorCodes.InternalError
	}
}

// appErrorCode maps an application error type to the envelope error code.
// Inference failures deliberately read as internal errors to clients.
func appErrorCode(err *AppError) string {
	switch err.Type {
	case ErrorTypeValidation:
		return common.StandardErrorCodes.ValidationError
	case ErrorTypeNotFound:
		return common.StandardErrorCodes.NotFound
	case ErrorTypePayloadTooLarge:
		return common.StandardErrorCodes.PayloadTooLarge
	default:
		return common.StandardErrorCodes.InternalError
	}
}

// StatusToErrorCode maps an HTTP status to the standard machine-readable
// error code carried in the response envelope.
func StatusToErrorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return common.StandardErrorCodes.BadRequest
	case http.StatusUnauthorized:
		return common.StandardErrorCodes.Unauthorized
	case http.StatusForbidden:
		return common.StandardErrorCodes.Forbidden
	case http.StatusNotFound:
		return common.StandardErrorCodes.NotFound
	case http.StatusConflict:
		return common.StandardErrorCodes.Conflict
	case http.StatusRequestEntityTooLarge:
		return common.StandardErrorCodes.PayloadTooLarge
	case http.StatusUnprocessableEntity:
		return common.StandardErrorCodes.ValidationError
	case http.StatusTooManyRequests:
		return common.StandardErrorCodes.TooManyRequests
	case http.StatusServiceUnavailable:
		return common.StandardErrorCodes.ServiceUnavailable
	default:
		return common.StandardErrorCodes.InternalError
	}
}
