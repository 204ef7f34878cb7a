package middleware

import (
	"errors"
	"net/http"

	"alumnet-chat/internal/transport/httpdto"
	chaterrors "alumnet-chat/pkg/errors"
	"alumnet-chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ErrorHandler maps the domain error taxonomy onto HTTP responses.
// Handlers push errors with c.Error and return; nothing else in the
// transport layer inspects error types.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		status, code, msg := classify(err)
		if l != nil && status >= http.StatusInternalServerError {
			l.Errorf("request error: %s", err.Error())
		}
		c.JSON(status, httpdto.NewErrorResponse(msg, code))
	}
}

func classify(err error) (int, string, string) {
	var validationErr *chaterrors.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, "VALIDATION_FAILED", validationErr.Error()
	case errors.Is(err, chaterrors.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_REQUEST", err.Error()
	case errors.Is(err, chaterrors.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized"
	case errors.Is(err, chaterrors.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN", "forbidden"
	case errors.Is(err, chaterrors.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", err.Error()
	case errors.Is(err, chaterrors.ErrConflict), errors.Is(err, chaterrors.ErrAlreadyExists):
		return http.StatusConflict, "CONFLICT", err.Error()
	case errors.Is(err, chaterrors.ErrRateLimited):
		return http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded"
	case errors.Is(err, chaterrors.ErrServiceUnavailable):
		// pool exhaustion and broker outages are retryable; internal
		// detail stays out of the response body
		return http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "temporarily unavailable, retry later"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "internal error"
	}
}
