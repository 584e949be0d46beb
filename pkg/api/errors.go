package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tracesim/pkg/faults"
)

// ErrorResponse maps err onto a status code and body. Every transport uses it.
func ErrorResponse(err error) (int, ErrorBody) {
	var invalid *faults.InvalidRequestError
	var authErr *faults.AuthError
	var notFound *faults.NotFoundError
	switch {
	case errors.As(err, &invalid):
		return http.StatusUnprocessableEntity, ErrorBody{Detail: invalid.Reason, Field: invalid.Field}
	case errors.As(err, &authErr):
		return http.StatusUnauthorized, ErrorBody{Detail: authErr.Reason}
	case errors.As(err, &notFound):
		return http.StatusNotFound, ErrorBody{Detail: notFound.Error()}
	case faults.Retryable(err):
		return http.StatusServiceUnavailable, ErrorBody{Detail: "simulated backend failure, retry later"}
	default:
		return http.StatusInternalServerError, ErrorBody{Detail: "internal error"}
	}
}

// abortWithError writes the error response and stops the handler chain.
func abortWithError(c *gin.Context, err error) {
	status, body := ErrorResponse(err)
	switch status {
	case http.StatusServiceUnavailable:
		c.Header("Retry-After", "1")
	case http.StatusUnauthorized:
		c.Header("WWW-Authenticate", "Bearer")
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}
