package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tera-bt/teraland-gateway/internal/fabric"
	"github.com/tera-bt/teraland-gateway/internal/land"
	"github.com/tera-bt/teraland-gateway/internal/logging"
)

// statusFor maps the gateway error taxonomy onto HTTP.
func statusFor(err error) int {
	var (
		ve  *land.ValidationError
		nf  *land.NotFoundError
		inf *fabric.IdentityNotFoundError
		ce  *fabric.ConnectionError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &inf):
		return http.StatusForbidden
	case errors.As(err, &ce):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// fail writes {"error": "<what>: <err>"} with the mapped status. Validation
// errors are reported without the prefix.
func fail(c *gin.Context, what string, err error) {
	status := statusFor(err)
	msg := what + ": " + err.Error()
	if status == http.StatusBadRequest {
		msg = err.Error()
	}
	if status >= http.StatusInternalServerError {
		logging.Error("%s [%s]: %v", what, c.GetString("requestID"), err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
