package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/microblog-api/internal/service"
	"github.com/microblog-api/pkg/response"
)

const (
	msgUnableToLogin   = "Unable to login"
	msgUnauthenticated = "Please authenticate."
	msgNotFound        = "Not found"
	msgInternal        = "Internal server error"
	msgRegisterFields  = "Username, password and email are required"
	msgContentRequired = "Content is required"
)

// writeError maps service errors onto status codes. Forbidden is reported
// as 404 so a caller cannot probe for resources it does not own.
func writeError(c *gin.Context, err error) {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		response.BadRequest(c, validationErr.Message)
	case errors.Is(err, service.ErrInvalidCredentials):
		response.BadRequest(c, msgUnableToLogin)
	case errors.Is(err, service.ErrUnauthenticated):
		response.Unauthorized(c, msgUnauthenticated)
	case errors.Is(err, service.ErrForbidden), errors.Is(err, service.ErrNotFound):
		response.NotFound(c, msgNotFound)
	default:
		_ = c.Error(err)
		response.InternalError(c, msgInternal)
	}
}
