package handler

import (
	"errors"
	"log"
	"net/http"

	"buildtrack/internal/service"
	"buildtrack/pkg/response"

	"github.com/gin-gonic/gin"
)

// statusFor maps the service error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrDuplicateNumber):
		return http.StatusConflict
	case errors.Is(err, service.ErrCapacityExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, service.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrBadCredentials):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// respondError writes err in the standard envelope. Capacity errors carry
// their numbers in data; internal errors are logged and not echoed.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)

	var capErr *service.CapacityError
	if errors.As(err, &capErr) {
		c.JSON(status, response.ErrorWithData(status, capErr.Error(), capErr))
		return
	}
	if status == http.StatusInternalServerError {
		log.Printf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(status, response.Error(status, "Internal server error"))
		return
	}
	c.JSON(status, response.Error(status, err.Error()))
}

func badPayload(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
}
