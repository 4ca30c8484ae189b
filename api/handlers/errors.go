package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/linkgrab/linkgrab/internal/domain"
)

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	var discErr *domain.DiscoveryError
	switch {
	case errors.Is(err, domain.ErrInvalidURL), errors.Is(err, domain.ErrUnknownCategory),
		errors.Is(err, domain.ErrInvalidDestination):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrJobTerminal), errors.Is(err, domain.ErrJobActive):
		return http.StatusConflict
	case errors.As(err, &discErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
