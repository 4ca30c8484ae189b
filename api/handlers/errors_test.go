package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/linkgrab/linkgrab/internal/domain"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid url", fmt.Errorf("%w: ftp://x", domain.ErrInvalidURL), http.StatusBadRequest},
		{"unknown category", fmt.Errorf("%w: \"Nope\"", domain.ErrUnknownCategory), http.StatusBadRequest},
		{"destination", fmt.Errorf("%w: /etc", domain.ErrInvalidDestination), http.StatusBadRequest},
		{"not found", domain.ErrJobNotFound, http.StatusNotFound},
		{"terminal", domain.ErrJobTerminal, http.StatusConflict},
		{"active", domain.ErrJobActive, http.StatusConflict},
		{"page fetch", &domain.DiscoveryError{URL: "https://example.com", Cause: errors.New("connection refused")}, http.StatusBadGateway},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
