package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/tinrooster/tedecom-v1/internal/apperrors"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrValidation), errors.Is(err, apperrors.ErrScheduling):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrInvalidState):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	respondErrorStatus(c, statusFor(err), err)
}

func respondErrorStatus(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).
			Str("component", "api").
			Str("path", c.FullPath()).
			Msg("Request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
