package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"go-llmlab/internal/archive"
	"go-llmlab/internal/convo"
	"go-llmlab/internal/llm"
	"go-llmlab/internal/tools"
)

// statusFor maps a domain error onto an HTTP status.
func statusFor(err error) int {
	switch llm.KindOf(err) {
	case llm.ErrBackendUnavailable, llm.ErrEmptyResponse:
		return http.StatusBadGateway
	case llm.ErrBackendRejected:
		return http.StatusUnprocessableEntity
	}
	switch {
	case errors.Is(err, tools.ErrFetchFailed):
		return http.StatusBadGateway
	case errors.Is(err, archive.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, llm.ErrUnknownBackend),
		errors.Is(err, convo.ErrNoSpeakers),
		errors.Is(err, convo.ErrDuplicateSpeaker),
		errors.Is(err, convo.ErrMissingSeed),
		errors.Is(err, convo.ErrMissingBackend),
		errors.Is(err, convo.ErrInvalidCast),
		errors.Is(err, tools.ErrUnsupportedContent),
		errors.Is(err, tools.ErrInvalidURL):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": gin.H{"message": err.Error()}})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": msg}})
}
