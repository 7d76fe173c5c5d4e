package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/and161185/lesson-planner/internal/api"
	"github.com/and161185/lesson-planner/internal/errs"
)

func respondError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, api.ErrorEnvelope{Error: api.APIError{Message: msg, Code: code}})
}

func badRequest(c *gin.Context, msg string) {
	respondError(c, http.StatusBadRequest, api.CodeValidation, msg)
}

// fail maps service errors to statuses. Internal details stay in the log.
func (s *Server) fail(c *gin.Context, op string, err error) {
	switch {
	case strings.HasPrefix(err.Error(), "validation:"):
		badRequest(c, strings.TrimSpace(strings.TrimPrefix(err.Error(), "validation:")))
	case errors.Is(err, errs.ErrUnauthorized):
		respondError(c, http.StatusUnauthorized, api.CodeUnauthorized, "unauthorized")
	case errors.Is(err, errs.ErrNotFound):
		respondError(c, http.StatusNotFound, api.CodeNotFound, "not found")
	case errors.Is(err, errs.ErrAlreadyExists):
		respondError(c, http.StatusConflict, api.CodeConflict, "already exists")
	case errors.Is(err, errs.ErrRateLimited):
		respondError(c, http.StatusTooManyRequests, api.CodeRateLimited, "rate limited")
	default:
		s.log.Error(op, zap.Error(err))
		respondError(c, http.StatusInternalServerError, api.CodeInternal, op+" failed")
	}
}
