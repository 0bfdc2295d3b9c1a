package handlers

import (
	"delivery-batch-service/internal/domain"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func writeError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// respondError maps a service error onto an HTTP status. Unexpected errors
// are logged and hidden behind a generic message.
func respondError(c *gin.Context, op string, err error) {
	var infeasible *domain.InfeasibleError
	switch {
	case errors.As(err, &infeasible):
		writeError(c, http.StatusUnprocessableEntity, infeasible.Error())
	case errors.Is(err, domain.ErrValidation):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidState), errors.Is(err, domain.ErrConflict):
		writeError(c, http.StatusConflict, err.Error())
	default:
		log.Error().Err(err).Str("op", op).Str("path", c.Request.URL.Path).Msg("request failed")
		writeError(c, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON reads exactly one JSON object with no unknown fields.
// An empty body leaves v untouched when allowEmpty is set.
func decodeJSON(c *gin.Context, v any, allowEmpty bool) bool {
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return true
		}
		writeError(c, http.StatusBadRequest, "invalid json body")
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(c, http.StatusBadRequest, "body must contain only one JSON object")
		return false
	}
	return true
}
