package api

import (
	"errors"
	"net/http"

	"tableside/internal/database"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Envelope status values
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

func respond(c *gin.Context, code int, message string, data interface{}) {
	body := gin.H{"status": StatusSuccess}
	if message != "" {
		body["message"] = message
	}
	if data != nil {
		body["data"] = data
	}
	c.JSON(code, body)
}

func respondError(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"status": StatusError, "message": message})
}

// fail maps store errors onto HTTP codes. Business rule messages are passed
// through verbatim; anything else is logged and hidden.
func (s *Server) fail(c *gin.Context, err error) {
	var rule *database.Error
	if !errors.As(err, &rule) {
		s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	code := http.StatusUnprocessableEntity
	switch {
	case errors.Is(err, database.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, database.ErrConflict):
		code = http.StatusConflict
	}
	respondError(c, code, rule.Message)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
