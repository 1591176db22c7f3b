package server

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// APIResponse is the envelope of every API answer.
type APIResponse struct {
	Status  string   `json:"status"` // "success" or "error"
	Data    any      `json:"data,omitempty"`
	Message string   `json:"message,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

func success(c *gin.Context, code int, data any, message string) {
	c.JSON(code, APIResponse{Status: "success", Data: data, Message: message})
}

func failure(c *gin.Context, log zerolog.Logger, code int, message string, errs ...string) {
	c.JSON(code, APIResponse{Status: "error", Message: message, Errors: errs})
	log.Warn().
		Str("path", c.Request.URL.Path).
		Int("status", code).
		Strs("errors", errs).
		Msg(message)
}
