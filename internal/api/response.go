package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	errx "github.com/savant-model-analyzer/server/internal/core/error"
	logx "github.com/savant-model-analyzer/server/pkg/logger"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	RequestID string `json:"request_id"`
	Message   string `json:"message"`
	Status    string `json:"status"`
	Data      any    `json:"data,omitempty"`
}

func ok(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, Response{
		RequestID: requestID(c),
		Message:   message,
		Status:    StatusSuccess,
		Data:      data,
	})
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Response{
		RequestID: requestID(c),
		Message:   message,
		Status:    StatusError,
	})
}

// failWith maps err through errx and logs the cause.
func failWith(c *gin.Context, err error) {
	status := errx.Status(err)
	ev := logx.Warn()
	if status >= http.StatusInternalServerError {
		ev = logx.Error()
	}
	ev.Err(err).
		Str("request_id", requestID(c)).
		Str("path", c.FullPath()).
		Int("status", status).
		Msg("request failed")

	fail(c, status, errx.Message(err))
}
