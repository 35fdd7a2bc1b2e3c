package api

import (
	"net/http"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/gin-gonic/gin"

	"github.com/savant-model-analyzer/server/internal/agent/model"
	errx "github.com/savant-model-analyzer/server/internal/core/error"
	"github.com/savant-model-analyzer/server/internal/storage"
	logx "github.com/savant-model-analyzer/server/pkg/logger"
)

// BundleRef points at a model bundle either in a bucket or at a path/URI.
type BundleRef struct {
	FileKey    string `json:"file_key"`
	BucketName string `json:"bucket_name"`
	Path       string `json:"path"`
}

func (b BundleRef) empty() bool {
	return strings.TrimSpace(b.Path) == "" && strings.TrimSpace(b.FileKey) == "" && strings.TrimSpace(b.BucketName) == ""
}

// String is the reference handed to the agent so its create tool can reuse it.
func (b BundleRef) String() string {
	if p := strings.TrimSpace(b.Path); p != "" {
		return p
	}
	if b.BucketName == "" || b.FileKey == "" {
		return ""
	}
	return "gs://" + strings.TrimSpace(b.BucketName) + "/" + strings.TrimPrefix(strings.TrimSpace(b.FileKey), "/")
}

func (h *Handler) reader(ref BundleRef) (storage.ObjectReader, error) {
	if p := strings.TrimSpace(ref.Path); p != "" {
		return h.resolver.Resolve(p)
	}
	return h.resolver.ResolveBucket(strings.TrimSpace(ref.BucketName), strings.TrimSpace(ref.FileKey))
}

type CreateSessionRequest struct {
	BundleRef
	SessionID string `json:"session_id"`
}

type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
}

func (h *Handler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	reader, err := h.reader(req.BundleRef)
	if err != nil {
		failWith(c, err)
		return
	}

	id, err := h.sessions.Create(c.Request.Context(), reader, strings.TrimSpace(req.SessionID))
	if err != nil {
		failWith(c, err)
		return
	}

	logx.Info().Str("request_id", requestID(c)).Str("session_id", id).Str("source", reader.String()).Msg("session ready")
	ok(c, "session created", CreateSessionResponse{SessionID: id})
}

func (h *Handler) GetSession(c *gin.Context) {
	m, err := h.sessions.Manifest(c.Request.Context(), c.Param("id"))
	if err != nil {
		failWith(c, err)
		return
	}
	ok(c, "session found", m)
}

func (h *Handler) DeleteSession(c *gin.Context) {
	id := c.Param("id")
	if err := h.sessions.Delete(c.Request.Context(), id); err != nil {
		failWith(c, err)
		return
	}
	ok(c, "session deleted", CreateSessionResponse{SessionID: id})
}

type QueryRequest struct {
	BundleRef
	UserQuery      string              `json:"user_query" binding:"required"`
	SessionID      string              `json:"session_id"`
	ConversationID string              `json:"conversation_id"`
	ChatHistory    []model.ChatMessage `json:"chat_history"`
}

// Query makes sure the session exists, then hands the question to the agent.
func (h *Handler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body: user_query is required")
		return
	}
	ctx := c.Request.Context()
	sessionID := strings.TrimSpace(req.SessionID)

	switch {
	case !req.BundleRef.empty():
		reader, err := h.reader(req.BundleRef)
		if err != nil {
			failWith(c, err)
			return
		}
		if sessionID, err = h.sessions.Create(ctx, reader, sessionID); err != nil {
			failWith(c, err)
			return
		}
	case sessionID != "":
		if _, err := h.sessions.Manifest(ctx, sessionID); err != nil {
			failWith(c, err)
			return
		}
	default:
		failWith(c, errx.InvalidReference("either a bundle reference or a session_id is required"))
		return
	}

	history := make([]*schema.Message, 0, len(req.ChatHistory))
	for _, m := range req.ChatHistory {
		history = append(history, &schema.Message{Role: m.Role, Content: m.Content})
	}

	out, err := h.agent.Invoke(ctx, model.QueryInput{
		ConversationID: strings.TrimSpace(req.ConversationID),
		SessionID:      sessionID,
		Source:         req.BundleRef.String(),
		Query:          req.UserQuery,
		ChatHistory:    history,
	})
	if err != nil {
		failWith(c, err)
		return
	}
	ok(c, "query answered", out)
}
