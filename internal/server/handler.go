package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Uuq114/JanusRelay/internal/proxy"
)

//go:generate mockgen -source=handler.go -destination=mocks/mock_completer.go -package=mocks

const (
	HomeMessage = "✅ Janus relay is running! Use POST /chat to talk to the bot."
	Version     = "1.0.0"

	msgNoMessage     = "No message provided"
	msgEmptyMessage  = "Empty message"
	msgInternalError = "Internal server error"
)

var (
	ErrNoMessage    = errors.New("no message provided")
	ErrEmptyMessage = errors.New("empty message")
)

// Completer performs the outbound completion for one message.
type Completer interface {
	Complete(ctx context.Context, requestId string, message string) proxy.Result
}

type ChatRequest struct {
	Message string `json:"message"`
}

type ChatReply struct {
	Reply string `json:"reply"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type Handler struct {
	completer Completer
	logger    *zap.Logger
}

func NewHandler(completer Completer, logger *zap.Logger) *Handler {
	return &Handler{
		completer: completer,
		logger:    logger,
	}
}

// GET /
func (h *Handler) Home(c *gin.Context) {
	c.String(http.StatusOK, HomeMessage)
}

// GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: Version,
	})
}

// POST /chat
// Body: ChatRequest
// Returns: ChatReply, or ErrorResponse on 400/500
func (h *Handler) Chat(c *gin.Context) {
	requestId := RequestID(c)
	log := h.logger.With(zap.String("request_id", requestId))

	body, err := c.GetRawData()
	if err != nil {
		log.Error("failed to read request body", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: msgInternalError})
		return
	}

	message, err := parseChatRequest(body)
	switch {
	case errors.Is(err, ErrNoMessage):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: msgNoMessage})
		return
	case errors.Is(err, ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: msgEmptyMessage})
		return
	case err != nil:
		log.Error("error in chat endpoint", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: msgInternalError})
		return
	}

	result := h.completer.Complete(c.Request.Context(), requestId, message)
	reply := result.Reply()

	log.Info("user message", zap.String("message", message))
	if result.Failed() {
		log.Warn("bot reply carries a failure",
			zap.Stringer("outcome", result.Outcome),
			zap.String("upstream", result.Upstream),
			zap.String("reply", reply),
		)
	} else {
		log.Info("bot reply", zap.String("upstream", result.Upstream), zap.String("reply", reply))
	}

	c.JSON(http.StatusOK, ChatReply{Reply: reply})
}

// parseChatRequest returns the message exactly as sent. Only emptiness is
// judged on the trimmed form.
func parseChatRequest(body []byte) (string, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return "", ErrNoMessage
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			// valid JSON that is not an object
			return "", ErrNoMessage
		}
		return "", fmt.Errorf("decode chat request: %w", err)
	}

	raw, ok := payload["message"]
	if !ok {
		return "", ErrNoMessage
	}

	var message string
	if err := json.Unmarshal(raw, &message); err != nil || string(raw) == "null" {
		return "", ErrNoMessage
	}

	if strings.TrimFunc(message, isBlank) == "" {
		return "", ErrEmptyMessage
	}

	return message, nil
}

// isBlank also treats the ASCII separators 0x1c-0x1f as blank.
func isBlank(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1c && r <= 0x1f)
}
