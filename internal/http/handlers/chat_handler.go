// Chat HTTP handlers.
//
// This file exposes the two conversation endpoints:
//   - POST /chat_v1.0   (general conversation, reply only)
//   - POST /chat_v1.1   (intent classification and registration flows)
//
// Handlers are transport-thin: they normalize the message, call the
// conversation router and translate its errors into ErrorResponse values.
//
// Idempotency:
// On /chat_v1.1, a request carrying an Idempotency-Key that was already
// answered for the same user gets the recorded envelope back, with
// `Idempotency-Replayed: true`, and no new turn is processed.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/unicode/norm"

	"github.com/tbourn/don-confiado-backend/internal/domain"
	"github.com/tbourn/don-confiado-backend/internal/http/middleware"
	"github.com/tbourn/don-confiado-backend/internal/repo"
	"github.com/tbourn/don-confiado-backend/internal/services"
)

// ChatService is the conversation entry point consumed by the handlers.
type ChatService interface {
	// Chat answers as general conversation.
	Chat(ctx context.Context, userID, message string) (domain.Envelope, error)
	// Handle classifies the message and runs the matching flow.
	Handle(ctx context.Context, userID, message string) (domain.Envelope, error)
}

// IdempotencyStore records routed envelopes by Idempotency-Key.
// Lookup returns repo.ErrNotFound when nothing is recorded.
type IdempotencyStore interface {
	Lookup(ctx context.Context, route, userID, key string) (status int, body []byte, err error)
	Save(ctx context.Context, route, userID, key string, status int, body []byte) error
}

// Options tunes the handlers.
type Options struct {
	// Idempotency enables Idempotency-Key replay on /chat_v1.1 when set.
	Idempotency IdempotencyStore
	// MaxMessageRunes rejects longer messages when > 0.
	MaxMessageRunes int
}

// Handlers groups the chat endpoints.
type Handlers struct {
	chat     ChatService
	idem     IdempotencyStore
	maxRunes int
}

// New binds the handlers to the conversation service.
func New(chat ChatService, opts Options) *Handlers {
	return &Handlers{chat: chat, idem: opts.Idempotency, maxRunes: opts.MaxMessageRunes}
}

//
// DTOs
//

// ChatRequest is the body of both chat endpoints.
type ChatRequest struct {
	// UserID keys the conversation memory.
	UserID string `json:"user_id" binding:"required" example:"tienda-la-esquina"`
	// Message is the user's text, in Spanish.
	Message string `json:"message" binding:"required" example:"Quiero registrar un proveedor"`
}

const (
	msgRequired    = "user_id and message are required"
	msgModelFailed = "Don Confiado no pudo responder en este momento. Intenta de nuevo."
	msgChatFailed  = "No fue posible procesar tu mensaje. Intenta de nuevo."
)

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// normalizeMessage converts line endings to LF, collapses blank-line runs,
// composes Unicode to NFC (so "é" typed as e + U+0301 counts and matches as
// one rune) and trims surrounding whitespace.
func normalizeMessage(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	s = norm.NFC.String(s)
	return strings.TrimSpace(s)
}

// bind decodes and validates the request. It writes the error response
// itself and reports false on failure.
func (h *Handlers) bind(c *gin.Context) (ChatRequest, bool) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, http.StatusRequestEntityTooLarge, ErrCodeTooLarge,
				fmt.Sprintf("request body too large: max %d bytes", tooLarge.Limit))
			return req, false
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgRequired)
		return req, false
	}
	req.UserID = strings.TrimSpace(req.UserID)
	req.Message = normalizeMessage(req.Message)
	if req.UserID == "" || req.Message == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgRequired)
		return req, false
	}
	if h.maxRunes > 0 && utf8.RuneCountInString(req.Message) > h.maxRunes {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("message too long: max %d characters", h.maxRunes))
		return req, false
	}
	middleware.SetUserID(c, req.UserID)
	return req, true
}

// respondError maps service errors to HTTP. The raw error is logged and
// attached to the gin context; clients only see generic text.
func (h *Handlers) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrEmptyUserID), errors.Is(err, services.ErrEmptyMessage):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgRequired)
		return
	case errors.Is(err, services.ErrMessageTooLong):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("message too long: max %d characters", h.maxRunes))
		return
	}

	_ = c.Error(err)
	middleware.LoggerFrom(c).Error().Err(err).Msg("chat turn failed")
	if services.IsModelFailure(err) {
		fail(c, http.StatusBadGateway, ErrCodeModelFailed, msgModelFailed)
		return
	}
	fail(c, http.StatusInternalServerError, ErrCodeChatFailed, msgChatFailed)
}

//
// Handlers
//

// ChatV10 godoc
// @ID          chatV10
// @Summary     General conversation
// @Description Answers the message as Don Confiado, using the user's conversation history.
// @Tags        Chat
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.ChatRequest  true  "User message"
//
// @Success     200  {object}  domain.Envelope          "Reply"
// @Failure     400  {object}  handlers.ErrorResponse   "Bad request"
// @Failure     413  {object}  handlers.ErrorResponse   "Request body too large"
// @Failure     502  {object}  handlers.ErrorResponse   "Model failure"
// @Failure     500  {object}  handlers.ErrorResponse   "Internal error"
// @Router      /chat_v1.0 [post]
func (h *Handlers) ChatV10(c *gin.Context) {
	req, okReq := h.bind(c)
	if !okReq {
		return
	}
	env, err := h.chat.Chat(c.Request.Context(), req.UserID, req.Message)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, env)
}

// ChatV11 godoc
// @ID          chatV11
// @Summary     Routed conversation
// @Description Classifies the message intent (Create_distribuitor, Create_product, Other).
// @Description Registration intents run a slot-filling flow that asks for missing fields and
// @Description stores the record once complete; anything else is answered as general chat.
// @Description Supports idempotency via the Idempotency-Key header (same key, same envelope).
// @Tags        Chat
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false  "Idempotency key for safe retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.ChatRequest  true  "User message"
//
// @Success     200  {object}  domain.Envelope          "Envelope"
// @Failure     400  {object}  handlers.ErrorResponse   "Bad request"
// @Failure     413  {object}  handlers.ErrorResponse   "Request body too large"
// @Failure     502  {object}  handlers.ErrorResponse   "Model failure"
// @Failure     500  {object}  handlers.ErrorResponse   "Internal error"
// @Router      /chat_v1.1 [post]
func (h *Handlers) ChatV11(c *gin.Context) {
	req, okReq := h.bind(c)
	if !okReq {
		return
	}
	ctx := c.Request.Context()
	lg := middleware.LoggerFrom(c)

	route := c.FullPath()
	key, hasKey := middleware.GetIdempotencyKey(c)
	hasKey = hasKey && h.idem != nil

	if hasKey {
		status, body, err := h.idem.Lookup(ctx, route, req.UserID, key)
		switch {
		case err == nil:
			middleware.MarkReplayed(c)
			c.Data(status, gin.MIMEJSON+"; charset=utf-8", body)
			return
		case !errors.Is(err, repo.ErrNotFound):
			lg.Warn().Err(err).Msg("idempotency lookup failed")
		}
	}

	env, err := h.chat.Handle(ctx, req.UserID, req.Message)
	if err != nil {
		h.respondError(c, err)
		return
	}

	body, err := json.Marshal(env)
	if err != nil {
		h.respondError(c, err)
		return
	}

	// Failed registrations stay retryable under the same key.
	if hasKey && env.Status != domain.StatusError {
		if err := h.idem.Save(ctx, route, req.UserID, key, http.StatusOK, body); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				lg.Debug().Msg("idempotency record already stored")
			} else {
				lg.Warn().Err(err).Msg("idempotency store failed")
			}
		}
	}

	c.Data(http.StatusOK, gin.MIMEJSON+"; charset=utf-8", body)
}
