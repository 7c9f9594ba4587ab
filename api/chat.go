package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/stanchat/stan/internal/conversation"
	"github.com/stanchat/stan/internal/log"
)

// ChatHandler handles the conversational endpoint.
type ChatHandler struct {
	engine *conversation.Engine
	logger log.Logger
}

// NewChatHandler creates a new chat handler over the conversation engine.
func NewChatHandler(engine *conversation.Engine, logger log.Logger) *ChatHandler {
	return &ChatHandler{engine: engine, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /chat", h.handleChat)
}

// ChatRequest is the POST /chat request body. Message is a pointer: a body
// without the field is a client error, while an empty string is a valid
// message that gets a conversational reply.
type ChatRequest struct {
	Message   *string `json:"message"`
	SessionID string  `json:"session_id"`
}

// ChatResponse is the POST /chat response body.
type ChatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
	Sentiment string `json:"sentiment"`
	Context   string `json:"context"`
}

// handleChat processes one conversational exchange.
//
// Status codes:
//   - 200: reply produced (including degraded-generation replies)
//   - 400: malformed JSON or missing message field
//   - 500: internal invariant violation
func (h *ChatHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}

	resp, err := h.engine.Chat(r.Context(), conversation.Request{
		Message:   req.Message,
		SessionID: req.SessionID,
	})
	if err != nil {
		if errors.Is(err, conversation.ErrMissingMessage) {
			writeError(w, http.StatusBadRequest, "missing_message", "message field is required")
			return
		}
		h.logger.Error("chat request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to process message")
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Response:  resp.Reply,
		SessionID: resp.SessionID,
		Sentiment: resp.Sentiment,
		Context:   resp.Context,
	})
}
