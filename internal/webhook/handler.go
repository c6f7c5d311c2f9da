// Package webhook is the transport boundary: it verifies inbound chat
// platform events, hands each text message to the engine, and delivers
// replies. It contains no ledger logic.
package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/clweng/ledgerbot/internal/engine"
)

// maxBodyBytes caps inbound webhook bodies.
const maxBodyBytes = 1 << 20

// ReplySender delivers one reply message back to the chat platform.
type ReplySender interface {
	Reply(ctx context.Context, replyToken, text string) error
}

// event is one entry of the webhook envelope. Only text message
// events are acted on; everything else is ignored.
type event struct {
	Type       string `json:"type"`
	ReplyToken string `json:"replyToken"`
	Source     struct {
		Type    string `json:"type"`
		GroupID string `json:"groupId"`
		UserID  string `json:"userId"`
	} `json:"source"`
	Message struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"message"`
}

type envelope struct {
	Events []event `json:"events"`
}

// Handler serves the platform callback endpoint.
type Handler struct {
	engine  *engine.Engine
	secret  string
	replies ReplySender
}

// NewHandler creates the callback handler.
func NewHandler(eng *engine.Engine, channelSecret string, replies ReplySender) *Handler {
	return &Handler{engine: eng, secret: channelSecret, replies: replies}
}

// Callback handles POST /callback: signature check, envelope decode,
// one engine invocation per text message event.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		slog.Warn("Failed to read webhook body", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if !validSignature(h.secret, body, r.Header.Get("X-Line-Signature")) {
		slog.Warn("Webhook signature mismatch", "remote_addr", r.RemoteAddr)
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		slog.Warn("Failed to decode webhook envelope", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	for _, ev := range env.Events {
		if ev.Type != "message" || ev.Message.Type != "text" {
			continue
		}
		reply, ok := h.engine.Handle(r.Context(), ev.Source.GroupID, ev.Source.UserID, ev.Message.Text)
		if !ok {
			continue
		}
		if err := h.replies.Reply(r.Context(), ev.ReplyToken, reply); err != nil {
			slog.Error("Failed to deliver reply", "error", err)
		}
	}

	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "OK")
}

// Health handles GET /.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	io.WriteString(w, "ledgerbot up\n")
}
