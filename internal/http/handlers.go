package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/hongyan1215/money/internal/amqp"
	"github.com/hongyan1215/money/internal/core"
)

// webhookRequest is one inbound event from the chat gateway. Image is
// base64 in the JSON body; exactly one of Text or Image must be set.
type webhookRequest struct {
	Owner   string `json:"owner"`
	EventID string `json:"event_id"`
	Text    string `json:"text,omitempty"`
	Image   []byte `json:"image,omitempty"`
}

type webhookResponse struct {
	EventID string `json:"event_id"`
	Status  string `json:"status"`
	Reply   string `json:"reply,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Owner == "" {
		writeError(w, http.StatusBadRequest, "owner is required")
		return
	}
	if req.Text == "" && len(req.Image) == 0 {
		writeError(w, http.StatusBadRequest, "text or image is required")
		return
	}
	if req.EventID == "" {
		// Gateways without delivery ids lose dedup protection but still
		// get a traceable id end to end.
		req.EventID = uuid.NewString()
	}

	msg := amqp.NewInboundEventMessage(req.EventID, req.Owner, req.Text, req.Image)

	if s.events != nil {
		if err := s.events.PublishInboundEvent(r.Context(), msg); err != nil {
			slog.ErrorContext(r.Context(), "Failed to enqueue inbound event",
				"event_id", req.EventID, "error", err)
			writeError(w, http.StatusServiceUnavailable, "event queue unavailable")
			return
		}
		writeJSON(w, http.StatusAccepted, webhookResponse{EventID: req.EventID, Status: "queued"})
		return
	}

	s.handleInline(w, r, msg)
}

// handleInline parses and dispatches synchronously. Local development
// path: no broker, the reply comes back in the HTTP response.
func (s *Server) handleInline(w http.ResponseWriter, r *http.Request, msg *amqp.InboundEventMessage) {
	ctx := r.Context()

	var (
		in  core.Intent
		err error
	)
	if len(msg.Image) > 0 {
		in, err = s.parser.ParseReceipt(ctx, msg.Image)
	} else {
		in, err = s.parser.ParseText(ctx, msg.Text)
	}
	if err != nil {
		slog.WarnContext(ctx, "Failed to parse inline event",
			"event_id", msg.EventID, "error", err)
		writeError(w, http.StatusUnprocessableEntity, "could not understand the message")
		return
	}

	reply, err := s.dispatcher.Dispatch(ctx, msg.Owner, in)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to dispatch inline event",
			"event_id", msg.EventID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, webhookResponse{EventID: msg.EventID, Status: "done", Reply: reply})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
