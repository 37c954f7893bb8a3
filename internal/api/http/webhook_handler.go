package http

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"realty-backend/internal/domain"
	"realty-backend/internal/logger"
)

// replyWebhookPayload accepts both the provider envelope ({type, data:{from}})
// and a bare {from} body.
type replyWebhookPayload struct {
	Type string `json:"type"`
	From string `json:"from"`
	Data *struct {
		From    string `json:"from"`
		To      any    `json:"to"`
		Subject string `json:"subject"`
	} `json:"data"`
}

func (p replyWebhookPayload) sender() string {
	if p.Data != nil && strings.TrimSpace(p.Data.From) != "" {
		return p.Data.From
	}
	return p.From
}

type replyWebhookResponse struct {
	Success        bool               `json:"success"`
	Message        string             `json:"message"`
	ProfileID      *uuid.UUID         `json:"profile_id,omitempty"`
	ProfileType    domain.ProfileType `json:"profile_type,omitempty"`
	CancelledCount *int               `json:"cancelled_count,omitempty"`
}

// EmailReplyWebhook cancels a profile's in-flight sequence emails when they reply
func (h *Handler) EmailReplyWebhook(w http.ResponseWriter, r *http.Request) {
	var payload replyWebhookPayload
	if err := decodeJSON(w, r, &payload, nil); err != nil {
		writeErrorFrom(w, http.StatusBadRequest, err)
		return
	}

	from := strings.TrimSpace(payload.sender())
	if from == "" {
		writeError(w, http.StatusBadRequest, "Missing sender address")
		return
	}

	outcome, err := h.pipeline.OnInboundReply(r.Context(), from)
	if err != nil {
		logger.Error("Failed to process inbound reply", "event_type", payload.Type, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if !outcome.Matched {
		writeJSON(w, http.StatusOK, replyWebhookResponse{Success: true, Message: "No matching profile"})
		return
	}

	profileID := outcome.Profile.ID
	cancelled := outcome.CancelledCount
	writeJSON(w, http.StatusOK, replyWebhookResponse{
		Success:        true,
		Message:        "Reply processed",
		ProfileID:      &profileID,
		ProfileType:    outcome.Profile.Type,
		CancelledCount: &cancelled,
	})
}
