package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/heyfriend/landing/internal/apperror"
	"github.com/heyfriend/landing/internal/model"
)

// Subscriber is the part of service.SubscriberService the handler needs.
type Subscriber interface {
	Subscribe(ctx context.Context, email string) (*model.Subscriber, error)
}

// SubscribeHandler serves the public waitlist endpoint.
type SubscribeHandler struct {
	subscribers Subscriber
	logger      *slog.Logger
}

// NewSubscribeHandler creates a new SubscribeHandler.
func NewSubscribeHandler(subscribers Subscriber, logger *slog.Logger) *SubscribeHandler {
	return &SubscribeHandler{subscribers: subscribers, logger: logger}
}

// subscribeRequest decodes email as interface{} so a number, bool or
// object can be told apart from a missing field and rejected the same way.
type subscribeRequest struct {
	Email interface{} `json:"email"`
}

// SubscribedRef is the public view of a new subscriber. created_at is left out.
type SubscribedRef struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// SubscribeResponse is returned with 201 Created.
type SubscribeResponse struct {
	Message    string        `json:"message"`
	Subscriber SubscribedRef `json:"subscriber"`
}

// HandleSubscribe adds an email to the waitlist.
//
// HTTP: POST /api/subscribe
// REQUEST BODY: {"email": "a@example.com"}
//
// RESPONSES:
//
//	201 {"message":"Successfully subscribed!","subscriber":{"id":1,"email":"a@example.com"}}
//	400 email missing, not a string, or badly formed
//	409 already on the list ({"alreadyExists": true})
//	500 storage failure
func (h *SubscribeHandler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err, "")
		return
	}

	email, ok := req.Email.(string)
	if !ok || email == "" {
		writeError(w, apperror.ValidationFailed("email", "Email is required"), "")
		return
	}

	sub, err := h.subscribers.Subscribe(r.Context(), email)
	if err != nil {
		writeError(w, err, "Failed to subscribe. Please try again.")
		return
	}

	writeJSON(w, http.StatusCreated, SubscribeResponse{
		Message:    "Successfully subscribed!",
		Subscriber: SubscribedRef{ID: sub.ID, Email: sub.Email},
	})
}
