package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/heyfriend/landing/internal/export"
	"github.com/heyfriend/landing/internal/model"
)

// PasswordHeader carries the admin secret on GET requests.
const PasswordHeader = "X-Admin-Password"

// Admin is the part of service.AdminService the handler needs.
type Admin interface {
	List(ctx context.Context, password string) ([]model.Subscriber, error)
	Delete(ctx context.Context, password, rawID string) error
}

// DebugInfo describes the running configuration for GET /api/admin/debug.
type DebugInfo struct {
	Environment  string
	SecretSource string
}

// AdminHandler serves the password-protected admin API.
//
// The handler only moves the password from the request (header or body) to
// the service. Verification happens in AdminService, before any storage
// access, so every route here is gated the same way.
type AdminHandler struct {
	admin  Admin
	debug  DebugInfo
	now    func() time.Time
	logger *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(admin Admin, debug DebugInfo, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		admin:  admin,
		debug:  debug,
		now:    time.Now,
		logger: logger,
	}
}

// ListResponse is the body of a successful list.
type ListResponse struct {
	Subscribers []model.Subscriber `json:"subscribers"`
	Count       int                `json:"count"`
}

type listRequest struct {
	Password string `json:"password"`
}

// deleteRequest keeps id as raw JSON so that "1", 1.5 and null are
// rejected instead of being coerced.
type deleteRequest struct {
	Password string          `json:"password"`
	ID       json.RawMessage `json:"id"`
}

// HandleListGet lists subscribers.
//
// HTTP: GET /api/admin/emails
// HEADER: X-Admin-Password: <secret>
func (h *AdminHandler) HandleListGet(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, r.Header.Get(PasswordHeader))
}

// HandleListPost lists subscribers.
//
// HTTP: POST /api/admin/emails
// REQUEST BODY: {"password": "<secret>"}
func (h *AdminHandler) HandleListPost(w http.ResponseWriter, r *http.Request) {
	var req listRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err, "")
		return
	}
	h.list(w, r, req.Password)
}

func (h *AdminHandler) list(w http.ResponseWriter, r *http.Request, password string) {
	subs, err := h.admin.List(r.Context(), password)
	if err != nil {
		writeError(w, err, "Failed to fetch emails")
		return
	}

	writeJSON(w, http.StatusOK, ListResponse{Subscribers: subs, Count: len(subs)})
}

// HandleDelete removes one subscriber.
//
// HTTP: DELETE /api/admin/emails
// REQUEST BODY: {"password": "<secret>", "id": 1}
func (h *AdminHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err, "")
		return
	}

	if err := h.admin.Delete(r.Context(), req.Password, string(req.ID)); err != nil {
		writeError(w, err, "Failed to delete email")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Email deleted successfully"})
}

// HandleExport downloads every subscriber as CSV.
//
// HTTP: GET /api/admin/emails.csv
// HEADER: X-Admin-Password: <secret>
//
// The file is rendered into a buffer first so a failure can still be
// answered with a JSON 500 instead of a truncated download.
func (h *AdminHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	subs, err := h.admin.List(r.Context(), r.Header.Get(PasswordHeader))
	if err != nil {
		writeError(w, err, "Failed to fetch emails")
		return
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, subs); err != nil {
		h.logger.Error("failed to render CSV export", slog.String("error", err.Error()))
		writeError(w, err, "Failed to fetch emails")
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(h.now())+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("CSV export interrupted", slog.String("error", err.Error()))
	}
}

// debugResponse never includes the secret or its length.
type debugResponse struct {
	PasswordIsSet bool   `json:"passwordIsSet"`
	Source        string `json:"source"`
	Environment   string `json:"environment"`
}

// HandleDebug reports whether the admin secret is configured.
//
// HTTP: GET /api/admin/debug
// Not available in production (404).
func (h *AdminHandler) HandleDebug(w http.ResponseWriter, r *http.Request) {
	if h.debug.Environment == "production" {
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Not available in production",
		})
		return
	}

	writeJSON(w, http.StatusOK, debugResponse{
		PasswordIsSet: h.debug.SecretSource != "",
		Source:        h.debug.SecretSource,
		Environment:   h.debug.Environment,
	})
}
