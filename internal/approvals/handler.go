package approvals

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-ip/meridian/internal/authz"
	"github.com/meridian-ip/meridian/internal/authz/catalog"
	"github.com/meridian-ip/meridian/internal/platform/httpx"
	"github.com/meridian-ip/meridian/internal/shared"
)

// Handler exposes the approval workflow over HTTP.
type Handler struct {
	service  *Service
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, validate: validator.New(), logger: logger}
}

// MountRoutes attaches the approval endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/required", h.CheckRequired)
	r.Post("/requests", h.Submit)
	r.Get("/requests", h.ListPending)
	r.Get("/requests/{id}", h.Get)
	r.Post("/requests/{id}/approve", h.Approve)
	r.Post("/requests/{id}/reject", h.Reject)
}

// CheckRequired reports whether the action needs dual control.
func (h *Handler) CheckRequired(w http.ResponseWriter, r *http.Request) {
	var req CheckRequiredRequest
	if !h.decode(w, r, &req) {
		return
	}
	actorID, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Unauthorized(w)
		return
	}
	required, err := h.service.RequiresApproval(r.Context(), actorID, req.ActionType, req.Payload)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, CheckRequiredResponse{Required: required})
}

// Submit opens a pending approval request for the acting user.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if !h.decode(w, r, &req) {
		return
	}
	actorID, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Unauthorized(w)
		return
	}
	created, err := h.service.Submit(r.Context(), actorID, req.ActionType, req.Payload)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRequestResponse(created))
}

// Get returns one approval request.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	request, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRequestResponse(request))
}

// ListPending returns pending requests, optionally filtered by the
// department query parameter.
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	dept := catalog.Department(r.URL.Query().Get("department"))
	requests, err := h.service.ListPending(r.Context(), dept)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]RequestResponse, len(requests))
	for i, req := range requests {
		out[i] = toRequestResponse(req)
	}
	httpx.JSON(w, http.StatusOK, out)
}

// Approve resolves a pending request as APPROVED.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, StatusApproved)
}

// Reject resolves a pending request as REJECTED.
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, StatusRejected)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request, status Status) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req ResolveRequest
	if !h.decode(w, r, &req) {
		return
	}
	actorID, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Unauthorized(w)
		return
	}
	var (
		resolved Request
		err      error
	)
	if status == StatusApproved {
		resolved, err = h.service.Approve(r.Context(), actorID, id, req.Comments)
	} else {
		resolved, err = h.service.Reject(r.Context(), actorID, id, req.Comments)
	}
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRequestResponse(resolved))
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid request id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := httpx.DecodeJSON(r, dest); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return false
	}
	if err := h.validate.Struct(dest); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var mis *authz.MisconfiguredError
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "approval request not found")
	case errors.Is(err, ErrConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", "request already resolved")
	case errors.Is(err, ErrSelfApproval):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "cannot review your own request")
	case errors.Is(err, ErrNotEligible):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "not eligible to review this request")
	case errors.As(err, &mis):
		h.logger.Error("approvals misconfiguration", slog.Any("error", err))
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable", mis.Error())
	default:
		httpx.Internal(w, h.logger, "approvals handler", err)
	}
}
