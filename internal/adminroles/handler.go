package adminroles

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-ip/meridian/internal/authz/catalog"
	"github.com/meridian-ip/meridian/internal/platform/httpx"
	"github.com/meridian-ip/meridian/internal/shared"
)

// Handler exposes admin role assignment management over HTTP.
type Handler struct {
	service  *Service
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, validate: validator.New(), logger: logger}
}

// Create opens a new department assignment.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateAssignmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	actorID, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Unauthorized(w)
		return
	}
	created, err := h.service.Create(r.Context(), actorID, CreateInput{
		UserID:     req.UserID,
		Department: catalog.Department(req.Department),
		Seniority:  catalog.Seniority(req.Seniority),
		Custom:     parsePerms(req.Permissions),
		ExpiresAt:  req.ExpiresAt,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(created))
}

// Get returns one assignment by ID.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(a))
}

// ListByUser returns a user's assignments.
func (h *Handler) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	assignments, err := h.service.ListByUser(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]AssignmentResponse, len(assignments))
	for i, a := range assignments {
		out[i] = toResponse(a)
	}
	httpx.JSON(w, http.StatusOK, out)
}

// Update changes seniority, custom permissions or expiry.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req UpdateAssignmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	actorID, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Unauthorized(w)
		return
	}
	in := UpdateInput{ExpiresAt: req.ExpiresAt, ClearExpiry: req.ClearExpiry}
	if req.Seniority != nil {
		s := catalog.Seniority(*req.Seniority)
		in.Seniority = &s
	}
	if req.Permissions != nil {
		in.Custom = parsePerms(req.Permissions)
	}
	updated, err := h.service.Update(r.Context(), actorID, id, in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(updated))
}

// BulkUpdate applies one mutation to several assignments.
func (h *Handler) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	var req BulkUpdateRequest
	if !h.decode(w, r, &req) {
		return
	}
	actorID, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Unauthorized(w)
		return
	}
	in := UpdateInput{ExpiresAt: req.Update.ExpiresAt, ClearExpiry: req.Update.ClearExpiry}
	if req.Update.Seniority != nil {
		s := catalog.Seniority(*req.Update.Seniority)
		in.Seniority = &s
	}
	if req.Update.Permissions != nil {
		in.Custom = parsePerms(req.Update.Permissions)
	}
	updated, err := h.service.BulkUpdate(r.Context(), actorID, req.IDs, in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]AssignmentResponse, len(updated))
	for i, a := range updated {
		out[i] = toResponse(a)
	}
	httpx.JSON(w, http.StatusOK, out)
}

// Revoke soft-deletes an assignment.
func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	actorID, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Unauthorized(w)
		return
	}
	if err := h.service.Revoke(r.Context(), actorID, id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Deactivate suspends an assignment without deleting it.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	actorID, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Unauthorized(w)
		return
	}
	if err := h.service.Deactivate(r.Context(), actorID, id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return 0, false
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
	var (
		verr *ValidationError
		ierr *InvariantViolationError
	)
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "assignment not found")
	case errors.Is(err, ErrDuplicate):
		httpx.Problem(w, http.StatusConflict, "Conflict", "user already has an assignment for this department")
	case errors.As(err, &verr):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", verr.Error())
	case errors.As(err, &ierr):
		httpx.Problem(w, http.StatusConflict, "Conflict", ierr.Error())
	default:
		httpx.Internal(w, h.logger, "adminroles handler", err)
	}
}
