package authz

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-ip/meridian/internal/authz/catalog"
	"github.com/meridian-ip/meridian/internal/platform/httpx"
)

// Handler exposes the engine's decision operations over HTTP.
type Handler struct {
	resolver  *Resolver
	evaluator *AccessEvaluator
	fields    *FieldFilter
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(resolver *Resolver, evaluator *AccessEvaluator, fields *FieldFilter, logger *slog.Logger) *Handler {
	return &Handler{
		resolver:  resolver,
		evaluator: evaluator,
		fields:    fields,
		validate:  validator.New(),
		logger:    logger,
	}
}

// MountRoutes attaches the authz endpoints. Decision endpoints stay open for
// upstream service callers; introspecting another user's permissions and
// dropping cached authority are administrative and sit behind the guard.
func (h *Handler) MountRoutes(r chi.Router, guard Middleware) {
	r.Post("/check", h.Check)
	r.Post("/access", h.Access)
	r.Post("/fields/filter", h.FilterFields)
	r.Post("/fields/validate", h.ValidateWrites)
	r.Group(func(r chi.Router) {
		r.Use(guard.RequireAny(catalog.PermAdminRolesView, catalog.PermUsersView))
		r.Get("/users/{id}/permissions", h.EffectivePermissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(guard.RequireAny(catalog.PermAdminRolesEdit, catalog.PermAdminRolesRevoke))
		r.Post("/invalidate", h.Invalidate)
	})
}

// EffectivePermissions returns the resolved permission list for a user.
func (h *Handler) EffectivePermissions(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return
	}
	perms, err := h.resolver.EffectivePermissions(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, PermissionsResponse{UserID: userID, Permissions: fromPermissions(perms)})
}

// Check answers a permission membership question.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if !h.decode(w, r, &req) {
		return
	}
	perms := toPermissions(req.Permissions)
	var (
		allowed bool
		err     error
	)
	if req.Mode == "all" {
		allowed, err = h.resolver.HasAll(r.Context(), req.UserID, perms...)
	} else {
		allowed, err = h.resolver.HasAny(r.Context(), req.UserID, perms...)
	}
	if err != nil {
		h.respondError(w, err)
		return
	}
	resp := CheckResponse{Allowed: allowed}
	if !allowed {
		if err := h.resolver.Require(r.Context(), req.UserID, perms...); err != nil {
			var denied *DeniedError
			if errors.As(err, &denied) {
				resp.Missing = fromPermissions(denied.Missing)
			}
		}
	}
	httpx.JSON(w, http.StatusOK, resp)
}

// Access answers a resource-scoped access question.
func (h *Handler) Access(w http.ResponseWriter, r *http.Request) {
	var req AccessRequest
	if !h.decode(w, r, &req) {
		return
	}
	allowed, err := h.evaluator.CanAccess(r.Context(), req.UserID, req.ResourceType, req.ResourceID, Action(req.Action))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, AccessResponse{Allowed: allowed})
}

// FilterFields returns the object with denied fields removed or masked.
func (h *Handler) FilterFields(w http.ResponseWriter, r *http.Request) {
	var req FilterFieldsRequest
	if !h.decode(w, r, &req) {
		return
	}
	perms, err := h.resolver.EffectivePermissions(r.Context(), req.UserID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	filtered, err := h.fields.FilterReadable(req.ResourceType, req.Object, perms)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, filtered)
}

// ValidateWrites reports which payload fields the user may not write.
func (h *Handler) ValidateWrites(w http.ResponseWriter, r *http.Request) {
	var req ValidateWritesRequest
	if !h.decode(w, r, &req) {
		return
	}
	perms, err := h.resolver.EffectivePermissions(r.Context(), req.UserID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	violations, err := h.fields.ValidateWrites(req.ResourceType, req.Payload, perms)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ValidateWritesResponse{Allowed: len(violations) == 0, Violations: violations})
}

// Invalidate drops cached authority for the given users.
func (h *Handler) Invalidate(w http.ResponseWriter, r *http.Request) {
	var req InvalidateRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.resolver.InvalidateUsers(r.Context(), req.UserIDs...); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
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
		denied *DeniedError
		mis    *MisconfiguredError
	)
	switch {
	case errors.Is(err, ErrRoleNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no role on record for user")
	case errors.As(err, &denied):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", denied.Error())
	case errors.As(err, &mis):
		h.logger.Error("authz misconfiguration", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Misconfigured", mis.Error())
	default:
		httpx.Internal(w, h.logger, "authz handler", err)
	}
}
