package adminroles

import "github.com/go-chi/chi/v5"

// MountRoutes attaches the admin role assignment endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/assignments", h.Create)
	r.Post("/assignments/bulk", h.BulkUpdate)
	r.Get("/assignments/{id}", h.Get)
	r.Patch("/assignments/{id}", h.Update)
	r.Delete("/assignments/{id}", h.Revoke)
	r.Post("/assignments/{id}/deactivate", h.Deactivate)
	r.Get("/users/{userID}/assignments", h.ListByUser)
}
