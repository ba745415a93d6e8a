package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-ip/meridian/internal/adminroles"
	"github.com/meridian-ip/meridian/internal/approvals"
	"github.com/meridian-ip/meridian/internal/authz"
	"github.com/meridian-ip/meridian/internal/authz/catalog"
	"github.com/meridian-ip/meridian/internal/users"
	"github.com/meridian-ip/meridian/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	Resolver          *authz.Resolver
	AuthzHandler      *authz.Handler
	AdminRolesHandler *adminroles.Handler
	ApprovalsHandler  *approvals.Handler
	UsersHandler      *users.Handler
	JobsHandler       *jobs.Handler
}

// NewRouter constructs the chi.Router with Meridian defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:   params.Logger,
		Config:   params.Config,
		Resolver: params.Resolver,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	guard := authz.Middleware{Resolver: params.Resolver, Logger: params.Logger}

	r.Route("/authz", func(r chi.Router) {
		params.AuthzHandler.MountRoutes(r, guard)
	})

	r.Route("/admin-roles", func(r chi.Router) {
		r.Use(guard.RequireAny(
			catalog.PermAdminRolesView,
			catalog.PermAdminRolesCreate,
			catalog.PermAdminRolesEdit,
			catalog.PermAdminRolesRevoke,
		))
		params.AdminRolesHandler.MountRoutes(r)
	})

	r.Route("/approvals", params.ApprovalsHandler.MountRoutes)

	r.Route("/users", func(r chi.Router) {
		r.Use(guard.RequireAny(catalog.PermUsersView, catalog.PermUsersEdit))
		params.UsersHandler.MountRoutes(r)
	})

	if params.JobsHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			r.Use(guard.RequireAny(catalog.PermAdminRolesView, catalog.PermAdminRolesEdit))
			params.JobsHandler.MountRoutes(r)
		})
	}

	return r
}
