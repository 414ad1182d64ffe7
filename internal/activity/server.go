package activity

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atelierhub/portal/internal/auth"
	"github.com/atelierhub/portal/internal/httputil"
	"github.com/atelierhub/portal/internal/rbac"
	"github.com/atelierhub/portal/pkg/cerr"
)

type Server struct {
	repo   Repository
	policy *rbac.Policy
}

func NewServer(repo Repository, policy *rbac.Policy) *Server {
	return &Server{repo: repo, policy: policy}
}

func (s *Server) Routes(r chi.Router) {
	r.Route("/activities", func(r chi.Router) {
		r.Use(auth.RequireIdentity())
		r.Get("/", s.List)
	})
}

func (s *Server) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !s.policy.Allows(auth.RoleFromContext(ctx), rbac.PermViewActivity) {
		cerr.SetNewJSONError(ctx, cerr.PermissionDenied, "not allowed to view activity", nil)
		return
	}
	limit, offset := httputil.Pagination(r)
	activities, total, err := s.repo.List(ctx, r.URL.Query().Get("projectId"), limit, offset)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{
		"activities": activities,
		"total":      total,
		"limit":      limit,
		"offset":     offset,
	})
}
