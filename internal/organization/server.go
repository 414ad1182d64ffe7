package organization

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"

	"github.com/atelierhub/portal/internal/auth"
	"github.com/atelierhub/portal/internal/httputil"
	"github.com/atelierhub/portal/internal/rbac"
	"github.com/atelierhub/portal/pkg/cerr"
)

var validate = validator.New()

type Server struct {
	repo   Repository
	policy *rbac.Policy
}

func NewServer(repo Repository, policy *rbac.Policy) *Server {
	return &Server{repo: repo, policy: policy}
}

func (s *Server) Routes(r chi.Router) {
	r.Route("/organizations", func(r chi.Router) {
		r.Use(auth.RequireIdentity())
		r.Get("/", s.List)
		r.Post("/", s.Create)
		r.Get("/{id}", s.Get)
		r.Patch("/{id}", s.Update)
		r.Delete("/{id}", s.Delete)
	})
}

type createRequest struct {
	Name string `json:"name" validate:"required"`
	Slug string `json:"slug" validate:"required,lowercase,excludesall= "`
}

func (s *Server) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !s.policy.Allows(auth.RoleFromContext(ctx), rbac.PermManageOrganizations) {
		cerr.SetNewJSONError(ctx, cerr.PermissionDenied, "not allowed to manage organizations", nil)
		return
	}
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	if err := validate.Struct(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request", err)
		return
	}
	now := time.Now()
	o := &Organization{
		ID:        ulid.Make().String(),
		Name:      req.Name,
		Slug:      req.Slug,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, o); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponseWithStatus(ctx, http.StatusCreated, o)
}

func (s *Server) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := auth.IdentityFromContext(ctx)
	id := chi.URLParam(r, "id")
	// Clients may only read their own organization.
	if !s.policy.Allows(identity.Role, rbac.PermManageOrganizations) && identity.OrgID != id {
		cerr.SetNewJSONError(ctx, cerr.PermissionDenied, "not allowed to view this organization", nil)
		return
	}
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, o)
}

func (s *Server) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !s.policy.Allows(auth.RoleFromContext(ctx), rbac.PermManageOrganizations) {
		cerr.SetNewJSONError(ctx, cerr.PermissionDenied, "not allowed to manage organizations", nil)
		return
	}
	limit, offset := httputil.Pagination(r)
	orgs, total, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{
		"organizations": orgs,
		"total":         total,
		"limit":         limit,
		"offset":        offset,
	})
}

type updateRequest struct {
	Name *string `json:"name,omitempty"`
}

func (s *Server) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !s.policy.Allows(auth.RoleFromContext(ctx), rbac.PermManageOrganizations) {
		cerr.SetNewJSONError(ctx, cerr.PermissionDenied, "not allowed to manage organizations", nil)
		return
	}
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	o, err := s.repo.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if req.Name != nil {
		o.Name = *req.Name
	}
	o.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, o); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, o)
}

func (s *Server) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !s.policy.Allows(auth.RoleFromContext(ctx), rbac.PermManageOrganizations) {
		cerr.SetNewJSONError(ctx, cerr.PermissionDenied, "not allowed to manage organizations", nil)
		return
	}
	if err := s.repo.Delete(ctx, chi.URLParam(r, "id")); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]bool{"ok": true})
}
