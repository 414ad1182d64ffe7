package project

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"

	"github.com/atelierhub/portal/internal/auth"
	"github.com/atelierhub/portal/internal/eventbus"
	"github.com/atelierhub/portal/internal/httputil"
	"github.com/atelierhub/portal/internal/rbac"
	"github.com/atelierhub/portal/pkg/cerr"
)

var validate = validator.New()

type Server struct {
	repo     Repository
	policy   *rbac.Policy
	eventBus *eventbus.Bus
}

func NewServer(repo Repository, policy *rbac.Policy, eventBus *eventbus.Bus) *Server {
	return &Server{repo: repo, policy: policy, eventBus: eventBus}
}

func (s *Server) Routes(r chi.Router) {
	r.Route("/projects", func(r chi.Router) {
		r.Use(auth.RequireIdentity())
		r.Get("/", s.List)
		r.Post("/", s.Create)
		r.Get("/{id}", s.Get)
		r.Patch("/{id}", s.Update)
		r.Delete("/{id}", s.Delete)
	})
}

// visible reports whether the caller may read the given project. Roles with
// viewAllProjects see everything; everyone else is scoped to their org.
func (s *Server) visible(identity *auth.Identity, p *Project) bool {
	if s.policy.Allows(identity.Role, rbac.PermViewAllProjects) {
		return true
	}
	return identity.OrgID == p.OrgID
}

type createRequest struct {
	OrgID       string `json:"orgId" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

func (s *Server) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := auth.IdentityFromContext(ctx)
	if !s.policy.Allows(identity.Role, rbac.PermCreateProjects) {
		cerr.SetNewJSONError(ctx, cerr.PermissionDenied, "not allowed to create projects", nil)
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
	p := &Project{
		ID:          ulid.Make().String(),
		OrgID:       req.OrgID,
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	s.eventBus.PublishNew(eventbus.EventProjectCreated, identity.ID, "project", p.ID, p.ID,
		"project created", map[string]string{"name": p.Name, "org_id": p.OrgID})

	cerr.SetJSONResponseWithStatus(ctx, http.StatusCreated, p)
}

func (s *Server) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := s.repo.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if !s.visible(auth.IdentityFromContext(ctx), p) {
		cerr.SetNewJSONError(ctx, cerr.PermissionDenied, "not allowed to view this project", nil)
		return
	}
	cerr.SetJSONResponse(ctx, p)
}

func (s *Server) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := auth.IdentityFromContext(ctx)
	limit, offset := httputil.Pagination(r)

	orgID := r.URL.Query().Get("orgId")
	if !s.policy.Allows(identity.Role, rbac.PermViewAllProjects) {
		// Scope the listing to the caller's org regardless of the filter.
		orgID = identity.OrgID
	}
	includeArchived := r.URL.Query().Get("archived") == "true"

	projects, total, err := s.repo.List(ctx, orgID, includeArchived, limit, offset)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{
		"projects": projects,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

type updateRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Archived    *bool   `json:"archived,omitempty"`
}

func (s *Server) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := auth.IdentityFromContext(ctx)
	if !s.policy.Allows(identity.Role, rbac.PermManageProjects) {
		cerr.SetNewJSONError(ctx, cerr.PermissionDenied, "not allowed to manage projects", nil)
		return
	}
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	p, err := s.repo.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Archived != nil {
		p.Archived = *req.Archived
	}
	p.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, p); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	s.eventBus.PublishNew(eventbus.EventProjectUpdated, identity.ID, "project", p.ID, p.ID,
		"project updated", nil)

	cerr.SetJSONResponse(ctx, p)
}

func (s *Server) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !s.policy.Allows(auth.RoleFromContext(ctx), rbac.PermManageProjects) {
		cerr.SetNewJSONError(ctx, cerr.PermissionDenied, "not allowed to manage projects", nil)
		return
	}
	if err := s.repo.Delete(ctx, chi.URLParam(r, "id")); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]bool{"ok": true})
}
