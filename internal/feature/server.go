package feature

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/atelierhub/portal/internal/auth"
	"github.com/atelierhub/portal/internal/eventbus"
	"github.com/atelierhub/portal/internal/rbac"
	"github.com/atelierhub/portal/pkg/cerr"
)

var validate = validator.New()

type Server struct {
	repo      Repository
	evaluator *Evaluator
	policy    *rbac.Policy
	eventBus  *eventbus.Bus
}

func NewServer(repo Repository, evaluator *Evaluator, policy *rbac.Policy, eventBus *eventbus.Bus) *Server {
	return &Server{
		repo:      repo,
		evaluator: evaluator,
		policy:    policy,
		eventBus:  eventBus,
	}
}

func (s *Server) Routes(r chi.Router) {
	r.Route("/features", func(r chi.Router) {
		r.Use(auth.RequireIdentity())
		r.Get("/", s.List)
		r.Get("/{name}", s.Get)
		r.Put("/{name}", s.Upsert)
		r.Delete("/{name}", s.Delete)
		r.Get("/{name}/check", s.Check)
	})
}

func (s *Server) canManage(ctx context.Context) bool {
	return s.policy.Allows(auth.RoleFromContext(ctx), rbac.PermManageFeatureFlags)
}

func (s *Server) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !s.canManage(ctx) {
		cerr.SetNewJSONError(ctx, cerr.PermissionDenied, "not allowed to manage feature flags", nil)
		return
	}
	flags, err := s.repo.List(ctx)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{"features": flags})
}

func (s *Server) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !s.canManage(ctx) {
		cerr.SetNewJSONError(ctx, cerr.PermissionDenied, "not allowed to manage feature flags", nil)
		return
	}
	f, err := s.repo.Get(ctx, chi.URLParam(r, "name"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, f)
}

type upsertRequest struct {
	Enabled    bool     `json:"enabled"`
	EnabledFor []string `json:"enabledFor" validate:"omitempty,dive,required"`
}

func (s *Server) Upsert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !s.canManage(ctx) {
		cerr.SetNewJSONError(ctx, cerr.PermissionDenied, "not allowed to manage feature flags", nil)
		return
	}
	var req upsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	if err := validate.Struct(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request", err)
		return
	}
	name := chi.URLParam(r, "name")
	if name == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "flag name required", nil)
		return
	}

	now := time.Now()
	f := &Flag{
		Name:       name,
		Enabled:    req.Enabled,
		EnabledFor: req.EnabledFor,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if existing, err := s.repo.Get(ctx, name); err == nil {
		f.CreatedAt = existing.CreatedAt
	} else if !cerr.IsCode(err, cerr.NotFound) {
		cerr.SetJSONError(ctx, err)
		return
	}
	if err := s.repo.Upsert(ctx, f); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	identity := auth.IdentityFromContext(ctx)
	s.eventBus.PublishNew(eventbus.EventFlagChanged, identity.ID, "feature", name, "",
		fmt.Sprintf("feature flag %q set to enabled=%t", name, f.Enabled),
		map[string]string{"enabled": fmt.Sprintf("%t", f.Enabled)})

	cerr.SetJSONResponse(ctx, f)
}

func (s *Server) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !s.canManage(ctx) {
		cerr.SetNewJSONError(ctx, cerr.PermissionDenied, "not allowed to manage feature flags", nil)
		return
	}
	name := chi.URLParam(r, "name")
	if err := s.repo.Delete(ctx, name); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	identity := auth.IdentityFromContext(ctx)
	s.eventBus.PublishNew(eventbus.EventFlagChanged, identity.ID, "feature", name, "",
		fmt.Sprintf("feature flag %q deleted", name), nil)

	cerr.SetJSONResponse(ctx, map[string]bool{"ok": true})
}

// Check evaluates the flag for the calling user. Any authenticated role may
// ask; the answer is fail-closed and never an error.
func (s *Server) Check(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := auth.IdentityFromContext(ctx)
	name := chi.URLParam(r, "name")
	cerr.SetJSONResponse(ctx, map[string]any{
		"name":    name,
		"enabled": s.evaluator.IsEnabled(ctx, name, identity.ID),
	})
}
