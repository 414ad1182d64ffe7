package task

import (
	"encoding/json"
	"fmt"
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
	repo        Repository
	policy      *rbac.Policy
	transitions *Transitions
	eventBus    *eventbus.Bus
}

func NewServer(repo Repository, policy *rbac.Policy, transitions *Transitions, eventBus *eventbus.Bus) *Server {
	return &Server{
		repo:        repo,
		policy:      policy,
		transitions: transitions,
		eventBus:    eventBus,
	}
}

func (s *Server) Routes(r chi.Router) {
	r.Route("/tasks", func(r chi.Router) {
		r.Use(auth.RequireIdentity())
		r.Get("/", s.List)
		r.Post("/", s.Create)
		r.Get("/{id}", s.Get)
		r.Patch("/{id}", s.Update)
		r.Delete("/{id}", s.Delete)
		r.Post("/{id}/status", s.ChangeStatus)
	})
}

type createRequest struct {
	OrgID       string     `json:"orgId" validate:"required"`
	ProjectID   string     `json:"projectId" validate:"required"`
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description"`
	AssigneeID  string     `json:"assigneeId"`
	DueAt       *time.Time `json:"dueAt"`
}

func (s *Server) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := auth.IdentityFromContext(ctx)
	if !s.policy.Allows(identity.Role, rbac.PermManageAllTasks) {
		cerr.SetNewJSONError(ctx, cerr.PermissionDenied, "not allowed to manage tasks", nil)
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
	t := &Task{
		ID:          ulid.Make().String(),
		OrgID:       req.OrgID,
		ProjectID:   req.ProjectID,
		Title:       req.Title,
		Description: req.Description,
		Status:      StatusNotStarted,
		AssigneeID:  req.AssigneeID,
		DueAt:       req.DueAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	s.eventBus.PublishNew(eventbus.EventTaskCreated, identity.ID, "task", t.ID, t.ProjectID,
		fmt.Sprintf("task %q created", t.Title), nil)

	cerr.SetJSONResponseWithStatus(ctx, http.StatusCreated, t)
}

func (s *Server) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t, err := s.repo.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	identity := auth.IdentityFromContext(ctx)
	if !s.policy.Allows(identity.Role, rbac.PermViewAllProjects) && identity.OrgID != t.OrgID {
		cerr.SetNewJSONError(ctx, cerr.PermissionDenied, "not allowed to view this task", nil)
		return
	}
	cerr.SetJSONResponse(ctx, t)
}

func (s *Server) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := auth.IdentityFromContext(ctx)
	limit, offset := httputil.Pagination(r)

	var status Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := ParseStatus(raw)
		if err != nil {
			cerr.SetJSONError(ctx, err)
			return
		}
		status = parsed
	}

	orgID := r.URL.Query().Get("orgId")
	if !s.policy.Allows(identity.Role, rbac.PermViewAllProjects) {
		// Scope the listing (rows and total) to the caller's org.
		orgID = identity.OrgID
	}

	tasks, total, err := s.repo.List(ctx, orgID, r.URL.Query().Get("projectId"), status, limit, offset)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	cerr.SetJSONResponse(ctx, map[string]any{
		"tasks":  tasks,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

type updateRequest struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	AssigneeID  *string    `json:"assigneeId,omitempty"`
	DueAt       *time.Time `json:"dueAt,omitempty"`
}

func (s *Server) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := auth.IdentityFromContext(ctx)
	if !s.policy.Allows(identity.Role, rbac.PermManageAllTasks) {
		cerr.SetNewJSONError(ctx, cerr.PermissionDenied, "not allowed to manage tasks", nil)
		return
	}
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	t, err := s.repo.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if req.Title != nil {
		t.Title = *req.Title
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.AssigneeID != nil {
		t.AssigneeID = *req.AssigneeID
	}
	if req.DueAt != nil {
		t.DueAt = req.DueAt
	}
	t.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, t); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	s.eventBus.PublishNew(eventbus.EventTaskUpdated, identity.ID, "task", t.ID, t.ProjectID,
		"task updated", nil)

	cerr.SetJSONResponse(ctx, t)
}

func (s *Server) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := auth.IdentityFromContext(ctx)
	if !s.policy.Allows(identity.Role, rbac.PermManageAllTasks) {
		cerr.SetNewJSONError(ctx, cerr.PermissionDenied, "not allowed to manage tasks", nil)
		return
	}
	t, err := s.repo.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if err := s.repo.Delete(ctx, t.ID); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	s.eventBus.PublishNew(eventbus.EventTaskDeleted, identity.ID, "task", t.ID, t.ProjectID,
		fmt.Sprintf("task %q deleted", t.Title), nil)

	cerr.SetJSONResponse(ctx, map[string]bool{"ok": true})
}

type changeStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// ChangeStatus applies a status transition. Guard order: parse the target
// status, check the transition table, then check the caller's capability.
// The activity entry is emitted after the write succeeds and is best
// effort; a recorder outage never fails the request.
func (s *Server) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req changeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	if err := validate.Struct(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request", err)
		return
	}

	target, err := ParseStatus(req.Status)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	t, err := s.repo.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	if !s.transitions.CanTransition(t.Status, target) {
		cerr.SetNewJSONError(ctx, cerr.FailedPrecondition,
			fmt.Sprintf("cannot transition from %s to %s", t.Status, target), nil)
		return
	}

	identity := auth.IdentityFromContext(ctx)
	if !s.policy.Allows(identity.Role, rbac.PermManageAllTasks) {
		cerr.SetNewJSONError(ctx, cerr.PermissionDenied, "not allowed to change task status", nil)
		return
	}

	from := t.Status
	t.Status = target
	t.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, t); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	s.eventBus.PublishNew(eventbus.EventTaskStatusChanged, identity.ID, "task", t.ID, t.ProjectID,
		fmt.Sprintf("status changed from %s to %s", from, target),
		map[string]string{"from": string(from), "to": string(target)})

	cerr.SetJSONResponse(ctx, t)
}
