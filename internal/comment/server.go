package comment

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
	r.Route("/comments", func(r chi.Router) {
		r.Use(auth.RequireIdentity())
		r.Get("/", s.List)
		r.Post("/", s.Create)
		r.Delete("/{id}", s.Delete)
	})
}

type createRequest struct {
	ProjectID string `json:"projectId" validate:"required"`
	TaskID    string `json:"taskId"`
	Body      string `json:"body" validate:"required"`
}

func (s *Server) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := auth.IdentityFromContext(ctx)
	if !s.policy.Allows(identity.Role, rbac.PermCommentOnTasks) {
		cerr.SetNewJSONError(ctx, cerr.PermissionDenied, "not allowed to comment", nil)
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

	c := &Comment{
		ID:        ulid.Make().String(),
		ProjectID: req.ProjectID,
		TaskID:    req.TaskID,
		AuthorID:  identity.ID,
		Body:      req.Body,
		CreatedAt: time.Now(),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	s.eventBus.PublishNew(eventbus.EventCommentCreated, identity.ID, "comment", c.ID, c.ProjectID,
		"comment added", map[string]string{"taskId": c.TaskID})

	cerr.SetJSONResponseWithStatus(ctx, http.StatusCreated, c)
}

func (s *Server) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, offset := httputil.Pagination(r)
	comments, total, err := s.repo.List(ctx,
		r.URL.Query().Get("projectId"), r.URL.Query().Get("taskId"), limit, offset)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{
		"comments": comments,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

// Delete removes a comment. Authors may delete their own; admins may delete
// any.
func (s *Server) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := auth.IdentityFromContext(ctx)
	c, err := s.repo.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if c.AuthorID != identity.ID && !rbac.IsAdmin(identity.Role) {
		cerr.SetNewJSONError(ctx, cerr.PermissionDenied, "not allowed to delete this comment", nil)
		return
	}
	if err := s.repo.Delete(ctx, c.ID); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]bool{"ok": true})
}
