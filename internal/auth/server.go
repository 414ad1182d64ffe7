package auth

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/atelierhub/portal/internal/eventbus"
	"github.com/atelierhub/portal/internal/httputil"
	"github.com/atelierhub/portal/internal/rbac"
	"github.com/atelierhub/portal/pkg/cerr"
)

var validate = validator.New()

type Server struct {
	repo         Repository
	issuer       *TokenIssuer
	policy       *rbac.Policy
	eventBus     *eventbus.Bus
	cookieName   string
	cookieSecure bool
}

func NewServer(repo Repository, issuer *TokenIssuer, policy *rbac.Policy, eventBus *eventbus.Bus, cookieName string, cookieSecure bool) *Server {
	return &Server{
		repo:         repo,
		issuer:       issuer,
		policy:       policy,
		eventBus:     eventBus,
		cookieName:   cookieName,
		cookieSecure: cookieSecure,
	}
}

func (s *Server) Routes(r chi.Router) {
	r.Post("/auth/login", s.Login)
	r.Post("/auth/logout", s.Logout)
	r.Get("/auth/me", s.Me)
	r.Route("/users", func(r chi.Router) {
		r.Use(RequireIdentity())
		r.Get("/", s.ListUsers)
		r.Post("/", s.CreateUser)
		r.Get("/{id}", s.GetUser)
		r.Patch("/{id}", s.UpdateUser)
		r.Delete("/{id}", s.DeleteUser)
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	if err := validate.Struct(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request", err)
		return
	}

	u, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		if cerr.IsCode(err, cerr.NotFound) {
			// Do not reveal whether the account exists.
			cerr.SetNewJSONError(ctx, cerr.Unauthenticated, "invalid credentials", err)
			return
		}
		cerr.SetJSONError(ctx, err)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		cerr.SetNewJSONError(ctx, cerr.Unauthenticated, "invalid credentials", err)
		return
	}

	token, err := s.issuer.Issue(u.ID, time.Now())
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(s.issuer.TTL()),
	})
	cerr.SetJSONResponse(ctx, u)
}

func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	cerr.SetJSONResponse(r.Context(), map[string]bool{"ok": true})
}

func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := IdentityFromContext(ctx)
	if identity == nil {
		cerr.SetNewJSONError(ctx, cerr.Unauthenticated, "authentication required", nil)
		return
	}
	cerr.SetJSONResponse(ctx, identity)
}

type createUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required"`
	Role     string `json:"role" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
	OrgID    string `json:"orgId" validate:"required"`
}

func (s *Server) CreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !s.policy.Allows(RoleFromContext(ctx), rbac.PermManageUsers) {
		cerr.SetNewJSONError(ctx, cerr.PermissionDenied, "not allowed to manage users", nil)
		return
	}
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	if err := validate.Struct(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request", err)
		return
	}
	role, err := rbac.ParseRole(req.Role)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		cerr.SetNewJSONError(ctx, cerr.Internal, "server error", err)
		return
	}

	now := time.Now()
	u := &User{
		ID:           ulid.Make().String(),
		OrgID:        req.OrgID,
		Email:        req.Email,
		Name:         req.Name,
		Role:         role,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	actor := IdentityFromContext(ctx)
	s.eventBus.PublishNew(eventbus.EventUserCreated, actor.ID, "user", u.ID, "",
		"user created", map[string]string{"email": u.Email, "role": string(u.Role)})

	cerr.SetJSONResponseWithStatus(ctx, http.StatusCreated, u)
}

func (s *Server) GetUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !s.policy.Allows(RoleFromContext(ctx), rbac.PermManageUsers) {
		cerr.SetNewJSONError(ctx, cerr.PermissionDenied, "not allowed to manage users", nil)
		return
	}
	u, err := s.repo.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, u)
}

func (s *Server) ListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !s.policy.Allows(RoleFromContext(ctx), rbac.PermManageUsers) {
		cerr.SetNewJSONError(ctx, cerr.PermissionDenied, "not allowed to manage users", nil)
		return
	}
	limit, offset := httputil.Pagination(r)
	users, total, err := s.repo.List(ctx, r.URL.Query().Get("orgId"), limit, offset)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{
		"users":  users,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

type updateUserRequest struct {
	Name     *string `json:"name,omitempty"`
	Role     *string `json:"role,omitempty"`
	Password *string `json:"password,omitempty" validate:"omitempty,min=8"`
}

func (s *Server) UpdateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !s.policy.Allows(RoleFromContext(ctx), rbac.PermManageUsers) {
		cerr.SetNewJSONError(ctx, cerr.PermissionDenied, "not allowed to manage users", nil)
		return
	}
	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	if err := validate.Struct(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request", err)
		return
	}
	u, err := s.repo.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if req.Name != nil {
		u.Name = *req.Name
	}
	if req.Role != nil {
		role, err := rbac.ParseRole(*req.Role)
		if err != nil {
			cerr.SetJSONError(ctx, err)
			return
		}
		u.Role = role
	}
	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			cerr.SetNewJSONError(ctx, cerr.Internal, "server error", err)
			return
		}
		u.PasswordHash = string(hash)
	}
	u.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, u); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, u)
}

func (s *Server) DeleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !s.policy.Allows(RoleFromContext(ctx), rbac.PermManageUsers) {
		cerr.SetNewJSONError(ctx, cerr.PermissionDenied, "not allowed to manage users", nil)
		return
	}
	if err := s.repo.Delete(ctx, chi.URLParam(r, "id")); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]bool{"ok": true})
}
