package internal

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/atelierhub/portal/internal/activity"
	"github.com/atelierhub/portal/internal/auth"
	"github.com/atelierhub/portal/internal/comment"
	"github.com/atelierhub/portal/internal/config"
	"github.com/atelierhub/portal/internal/feature"
	"github.com/atelierhub/portal/internal/file"
	"github.com/atelierhub/portal/internal/organization"
	"github.com/atelierhub/portal/internal/project"
	"github.com/atelierhub/portal/internal/pushnotification"
	"github.com/atelierhub/portal/internal/task"
	"github.com/atelierhub/portal/pkg/cerr"
	"github.com/atelierhub/portal/pkg/clog"
)

type Server struct {
	server             *http.Server
	env                *config.Env
	authMiddleware     func(http.Handler) http.Handler
	authServer         *auth.Server
	organizationServer *organization.Server
	projectServer      *project.Server
	taskServer         *task.Server
	commentServer      *comment.Server
	fileServer         *file.Server
	featureServer      *feature.Server
	activityServer     *activity.Server
	pushServer         *pushnotification.Server
}

func NewServer(
	env *config.Env,
	authMiddleware func(http.Handler) http.Handler,
	authServer *auth.Server,
	organizationServer *organization.Server,
	projectServer *project.Server,
	taskServer *task.Server,
	commentServer *comment.Server,
	fileServer *file.Server,
	featureServer *feature.Server,
	activityServer *activity.Server,
	pushServer *pushnotification.Server,
) *Server {
	return &Server{
		env:                env,
		authMiddleware:     authMiddleware,
		authServer:         authServer,
		organizationServer: organizationServer,
		projectServer:      projectServer,
		taskServer:         taskServer,
		commentServer:      commentServer,
		fileServer:         fileServer,
		featureServer:      featureServer,
		activityServer:     activityServer,
		pushServer:         pushServer,
	}
}

// ListenAndServe starts the HTTP server. The provided context is used as the
// base context for all incoming requests via http.Server.BaseContext, so
// cancelling it (e.g. on shutdown signal) also cancels in-flight handlers.
func (s *Server) ListenAndServe(ctx context.Context) error {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(
			clog.SlogChiMiddleware(),
			cerr.NewJSONResponseChiMiddleware(),
			s.authMiddleware,
		)
		s.authServer.Routes(r)
		s.organizationServer.Routes(r)
		s.projectServer.Routes(r)
		s.taskServer.Routes(r)
		s.commentServer.Routes(r)
		s.fileServer.Routes(r)
		s.featureServer.Routes(r)
		s.activityServer.Routes(r)
		s.pushServer.Routes(r)
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			cerr.SetNewJSONError(r.Context(), cerr.NotFound, "not found", nil)
		})
	})

	mux := http.NewServeMux()
	mux.Handle("/health", &HealthChecker{})
	mux.Handle("/api/", r)

	addr := net.JoinHostPort(s.env.HTTPHost, s.env.HTTPPort)
	slog.Info("starting server", "addr", addr)

	s.server = &http.Server{
		Addr: addr,
		Handler: h2c.NewHandler(cors.New(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
		}).Handler(mux), &http2.Server{}),
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type HealthChecker struct{}

func (hc *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
