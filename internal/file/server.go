package file

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/atelierhub/portal/internal/auth"
	"github.com/atelierhub/portal/internal/eventbus"
	"github.com/atelierhub/portal/internal/httputil"
	"github.com/atelierhub/portal/internal/rbac"
	"github.com/atelierhub/portal/pkg/blob"
	"github.com/atelierhub/portal/pkg/cerr"
	"github.com/atelierhub/portal/pkg/clog"
)

// maxUploadSize caps a single upload at 64 MiB.
const maxUploadSize = 64 << 20

type Server struct {
	repo     Repository
	store    blob.Store
	policy   *rbac.Policy
	eventBus *eventbus.Bus
}

func NewServer(repo Repository, store blob.Store, policy *rbac.Policy, eventBus *eventbus.Bus) *Server {
	return &Server{repo: repo, store: store, policy: policy, eventBus: eventBus}
}

func (s *Server) Routes(r chi.Router) {
	r.Route("/files", func(r chi.Router) {
		r.Use(auth.RequireIdentity())
		r.Get("/", s.List)
		r.Post("/", s.Upload)
		r.Get("/{id}", s.Get)
		r.Get("/{id}/download", s.Download)
		r.Delete("/{id}", s.Delete)
	})
}

// Upload accepts a multipart form with a "file" part and optional
// "projectId" field. Metadata is written only after the bytes land in the
// blob store, so a half-finished upload leaves no dangling record.
func (s *Server) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := auth.IdentityFromContext(ctx)
	if !s.policy.Allows(identity.Role, rbac.PermUploadFiles) {
		cerr.SetNewJSONError(ctx, cerr.PermissionDenied, "not allowed to upload files", nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid multipart form", err)
		return
	}
	part, header, err := r.FormFile("file")
	if err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "missing file part", err)
		return
	}
	defer part.Close()

	projectID := r.FormValue("projectId")
	if projectID == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "projectId required", nil)
		return
	}

	data, err := io.ReadAll(part)
	if err != nil {
		cerr.SetNewJSONError(ctx, cerr.Internal, "failed to read upload", err)
		return
	}

	id := ulid.Make().String()
	key := fmt.Sprintf("%s/%s/%s", identity.OrgID, projectID, id)
	if err := s.store.Put(ctx, key, data); err != nil {
		cerr.SetNewJSONError(ctx, cerr.Unavailable, "file storage unavailable", err)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	f := &File{
		ID:          id,
		OrgID:       identity.OrgID,
		ProjectID:   projectID,
		Name:        header.Filename,
		Size:        int64(len(data)),
		ContentType: contentType,
		UploaderID:  identity.ID,
		StorageKey:  key,
		CreatedAt:   time.Now(),
	}
	if err := s.repo.Create(ctx, f); err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			clog.AddError(ctx, delErr)
		}
		cerr.SetJSONError(ctx, err)
		return
	}

	s.eventBus.PublishNew(eventbus.EventFileUploaded, identity.ID, "file", f.ID, f.ProjectID,
		fmt.Sprintf("file %q uploaded", f.Name), nil)

	cerr.SetJSONResponseWithStatus(ctx, http.StatusCreated, f)
}

func (s *Server) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, err := s.fetchVisible(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, f)
}

// Download writes the file bytes straight to the response. On success
// nothing is recorded for the JSON middleware, which then leaves the
// response alone.
func (s *Server) Download(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, err := s.fetchVisible(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	data, err := s.store.Get(ctx, f.StorageKey)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			cerr.SetNewJSONError(ctx, cerr.NotFound, "file content not found", err)
			return
		}
		cerr.SetNewJSONError(ctx, cerr.Unavailable, "file storage unavailable", err)
		return
	}

	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Name))
	if _, err := w.Write(data); err != nil {
		clog.AddError(ctx, err)
	}
}

func (s *Server) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := auth.IdentityFromContext(ctx)
	limit, offset := httputil.Pagination(r)

	orgID := r.URL.Query().Get("orgId")
	if !s.policy.Allows(identity.Role, rbac.PermViewAllProjects) {
		// Scope the listing (rows and total) to the caller's org.
		orgID = identity.OrgID
	}

	files, total, err := s.repo.List(ctx, orgID, r.URL.Query().Get("projectId"), limit, offset)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	cerr.SetJSONResponse(ctx, map[string]any{
		"files":  files,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (s *Server) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := auth.IdentityFromContext(ctx)
	f, err := s.fetchVisible(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if f.UploaderID != identity.ID && !rbac.IsAdmin(identity.Role) {
		cerr.SetNewJSONError(ctx, cerr.PermissionDenied, "not allowed to delete this file", nil)
		return
	}
	if err := s.repo.Delete(ctx, f.ID); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if err := s.store.Delete(ctx, f.StorageKey); err != nil && !errors.Is(err, blob.ErrNotFound) {
		// Metadata is gone; orphaned bytes are cleaned up out of band.
		clog.AddError(ctx, err)
	}

	s.eventBus.PublishNew(eventbus.EventFileDeleted, identity.ID, "file", f.ID, f.ProjectID,
		fmt.Sprintf("file %q deleted", f.Name), nil)

	cerr.SetJSONResponse(ctx, map[string]bool{"ok": true})
}

func (s *Server) fetchVisible(r *http.Request) (*File, error) {
	ctx := r.Context()
	f, err := s.repo.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		return nil, err
	}
	identity := auth.IdentityFromContext(ctx)
	if !s.policy.Allows(identity.Role, rbac.PermViewAllProjects) && identity.OrgID != f.OrgID {
		return nil, cerr.NewError(cerr.PermissionDenied, "not allowed to access this file", nil)
	}
	return f, nil
}
