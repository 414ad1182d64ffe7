package file_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhub/portal/internal/auth"
	"github.com/atelierhub/portal/internal/eventbus"
	"github.com/atelierhub/portal/internal/file"
	"github.com/atelierhub/portal/internal/rbac"
	"github.com/atelierhub/portal/pkg/blob"
	"github.com/atelierhub/portal/pkg/cerr"
)

type fakeRepository struct {
	files map[string]*file.File
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{files: map[string]*file.File{}}
}

func (r *fakeRepository) Create(_ context.Context, f *file.File) error {
	r.files[f.ID] = f
	return nil
}

func (r *fakeRepository) Get(_ context.Context, id string) (*file.File, error) {
	f, ok := r.files[id]
	if !ok {
		return nil, cerr.NewError(cerr.NotFound, "file not found", nil)
	}
	return f, nil
}

func (r *fakeRepository) List(_ context.Context, orgID, projectID string, limit, offset int) ([]*file.File, int, error) {
	var out []*file.File
	for _, f := range r.files {
		if orgID != "" && f.OrgID != orgID {
			continue
		}
		if projectID != "" && f.ProjectID != projectID {
			continue
		}
		out = append(out, f)
	}
	return out, len(out), nil
}

func (r *fakeRepository) Delete(_ context.Context, id string) error {
	if _, ok := r.files[id]; !ok {
		return cerr.NewError(cerr.NotFound, "file not found", nil)
	}
	delete(r.files, id)
	return nil
}

func newTestServer(t *testing.T, repo file.Repository) http.Handler {
	t.Helper()
	store, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	srv := file.NewServer(repo, store, rbac.DefaultPolicy(), eventbus.New())
	r := chi.NewRouter()
	r.Use(cerr.NewJSONResponseChiMiddleware())
	r.Route("/api", srv.Routes)
	return r
}

func uploadRequest(t *testing.T, projectID, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("projectId", projectID))
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func asIdentity(req *http.Request, identity *auth.Identity) *http.Request {
	return req.WithContext(auth.ContextWithIdentity(req.Context(), identity))
}

func teamMember() *auth.Identity {
	return &auth.Identity{ID: "u-team", OrgID: "org1", Role: rbac.RoleTeamMember}
}

func TestUploadAndDownload(t *testing.T) {
	repo := newFakeRepository()
	h := newTestServer(t, repo)
	content := []byte("final logo draft")

	req := asIdentity(uploadRequest(t, "p1", "logo.svg", content), teamMember())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var uploaded file.File
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &uploaded))
	assert.Equal(t, "logo.svg", uploaded.Name)
	assert.Equal(t, int64(len(content)), uploaded.Size)
	assert.Equal(t, "u-team", uploaded.UploaderID)

	dlReq := asIdentity(httptest.NewRequest(http.MethodGet, "/api/files/"+uploaded.ID+"/download", nil), teamMember())
	dlRec := httptest.NewRecorder()
	h.ServeHTTP(dlRec, dlReq)
	require.Equal(t, http.StatusOK, dlRec.Code)
	assert.Equal(t, content, dlRec.Body.Bytes())
	assert.Contains(t, dlRec.Header().Get("Content-Disposition"), "logo.svg")
}

func TestUploadRequiresPermission(t *testing.T) {
	h := newTestServer(t, newFakeRepository())

	// Clients may upload; an unauthenticated request may not.
	req := asIdentity(uploadRequest(t, "p1", "brief.pdf", []byte("x")),
		&auth.Identity{ID: "u-client", OrgID: "org1", Role: rbac.RoleClient})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "p1", "brief.pdf", []byte("x")))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUploadRequiresProjectID(t *testing.T) {
	h := newTestServer(t, newFakeRepository())

	req := asIdentity(uploadRequest(t, "", "brief.pdf", []byte("x")), teamMember())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDownloadOtherOrgForbidden(t *testing.T) {
	repo := newFakeRepository()
	h := newTestServer(t, repo)

	req := asIdentity(uploadRequest(t, "p1", "logo.svg", []byte("x")), teamMember())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var uploaded file.File
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &uploaded))

	outsider := &auth.Identity{ID: "u-x", OrgID: "org2", Role: rbac.RoleClient}
	dlReq := asIdentity(httptest.NewRequest(http.MethodGet, "/api/files/"+uploaded.ID+"/download", nil), outsider)
	dlRec := httptest.NewRecorder()
	h.ServeHTTP(dlRec, dlReq)
	require.Equal(t, http.StatusForbidden, dlRec.Code)
}

// Rows and total are scoped to the caller's org by the repository query.
func TestListScopesRowsAndTotalToCallerOrg(t *testing.T) {
	repo := newFakeRepository()
	h := newTestServer(t, repo)

	req := asIdentity(uploadRequest(t, "p1", "logo.svg", []byte("x")), teamMember())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	require.NoError(t, repo.Create(context.Background(), &file.File{
		ID: "f-other", OrgID: "org-other", ProjectID: "p9", Name: "secret.pdf",
	}))

	caller := &auth.Identity{ID: "u-client", OrgID: "org1", Role: rbac.RoleClient}
	listReq := asIdentity(httptest.NewRequest(http.MethodGet, "/api/files", nil), caller)
	listRec := httptest.NewRecorder()
	h.ServeHTTP(listRec, listReq)
	require.Equal(t, http.StatusOK, listRec.Code, listRec.Body.String())

	var body struct {
		Files []*file.File `json:"files"`
		Total int          `json:"total"`
	}
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &body))
	require.Len(t, body.Files, 1)
	assert.Equal(t, "org1", body.Files[0].OrgID)
	assert.Equal(t, 1, body.Total)
}

func TestDeleteByUploaderRemovesRecord(t *testing.T) {
	repo := newFakeRepository()
	h := newTestServer(t, repo)

	req := asIdentity(uploadRequest(t, "p1", "logo.svg", []byte("x")), teamMember())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var uploaded file.File
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &uploaded))

	delReq := asIdentity(httptest.NewRequest(http.MethodDelete, "/api/files/"+uploaded.ID, nil), teamMember())
	delRec := httptest.NewRecorder()
	h.ServeHTTP(delRec, delReq)
	require.Equal(t, http.StatusOK, delRec.Code)

	_, err := repo.Get(context.Background(), uploaded.ID)
	require.Error(t, err)
}
