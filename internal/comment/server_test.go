package comment_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhub/portal/internal/auth"
	"github.com/atelierhub/portal/internal/comment"
	"github.com/atelierhub/portal/internal/eventbus"
	"github.com/atelierhub/portal/internal/rbac"
	"github.com/atelierhub/portal/pkg/cerr"
)

type fakeRepository struct {
	comments map[string]*comment.Comment
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{comments: map[string]*comment.Comment{}}
}

func (r *fakeRepository) Create(_ context.Context, c *comment.Comment) error {
	r.comments[c.ID] = c
	return nil
}

func (r *fakeRepository) Get(_ context.Context, id string) (*comment.Comment, error) {
	c, ok := r.comments[id]
	if !ok {
		return nil, cerr.NewError(cerr.NotFound, "comment not found", nil)
	}
	return c, nil
}

func (r *fakeRepository) List(_ context.Context, projectID, taskID string, limit, offset int) ([]*comment.Comment, int, error) {
	var out []*comment.Comment
	for _, c := range r.comments {
		if projectID != "" && c.ProjectID != projectID {
			continue
		}
		if taskID != "" && c.TaskID != taskID {
			continue
		}
		out = append(out, c)
	}
	return out, len(out), nil
}

func (r *fakeRepository) Delete(_ context.Context, id string) error {
	if _, ok := r.comments[id]; !ok {
		return cerr.NewError(cerr.NotFound, "comment not found", nil)
	}
	delete(r.comments, id)
	return nil
}

func newTestServer(repo comment.Repository) http.Handler {
	srv := comment.NewServer(repo, rbac.DefaultPolicy(), eventbus.New())
	r := chi.NewRouter()
	r.Use(cerr.NewJSONResponseChiMiddleware())
	r.Route("/api", srv.Routes)
	return r
}

func doAs(t *testing.T, h http.Handler, identity *auth.Identity, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if identity != nil {
		req = req.WithContext(auth.ContextWithIdentity(req.Context(), identity))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestClientCanComment(t *testing.T) {
	repo := newFakeRepository()
	h := newTestServer(repo)

	identity := &auth.Identity{ID: "u-client", OrgID: "org1", Role: rbac.RoleClient}
	rec := doAs(t, h, identity, http.MethodPost, "/api/comments",
		map[string]string{"projectId": "p1", "taskId": "t1", "body": "Looks great!"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created comment.Comment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "u-client", created.AuthorID)
	assert.Equal(t, "t1", created.TaskID)
}

func TestCreateRequiresBody(t *testing.T) {
	h := newTestServer(newFakeRepository())

	identity := &auth.Identity{ID: "u1", OrgID: "org1", Role: rbac.RoleTeamMember}
	rec := doAs(t, h, identity, http.MethodPost, "/api/comments",
		map[string]string{"projectId": "p1"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteOwnComment(t *testing.T) {
	repo := newFakeRepository()
	repo.comments["c1"] = &comment.Comment{ID: "c1", ProjectID: "p1", AuthorID: "u1", Body: "x", CreatedAt: time.Now()}
	h := newTestServer(repo)

	owner := &auth.Identity{ID: "u1", OrgID: "org1", Role: rbac.RoleClient}
	rec := doAs(t, h, owner, http.MethodDelete, "/api/comments/c1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestDeleteOtherUsersCommentForbidden(t *testing.T) {
	repo := newFakeRepository()
	repo.comments["c1"] = &comment.Comment{ID: "c1", ProjectID: "p1", AuthorID: "u1", Body: "x", CreatedAt: time.Now()}
	h := newTestServer(repo)

	other := &auth.Identity{ID: "u2", OrgID: "org1", Role: rbac.RoleTeamMember}
	rec := doAs(t, h, other, http.MethodDelete, "/api/comments/c1", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	asAdmin := &auth.Identity{ID: "u3", OrgID: "org1", Role: rbac.RoleAdmin}
	rec = doAs(t, h, asAdmin, http.MethodDelete, "/api/comments/c1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestListFiltersByTask(t *testing.T) {
	repo := newFakeRepository()
	repo.comments["c1"] = &comment.Comment{ID: "c1", ProjectID: "p1", TaskID: "t1", AuthorID: "u1", Body: "a", CreatedAt: time.Now()}
	repo.comments["c2"] = &comment.Comment{ID: "c2", ProjectID: "p1", TaskID: "t2", AuthorID: "u1", Body: "b", CreatedAt: time.Now()}
	h := newTestServer(repo)

	identity := &auth.Identity{ID: "u1", OrgID: "org1", Role: rbac.RoleTeamMember}
	rec := doAs(t, h, identity, http.MethodGet, "/api/comments?taskId=t1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Comments []*comment.Comment `json:"comments"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Comments, 1)
	assert.Equal(t, "c1", body.Comments[0].ID)
}
