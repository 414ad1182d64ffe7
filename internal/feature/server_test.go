package feature_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhub/portal/internal/auth"
	"github.com/atelierhub/portal/internal/eventbus"
	"github.com/atelierhub/portal/internal/feature"
	"github.com/atelierhub/portal/internal/rbac"
	"github.com/atelierhub/portal/pkg/cerr"
)

func newTestServer(repo feature.Repository) http.Handler {
	srv := feature.NewServer(repo, feature.NewEvaluator(repo, slog.Default()), rbac.DefaultPolicy(), eventbus.New())
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

func admin() *auth.Identity {
	return &auth.Identity{ID: "u-admin", OrgID: "org1", Role: rbac.RoleAdmin}
}

func client() *auth.Identity {
	return &auth.Identity{ID: "u1", OrgID: "org1", Role: rbac.RoleClient}
}

func TestUpsertRequiresManagePermission(t *testing.T) {
	h := newTestServer(&fakeRepository{flags: map[string]*feature.Flag{}})

	rec := doAs(t, h, client(), http.MethodPut, "/api/features/betaFeatures",
		map[string]any{"enabled": true})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doAs(t, h, admin(), http.MethodPut, "/api/features/betaFeatures",
		map[string]any{"enabled": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestCheckEvaluatesForCaller(t *testing.T) {
	repo := &fakeRepository{flags: map[string]*feature.Flag{
		"clientPortalV2": {Name: "clientPortalV2", Enabled: false, EnabledFor: []string{"u1"}},
	}}
	h := newTestServer(repo)

	rec := doAs(t, h, client(), http.MethodGet, "/api/features/clientPortalV2/check", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Name    string `json:"name"`
		Enabled bool   `json:"enabled"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "clientPortalV2", body.Name)
	assert.True(t, body.Enabled)

	other := &auth.Identity{ID: "u2", OrgID: "org1", Role: rbac.RoleClient}
	rec = doAs(t, h, other, http.MethodGet, "/api/features/clientPortalV2/check", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Enabled)
}

func TestCheckMissingFlagIsOff(t *testing.T) {
	h := newTestServer(&fakeRepository{flags: map[string]*feature.Flag{}})

	rec := doAs(t, h, client(), http.MethodGet, "/api/features/unknown/check", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Enabled bool `json:"enabled"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Enabled)
}

func TestListRequiresManagePermission(t *testing.T) {
	h := newTestServer(&fakeRepository{flags: map[string]*feature.Flag{}})

	rec := doAs(t, h, client(), http.MethodGet, "/api/features", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doAs(t, h, nil, http.MethodGet, "/api/features", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
