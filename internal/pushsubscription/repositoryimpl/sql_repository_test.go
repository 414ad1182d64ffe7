package repositoryimpl

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhub/portal/internal/pushsubscription"
	"github.com/atelierhub/portal/internal/sqldb"
	"github.com/atelierhub/portal/pkg/cerr"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqldb.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newSubscription(id, endpoint string) *pushsubscription.Subscription {
	return &pushsubscription.Subscription{
		ID:        id,
		UserID:    "u1",
		Endpoint:  endpoint,
		P256dhKey: "p256dh-key",
		AuthKey:   "auth-key",
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestCreateAndList(t *testing.T) {
	repo := NewSQLRepository(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newSubscription("s1", "https://push.example/ep1")))
	require.NoError(t, repo.Create(ctx, newSubscription("s2", "https://push.example/ep2")))

	subs, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "https://push.example/ep1", subs[0].Endpoint)
}

func TestCreateDuplicateEndpoint(t *testing.T) {
	repo := NewSQLRepository(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newSubscription("s1", "https://push.example/ep1")))
	err := repo.Create(ctx, newSubscription("s2", "https://push.example/ep1"))
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.AlreadyExists))
}

func TestFindByEndpoint(t *testing.T) {
	repo := NewSQLRepository(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newSubscription("s1", "https://push.example/ep1")))

	got, err := repo.FindByEndpoint(ctx, "https://push.example/ep1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)

	_, err = repo.FindByEndpoint(ctx, "https://push.example/missing")
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
}

func TestDeleteByEndpoint(t *testing.T) {
	repo := NewSQLRepository(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newSubscription("s1", "https://push.example/ep1")))
	require.NoError(t, repo.DeleteByEndpoint(ctx, "https://push.example/ep1"))

	err := repo.DeleteByEndpoint(ctx, "https://push.example/ep1")
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
}

func TestDelete(t *testing.T) {
	repo := NewSQLRepository(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newSubscription("s1", "https://push.example/ep1")))
	require.NoError(t, repo.Delete(ctx, "s1"))

	subs, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, subs)
}
