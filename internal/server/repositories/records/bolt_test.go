package records

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/dmitrijs2005/textshr/internal/common"
	"github.com/dmitrijs2005/textshr/internal/server/models"
)

func newBoltRepo(t *testing.T) *BoltRepository {
	t.Helper()
	db, err := bbolt.Open(filepath.Join(t.TempDir(), "records.db"), 0o600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo, err := NewBoltRepository(db)
	require.NoError(t, err)
	return repo
}

func boltRecord(key string, ttl time.Duration) *models.TextRecord {
	return &models.TextRecord{
		Key:       key,
		Body:      "hello",
		Creator:   "sess-1",
		Size:      5,
		ExpiresAt: time.Now().Add(ttl),
	}
}

func TestBolt_CreateAndGet(t *testing.T) {
	repo := newBoltRepo(t)
	ctx := context.Background()

	rec := boltRecord("abc12", time.Hour)
	rec.Summary = "greeting"
	require.NoError(t, repo.Create(ctx, rec))

	got, err := repo.Get(ctx, "abc12")
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Body)
	assert.Equal(t, "sess-1", got.Creator)
	assert.Equal(t, "greeting", got.Summary)
	assert.True(t, got.Inline())
}

func TestBolt_Create_DuplicateKey(t *testing.T) {
	repo := newBoltRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, boltRecord("abc12", time.Hour)))

	err := repo.Create(ctx, boltRecord("abc12", time.Hour))
	assert.ErrorIs(t, err, common.ErrDuplicateKey)
}

func TestBolt_Create_ReusesExpiredKey(t *testing.T) {
	repo := newBoltRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, boltRecord("abc12", -time.Minute)))

	// the stale row must not block the key
	fresh := boltRecord("abc12", time.Hour)
	fresh.Body = "second"
	require.NoError(t, repo.Create(ctx, fresh))

	got, err := repo.Get(ctx, "abc12")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Body)
}

func TestBolt_Get_ExpiredIsAbsent(t *testing.T) {
	repo := newBoltRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, boltRecord("abc12", -time.Minute)))

	_, err := repo.Get(ctx, "abc12")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestBolt_Replace(t *testing.T) {
	repo := newBoltRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, boltRecord("abc12", time.Hour)))

	updated := boltRecord("abc12", 2*time.Hour)
	updated.Body = ""
	updated.BlobRef = "blobs/abc12"
	updated.Size = 20000
	require.NoError(t, repo.Replace(ctx, updated))

	got, err := repo.Get(ctx, "abc12")
	require.NoError(t, err)
	assert.False(t, got.Inline())
	assert.Equal(t, "blobs/abc12", got.BlobRef)
	assert.Equal(t, int64(20000), got.Size)
}

func TestBolt_Replace_NotFound(t *testing.T) {
	repo := newBoltRepo(t)

	err := repo.Replace(context.Background(), boltRecord("ghost", time.Hour))
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestBolt_Delete(t *testing.T) {
	repo := newBoltRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, boltRecord("abc12", time.Hour)))

	ok, err := repo.Delete(ctx, "abc12")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Delete(ctx, "abc12")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.Get(ctx, "abc12")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestBolt_DeleteExpired(t *testing.T) {
	repo := newBoltRepo(t)
	ctx := context.Background()

	old := boltRecord("old01", -time.Hour)
	oldBlob := boltRecord("old02", -time.Minute)
	oldBlob.Body = ""
	oldBlob.BlobRef = "blobs/old02"
	live := boltRecord("live1", time.Hour)

	require.NoError(t, repo.Create(ctx, old))
	require.NoError(t, repo.Create(ctx, oldBlob))
	require.NoError(t, repo.Create(ctx, live))

	removed, err := repo.DeleteExpired(ctx, time.Now(), 100)
	require.NoError(t, err)
	require.Len(t, removed, 2)

	refs := map[string]string{}
	for _, r := range removed {
		refs[r.Key] = r.BlobRef
	}
	assert.Equal(t, "", refs["old01"])
	assert.Equal(t, "blobs/old02", refs["old02"])

	// the live record survives the sweep
	_, err = repo.Get(ctx, "live1")
	assert.NoError(t, err)
}

func TestBolt_DeleteExpired_HonorsLimit(t *testing.T) {
	repo := newBoltRepo(t)
	ctx := context.Background()

	for _, key := range []string{"a1", "a2", "a3"} {
		require.NoError(t, repo.Create(ctx, boltRecord(key, -time.Minute)))
	}

	removed, err := repo.DeleteExpired(ctx, time.Now(), 2)
	require.NoError(t, err)
	assert.Len(t, removed, 2)

	removed, err = repo.DeleteExpired(ctx, time.Now(), 2)
	require.NoError(t, err)
	assert.Len(t, removed, 1)
}
