package sources

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/knowledgebot/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "sources.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newQA(workspaceID string) *Source {
	return &Source{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		Type:        core.SourceTypeQNA,
		Name:        "What are the hours?",
		Question:    "What are the hours?",
		Answer:      "9 to 5.",
	}
}

func TestCreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	src := newQA(uuid.NewString())

	require.NoError(t, store.Create(ctx, src))
	assert.Equal(t, core.StatusProcessing, src.Status)
	assert.False(t, src.CreatedAt.IsZero())

	got, err := store.Get(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, src.ID, got.ID)
	assert.Equal(t, src.WorkspaceID, got.WorkspaceID)
	assert.Equal(t, core.SourceTypeQNA, got.Type)
	assert.Equal(t, "9 to 5.", got.Answer)
	assert.Equal(t, core.StatusProcessing, got.Status)
	assert.WithinDuration(t, src.CreatedAt, got.CreatedAt, time.Microsecond)
}

func TestCreate_Duplicate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	src := newQA(uuid.NewString())

	require.NoError(t, store.Create(ctx, src))
	err := store.Create(ctx, src)
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestCreate_InvalidIDs(t *testing.T) {
	store := newTestStore(t)
	src := newQA("workspace")

	assert.ErrorIs(t, store.Create(context.Background(), src), core.ErrInvalidID)
}

func TestGet_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList_ScopedAndOrdered(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ws := uuid.NewString()

	first := newQA(ws)
	first.CreatedAt = time.Now().Add(-time.Hour)
	second := newQA(ws)
	other := newQA(uuid.NewString())
	for _, s := range []*Source{first, second, other} {
		require.NoError(t, store.Create(ctx, s))
	}

	list, err := store.List(ctx, ws)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	empty, err := store.List(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestUpdate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	src := newQA(uuid.NewString())
	require.NoError(t, store.Create(ctx, src))

	src.Question = "When do you open?"
	src.Name = src.Question
	src.Answer = "At 9."
	src.Status = core.StatusProcessing
	require.NoError(t, store.Update(ctx, src))

	got, err := store.Get(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, "When do you open?", got.Name)
	assert.Equal(t, "At 9.", got.Answer)

	missing := newQA(src.WorkspaceID)
	assert.ErrorIs(t, store.Update(ctx, missing), ErrNotFound)
}

func TestUpdateStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	src := newQA(uuid.NewString())
	require.NoError(t, store.Create(ctx, src))

	require.NoError(t, store.UpdateStatus(ctx, src.ID, core.StatusCompleted))
	got, err := store.Get(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, got.Status)

	assert.ErrorIs(t, store.UpdateStatus(ctx, uuid.NewString(), core.StatusFailed), ErrNotFound)
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	src := newQA(uuid.NewString())
	require.NoError(t, store.Create(ctx, src))

	require.NoError(t, store.Delete(ctx, src.ID))
	_, err := store.Get(ctx, src.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, src.ID), ErrNotFound)
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sources.db")
	ctx := context.Background()
	src := newQA(uuid.NewString())

	store, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, store.Create(ctx, src))
	require.NoError(t, store.Close())

	store, err = OpenSQLite(path)
	require.NoError(t, err)
	defer store.Close()
	got, err := store.Get(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, src.Question, got.Question)
}

func TestOpen_Factory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := Open(ctx, "sqlite://"+filepath.Join(dir, "a.db"))
	require.NoError(t, err)
	require.NoError(t, store.Close())
	_, err = os.Stat(filepath.Join(dir, "a.db"))
	assert.NoError(t, err)

	store, err = Open(ctx, filepath.Join(dir, "b.db"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = Open(ctx, "")
	assert.ErrorIs(t, err, ErrUnsupportedDSN)

	_, err = Open(ctx, "mysql://localhost/db")
	assert.ErrorIs(t, err, ErrUnsupportedDSN)
}

func TestRebind(t *testing.T) {
	pg := &sqlStore{dialect: dialect{positional: true}}
	assert.Equal(t, "a = $1 AND b = $2", pg.rebind("a = ? AND b = ?"))

	lite := &sqlStore{}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestPostgresRoundTrip(t *testing.T) {
	dsn := os.Getenv("KNOWLEDGEBOT_TEST_POSTGRES")
	if dsn == "" {
		t.Skip("KNOWLEDGEBOT_TEST_POSTGRES not set")
	}
	ctx := context.Background()
	store, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer store.Close()

	src := newQA(uuid.NewString())
	require.NoError(t, store.Create(ctx, src))
	assert.ErrorIs(t, store.Create(ctx, src), ErrAlreadyExists)
	require.NoError(t, store.UpdateStatus(ctx, src.ID, core.StatusCompleted))
	got, err := store.Get(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, got.Status)
	require.NoError(t, store.Delete(ctx, src.ID))
}

func TestCreate_InvalidType(t *testing.T) {
	store := newTestStore(t)
	src := newQA(uuid.NewString())
	src.Type = "CONNECTOR"

	assert.ErrorIs(t, store.Create(context.Background(), src), core.ErrInvalidSourceType)
}
