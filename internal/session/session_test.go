package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textaudit/layered-audit/internal/types"
)

func newService() *Service {
	return NewService(NewMemoryRepository(time.Hour), nil)
}

func TestService_CreateAndGet(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	created, err := svc.Create(ctx, "doc-1")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "doc-1", created.DocumentID)

	got, err := svc.GetCurrent(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "doc-1", got.DocumentID)
}

func TestService_UpdateStepAndPin(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	created, err := svc.Create(ctx, "")
	require.NoError(t, err)

	require.NoError(t, svc.UpdateStep(ctx, created.ID, "layer4-step2-1"))
	require.NoError(t, svc.PinDocument(ctx, created.ID, "doc-2"))

	got, err := svc.GetCurrent(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StageID("layer4-step2-1"), got.CurrentStep)
	assert.Equal(t, "doc-2", got.DocumentID)
}

func TestService_UnknownSession(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	var notFound *NotFoundError
	_, err := svc.GetCurrent(ctx, "missing")
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing", notFound.ID)

	assert.ErrorAs(t, svc.UpdateStep(ctx, "missing", "layer1-step5-1"), &notFound)
	assert.ErrorAs(t, svc.PinDocument(ctx, "missing", "doc-1"), &notFound)
}

type failingRepo struct {
	MemoryRepository
}

func (*failingRepo) InsertSession(context.Context, *types.Session) error {
	return errors.New("disk full")
}

func TestService_CreateWrapsRepositoryError(t *testing.T) {
	svc := NewService(&failingRepo{}, nil)
	_, err := svc.Create(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create session")
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	repo := NewMemoryRepository(time.Hour)
	ctx := context.Background()
	require.NoError(t, repo.InsertSession(ctx, &types.Session{ID: "s1"}))

	got, err := repo.GetSession(ctx, "s1")
	require.NoError(t, err)
	got.DocumentID = "mutated"

	again, err := repo.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, again.DocumentID)
}

func TestMemoryRepository_DuplicateInsert(t *testing.T) {
	repo := NewMemoryRepository(time.Hour)
	ctx := context.Background()
	require.NoError(t, repo.InsertSession(ctx, &types.Session{ID: "s1"}))
	assert.Error(t, repo.InsertSession(ctx, &types.Session{ID: "s1"}))
}

func TestMemoryRepository_Expiry(t *testing.T) {
	repo := NewMemoryRepository(20 * time.Millisecond)
	ctx := context.Background()
	require.NoError(t, repo.InsertSession(ctx, &types.Session{ID: "s1"}))

	time.Sleep(40 * time.Millisecond)
	got, err := repo.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryRepository_UpdateStampsTime(t *testing.T) {
	repo := NewMemoryRepository(time.Hour)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }
	ctx := context.Background()
	require.NoError(t, repo.InsertSession(ctx, &types.Session{ID: "s1"}))

	found, err := repo.SetSessionStep(ctx, "s1", "layer2-step4-1")
	require.NoError(t, err)
	assert.True(t, found)

	got, err := repo.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, fixed, got.UpdatedAt)
}
