package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenggwsx/RoomGate/internal/config"
	"github.com/fenggwsx/RoomGate/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "journal.db")})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestStore_AdmissionRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	connected := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, store.RecordAdmission(ctx, &storage.Admission{
		ConnectionID: "c1",
		RemoteAddr:   "10.0.0.1:5000",
		Status:       storage.StatusRejected,
		Errors:       []storage.FieldError{{Key: "userId", Reason: "required"}},
		ConnectedAt:  connected,
	}))

	got, err := store.GetAdmission(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, storage.StatusRejected, got.Status)
	assert.Equal(t, []storage.FieldError{{Key: "userId", Reason: "required"}}, got.Errors)
	assert.True(t, connected.Equal(got.ConnectedAt))
	assert.Nil(t, got.DisconnectedAt)

	left := connected.Add(time.Minute)
	require.NoError(t, store.RecordDisconnect(ctx, "c1", left))

	got, err = store.GetAdmission(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, got.DisconnectedAt)
	assert.True(t, left.Equal(*got.DisconnectedAt))
}

func TestStore_NotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetAdmission(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, store.RecordDisconnect(ctx, "missing", time.Now()), storage.ErrNotFound)
	assert.Error(t, store.RecordAdmission(ctx, nil))
}

func TestStore_ListAdmissionsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.RecordAdmission(ctx, &storage.Admission{
			ConnectionID: id,
			RoomKey:      "tenantId:acme",
			Status:       storage.StatusAdmitted,
			ConnectedAt:  base.Add(time.Duration(i) * time.Second),
		}))
	}

	list, err := store.ListAdmissions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].ConnectionID)
	assert.Equal(t, "b", list[1].ConnectionID)
	assert.Equal(t, "tenantId:acme", list[0].RoomKey)
}
