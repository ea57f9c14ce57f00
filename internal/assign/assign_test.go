package assign

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketdesk-go/internal/model"
)

// fakeStore keeps the adviser set and cursor in memory.
type fakeStore struct {
	advisers []model.User
	cursor   model.AssignmentCursor
}

func (f *fakeStore) ActiveAdvisers(ctx context.Context) ([]model.User, error) {
	return f.advisers, nil
}

func (f *fakeStore) Cursor(ctx context.Context) (*model.AssignmentCursor, error) {
	if f.cursor.ID == 0 {
		f.cursor = model.AssignmentCursor{ID: 1}
	}
	return &f.cursor, nil
}

func (f *fakeStore) SaveCursor(ctx context.Context, cursor *model.AssignmentCursor) error {
	f.cursor = *cursor
	return nil
}

func advisers(ids ...uint64) []model.User {
	users := make([]model.User, 0, len(ids))
	for _, id := range ids {
		users = append(users, model.User{ID: id, Role: model.RoleAdviser, IsActive: true})
	}
	return users
}

func TestNextAdviserRoundRobinFairness(t *testing.T) {
	store := &fakeStore{advisers: advisers(3, 7, 12)}
	ctx := context.Background()

	seen := make(map[uint64]int)
	for i := 0; i < 3; i++ {
		id, ok, err := NextAdviser(ctx, store)
		require.NoError(t, err)
		require.True(t, ok)
		seen[id]++
	}

	assert.Equal(t, map[uint64]int{3: 1, 7: 1, 12: 1}, seen)
}

func TestNextAdviserWrapsAround(t *testing.T) {
	store := &fakeStore{advisers: advisers(1, 2)}
	ctx := context.Background()

	var got []uint64
	for i := 0; i < 4; i++ {
		id, ok, err := NextAdviser(ctx, store)
		require.NoError(t, err)
		require.True(t, ok)
		got = append(got, id)
	}
	assert.Equal(t, []uint64{1, 2, 1, 2}, got)
}

func TestNextAdviserEmptySet(t *testing.T) {
	store := &fakeStore{}

	_, ok, err := NextAdviser(context.Background(), store)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNextAdviserSkipsDeactivated(t *testing.T) {
	store := &fakeStore{advisers: advisers(1, 2, 3)}
	ctx := context.Background()

	id, ok, err := NextAdviser(ctx, store)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(1), id)

	// Adviser 1 deactivates; the cursor points at an id no longer in the
	// active set, so the rotation restarts at the first active adviser.
	store.advisers = advisers(2, 3)
	id, ok, err = NextAdviser(ctx, store)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(2), id)
}

func TestNextAdviserSingleAdviser(t *testing.T) {
	store := &fakeStore{advisers: advisers(9)}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		id, ok, err := NextAdviser(ctx, store)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, uint64(9), id)
	}
}

func TestNextAdviserCursorPersisted(t *testing.T) {
	store := &fakeStore{advisers: advisers(4, 5)}
	ctx := context.Background()

	id, _, err := NextAdviser(ctx, store)
	require.NoError(t, err)
	require.NotNil(t, store.cursor.LastAssignedUser)
	assert.Equal(t, id, *store.cursor.LastAssignedUser)
}
