package frontend

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/estia-labs/chatbridge/components"
)

func TestCreateAndListThreads(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	t1, err := store.CreateThread(ctx, "u1", "first")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(t1.ID, "thr_"))

	t2, err := store.CreateThread(ctx, "u1", "second")
	require.NoError(t, err)
	_, err = store.CreateThread(ctx, "u2", "other user")
	require.NoError(t, err)

	threads, err := store.ListThreads(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, threads, 2)
	ids := []string{threads[0].ID, threads[1].ID}
	require.Contains(t, ids, t1.ID)
	require.Contains(t, ids, t2.ID)
}

func TestEnsureThreadAutoCreates(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	th, err := store.EnsureThread(ctx, "u1", "thr_abc")
	require.NoError(t, err)
	require.Equal(t, "thr_abc", th.ID)

	again, err := store.EnsureThread(ctx, "u1", "thr_abc")
	require.NoError(t, err)
	require.Equal(t, th.CreatedAt, again.CreatedAt)

	threads, err := store.ListThreads(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, threads, 1)
}

func TestEnsureThreadEnforcesOwnership(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.EnsureThread(ctx, "u1", "thr_abc")
	require.NoError(t, err)

	_, err = store.EnsureThread(ctx, "u2", "thr_abc")
	require.ErrorIs(t, err, ErrThreadNotFound)
	_, err = store.Items(ctx, "u2", "thr_abc")
	require.ErrorIs(t, err, ErrThreadNotFound)
}

func TestAppendAndListItems(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	th, err := store.CreateThread(ctx, "u1", "")
	require.NoError(t, err)

	require.NoError(t, store.AppendItem(ctx, "u1", th.ID, ThreadItem{ID: "m1", Kind: ItemUserMessage, Text: "hello"}))
	require.NoError(t, store.AppendItem(ctx, "u1", th.ID, ThreadItem{ID: "m2", Kind: ItemAssistantMessage, Text: "hi"}))
	require.NoError(t, store.AppendItem(ctx, "u1", th.ID, ThreadItem{
		ID:      "m3",
		Kind:    ItemWidgets,
		Payload: components.Payload{UserQuery: "hello"},
	}))

	items, err := store.Items(ctx, "u1", th.ID)
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.Equal(t, "m1", items[0].ID)
	require.Equal(t, ItemWidgets, items[2].Kind)
	require.False(t, items[0].CreatedAt.IsZero())

	err = store.AppendItem(ctx, "u1", "thr_missing", ThreadItem{ID: "m4"})
	require.ErrorIs(t, err, ErrThreadNotFound)
}

func TestDeleteThreadRemovesItems(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	th, err := store.CreateThread(ctx, "u1", "")
	require.NoError(t, err)
	require.NoError(t, store.AppendItem(ctx, "u1", th.ID, ThreadItem{ID: "m1", Kind: ItemUserMessage}))

	require.NoError(t, store.DeleteThread(ctx, "u1", th.ID))
	_, err = store.Items(ctx, "u1", th.ID)
	require.ErrorIs(t, err, ErrThreadNotFound)
	threads, err := store.ListThreads(ctx, "u1")
	require.NoError(t, err)
	require.Empty(t, threads)

	require.ErrorIs(t, store.DeleteThread(ctx, "u1", th.ID), ErrThreadNotFound)
}

func TestSaveSearch(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	saved, err := store.SaveSearch(ctx, "u1", "", "3 bedroom in Athens")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(saved.ID, "search_"))
	require.WithinDuration(t, time.Now(), saved.CreatedAt, time.Minute)

	withID, err := store.SaveSearch(ctx, "u1", "search_given", "sea view villa")
	require.NoError(t, err)
	require.Equal(t, "search_given", withID.ID)

	searches, err := store.SavedSearches(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, searches, 2)

	other, err := store.SavedSearches(ctx, "u2")
	require.NoError(t, err)
	require.Empty(t, other)

	_, err = store.SaveSearch(ctx, "u1", "", "")
	require.Error(t, err)
}
