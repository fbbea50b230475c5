package collection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/taiwoajasa245/verse-collections-api/internal/database"
)

func newPostgresRepo(t *testing.T) Repository {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container skipped in short mode")
	}

	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("verse_collections"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(ctx))

	return NewRepository(db)
}

func TestRepositoryCreateAndFetch(t *testing.T) {
	repo := newPostgresRepo(t)
	ctx := context.Background()

	created, err := repo.CreateCollection(ctx, Collection{
		Title:       "Morning Verses",
		Author:      "alice",
		Owner:       7,
		Visibility:  VisibilityPrivate,
		OrderTokens: "Psalm 23:1,note-1,Romans 8:28",
		Groups: []VerseGroup{
			{Reference: "Romans 8:28", Owner: 7, Verses: []Verse{verse("Romans 8:28", "And we know")}},
			{Reference: "Psalm 23:1", Owner: 7, Verses: []Verse{verse("Psalm 23:1", "The LORD is my shepherd")}},
		},
		Notes: []Note{{ID: "note-1", Text: "pray first"}},
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := repo.FetchCollection(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Morning Verses", got.Title)
	require.Len(t, got.Groups, 2)
	assert.Equal(t, "And we know", got.Groups[0].Verses[0].Text)
	assert.Equal(t, []string{"Psalm 23:1", "note-1", "Romans 8:28"}, keysOf(got.Ordered()))

	_, err = repo.FetchCollection(ctx, created.ID+1000)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepositorySaveCollection(t *testing.T) {
	repo := newPostgresRepo(t)
	ctx := context.Background()

	c, err := repo.CreateCollection(ctx, Collection{
		Title: "Hope", Author: "bob", Owner: 3, Visibility: VisibilityPrivate,
		OrderTokens: "Isaiah 40:31,Jeremiah 29:11",
		Groups:      []VerseGroup{group("Isaiah 40:31"), group("Jeremiah 29:11")},
	})
	require.NoError(t, err)

	c.Groups = []VerseGroup{
		{Reference: "Micah 6:8", Owner: 3, Verses: []Verse{verse("Micah 6:8", "He hath shewed thee")}},
	}
	c.OrderTokens = "Micah 6:8"
	c.Visibility = VisibilityPublic
	require.NoError(t, repo.SaveCollection(ctx, *c))

	got, err := repo.FetchCollection(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, got.Groups, 1)
	assert.Equal(t, "Micah 6:8", got.Groups[0].Reference)
	assert.Equal(t, VisibilityPublic, got.Visibility)
	assert.Equal(t, "Micah 6:8", got.OrderTokens)

	missing := *c
	missing.ID = c.ID + 1000
	assert.ErrorIs(t, repo.SaveCollection(ctx, missing), ErrNotFound)
	assert.ErrorIs(t, repo.UpdateCollection(ctx, missing), ErrNotFound)
}

func TestRepositorySaveCollectionRollsBackOnGroupFailure(t *testing.T) {
	repo := newPostgresRepo(t)
	ctx := context.Background()

	c, err := repo.CreateCollection(ctx, Collection{
		Title: "Hope", Author: "bob", Owner: 3, Visibility: VisibilityPrivate,
		OrderTokens: "Isaiah 40:31,Jeremiah 29:11",
		Groups:      []VerseGroup{group("Isaiah 40:31"), group("Jeremiah 29:11")},
	})
	require.NoError(t, err)

	broken := *c
	broken.OrderTokens = "Jeremiah 29:11,Micah 6:8"
	// Postgres rejects NUL bytes in text columns, so the insert fails after
	// the metadata update has already run inside the transaction.
	broken.Groups = []VerseGroup{group("Jeremiah 29:11"), group("Micah\x006:8")}
	require.Error(t, repo.SaveCollection(ctx, broken))

	got, err := repo.FetchCollection(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Isaiah 40:31,Jeremiah 29:11", got.OrderTokens)
	assert.Equal(t, []string{"Isaiah 40:31", "Jeremiah 29:11"}, keysOf(got.Ordered()))
}

func TestRepositoryEmptyVersesStoredAsArray(t *testing.T) {
	repo := newPostgresRepo(t)
	ctx := context.Background()

	c, err := repo.CreateCollection(ctx, Collection{
		Title: "Bare", Owner: 4, Visibility: VisibilityPrivate,
		Groups: []VerseGroup{{Reference: "John 3:16", Owner: 4}},
	})
	require.NoError(t, err)
	require.Len(t, c.Groups, 1)
	assert.NotNil(t, c.Groups[0].Verses)
	assert.Empty(t, c.Groups[0].Verses)
}

func TestRepositoryNotes(t *testing.T) {
	repo := newPostgresRepo(t)
	ctx := context.Background()

	c, err := repo.CreateCollection(ctx, Collection{Title: "Notes", Owner: 1, Visibility: VisibilityPrivate})
	require.NoError(t, err)

	require.NoError(t, repo.AddNote(ctx, c.ID, Note{ID: "n-1", Text: "first"}))
	assert.ErrorIs(t, repo.AddNote(ctx, c.ID, Note{ID: "n-1", Text: "again"}), ErrNoteExists)

	require.NoError(t, repo.DeleteNote(ctx, c.ID, "n-1"))
	assert.ErrorIs(t, repo.DeleteNote(ctx, c.ID, "n-1"), ErrNoteNotFound)
}

func TestRepositoryListOwned(t *testing.T) {
	repo := newPostgresRepo(t)
	ctx := context.Background()

	for _, title := range []string{"One", "Two"} {
		_, err := repo.CreateCollection(ctx, Collection{
			Title: title, Owner: 5, Visibility: VisibilityPrivate,
			Groups: []VerseGroup{group("John 1:1")},
		})
		require.NoError(t, err)
	}
	_, err := repo.CreateCollection(ctx, Collection{Title: "Other", Owner: 6, Visibility: VisibilityPrivate})
	require.NoError(t, err)

	owned, err := repo.ListOwnedCollections(ctx, 5)
	require.NoError(t, err)
	require.Len(t, owned, 2)
	for _, c := range owned {
		assert.Equal(t, 5, c.Owner)
		assert.Nil(t, c.Groups)
	}
}
