package collection

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taiwoajasa245/verse-collections-api/internal/database"
)

const uniqueViolation = "23505"

var ErrNoteExists = errors.New("note already exists")

// Repository is the remote collection store.
type Repository interface {
	Store
	UpdateCollection(ctx context.Context, c Collection) error
	CreateCollection(ctx context.Context, c Collection) (*Collection, error)
	ListOwnedCollections(ctx context.Context, owner int) ([]Collection, error)
	AddNote(ctx context.Context, collectionID int, n Note) error
	DeleteNote(ctx context.Context, collectionID int, noteID string) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(dbService database.Service) Repository {
	return &repository{db: dbService.DB()}
}

func (r *repository) FetchCollection(ctx context.Context, id int) (*Collection, error) {
	query := `
		SELECT id, owner_id, author, title, visibility, verse_order, created_at, updated_at
		FROM collections
		WHERE id = $1
	`

	var c Collection
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.Owner, &c.Author, &c.Title, &c.Visibility, &c.OrderTokens, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetch collection %d: %w", id, err)
	}

	if c.Groups, err = r.groups(ctx, id); err != nil {
		return nil, err
	}
	if c.Notes, err = r.notes(ctx, id); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repository) groups(ctx context.Context, collectionID int) ([]VerseGroup, error) {
	query := `
		SELECT id, owner_id, reference, verses, progress, last_reviewed_at, created_at
		FROM collection_verse_groups
		WHERE collection_id = $1
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query, collectionID)
	if err != nil {
		return nil, fmt.Errorf("query verse groups: %w", err)
	}
	defer rows.Close()

	var groups []VerseGroup
	for rows.Next() {
		var (
			g      VerseGroup
			verses []byte
		)
		if err := rows.Scan(&g.ID, &g.Owner, &g.Reference, &verses, &g.Progress, &g.LastReviewedAt, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan verse group: %w", err)
		}
		if len(verses) > 0 {
			if err := json.Unmarshal(verses, &g.Verses); err != nil {
				return nil, fmt.Errorf("decode verses of %q: %w", g.Reference, err)
			}
		}
		if g.Verses == nil {
			g.Verses = []Verse{}
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (r *repository) notes(ctx context.Context, collectionID int) ([]Note, error) {
	query := `
		SELECT id, content, created_at
		FROM collection_notes
		WHERE collection_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, collectionID)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.Text, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// SaveCollection writes the collection's metadata and replaces its verse
// groups with c.Groups in one transaction.
func (r *repository) SaveCollection(ctx context.Context, c Collection) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save collection: %w", err)
	}
	defer tx.Rollback()

	if err := updateCollection(ctx, tx, c); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM collection_verse_groups WHERE collection_id = $1`, c.ID); err != nil {
		return fmt.Errorf("clear verse groups: %w", err)
	}
	if err := insertGroups(ctx, tx, c.ID, c.Groups); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save collection %d: %w", c.ID, err)
	}
	return nil
}

func insertGroups(ctx context.Context, tx *sql.Tx, collectionID int, groups []VerseGroup) error {
	query := `
		INSERT INTO collection_verse_groups (collection_id, owner_id, reference, verses, progress, last_reviewed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, g := range groups {
		vs := g.Verses
		if vs == nil {
			vs = []Verse{}
		}
		verses, err := json.Marshal(vs)
		if err != nil {
			return fmt.Errorf("encode verses of %q: %w", g.Reference, err)
		}
		if _, err := tx.ExecContext(ctx, query, collectionID, g.Owner, g.Reference, string(verses), g.Progress, g.LastReviewedAt); err != nil {
			return fmt.Errorf("insert verse group %q: %w", g.Reference, err)
		}
	}
	return nil
}

// UpdateCollection writes title, visibility and verse order only.
func (r *repository) UpdateCollection(ctx context.Context, c Collection) error {
	return updateCollection(ctx, r.db, c)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func updateCollection(ctx context.Context, db execer, c Collection) error {
	query := `
		UPDATE collections
		SET title = $2, visibility = $3, verse_order = $4, updated_at = NOW()
		WHERE id = $1
	`
	res, err := db.ExecContext(ctx, query, c.ID, c.Title, c.Visibility, c.OrderTokens)
	if err != nil {
		return fmt.Errorf("update collection %d: %w", c.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update collection %d: %w", c.ID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) CreateCollection(ctx context.Context, c Collection) (*Collection, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create collection: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO collections (owner_id, author, title, visibility, verse_order)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRowContext(ctx, query, c.Owner, c.Author, c.Title, c.Visibility, c.OrderTokens).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert collection: %w", err)
	}

	if err := insertGroups(ctx, tx, c.ID, c.Groups); err != nil {
		return nil, err
	}
	for _, n := range c.Notes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO collection_notes (id, collection_id, content) VALUES ($1, $2, $3)`,
			n.ID, c.ID, n.Text,
		); err != nil {
			return nil, noteError(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create collection: %w", err)
	}
	return r.FetchCollection(ctx, c.ID)
}

// ListOwnedCollections returns metadata only; groups and notes are not loaded.
func (r *repository) ListOwnedCollections(ctx context.Context, owner int) ([]Collection, error) {
	query := `
		SELECT id, owner_id, author, title, visibility, verse_order, created_at, updated_at
		FROM collections
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var out []Collection
	for rows.Next() {
		var c Collection
		if err := rows.Scan(&c.ID, &c.Owner, &c.Author, &c.Title, &c.Visibility, &c.OrderTokens, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repository) AddNote(ctx context.Context, collectionID int, n Note) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO collection_notes (id, collection_id, content) VALUES ($1, $2, $3)`,
		n.ID, collectionID, n.Text,
	)
	if err != nil {
		return noteError(err)
	}
	return nil
}

func (r *repository) DeleteNote(ctx context.Context, collectionID int, noteID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM collection_notes WHERE collection_id = $1 AND id = $2`,
		collectionID, noteID,
	)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNoteNotFound
	}
	return nil
}

func noteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrNoteExists
	}
	return fmt.Errorf("insert note: %w", err)
}
