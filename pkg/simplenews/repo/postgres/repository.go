package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-news/pkg/simplenews"
)

const backendName = "postgres"

//go:embed schema.sql
var schema string

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements simplenews.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// Migrate creates the tables and indexes if they do not exist.
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// handlePostgresError maps driver errors onto the simplenews error taxonomy
func (r *Repository) handlePostgresError(kind, op string, id uuid.UUID, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return simplenews.NotFound(kind, id)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23502": // not_null_violation
			return simplenews.NewValidationError(kind, pgErr.ColumnName, fmt.Sprintf("%s is required", pgErr.ColumnName))
		case "23514": // check_violation
			return simplenews.NewValidationError(kind, pgErr.ConstraintName, pgErr.Message)
		case "23505": // unique_violation
			return simplenews.NewValidationError(kind, pgErr.ConstraintName, "duplicate entry")
		case "42P01": // undefined_table
			return &simplenews.TransportError{Backend: backendName, Op: op, Err: fmt.Errorf("table does not exist - database migration required: %w", err)}
		}
	}

	return &simplenews.TransportError{Backend: backendName, Op: op, Err: err}
}

const itemColumns = `id, title, description, body, category, media_ref, view_count, like_count, created_at`

func scanItem(row pgx.Row) (*simplenews.ContentItem, error) {
	var item simplenews.ContentItem
	var category string
	if err := row.Scan(&item.ID, &item.Title, &item.Description, &item.Body, &category,
		&item.MediaRef, &item.ViewCount, &item.LikeCount, &item.CreatedAt); err != nil {
		return nil, err
	}
	item.Category = simplenews.Category(category)
	return &item, nil
}

// Content item operations

func (r *Repository) ListContentItems(ctx context.Context) ([]*simplenews.ContentItem, error) {
	rows, err := r.db.Query(ctx, `SELECT `+itemColumns+` FROM news_items ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, r.handlePostgresError(simplenews.KindContentItem, "list content items", uuid.Nil, err)
	}
	defer rows.Close()

	items := make([]*simplenews.ContentItem, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, r.handlePostgresError(simplenews.KindContentItem, "list content items", uuid.Nil, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError(simplenews.KindContentItem, "list content items", uuid.Nil, err)
	}
	return items, nil
}

func (r *Repository) GetContentItem(ctx context.Context, id uuid.UUID) (*simplenews.ContentItem, error) {
	item, err := scanItem(r.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM news_items WHERE id = $1`, id))
	if err != nil {
		return nil, r.handlePostgresError(simplenews.KindContentItem, "get content item", id, err)
	}
	return item, nil
}

func (r *Repository) InsertContentItem(ctx context.Context, fields simplenews.ContentFields) (*simplenews.ContentItem, error) {
	fields, err := simplenews.ValidateContentFields(fields)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	query := `
		INSERT INTO news_items (id, title, description, body, category, media_ref)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + itemColumns

	item, err := scanItem(r.db.QueryRow(ctx, query,
		id, fields.Title, fields.Description, fields.Body, string(fields.Category), fields.MediaRef))
	if err != nil {
		return nil, r.handlePostgresError(simplenews.KindContentItem, "insert content item", id, err)
	}
	return item, nil
}

func (r *Repository) UpdateContentItem(ctx context.Context, id uuid.UUID, patch simplenews.ContentPatch) (*simplenews.ContentItem, error) {
	patch, err := simplenews.ValidateContentPatch(patch)
	if err != nil {
		return nil, err
	}

	var category *string
	if patch.Category != nil {
		c := string(*patch.Category)
		category = &c
	}
	setMedia := patch.MediaRef != nil
	var mediaRef *string
	if setMedia && *patch.MediaRef != "" {
		mediaRef = patch.MediaRef
	}

	query := `
		UPDATE news_items SET
			title       = COALESCE($2, title),
			description = COALESCE($3, description),
			body        = COALESCE($4, body),
			category    = COALESCE($5, category),
			media_ref   = CASE WHEN $6::boolean THEN $7::text ELSE media_ref END,
			view_count  = COALESCE($8, view_count),
			like_count  = COALESCE($9, like_count)
		WHERE id = $1
		RETURNING ` + itemColumns

	item, err := scanItem(r.db.QueryRow(ctx, query, id,
		patch.Title, patch.Description, patch.Body, category,
		setMedia, mediaRef, patch.ViewCount, patch.LikeCount))
	if err != nil {
		return nil, r.handlePostgresError(simplenews.KindContentItem, "update content item", id, err)
	}
	return item, nil
}

func (r *Repository) DeleteContentItem(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM news_items WHERE id = $1`, id); err != nil {
		return r.handlePostgresError(simplenews.KindContentItem, "delete content item", id, err)
	}
	return nil
}

// IncrementContentCounter bumps a counter in one UPDATE statement.
func (r *Repository) IncrementContentCounter(ctx context.Context, id uuid.UUID, field simplenews.CounterField) (*simplenews.ContentItem, error) {
	var query string
	switch field {
	case simplenews.CounterLikes:
		query = `UPDATE news_items SET like_count = like_count + 1 WHERE id = $1 RETURNING ` + itemColumns
	case simplenews.CounterViews:
		query = `UPDATE news_items SET view_count = view_count + 1 WHERE id = $1 RETURNING ` + itemColumns
	default:
		return nil, simplenews.NewValidationError(simplenews.KindContentItem, "counter", "unknown counter "+string(field))
	}

	item, err := scanItem(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, r.handlePostgresError(simplenews.KindContentItem, "increment "+string(field), id, err)
	}
	return item, nil
}

// Slider entry operations

const entryColumns = `id, media_ref, media_kind, created_at`

func scanEntry(row pgx.Row) (*simplenews.SliderEntry, error) {
	var entry simplenews.SliderEntry
	var kind string
	if err := row.Scan(&entry.ID, &entry.MediaRef, &kind, &entry.CreatedAt); err != nil {
		return nil, err
	}
	entry.MediaKind = simplenews.MediaKind(kind)
	return &entry, nil
}

func (r *Repository) ListSliderEntries(ctx context.Context) ([]*simplenews.SliderEntry, error) {
	rows, err := r.db.Query(ctx, `SELECT `+entryColumns+` FROM slider_entries ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, r.handlePostgresError(simplenews.KindSliderEntry, "list slider entries", uuid.Nil, err)
	}
	defer rows.Close()

	entries := make([]*simplenews.SliderEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, r.handlePostgresError(simplenews.KindSliderEntry, "list slider entries", uuid.Nil, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError(simplenews.KindSliderEntry, "list slider entries", uuid.Nil, err)
	}
	return entries, nil
}

func (r *Repository) GetSliderEntry(ctx context.Context, id uuid.UUID) (*simplenews.SliderEntry, error) {
	entry, err := scanEntry(r.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM slider_entries WHERE id = $1`, id))
	if err != nil {
		return nil, r.handlePostgresError(simplenews.KindSliderEntry, "get slider entry", id, err)
	}
	return entry, nil
}

func (r *Repository) InsertSliderEntry(ctx context.Context, fields simplenews.SliderFields) (*simplenews.SliderEntry, error) {
	fields, err := simplenews.ValidateSliderFields(fields)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	entry, err := scanEntry(r.db.QueryRow(ctx,
		`INSERT INTO slider_entries (id, media_ref, media_kind) VALUES ($1, $2, $3) RETURNING `+entryColumns,
		id, fields.MediaRef, string(fields.MediaKind)))
	if err != nil {
		return nil, r.handlePostgresError(simplenews.KindSliderEntry, "insert slider entry", id, err)
	}
	return entry, nil
}

func (r *Repository) UpdateSliderEntry(ctx context.Context, id uuid.UUID, patch simplenews.SliderPatch) (*simplenews.SliderEntry, error) {
	patch, err := simplenews.ValidateSliderPatch(patch)
	if err != nil {
		return nil, err
	}

	var kind *string
	if patch.MediaKind != nil {
		k := string(*patch.MediaKind)
		kind = &k
	}

	entry, err := scanEntry(r.db.QueryRow(ctx, `
		UPDATE slider_entries SET
			media_ref  = COALESCE($2, media_ref),
			media_kind = COALESCE($3, media_kind)
		WHERE id = $1
		RETURNING `+entryColumns, id, patch.MediaRef, kind))
	if err != nil {
		return nil, r.handlePostgresError(simplenews.KindSliderEntry, "update slider entry", id, err)
	}
	return entry, nil
}

func (r *Repository) DeleteSliderEntry(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM slider_entries WHERE id = $1`, id); err != nil {
		return r.handlePostgresError(simplenews.KindSliderEntry, "delete slider entry", id, err)
	}
	return nil
}

var (
	_ simplenews.Repository         = (*Repository)(nil)
	_ simplenews.CounterIncrementer = (*Repository)(nil)
)
