package postgres

import (
	"context"
	"time"

	"github.com/campuskeep/lostfound/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ItemRepository interface {
	Create(ctx context.Context, item *domain.Item) (*domain.Item, error)
	FindByID(ctx context.Context, id int64) (*domain.Item, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Item, error)
	Search(ctx context.Context, q *domain.ItemSearchQuery) ([]domain.Item, error)
	UpdateStatus(ctx context.Context, itemID, userID int64, status string) (bool, error)
}

type itemRepository struct {
	pool *pgxpool.Pool
}

func NewItemRepository(pool *pgxpool.Pool) ItemRepository {
	return &itemRepository{pool: pool}
}

const itemCols = `id, title, description, item_type, contact_phone, photo_filename,
	date_reported, status, user_id`

func scanItem(row pgx.Row) (*domain.Item, error) {
	var it domain.Item
	err := row.Scan(
		&it.ID, &it.Title, &it.Description, &it.ItemType, &it.ContactPhone, &it.PhotoFilename,
		&it.DateReported, &it.Status, &it.UserID,
	)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *itemRepository) Create(ctx context.Context, item *domain.Item) (*domain.Item, error) {
	const q = `
		INSERT INTO items (title, description, item_type, contact_phone, photo_filename, status, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + itemCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanItem(r.pool.QueryRow(ctx, q,
		item.Title, item.Description, item.ItemType, item.ContactPhone,
		item.PhotoFilename, item.Status, item.UserID,
	))
}

func (r *itemRepository) FindByID(ctx context.Context, id int64) (*domain.Item, error) {
	const q = `SELECT ` + itemCols + ` FROM items WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	it, err := scanItem(r.pool.QueryRow(ctx, q, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return it, err
}

func (r *itemRepository) ListRecent(ctx context.Context, limit int) ([]domain.Item, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	const q = `
		SELECT ` + itemCols + `
		FROM items
		ORDER BY date_reported DESC
		LIMIT $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectItems(rows)
}

func (r *itemRepository) Search(ctx context.Context, sq *domain.ItemSearchQuery) ([]domain.Item, error) {
	// Empty filters match everything; "all" is the UI's explicit wildcard.
	const q = `
		SELECT ` + itemCols + `
		FROM items
		WHERE ($1 = '' OR title ILIKE '%' || $1 || '%' OR description ILIKE '%' || $1 || '%')
		  AND ($2 = '' OR $2 = 'all' OR item_type = $2)
		  AND ($3 = '' OR $3 = 'all' OR status = $3)
		ORDER BY date_reported DESC`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, sq.Text, sq.ItemType, sq.Status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectItems(rows)
}

// UpdateStatus is owner-scoped; it reports whether a row was touched.
func (r *itemRepository) UpdateStatus(ctx context.Context, itemID, userID int64, status string) (bool, error) {
	const q = `UPDATE items SET status = $3 WHERE id = $1 AND user_id = $2`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q, itemID, userID, status)
	if err != nil {
		return false, err
	}

	return result.RowsAffected() > 0, nil
}

func collectItems(rows pgx.Rows) ([]domain.Item, error) {
	var items []domain.Item
	for rows.Next() {
		var it domain.Item
		if err := rows.Scan(
			&it.ID, &it.Title, &it.Description, &it.ItemType, &it.ContactPhone, &it.PhotoFilename,
			&it.DateReported, &it.Status, &it.UserID,
		); err != nil {
			return nil, err
		}
		items = append(items, it)
	}

	return items, rows.Err()
}
