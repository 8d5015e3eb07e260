package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/logger"
	"library-circulation-backend/internal/repository"
)

type bookItemRepository struct {
	db DBTX
}

func NewBookItemRepository(db DBTX) repository.BookItemRepository {
	return &bookItemRepository{db: db}
}

// GetByIDs returns the items that exist, soft-deleted ones included, each with
// its book's title and author.
func (r *bookItemRepository) GetByIDs(ctx context.Context, ids []int64) ([]domain.BookItem, error) {
	query := `SELECT i.id, i.book_id, i.code, i.status, i.condition, i.created_at, i.deleted_at, b.title, b.author_name
	          FROM book_items i JOIN books b ON b.id = i.book_id
	          WHERE i.id = ANY($1) ORDER BY i.id`
	logger.DatabaseCall("SELECT", "book_items", "count", len(ids))
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		logger.DatabaseResult("SELECT", 0, err)
		return nil, err
	}
	defer rows.Close()

	var items []domain.BookItem
	for rows.Next() {
		var it domain.BookItem
		var deletedAt sql.NullTime
		book := &domain.Book{}
		if err := rows.Scan(&it.ID, &it.BookID, &it.Code, &it.Status, &it.Condition, &it.CreatedAt, &deletedAt, &book.Title, &book.AuthorName); err != nil {
			return nil, err
		}
		if deletedAt.Valid {
			it.DeletedAt = &deletedAt.Time
		}
		book.ID = it.BookID
		it.Book = book
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	logger.DatabaseResult("SELECT", int64(len(items)), nil)
	return items, nil
}

func (r *bookItemRepository) CountAvailable(ctx context.Context, bookID int64) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM book_items WHERE book_id = $1 AND status = $2 AND deleted_at IS NULL`
	err := r.db.QueryRowContext(ctx, query, bookID, domain.ItemStatusAvailable).Scan(&n)
	return n, err
}

func (r *bookItemRepository) UpdateStatus(ctx context.Context, id int64, status domain.ItemStatus) error {
	query := `UPDATE book_items SET status = $1 WHERE id = $2`
	return r.execOne(ctx, query, id, status, id)
}

func (r *bookItemRepository) UpdateCondition(ctx context.Context, id int64, condition domain.ItemCondition) error {
	query := `UPDATE book_items SET condition = $1 WHERE id = $2`
	return r.execOne(ctx, query, id, condition, id)
}

func (r *bookItemRepository) UpdateConditionAndStatus(ctx context.Context, id int64, condition domain.ItemCondition, status domain.ItemStatus) error {
	query := `UPDATE book_items SET condition = $1, status = $2 WHERE id = $3`
	return r.execOne(ctx, query, id, condition, status, id)
}

func (r *bookItemRepository) execOne(ctx context.Context, query string, id int64, args ...any) error {
	logger.DatabaseCall("UPDATE", "book_items", "bookItemID", id)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err)
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	logger.DatabaseResult("UPDATE", n, nil)
	if n == 0 {
		return fmt.Errorf("book item %d: %w", id, domain.ErrNotFound)
	}
	return nil
}
