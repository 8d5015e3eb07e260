package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/lib/pq"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/logger"
	"library-circulation-backend/internal/repository"
)

type bookRepository struct {
	db DBTX
}

func NewBookRepository(db DBTX) repository.BookRepository {
	return &bookRepository{db: db}
}

func (r *bookRepository) GetByID(ctx context.Context, id int64) (*domain.Book, error) {
	b := &domain.Book{}
	var ebookID sql.NullInt64
	var ebookFormat sql.NullString
	query := `SELECT b.id, b.title, b.author_name, b.isbn, e.id, e.format
	          FROM books b LEFT JOIN ebooks e ON e.book_id = b.id
	          WHERE b.id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&b.ID, &b.Title, &b.AuthorName, &b.ISBN, &ebookID, &ebookFormat)
	if err != nil {
		return nil, notFound(err)
	}
	if ebookID.Valid {
		b.Ebook = &domain.Ebook{ID: ebookID.Int64, BookID: b.ID, Format: ebookFormat.String}
	}
	return b, nil
}

func (r *bookRepository) LockForAllocation(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	query := `SELECT id FROM books WHERE id = ANY($1) ORDER BY id FOR UPDATE`
	logger.DatabaseCall("SELECT FOR UPDATE", "books", "bookIDs", sorted)
	rows, err := r.db.QueryContext(ctx, query, pq.Array(sorted))
	if err != nil {
		logger.DatabaseResult("SELECT FOR UPDATE", 0, err)
		return err
	}
	defer rows.Close()

	locked := 0
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		locked++
	}
	if err := rows.Err(); err != nil {
		return err
	}
	logger.DatabaseResult("SELECT FOR UPDATE", int64(locked), nil)

	if locked != len(distinct(sorted)) {
		return fmt.Errorf("lock books %v: %w", sorted, domain.ErrNotFound)
	}
	return nil
}

func distinct(sorted []int64) []int64 {
	out := sorted[:0:0]
	for i, id := range sorted {
		if i == 0 || id != sorted[i-1] {
			out = append(out, id)
		}
	}
	return out
}
