package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/logger"
	"library-circulation-backend/internal/repository"
	"library-circulation-backend/internal/utils"
)

type borrowRecordRepository struct {
	db DBTX
}

func NewBorrowRecordRepository(db DBTX) repository.BorrowRecordRepository {
	return &borrowRecordRepository{db: db}
}

const recordColumns = `id, user_id, borrow_date, return_date, actual_return_date, renewal_count, status, created_at, updated_at, deleted_at`

func (r *borrowRecordRepository) Create(ctx context.Context, rec *domain.BorrowRecord) error {
	logger.EnterMethod("borrowRecordRepository.Create", "userID", rec.UserID, "books", len(rec.Books))

	now := time.Now()
	query := `INSERT INTO borrow_records (user_id, borrow_date, return_date, renewal_count, status, created_at, updated_at)
	          VALUES ($1, $2::date, $3::date, $4, $5, $6, $7) RETURNING id`
	logger.DatabaseCall("INSERT", "borrow_records", "userID", rec.UserID)
	err := r.db.QueryRowContext(ctx, query, rec.UserID, utils.FormatDate(rec.BorrowDate), utils.FormatDate(rec.ReturnDate), rec.RenewalCount, rec.Status, now, now).Scan(&rec.ID)
	logger.DatabaseResult("INSERT", 1, err, "recordID", rec.ID)
	if err != nil {
		logger.ExitMethodWithError("borrowRecordRepository.Create", err)
		return err
	}
	rec.CreatedAt = now
	rec.UpdatedAt = now

	bookQuery := `INSERT INTO borrow_books (borrow_record_id, book_item_id) VALUES ($1, $2) RETURNING id`
	for i := range rec.Books {
		bb := &rec.Books[i]
		bb.BorrowRecordID = rec.ID
		if err := r.db.QueryRowContext(ctx, bookQuery, rec.ID, bb.BookItemID).Scan(&bb.ID); err != nil {
			logger.ExitMethodWithError("borrowRecordRepository.Create", err, "bookItemID", bb.BookItemID)
			return err
		}
	}

	if rec.Ebook != nil {
		rec.Ebook.BorrowRecordID = rec.ID
		ebookQuery := `INSERT INTO borrow_ebooks (borrow_record_id, ebook_id) VALUES ($1, $2) RETURNING id`
		if err := r.db.QueryRowContext(ctx, ebookQuery, rec.ID, rec.Ebook.EbookID).Scan(&rec.Ebook.ID); err != nil {
			logger.ExitMethodWithError("borrowRecordRepository.Create", err, "ebookID", rec.Ebook.EbookID)
			return err
		}
	}

	logger.ExitMethod("borrowRecordRepository.Create", "recordID", rec.ID)
	return nil
}

func (r *borrowRecordRepository) GetByID(ctx context.Context, id int64) (*domain.BorrowRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM borrow_records WHERE id = $1`
	return r.get(ctx, query, id)
}

func (r *borrowRecordRepository) GetForUpdate(ctx context.Context, id int64) (*domain.BorrowRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM borrow_records WHERE id = $1 FOR UPDATE`
	logger.DatabaseCall("SELECT FOR UPDATE", "borrow_records", "recordID", id)
	return r.get(ctx, query, id)
}

func (r *borrowRecordRepository) get(ctx context.Context, query string, id int64) (*domain.BorrowRecord, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	if err := r.loadBooks(ctx, rec); err != nil {
		return nil, fmt.Errorf("load borrow books: %w", err)
	}
	if err := r.loadEbook(ctx, rec); err != nil {
		return nil, fmt.Errorf("load borrow ebook: %w", err)
	}
	return rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.BorrowRecord, error) {
	rec := &domain.BorrowRecord{}
	var actual, deleted sql.NullTime
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.BorrowDate, &rec.ReturnDate, &actual, &rec.RenewalCount, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt, &deleted); err != nil {
		return nil, err
	}
	if actual.Valid {
		rec.ActualReturnDate = &actual.Time
	}
	if deleted.Valid {
		rec.DeletedAt = &deleted.Time
	}
	return rec, nil
}

func (r *borrowRecordRepository) loadBooks(ctx context.Context, rec *domain.BorrowRecord) error {
	query := `SELECT bb.id, bb.book_item_id, i.book_id, i.code, i.status, i.condition, b.title, b.author_name
	          FROM borrow_books bb
	          JOIN book_items i ON i.id = bb.book_item_id
	          JOIN books b ON b.id = i.book_id
	          WHERE bb.borrow_record_id = $1 ORDER BY bb.id`
	rows, err := r.db.QueryContext(ctx, query, rec.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		bb := domain.BorrowBook{BorrowRecordID: rec.ID}
		item := &domain.BookItem{}
		book := &domain.Book{}
		if err := rows.Scan(&bb.ID, &bb.BookItemID, &item.BookID, &item.Code, &item.Status, &item.Condition, &book.Title, &book.AuthorName); err != nil {
			return err
		}
		item.ID = bb.BookItemID
		book.ID = item.BookID
		item.Book = book
		bb.BookItem = item
		rec.Books = append(rec.Books, bb)
	}
	return rows.Err()
}

func (r *borrowRecordRepository) loadEbook(ctx context.Context, rec *domain.BorrowRecord) error {
	be := &domain.BorrowEbook{BorrowRecordID: rec.ID}
	eb := &domain.Ebook{}
	query := `SELECT be.id, be.ebook_id, e.book_id, e.format
	          FROM borrow_ebooks be JOIN ebooks e ON e.id = be.ebook_id
	          WHERE be.borrow_record_id = $1`
	err := r.db.QueryRowContext(ctx, query, rec.ID).Scan(&be.ID, &be.EbookID, &eb.BookID, &eb.Format)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}
	eb.ID = be.EbookID
	be.Ebook = eb
	rec.Ebook = be
	return nil
}

func (r *borrowRecordRepository) MarkReturned(ctx context.Context, id int64, returnedOn time.Time) error {
	query := `UPDATE borrow_records SET status = $1, actual_return_date = $2::date, updated_at = $3 WHERE id = $4`
	logger.DatabaseCall("UPDATE", "borrow_records", "recordID", id)
	result, err := r.db.ExecContext(ctx, query, domain.BorrowRecordStatusReturned, utils.FormatDate(returnedOn), time.Now(), id)
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
		return fmt.Errorf("borrow record %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *borrowRecordRepository) HasOpenEbookLoan(ctx context.Context, userID, ebookID int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (
	              SELECT 1 FROM borrow_records r JOIN borrow_ebooks be ON be.borrow_record_id = r.id
	              WHERE r.user_id = $1 AND be.ebook_id = $2 AND r.actual_return_date IS NULL AND r.deleted_at IS NULL)`
	err := r.db.QueryRowContext(ctx, query, userID, ebookID).Scan(&exists)
	return exists, err
}

func (r *borrowRecordRepository) ListOpenDueOn(ctx context.Context, day time.Time) ([]domain.BorrowRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM borrow_records
	          WHERE status = $1 AND actual_return_date IS NULL AND deleted_at IS NULL AND return_date = $2::date
	          ORDER BY id`
	return r.list(ctx, query, domain.BorrowRecordStatusBorrowed, utils.FormatDate(day))
}

func (r *borrowRecordRepository) ListOpenOverdue(ctx context.Context, asOf time.Time) ([]domain.BorrowRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM borrow_records
	          WHERE status = $1 AND actual_return_date IS NULL AND deleted_at IS NULL AND return_date < $2::date
	          ORDER BY id`
	return r.list(ctx, query, domain.BorrowRecordStatusBorrowed, utils.FormatDate(asOf))
}

func (r *borrowRecordRepository) list(ctx context.Context, query string, args ...any) ([]domain.BorrowRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.BorrowRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}
