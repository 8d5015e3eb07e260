package postgres_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/repository/postgres"
)

var recordRowColumns = []string{"id", "user_id", "borrow_date", "return_date", "actual_return_date", "renewal_count", "status", "created_at", "updated_at", "deleted_at"}

func TestBorrowRecordRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := postgres.NewBorrowRecordRepository(db)
	ctx := context.Background()
	borrow := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	due := borrow.AddDate(0, 0, 14)

	t.Run("PhysicalCopies", func(t *testing.T) {
		rec := &domain.BorrowRecord{
			UserID:     7,
			BorrowDate: borrow,
			ReturnDate: due,
			Status:     domain.BorrowRecordStatusBorrowed,
			Books:      []domain.BorrowBook{{BookItemID: 10}, {BookItemID: 11}},
		}

		mock.ExpectQuery("INSERT INTO borrow_records").
			WithArgs(int64(7), "2024-03-01", "2024-03-15", 0, domain.BorrowRecordStatusBorrowed, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(200))
		mock.ExpectQuery("INSERT INTO borrow_books").
			WithArgs(int64(200), int64(10)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectQuery("INSERT INTO borrow_books").
			WithArgs(int64(200), int64(11)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))

		require.NoError(t, repo.Create(ctx, rec))
		assert.Equal(t, int64(200), rec.ID)
		assert.Equal(t, int64(200), rec.Books[1].BorrowRecordID)
	})

	t.Run("Ebook", func(t *testing.T) {
		rec := &domain.BorrowRecord{
			UserID:     7,
			BorrowDate: borrow,
			ReturnDate: due,
			Status:     domain.BorrowRecordStatusBorrowed,
			Ebook:      &domain.BorrowEbook{EbookID: 9},
		}

		mock.ExpectQuery("INSERT INTO borrow_records").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(201))
		mock.ExpectQuery("INSERT INTO borrow_ebooks").
			WithArgs(int64(201), int64(9)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))

		require.NoError(t, repo.Create(ctx, rec))
		assert.Equal(t, int64(3), rec.Ebook.ID)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBorrowRecordRepository_GetForUpdate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := postgres.NewBorrowRecordRepository(db)
	ctx := context.Background()
	now := time.Now()

	t.Run("LocksAndLoadsCopies", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM borrow_records WHERE id = \\$1 FOR UPDATE").
			WithArgs(int64(200)).
			WillReturnRows(sqlmock.NewRows(recordRowColumns).
				AddRow(200, 7, now, now, nil, 0, "BORROWED", now, now, nil))
		mock.ExpectQuery("SELECT (.+) FROM borrow_books bb").
			WithArgs(int64(200)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "book_item_id", "book_id", "code", "status", "condition", "title", "author_name"}).
				AddRow(1, 10, 1, "DUNE-001", "ON_BORROW", "GOOD", "Dune", "Frank Herbert"))
		mock.ExpectQuery("SELECT (.+) FROM borrow_ebooks be").
			WithArgs(int64(200)).
			WillReturnError(sql.ErrNoRows)

		rec, err := repo.GetForUpdate(ctx, 200)
		require.NoError(t, err)
		assert.True(t, rec.IsOpen())
		require.Len(t, rec.Books, 1)
		assert.Equal(t, int64(1), rec.Books[0].BookItem.BookID)
		assert.Equal(t, "Frank Herbert", rec.Books[0].BookItem.Book.AuthorName)
		assert.Nil(t, rec.Ebook)
	})

	t.Run("AlreadyReturned", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM borrow_records WHERE id = \\$1 FOR UPDATE").
			WithArgs(int64(201)).
			WillReturnRows(sqlmock.NewRows(recordRowColumns).
				AddRow(201, 7, now, now, now, 0, "RETURNED", now, now, nil))
		mock.ExpectQuery("SELECT (.+) FROM borrow_books bb").
			WithArgs(int64(201)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "book_item_id", "book_id", "code", "status", "condition", "title", "author_name"}))
		mock.ExpectQuery("SELECT (.+) FROM borrow_ebooks be").
			WithArgs(int64(201)).
			WillReturnError(sql.ErrNoRows)

		rec, err := repo.GetForUpdate(ctx, 201)
		require.NoError(t, err)
		assert.False(t, rec.IsOpen())
		assert.NotNil(t, rec.ActualReturnDate)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM borrow_records WHERE id = \\$1 FOR UPDATE").
			WithArgs(int64(404)).
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetForUpdate(ctx, 404)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBorrowRecordRepository_Queries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := postgres.NewBorrowRecordRepository(db)
	ctx := context.Background()
	today := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	t.Run("MarkReturned", func(t *testing.T) {
		mock.ExpectExec("UPDATE borrow_records SET status = (.+), actual_return_date").
			WithArgs(domain.BorrowRecordStatusReturned, "2024-03-15", sqlmock.AnyArg(), int64(200)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.MarkReturned(ctx, 200, today))
	})

	t.Run("HasOpenEbookLoan", func(t *testing.T) {
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs(int64(7), int64(9)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		open, err := repo.HasOpenEbookLoan(ctx, 7, 9)
		require.NoError(t, err)
		assert.True(t, open)
	})

	t.Run("ListOpenOverdue", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM borrow_records (.+) return_date < \\$2::date").
			WithArgs(domain.BorrowRecordStatusBorrowed, "2024-03-15").
			WillReturnRows(sqlmock.NewRows(recordRowColumns).
				AddRow(300, 7, today.AddDate(0, 0, -20), today.AddDate(0, 0, -2), nil, 0, "BORROWED", today, today, nil))

		records, err := repo.ListOpenOverdue(ctx, today)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, int64(7), records[0].UserID)
	})

	t.Run("ListOpenDueOn sends the calendar day", func(t *testing.T) {
		// Midnight in New York is already the next morning in UTC; the query
		// must still ask for the 16th.
		day := time.Date(2024, 3, 16, 0, 0, 0, 0, time.FixedZone("EST", -5*60*60))
		mock.ExpectQuery("SELECT (.+) FROM borrow_records (.+) return_date = \\$2::date").
			WithArgs(domain.BorrowRecordStatusBorrowed, "2024-03-16").
			WillReturnRows(sqlmock.NewRows(recordRowColumns).
				AddRow(301, 8, today.AddDate(0, 0, -13), today.AddDate(0, 0, 1), nil, 0, "BORROWED", today, today, nil))

		records, err := repo.ListOpenDueOn(ctx, day)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, int64(301), records[0].ID)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
