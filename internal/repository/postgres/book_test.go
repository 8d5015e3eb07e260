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

var fixedTime = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func TestBookRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := postgres.NewBookRepository(db)
	ctx := context.Background()

	t.Run("WithEbook", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "title", "author_name", "isbn", "id", "format"}).
			AddRow(1, "Dune", "Frank Herbert", "9780441013593", 9, "EPUB")
		mock.ExpectQuery("SELECT (.+) FROM books b LEFT JOIN ebooks e").
			WithArgs(int64(1)).
			WillReturnRows(rows)

		book, err := repo.GetByID(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "Dune", book.Title)
		require.NotNil(t, book.Ebook)
		assert.Equal(t, int64(9), book.Ebook.ID)
	})

	t.Run("PrintOnly", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "title", "author_name", "isbn", "id", "format"}).
			AddRow(2, "Emma", "Jane Austen", "", nil, nil)
		mock.ExpectQuery("SELECT (.+) FROM books b LEFT JOIN ebooks e").
			WithArgs(int64(2)).
			WillReturnRows(rows)

		book, err := repo.GetByID(ctx, 2)
		require.NoError(t, err)
		assert.Nil(t, book.Ebook)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM books b LEFT JOIN ebooks e").
			WithArgs(int64(3)).
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByID(ctx, 3)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepository_LockForAllocation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := postgres.NewBookRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery("SELECT id FROM books WHERE id = ANY(.+) ORDER BY id FOR UPDATE").
			WithArgs(sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(3))

		err := repo.LockForAllocation(ctx, []int64{3, 1, 3})
		assert.NoError(t, err)
	})

	t.Run("MissingBook", func(t *testing.T) {
		mock.ExpectQuery("SELECT id FROM books WHERE id = ANY(.+) ORDER BY id FOR UPDATE").
			WithArgs(sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

		err := repo.LockForAllocation(ctx, []int64{1, 2})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("NothingToLock", func(t *testing.T) {
		assert.NoError(t, repo.LockForAllocation(ctx, nil))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookItemRepository(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := postgres.NewBookItemRepository(db)
	ctx := context.Background()

	t.Run("GetByIDs", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "book_id", "code", "status", "condition", "created_at", "deleted_at", "title", "author_name"}).
			AddRow(10, 1, "DUNE-001", "AVAILABLE", "GOOD", fixedTime, nil, "Dune", "Frank Herbert").
			AddRow(11, 1, "DUNE-002", "AVAILABLE", "NEW", fixedTime, fixedTime, "Dune", "Frank Herbert")
		mock.ExpectQuery("SELECT (.+) FROM book_items i JOIN books b").
			WithArgs(sqlmock.AnyArg()).
			WillReturnRows(rows)

		items, err := repo.GetByIDs(ctx, []int64{10, 11})
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, domain.ItemStatusAvailable, items[0].Status)
		assert.Equal(t, "Dune", items[0].Book.Title)
		assert.False(t, items[0].IsDeleted())
		assert.True(t, items[1].IsDeleted())
	})

	t.Run("CountAvailable", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT(.+) FROM book_items").
			WithArgs(int64(1), domain.ItemStatusAvailable).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

		n, err := repo.CountAvailable(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 4, n)
	})

	t.Run("UpdateConditionAndStatus", func(t *testing.T) {
		mock.ExpectExec("UPDATE book_items SET condition = (.+), status = (.+) WHERE id = (.+)").
			WithArgs(domain.ItemConditionLost, domain.ItemStatusLost, int64(10)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.UpdateConditionAndStatus(ctx, 10, domain.ItemConditionLost, domain.ItemStatusLost))
	})

	t.Run("UpdateStatusMissing", func(t *testing.T) {
		mock.ExpectExec("UPDATE book_items SET status").
			WithArgs(domain.ItemStatusOnBorrow, int64(99)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdateStatus(ctx, 99, domain.ItemStatusOnBorrow)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
