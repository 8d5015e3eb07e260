package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"library-circulation-backend/internal/logger"
	"library-circulation-backend/internal/repository"

	_ "github.com/lib/pq"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so every repository can run
// either standalone or inside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type StoreOptions struct {
	Isolation  sql.IsolationLevel
	MaxRetries int
}

// repos binds one repository of each kind to a DBTX.
type repos struct {
	books          repository.BookRepository
	bookItems      repository.BookItemRepository
	borrowRequests repository.BorrowRequestRepository
	borrowRecords  repository.BorrowRecordRepository
	payments       repository.PaymentRepository
	policies       repository.PolicyRepository
	users          repository.UserRepository
}

func newRepos(db DBTX) *repos {
	return &repos{
		books:          NewBookRepository(db),
		bookItems:      NewBookItemRepository(db),
		borrowRequests: NewBorrowRequestRepository(db),
		borrowRecords:  NewBorrowRecordRepository(db),
		payments:       NewPaymentRepository(db),
		policies:       NewPolicyRepository(db),
		users:          NewUserRepository(db),
	}
}

func (r *repos) Books() repository.BookRepository                   { return r.books }
func (r *repos) BookItems() repository.BookItemRepository           { return r.bookItems }
func (r *repos) BorrowRequests() repository.BorrowRequestRepository { return r.borrowRequests }
func (r *repos) BorrowRecords() repository.BorrowRecordRepository   { return r.borrowRecords }
func (r *repos) Payments() repository.PaymentRepository             { return r.payments }
func (r *repos) Policies() repository.PolicyRepository              { return r.policies }
func (r *repos) Users() repository.UserRepository                   { return r.users }

type Store struct {
	*repos
	db            *sql.DB
	opts          StoreOptions
	notifications repository.NotificationRepository
}

var _ repository.Store = (*Store)(nil)

func NewStore(db *sql.DB, opts StoreOptions) *Store {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 1
	}
	return &Store{
		repos:         newRepos(db),
		db:            db,
		opts:          opts,
		notifications: NewNotificationRepository(db),
	}
}

func (s *Store) Notifications() repository.NotificationRepository { return s.notifications }

// WithinTx runs fn in a transaction at the configured isolation level.
// Serialization failures and deadlocks are retried up to MaxRetries attempts.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	var err error
	for attempt := 1; attempt <= s.opts.MaxRetries; attempt++ {
		err = s.runTx(ctx, fn)
		if err == nil || !isRetryable(err) {
			return err
		}
		logger.Warn("Retrying transaction", "attempt", attempt, "max_attempts", s.opts.MaxRetries, "error", err)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}

func (s *Store) runTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	logger.DatabaseCall("BEGIN", "transaction", "isolation", s.opts.Isolation.String())
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: s.opts.Isolation})
	if err != nil {
		logger.DatabaseResult("BEGIN", 0, err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(ctx, newRepos(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logger.Error("Failed to rollback transaction", "error", rbErr)
		}
		return err
	}

	err = tx.Commit()
	logger.DatabaseResult("COMMIT", 0, err)
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
