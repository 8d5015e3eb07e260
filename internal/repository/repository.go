package repository

import (
	"context"
	"time"

	"library-circulation-backend/internal/domain"
)

type BookRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Book, error)
	// LockForAllocation takes row locks on the given books in ascending id
	// order. Returns domain.ErrNotFound if any id does not exist. Locks taken
	// by an earlier call in the same transaction are kept, so two calls can
	// still cross another transaction's order; the postgres store retries the
	// resulting deadlock (40P01).
	LockForAllocation(ctx context.Context, ids []int64) error
}

type BookItemRepository interface {
	GetByIDs(ctx context.Context, ids []int64) ([]domain.BookItem, error)
	CountAvailable(ctx context.Context, bookID int64) (int, error)
	UpdateStatus(ctx context.Context, id int64, status domain.ItemStatus) error
	UpdateCondition(ctx context.Context, id int64, condition domain.ItemCondition) error
	UpdateConditionAndStatus(ctx context.Context, id int64, condition domain.ItemCondition, status domain.ItemStatus) error
}

type BorrowRequestRepository interface {
	// Create inserts the request and its items, filling in generated ids.
	Create(ctx context.Context, req *domain.BorrowRequest) error
	GetByID(ctx context.Context, id int64) (*domain.BorrowRequest, error)
	// TransitionStatus moves a request from one status to another and reports
	// false when the request was no longer in the expected status.
	TransitionStatus(ctx context.Context, id int64, from, to domain.BorrowRequestStatus) (bool, error)
	OldestPendingItem(ctx context.Context, bookID int64) (*domain.BorrowRequestItem, error)
	ApprovedQuantity(ctx context.Context, bookID int64) (int, error)
	PendingQueue(ctx context.Context, bookID int64) ([]domain.HoldQueueEntry, error)
}

type BorrowRecordRepository interface {
	// Create inserts the record together with its BorrowBook rows or BorrowEbook row.
	Create(ctx context.Context, rec *domain.BorrowRecord) error
	GetByID(ctx context.Context, id int64) (*domain.BorrowRecord, error)
	// GetForUpdate locks the record row for the rest of the transaction.
	GetForUpdate(ctx context.Context, id int64) (*domain.BorrowRecord, error)
	MarkReturned(ctx context.Context, id int64, returnedOn time.Time) error
	HasOpenEbookLoan(ctx context.Context, userID, ebookID int64) (bool, error)
	ListOpenDueOn(ctx context.Context, day time.Time) ([]domain.BorrowRecord, error)
	ListOpenOverdue(ctx context.Context, asOf time.Time) ([]domain.BorrowRecord, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p *domain.Payment) error
	ListByRecord(ctx context.Context, recordID int64) ([]domain.Payment, error)
}

type PolicyRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Policy, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	AddViolationPoints(ctx context.Context, id int64, points int) error
}

type NotificationRepository interface {
	Create(ctx context.Context, note *domain.Notification) error
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.Notification, int, error)
}

// Repositories is the set of repositories bound to one connection or transaction.
type Repositories interface {
	Books() BookRepository
	BookItems() BookItemRepository
	BorrowRequests() BorrowRequestRepository
	BorrowRecords() BorrowRecordRepository
	Payments() PaymentRepository
	Policies() PolicyRepository
	Users() UserRepository
}

// Tx is the unit-of-work handle passed to code that must run inside a transaction.
type Tx interface {
	Repositories
}

type TxManager interface {
	// WithinTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise. fn may be invoked more than once when the
	// transaction is retried, so it must not have side effects outside tx.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Store is what services depend on: non-transactional reads, transactions and
// the notification inbox which is written outside of business transactions.
type Store interface {
	Repositories
	TxManager
	Notifications() NotificationRepository
}
