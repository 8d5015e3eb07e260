package service

import (
	"context"
	"time"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/repository"
)

// Notifier accepts notifications for delivery after a transaction commits.
// Queue must not block and never reports failure to the caller.
type Notifier interface {
	Queue(ctx context.Context, n domain.Notification)
}

// BatchNotifier is used by jobs that exist to deliver notifications. Enqueue
// waits for room instead of dropping and fails only when ctx is done or the
// notifier is shut down.
type BatchNotifier interface {
	Enqueue(ctx context.Context, n domain.Notification) error
}

// PolicyCatalog resolves the scoring attached to a violation policy id.
type PolicyCatalog interface {
	ViolationPolicyMetadata(policyID string) (domain.PolicyMetadata, bool)
}

type Clock interface {
	Now() time.Time
}

// ReferenceGenerator issues unique, sortable payment references.
type ReferenceGenerator interface {
	NewReference() string
}

type HoldQueueAllocator interface {
	// ProcessHoldQueueForBook tries to approve the oldest pending request for
	// bookID. Lack of capacity is reported in the result, not as an error.
	ProcessHoldQueueForBook(ctx context.Context, tx repository.Tx, bookID int64) (domain.AllocationResult, error)
}

type BorrowRequestService interface {
	CreateBorrowRequest(ctx context.Context, in CreateBorrowRequestInput) (*CreateBorrowRequestResult, error)
	RejectBorrowRequest(ctx context.Context, requestID int64) (*domain.BorrowRequest, error)
	GetBorrowRequest(ctx context.Context, requestID int64) (*domain.BorrowRequest, error)
	GetHoldQueue(ctx context.Context, bookID int64) (*domain.HoldQueue, error)
}

type BorrowRecordService interface {
	CreateBorrowRecord(ctx context.Context, in CreateBorrowRecordInput) (*CreateBorrowRecordResult, error)
	GetBorrowRecord(ctx context.Context, recordID int64) (*domain.BorrowRecord, error)
}

type EbookService interface {
	BorrowEbook(ctx context.Context, in BorrowEbookInput) (*BorrowEbookResult, error)
}

type ReturnService interface {
	ReturnBorrowRecord(ctx context.Context, recordID int64, in ReturnInput) (*ReturnResult, error)
}

type NotificationService interface {
	ListNotifications(ctx context.Context, userID int64, page, pageSize int) ([]domain.Notification, int, error)
}

type ReminderService interface {
	SendDueReminders(ctx context.Context) (int, error)
	SendOverdueReminders(ctx context.Context) (int, error)
}

type RequestedBook struct {
	BookID   int64
	Quantity int
}

type CreateBorrowRequestInput struct {
	UserID    int64
	StartDate string
	EndDate   string
	Items     []RequestedBook
}

type CreateBorrowRequestResult struct {
	BorrowRequest *domain.BorrowRequest `json:"borrowRequest"`
	Approved      bool                  `json:"approved"`
	Message       string                `json:"message"`
}

type CreateBorrowRecordInput struct {
	UserID      int64
	BorrowDate  string
	ReturnDate  string
	BookItemIDs []int64
	RequestIDs  []int64
}

type CreateBorrowRecordResult struct {
	BorrowRecord      *domain.BorrowRecord `json:"borrowRecord"`
	FulfilledRequests []int64              `json:"fulfilledRequests"`
	Message           string               `json:"message"`
}

type BorrowEbookInput struct {
	UserID    int64
	BookID    int64
	StartDate string
	EndDate   string
}

type BorrowEbookResult struct {
	BorrowRequest *domain.BorrowRequest `json:"borrowRequest"`
	BorrowRecord  *domain.BorrowRecord  `json:"borrowRecord"`
	Message       string                `json:"message"`
}

type ViolationInput struct {
	BookItemID int64
	PolicyID   string
	Amount     int64
	DueDate    string
}

type ReturnInput struct {
	Violations       []ViolationInput
	ConditionUpdates map[int64]domain.ItemCondition
}

type ReturnResult struct {
	BorrowRecord   *domain.BorrowRecord   `json:"borrowRecord"`
	ProcessedBooks []domain.ProcessedBook `json:"processedBooks"`
	Payments       []domain.Payment       `json:"payments"`
	Message        string                 `json:"message"`
}
