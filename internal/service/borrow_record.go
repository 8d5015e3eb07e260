package service

import (
	"context"
	"errors"
	"fmt"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/logger"
	"library-circulation-backend/internal/metrics"
	"library-circulation-backend/internal/repository"
	"library-circulation-backend/internal/utils"
)

type borrowRecordService struct {
	store       repository.Store
	notifier    Notifier
	metrics     *metrics.Metrics
	maxLoanDays int
}

func NewBorrowRecordService(store repository.Store, notifier Notifier, m *metrics.Metrics, maxLoanDays int) BorrowRecordService {
	return &borrowRecordService{
		store:       store,
		notifier:    notifier,
		metrics:     m,
		maxLoanDays: maxLoanDays,
	}
}

func (s *borrowRecordService) CreateBorrowRecord(ctx context.Context, in CreateBorrowRecordInput) (*CreateBorrowRecordResult, error) {
	logger.EnterMethod("borrowRecordService.CreateBorrowRecord", "userID", in.UserID, "items", len(in.BookItemIDs))

	rec, err := s.validateCreate(ctx, in)
	if err != nil {
		logger.ExitMethodWithError("borrowRecordService.CreateBorrowRecord", err, "userID", in.UserID)
		return nil, err
	}

	var (
		created   *domain.BorrowRecord
		fulfilled []int64
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		fulfilled = []int64{}

		items, err := tx.BookItems().GetByIDs(ctx, in.BookItemIDs)
		if err != nil {
			return fmt.Errorf("failed to load book items: %w", err)
		}
		books := make([]int64, 0, len(items))
		for _, it := range items {
			books = append(books, it.BookID)
		}
		if err := tx.Books().LockForAllocation(ctx, distinctSorted(books)); err != nil {
			return fmt.Errorf("failed to lock books: %w", err)
		}

		// Availability may have changed between validation and the lock.
		items, err = tx.BookItems().GetByIDs(ctx, in.BookItemIDs)
		if err != nil {
			return fmt.Errorf("failed to reload book items: %w", err)
		}
		if err := checkBorrowable(in.BookItemIDs, items); err != nil {
			return err
		}

		pending := *rec
		pending.Books = make([]domain.BorrowBook, 0, len(items))
		for _, it := range items {
			pending.Books = append(pending.Books, domain.BorrowBook{BookItemID: it.ID})
		}
		if err := tx.BorrowRecords().Create(ctx, &pending); err != nil {
			return fmt.Errorf("failed to create borrow record: %w", err)
		}
		for _, it := range items {
			if err := tx.BookItems().UpdateStatus(ctx, it.ID, domain.ItemStatusOnBorrow); err != nil {
				return fmt.Errorf("failed to mark book item %d on borrow: %w", it.ID, err)
			}
		}

		fulfilled, err = fulfillRequests(ctx, tx, in.UserID, in.RequestIDs, items)
		if err != nil {
			return err
		}

		created, err = tx.BorrowRecords().GetByID(ctx, pending.ID)
		return err
	})
	if err != nil {
		logger.ExitMethodWithError("borrowRecordService.CreateBorrowRecord", err, "userID", in.UserID)
		return nil, err
	}

	s.metrics.ObserveLoan(metrics.LoanKindPhysical)
	notifyAll(ctx, s.notifier, []domain.Notification{{
		UserID:  created.UserID,
		Title:   "Books checked out",
		Message: fmt.Sprintf("You borrowed %d book(s). Please return them by %s.", len(created.Books), utils.FormatDate(created.ReturnDate)),
		Type:    domain.NotificationTypeBorrowCreated,
		Attributes: map[string]string{
			"borrow_record_id": fmt.Sprint(created.ID),
		},
	}})

	logger.InfoContext(ctx, "Borrow record created", "recordID", created.ID, "userID", created.UserID, "fulfilled", fulfilled)
	logger.ExitMethod("borrowRecordService.CreateBorrowRecord", "recordID", created.ID)
	return &CreateBorrowRecordResult{
		BorrowRecord:      created,
		FulfilledRequests: fulfilled,
		Message:           "Borrow record created",
	}, nil
}

func (s *borrowRecordService) validateCreate(ctx context.Context, in CreateBorrowRecordInput) (*domain.BorrowRecord, error) {
	borrow, due, err := parseLoanPeriod("borrowDate", in.BorrowDate, "returnDate", in.ReturnDate, s.maxLoanDays)
	if err != nil {
		return nil, err
	}
	if len(in.BookItemIDs) == 0 {
		return nil, domain.NewValidationError("at least one book item is required")
	}
	if len(distinctSorted(in.BookItemIDs)) != len(in.BookItemIDs) {
		return nil, domain.NewValidationError("book items must be distinct")
	}
	if _, err := requireReader(ctx, s.store.Users(), in.UserID); err != nil {
		return nil, err
	}

	items, err := s.store.BookItems().GetByIDs(ctx, in.BookItemIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load book items: %w", err)
	}
	if err := checkBorrowable(in.BookItemIDs, items); err != nil {
		return nil, err
	}

	return &domain.BorrowRecord{
		UserID:     in.UserID,
		BorrowDate: borrow,
		ReturnDate: due,
		Status:     domain.BorrowRecordStatusBorrowed,
	}, nil
}

// checkBorrowable reports missing ids as NotFound and unavailable copies, by
// code, as a validation error.
func checkBorrowable(ids []int64, items []domain.BookItem) error {
	found := make(map[int64]bool, len(items))
	for _, it := range items {
		found[it.ID] = true
	}
	var missing []string
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, fmt.Sprint(id))
		}
	}
	if len(missing) > 0 {
		return domain.NewNotFoundError("book items not found", missing...)
	}

	var unavailable []string
	for _, it := range items {
		if it.IsDeleted() || it.Status != domain.ItemStatusAvailable {
			unavailable = append(unavailable, it.Code)
		}
	}
	if len(unavailable) > 0 {
		return domain.NewValidationError("book items are not available", unavailable...)
	}
	return nil
}

// fulfillRequests marks the user's approved requests FULFILLED while the
// checked-out copies cover them. Copies are consumed greedily in the order
// the request ids were given; a request that cannot be fully covered stays
// APPROVED.
func fulfillRequests(ctx context.Context, tx repository.Tx, userID int64, requestIDs []int64, items []domain.BookItem) ([]int64, error) {
	fulfilled := []int64{}
	if len(requestIDs) == 0 {
		return fulfilled, nil
	}

	copies := make(map[int64]int)
	for _, it := range items {
		copies[it.BookID]++
	}

	seen := make(map[int64]bool, len(requestIDs))
	for _, id := range requestIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		req, err := tx.BorrowRequests().GetByID(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load borrow request %d: %w", id, err)
		}
		if req.UserID != userID || req.Status != domain.BorrowRequestStatusApproved {
			continue
		}

		wanted := req.QuantityByBook()
		covered := true
		for bookID, qty := range wanted {
			if copies[bookID] < qty {
				covered = false
				break
			}
		}
		if !covered {
			continue
		}

		ok, err := tx.BorrowRequests().TransitionStatus(ctx, id, domain.BorrowRequestStatusApproved, domain.BorrowRequestStatusFulfilled)
		if err != nil {
			return nil, fmt.Errorf("failed to fulfill borrow request %d: %w", id, err)
		}
		if !ok {
			continue
		}
		for bookID, qty := range wanted {
			copies[bookID] -= qty
		}
		fulfilled = append(fulfilled, id)
	}
	return fulfilled, nil
}

func (s *borrowRecordService) GetBorrowRecord(ctx context.Context, recordID int64) (*domain.BorrowRecord, error) {
	rec, err := s.store.BorrowRecords().GetByID(ctx, recordID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NewNotFoundError("borrow record not found", fmt.Sprint(recordID))
	}
	return rec, err
}
