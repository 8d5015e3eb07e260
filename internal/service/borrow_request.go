package service

import (
	"context"
	"errors"
	"fmt"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/logger"
	"library-circulation-backend/internal/repository"
)

type borrowRequestService struct {
	store       repository.Store
	allocator   HoldQueueAllocator
	notifier    Notifier
	maxLoanDays int
}

func NewBorrowRequestService(store repository.Store, allocator HoldQueueAllocator, notifier Notifier, maxLoanDays int) BorrowRequestService {
	return &borrowRequestService{
		store:       store,
		allocator:   allocator,
		notifier:    notifier,
		maxLoanDays: maxLoanDays,
	}
}

func (s *borrowRequestService) CreateBorrowRequest(ctx context.Context, in CreateBorrowRequestInput) (*CreateBorrowRequestResult, error) {
	logger.EnterMethod("borrowRequestService.CreateBorrowRequest", "userID", in.UserID, "items", len(in.Items))

	req, err := s.validateCreate(ctx, in)
	if err != nil {
		logger.ExitMethodWithError("borrowRequestService.CreateBorrowRequest", err, "userID", in.UserID)
		return nil, err
	}

	var (
		created *domain.BorrowRequest
		notes   []domain.Notification
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		pending := *req
		pending.Items = append([]domain.BorrowRequestItem(nil), req.Items...)
		if err := tx.BorrowRequests().Create(ctx, &pending); err != nil {
			return fmt.Errorf("failed to create borrow request: %w", err)
		}

		results, err := allocateEach(ctx, tx, s.allocator, bookIDsOf(pending.Items))
		if err != nil {
			return err
		}
		notes, err = approvedRequests(ctx, tx, results)
		if err != nil {
			return err
		}

		created, err = tx.BorrowRequests().GetByID(ctx, pending.ID)
		return err
	})
	if err != nil {
		logger.ExitMethodWithError("borrowRequestService.CreateBorrowRequest", err, "userID", in.UserID)
		return nil, err
	}

	notifyAll(ctx, s.notifier, notes)

	approved := created.Status == domain.BorrowRequestStatusApproved
	message := "Borrow request created and added to the hold queue"
	if approved {
		message = "Borrow request created and approved"
	}
	logger.InfoContext(ctx, "Borrow request created", "requestID", created.ID, "userID", created.UserID, "approved", approved)
	logger.ExitMethod("borrowRequestService.CreateBorrowRequest", "requestID", created.ID)
	return &CreateBorrowRequestResult{BorrowRequest: created, Approved: approved, Message: message}, nil
}

func (s *borrowRequestService) validateCreate(ctx context.Context, in CreateBorrowRequestInput) (*domain.BorrowRequest, error) {
	start, end, err := parseLoanPeriod("startDate", in.StartDate, "endDate", in.EndDate, s.maxLoanDays)
	if err != nil {
		return nil, err
	}
	if len(in.Items) == 0 {
		return nil, domain.NewValidationError("at least one book is required")
	}

	seen := make(map[int64]bool, len(in.Items))
	items := make([]domain.BorrowRequestItem, 0, len(in.Items))
	for _, it := range in.Items {
		if it.Quantity < 1 {
			return nil, domain.NewValidationError("quantity must be at least 1", fmt.Sprint(it.BookID))
		}
		if seen[it.BookID] {
			return nil, domain.NewValidationError("each book may appear only once", fmt.Sprint(it.BookID))
		}
		seen[it.BookID] = true
		items = append(items, domain.BorrowRequestItem{BookID: it.BookID, Quantity: it.Quantity})
	}

	if _, err := requireReader(ctx, s.store.Users(), in.UserID); err != nil {
		return nil, err
	}

	var missing []string
	for _, it := range items {
		_, err := s.store.Books().GetByID(ctx, it.BookID)
		if errors.Is(err, domain.ErrNotFound) {
			missing = append(missing, fmt.Sprint(it.BookID))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load book %d: %w", it.BookID, err)
		}
	}
	if len(missing) > 0 {
		return nil, domain.NewNotFoundError("books not found", missing...)
	}

	return &domain.BorrowRequest{
		UserID:    in.UserID,
		StartDate: start,
		EndDate:   end,
		Status:    domain.BorrowRequestStatusPending,
		Items:     items,
	}, nil
}

// RejectBorrowRequest is the staff action PENDING -> REJECTED. The queue of
// every book the request wanted is re-run since its head may have changed.
func (s *borrowRequestService) RejectBorrowRequest(ctx context.Context, requestID int64) (*domain.BorrowRequest, error) {
	logger.EnterMethod("borrowRequestService.RejectBorrowRequest", "requestID", requestID)

	var (
		rejected *domain.BorrowRequest
		notes    []domain.Notification
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		req, err := tx.BorrowRequests().GetByID(ctx, requestID)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewNotFoundError("borrow request not found", fmt.Sprint(requestID))
		}
		if err != nil {
			return fmt.Errorf("failed to load borrow request %d: %w", requestID, err)
		}
		if req.Status.IsTerminal() {
			return domain.NewValidationError("borrow request is already closed", string(req.Status))
		}
		if req.Status != domain.BorrowRequestStatusPending {
			return domain.NewValidationError("only pending borrow requests can be rejected", string(req.Status))
		}

		books := bookIDsOf(req.Items)
		if err := tx.Books().LockForAllocation(ctx, books); err != nil {
			return fmt.Errorf("failed to lock books of request %d: %w", requestID, err)
		}
		ok, err := tx.BorrowRequests().TransitionStatus(ctx, requestID, domain.BorrowRequestStatusPending, domain.BorrowRequestStatusRejected)
		if err != nil {
			return fmt.Errorf("failed to reject borrow request %d: %w", requestID, err)
		}
		if !ok {
			return domain.NewConflictError("borrow request changed while being rejected", fmt.Sprint(requestID))
		}

		results, err := allocateEach(ctx, tx, s.allocator, books)
		if err != nil {
			return err
		}
		notes, err = approvedRequests(ctx, tx, results)
		if err != nil {
			return err
		}

		rejected, err = tx.BorrowRequests().GetByID(ctx, requestID)
		return err
	})
	if err != nil {
		logger.ExitMethodWithError("borrowRequestService.RejectBorrowRequest", err, "requestID", requestID)
		return nil, err
	}

	notes = append(notes, domain.Notification{
		UserID:     rejected.UserID,
		Title:      "Borrow request rejected",
		Message:    fmt.Sprintf("Your borrow request #%d was rejected by library staff.", rejected.ID),
		Type:       domain.NotificationTypeRequestRejected,
		Attributes: map[string]string{"request_id": fmt.Sprint(rejected.ID)},
	})
	notifyAll(ctx, s.notifier, notes)

	logger.ExitMethod("borrowRequestService.RejectBorrowRequest", "requestID", requestID)
	return rejected, nil
}

func (s *borrowRequestService) GetBorrowRequest(ctx context.Context, requestID int64) (*domain.BorrowRequest, error) {
	req, err := s.store.BorrowRequests().GetByID(ctx, requestID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NewNotFoundError("borrow request not found", fmt.Sprint(requestID))
	}
	return req, err
}

// GetHoldQueue reports the pending requests for a book in the order the
// allocator will consider them.
func (s *borrowRequestService) GetHoldQueue(ctx context.Context, bookID int64) (*domain.HoldQueue, error) {
	if _, err := s.store.Books().GetByID(ctx, bookID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFoundError("book not found", fmt.Sprint(bookID))
		}
		return nil, err
	}

	available, err := s.store.BookItems().CountAvailable(ctx, bookID)
	if err != nil {
		return nil, err
	}
	promised, err := s.store.BorrowRequests().ApprovedQuantity(ctx, bookID)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.BorrowRequests().PendingQueue(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.HoldQueueEntry{}
	}

	return &domain.HoldQueue{
		BookID:           bookID,
		AvailableCopies:  available,
		ApprovedQuantity: promised,
		Entries:          entries,
	}, nil
}

func bookIDsOf(items []domain.BorrowRequestItem) []int64 {
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.BookID)
	}
	return distinctSorted(ids)
}

// allocateEach runs the allocator once per book, in the order given.
func allocateEach(ctx context.Context, tx repository.Tx, allocator HoldQueueAllocator, bookIDs []int64) ([]domain.AllocationResult, error) {
	results := make([]domain.AllocationResult, 0, len(bookIDs))
	for _, id := range bookIDs {
		r, err := allocator.ProcessHoldQueueForBook(ctx, tx, id)
		if err != nil {
			return nil, fmt.Errorf("hold queue allocation for book %d failed: %w", id, err)
		}
		results = append(results, r)
	}
	return results, nil
}
