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

type ebookService struct {
	store       repository.Store
	notifier    Notifier
	metrics     *metrics.Metrics
	maxLoanDays int
}

func NewEbookService(store repository.Store, notifier Notifier, m *metrics.Metrics, maxLoanDays int) EbookService {
	return &ebookService{
		store:       store,
		notifier:    notifier,
		metrics:     m,
		maxLoanDays: maxLoanDays,
	}
}

// BorrowEbook lends the electronic edition right away. The request is
// written already FULFILLED so the loan still shows up in request history.
func (s *ebookService) BorrowEbook(ctx context.Context, in BorrowEbookInput) (*BorrowEbookResult, error) {
	logger.EnterMethod("ebookService.BorrowEbook", "userID", in.UserID, "bookID", in.BookID)

	start, end, err := parseLoanPeriod("startDate", in.StartDate, "endDate", in.EndDate, s.maxLoanDays)
	if err != nil {
		logger.ExitMethodWithError("ebookService.BorrowEbook", err, "userID", in.UserID)
		return nil, err
	}
	if _, err := requireReader(ctx, s.store.Users(), in.UserID); err != nil {
		logger.ExitMethodWithError("ebookService.BorrowEbook", err, "userID", in.UserID)
		return nil, err
	}
	ebook, err := s.lendableEbook(ctx, s.store, in.UserID, in.BookID)
	if err != nil {
		logger.ExitMethodWithError("ebookService.BorrowEbook", err, "userID", in.UserID, "bookID", in.BookID)
		return nil, err
	}

	var (
		req *domain.BorrowRequest
		rec *domain.BorrowRecord
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.Books().LockForAllocation(ctx, []int64{in.BookID}); err != nil {
			return fmt.Errorf("failed to lock book %d: %w", in.BookID, err)
		}
		// Two concurrent requests from the same reader serialize on the book lock.
		if _, err := s.lendableEbook(ctx, tx, in.UserID, in.BookID); err != nil {
			return err
		}

		record := &domain.BorrowRecord{
			UserID:     in.UserID,
			BorrowDate: start,
			ReturnDate: end,
			Status:     domain.BorrowRecordStatusBorrowed,
			Ebook:      &domain.BorrowEbook{EbookID: ebook.ID},
		}
		if err := tx.BorrowRecords().Create(ctx, record); err != nil {
			return fmt.Errorf("failed to create ebook borrow record: %w", err)
		}

		request := &domain.BorrowRequest{
			UserID:    in.UserID,
			StartDate: start,
			EndDate:   end,
			Status:    domain.BorrowRequestStatusFulfilled,
			Items:     []domain.BorrowRequestItem{{BookID: in.BookID, Quantity: 1}},
		}
		if err := tx.BorrowRequests().Create(ctx, request); err != nil {
			return fmt.Errorf("failed to create ebook borrow request: %w", err)
		}

		var err error
		if rec, err = tx.BorrowRecords().GetByID(ctx, record.ID); err != nil {
			return err
		}
		req, err = tx.BorrowRequests().GetByID(ctx, request.ID)
		return err
	})
	if err != nil {
		logger.ExitMethodWithError("ebookService.BorrowEbook", err, "userID", in.UserID, "bookID", in.BookID)
		return nil, err
	}

	s.metrics.ObserveLoan(metrics.LoanKindEbook)
	notifyAll(ctx, s.notifier, []domain.Notification{{
		UserID:  in.UserID,
		Title:   "Ebook borrowed",
		Message: fmt.Sprintf("Your ebook loan is active until %s.", utils.FormatDate(end)),
		Type:    domain.NotificationTypeEbookBorrowed,
		Attributes: map[string]string{
			"borrow_record_id": fmt.Sprint(rec.ID),
			"book_id":          fmt.Sprint(in.BookID),
		},
	}})

	logger.ExitMethod("ebookService.BorrowEbook", "recordID", rec.ID, "requestID", req.ID)
	return &BorrowEbookResult{BorrowRequest: req, BorrowRecord: rec, Message: "Ebook borrowed"}, nil
}

func (s *ebookService) lendableEbook(ctx context.Context, repos repository.Repositories, userID, bookID int64) (*domain.Ebook, error) {
	book, err := repos.Books().GetByID(ctx, bookID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NewNotFoundError("book not found", fmt.Sprint(bookID))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load book %d: %w", bookID, err)
	}
	if book.Ebook == nil {
		return nil, domain.NewNotFoundError("ebook edition not found", fmt.Sprint(bookID))
	}

	open, err := repos.BorrowRecords().HasOpenEbookLoan(ctx, userID, book.Ebook.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check ebook loans: %w", err)
	}
	if open {
		return nil, domain.NewValidationError("ebook is already borrowed by this user", fmt.Sprint(bookID))
	}
	return book.Ebook, nil
}
