package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/logger"
	"library-circulation-backend/internal/metrics"
	"library-circulation-backend/internal/repository"
	"library-circulation-backend/internal/utils"
)

type returnService struct {
	store      repository.Store
	allocator  HoldQueueAllocator
	catalog    PolicyCatalog
	notifier   Notifier
	clock      Clock
	references ReferenceGenerator
	metrics    *metrics.Metrics
}

func NewReturnService(store repository.Store, allocator HoldQueueAllocator, catalog PolicyCatalog, notifier Notifier, clock Clock, references ReferenceGenerator, m *metrics.Metrics) ReturnService {
	return &returnService{
		store:      store,
		allocator:  allocator,
		catalog:    catalog,
		notifier:   notifier,
		clock:      clock,
		references: references,
		metrics:    m,
	}
}

// conditionForPolicy is used when staff record a violation without saying
// what condition the copy came back in.
var conditionForPolicy = map[string]domain.ItemCondition{
	domain.PolicyLostBook:    domain.ItemConditionLost,
	domain.PolicyDamagedBook: domain.ItemConditionDamaged,
	domain.PolicyWornBook:    domain.ItemConditionWorn,
}

// returnOutcome is everything a successful return transaction produced.
type returnOutcome struct {
	record     *domain.BorrowRecord
	payments   []domain.Payment
	violations []domain.Violation
	processed  []domain.ProcessedBook
	points     int
	notes      []domain.Notification
}

func (s *returnService) ReturnBorrowRecord(ctx context.Context, recordID int64, in ReturnInput) (*ReturnResult, error) {
	logger.EnterMethod("returnService.ReturnBorrowRecord", "recordID", recordID, "violations", len(in.Violations))

	violations, err := parseViolations(in.Violations)
	if err != nil {
		logger.ExitMethodWithError("returnService.ReturnBorrowRecord", err, "recordID", recordID)
		return nil, err
	}
	for itemID, cond := range in.ConditionUpdates {
		if !cond.Valid() {
			err := domain.NewValidationError("unknown book condition", fmt.Sprint(itemID), string(cond))
			logger.ExitMethodWithError("returnService.ReturnBorrowRecord", err, "recordID", recordID)
			return nil, err
		}
	}

	var out *returnOutcome
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		out, err = s.process(ctx, tx, recordID, violations, in.ConditionUpdates)
		return err
	})
	if err != nil {
		logger.ExitMethodWithError("returnService.ReturnBorrowRecord", err, "recordID", recordID)
		return nil, err
	}

	s.metrics.ObserveReturn(out.violations)
	notifyAll(ctx, s.notifier, s.returnNotifications(out))
	notifyAll(ctx, s.notifier, out.notes)

	logger.InfoContext(ctx, "Borrow record returned",
		"recordID", recordID, "payments", len(out.payments), "points", out.points)
	logger.ExitMethod("returnService.ReturnBorrowRecord", "recordID", recordID)
	return &ReturnResult{
		BorrowRecord:   out.record,
		ProcessedBooks: out.processed,
		Payments:       out.payments,
		Message:        "Borrow record returned",
	}, nil
}

func parseViolations(in []ViolationInput) ([]domain.Violation, error) {
	out := make([]domain.Violation, 0, len(in))
	seen := make(map[int64]bool, len(in))
	for _, v := range in {
		if v.PolicyID == "" {
			return nil, domain.NewValidationError("violation policy is required", fmt.Sprint(v.BookItemID))
		}
		if v.Amount < 0 {
			return nil, domain.NewValidationError("violation amount must not be negative", fmt.Sprint(v.BookItemID))
		}
		if seen[v.BookItemID] {
			return nil, domain.NewValidationError("only one violation per book item", fmt.Sprint(v.BookItemID))
		}
		seen[v.BookItemID] = true
		due, err := utils.ParseDate(v.DueDate)
		if err != nil {
			return nil, domain.NewValidationError("dueDate must be a date in YYYY-MM-DD format", v.DueDate)
		}
		out = append(out, domain.Violation{
			BookItemID: v.BookItemID,
			PolicyID:   v.PolicyID,
			Amount:     v.Amount,
			DueDate:    utils.EndOfDay(due),
		})
	}
	return out, nil
}

func (s *returnService) process(ctx context.Context, tx repository.Tx, recordID int64, violations []domain.Violation, conditions map[int64]domain.ItemCondition) (*returnOutcome, error) {
	rec, err := tx.BorrowRecords().GetForUpdate(ctx, recordID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NewNotFoundError("borrow record not found", fmt.Sprint(recordID))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock borrow record %d: %w", recordID, err)
	}
	if !rec.IsOpen() {
		return nil, domain.NewValidationError("borrow record already returned", fmt.Sprint(recordID))
	}

	itemIDs := make([]int64, 0, len(rec.Books))
	for _, b := range rec.Books {
		itemIDs = append(itemIDs, b.BookItemID)
	}
	var foreign []string
	for _, v := range violations {
		if !slices.Contains(itemIDs, v.BookItemID) {
			foreign = append(foreign, fmt.Sprint(v.BookItemID))
		}
	}
	for itemID := range conditions {
		if !slices.Contains(itemIDs, itemID) {
			foreign = append(foreign, fmt.Sprint(itemID))
		}
	}
	if len(foreign) > 0 {
		slices.Sort(foreign)
		return nil, domain.NewValidationError("book items do not belong to this borrow record", slices.Compact(foreign)...)
	}

	items, err := tx.BookItems().GetByIDs(ctx, itemIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load book items of record %d: %w", recordID, err)
	}
	bookOf := make(map[int64]int64, len(items))
	books := make([]int64, 0, len(items))
	for _, it := range items {
		bookOf[it.ID] = it.BookID
		books = append(books, it.BookID)
	}
	books = distinctSorted(books)
	if err := tx.Books().LockForAllocation(ctx, books); err != nil {
		return nil, fmt.Errorf("failed to lock books of record %d: %w", recordID, err)
	}

	out := &returnOutcome{payments: []domain.Payment{}, violations: violations}
	violated := make(map[int64]bool, len(violations))
	for _, v := range violations {
		if _, err := tx.Policies().GetByID(ctx, v.PolicyID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, domain.NewNotFoundError("violation policy not found", v.PolicyID)
			}
			return nil, fmt.Errorf("failed to load policy %s: %w", v.PolicyID, err)
		}
		meta, ok := s.catalog.ViolationPolicyMetadata(v.PolicyID)
		if !ok {
			return nil, domain.NewValidationError("unknown violation policy", v.PolicyID)
		}

		payment := domain.Payment{
			Reference:      s.references.NewReference(),
			UserID:         rec.UserID,
			BorrowRecordID: rec.ID,
			BookItemID:     v.BookItemID,
			PolicyID:       v.PolicyID,
			Amount:         v.Amount,
			DueDate:        v.DueDate,
		}
		if err := tx.Payments().Create(ctx, &payment); err != nil {
			return nil, fmt.Errorf("failed to create payment for book item %d: %w", v.BookItemID, err)
		}
		out.payments = append(out.payments, payment)
		out.points += meta.Points

		cond, ok := conditions[v.BookItemID]
		if !ok {
			cond, ok = conditionForPolicy[v.PolicyID]
		}
		if ok {
			err = tx.BookItems().UpdateConditionAndStatus(ctx, v.BookItemID, cond, cond.StatusAfterReturn())
		} else {
			err = tx.BookItems().UpdateStatus(ctx, v.BookItemID, domain.ItemStatusAvailable)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to update book item %d: %w", v.BookItemID, err)
		}
		violated[v.BookItemID] = true
	}

	if out.points > 0 {
		if err := tx.Users().AddViolationPoints(ctx, rec.UserID, out.points); err != nil {
			return nil, fmt.Errorf("failed to add violation points to user %d: %w", rec.UserID, err)
		}
	}

	for itemID, cond := range conditions {
		if violated[itemID] {
			continue
		}
		if err := tx.BookItems().UpdateCondition(ctx, itemID, cond); err != nil {
			return nil, fmt.Errorf("failed to update condition of book item %d: %w", itemID, err)
		}
	}

	if err := tx.BorrowRecords().MarkReturned(ctx, rec.ID, utils.StartOfDay(s.clock.Now())); err != nil {
		return nil, fmt.Errorf("failed to mark borrow record %d returned: %w", rec.ID, err)
	}

	for _, id := range itemIDs {
		if violated[id] {
			continue
		}
		if err := tx.BookItems().UpdateStatus(ctx, id, domain.ItemStatusAvailable); err != nil {
			return nil, fmt.Errorf("failed to release book item %d: %w", id, err)
		}
	}

	out.processed = make([]domain.ProcessedBook, 0, len(books))
	for _, bookID := range books {
		result, err := s.allocator.ProcessHoldQueueForBook(ctx, tx, bookID)
		if err != nil {
			return nil, fmt.Errorf("hold queue allocation for book %d failed: %w", bookID, err)
		}
		pb := domain.ProcessedBook{BookID: bookID, ApprovedRequests: []int64{}}
		if result.IsApproved() {
			pb.ApprovedRequests = append(pb.ApprovedRequests, result.RequestID)
			notes, err := approvedRequests(ctx, tx, []domain.AllocationResult{result})
			if err != nil {
				return nil, err
			}
			out.notes = append(out.notes, notes...)
		}
		out.processed = append(out.processed, pb)
	}

	out.record, err = tx.BorrowRecords().GetByID(ctx, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload borrow record %d: %w", rec.ID, err)
	}
	return out, nil
}

func (s *returnService) returnNotifications(out *returnOutcome) []domain.Notification {
	rec := out.record
	notes := []domain.Notification{{
		UserID:  rec.UserID,
		Title:   "Books returned",
		Message: fmt.Sprintf("Borrow record #%d has been returned. Thank you!", rec.ID),
		Type:    domain.NotificationTypeBookReturned,
		Attributes: map[string]string{
			"borrow_record_id": fmt.Sprint(rec.ID),
		},
	}}
	if len(out.payments) == 0 {
		return notes
	}

	var total int64
	for _, p := range out.payments {
		total += p.Amount
	}
	return append(notes, domain.Notification{
		UserID: rec.UserID,
		Title:  "Violation recorded",
		Message: fmt.Sprintf("%d violation(s) were recorded on borrow record #%d. Amount due: %d. Violation points added: %d.",
			len(out.payments), rec.ID, total, out.points),
		Type: domain.NotificationTypeViolation,
		Attributes: map[string]string{
			"borrow_record_id": fmt.Sprint(rec.ID),
			"points":           fmt.Sprint(out.points),
		},
	})
}
