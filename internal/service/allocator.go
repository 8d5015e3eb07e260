package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/logger"
	"library-circulation-backend/internal/metrics"
	"library-circulation-backend/internal/repository"
)

type holdQueueAllocator struct {
	metrics *metrics.Metrics
}

func NewHoldQueueAllocator(m *metrics.Metrics) HoldQueueAllocator {
	return &holdQueueAllocator{metrics: m}
}

// ProcessHoldQueueForBook considers only the head of bookID's queue. A
// request wanting several books is approved only when every one of them has
// capacity net of other approvals; otherwise nothing is written.
func (a *holdQueueAllocator) ProcessHoldQueueForBook(ctx context.Context, tx repository.Tx, bookID int64) (domain.AllocationResult, error) {
	logger.EnterMethod("holdQueueAllocator.ProcessHoldQueueForBook", "bookID", bookID)

	result, err := a.process(ctx, tx, bookID)
	if err != nil {
		logger.ExitMethodWithError("holdQueueAllocator.ProcessHoldQueueForBook", err, "bookID", bookID)
		return domain.AllocationResult{}, err
	}

	a.metrics.ObserveAllocation(result)
	logger.ExitMethod("holdQueueAllocator.ProcessHoldQueueForBook", "bookID", bookID, "outcome", result.Outcome, "requestID", result.RequestID)
	return result, nil
}

func (a *holdQueueAllocator) process(ctx context.Context, tx repository.Tx, bookID int64) (domain.AllocationResult, error) {
	req, books, err := a.lockQueueHead(ctx, tx, bookID)
	if err != nil {
		return domain.AllocationResult{}, err
	}
	if req == nil {
		return domain.NoEligibleRequest(), nil
	}
	wanted := req.QuantityByBook()

	for _, id := range books {
		available, err := tx.BookItems().CountAvailable(ctx, id)
		if err != nil {
			return domain.AllocationResult{}, fmt.Errorf("failed to count available copies of book %d: %w", id, err)
		}
		promised, err := tx.BorrowRequests().ApprovedQuantity(ctx, id)
		if err != nil {
			return domain.AllocationResult{}, fmt.Errorf("failed to sum approved quantity of book %d: %w", id, err)
		}
		if available-promised < wanted[id] {
			logger.Debug("Insufficient capacity for queue head",
				"requestID", req.ID, "bookID", id, "available", available, "promised", promised, "wanted", wanted[id])
			return domain.InsufficientCapacity(req.ID, id), nil
		}
	}

	ok, err := tx.BorrowRequests().TransitionStatus(ctx, req.ID, domain.BorrowRequestStatusPending, domain.BorrowRequestStatusApproved)
	if err != nil {
		return domain.AllocationResult{}, fmt.Errorf("failed to approve request %d: %w", req.ID, err)
	}
	if !ok {
		return domain.AllocationResult{}, domain.NewConflictError("borrow request changed while being approved", fmt.Sprint(req.ID))
	}
	return domain.Approved(req.ID), nil
}

// lockQueueHead locks bookID together with every book the head of its queue
// wants, as one ascending batch. The head is read before locking and again
// after, so a head that changed in between has its books locked too. req is
// nil when nothing is pending for bookID.
func (a *holdQueueAllocator) lockQueueHead(ctx context.Context, tx repository.Tx, bookID int64) (*domain.BorrowRequest, []int64, error) {
	locked := make(map[int64]bool)
	for {
		var req *domain.BorrowRequest
		books := []int64{bookID}

		head, err := tx.BorrowRequests().OldestPendingItem(ctx, bookID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
		case err != nil:
			return nil, nil, fmt.Errorf("failed to find queue head for book %d: %w", bookID, err)
		default:
			req, err = tx.BorrowRequests().GetByID(ctx, head.RequestID)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to load request %d: %w", head.RequestID, err)
			}
			for id := range req.QuantityByBook() {
				books = append(books, id)
			}
		}
		books = distinctSorted(books)

		missing := false
		for _, id := range books {
			if !locked[id] {
				missing = true
				break
			}
		}
		if !missing {
			if req == nil {
				return nil, nil, nil
			}
			return req, slices.Sorted(maps.Keys(req.QuantityByBook())), nil
		}

		// Siblings must be stable too, or a concurrent pass for one of them
		// could promise the same copies.
		if err := tx.Books().LockForAllocation(ctx, books); err != nil {
			return nil, nil, fmt.Errorf("failed to lock books %v: %w", books, err)
		}
		for _, id := range books {
			locked[id] = true
		}
	}
}
