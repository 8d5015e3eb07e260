package postgres

import (
	"context"
	"fmt"
	"time"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/logger"
	"library-circulation-backend/internal/repository"
	"library-circulation-backend/internal/utils"
)

type borrowRequestRepository struct {
	db DBTX
}

func NewBorrowRequestRepository(db DBTX) repository.BorrowRequestRepository {
	return &borrowRequestRepository{db: db}
}

func (r *borrowRequestRepository) Create(ctx context.Context, req *domain.BorrowRequest) error {
	logger.EnterMethod("borrowRequestRepository.Create", "userID", req.UserID, "items", len(req.Items))

	now := time.Now()
	query := `INSERT INTO borrow_requests (user_id, start_date, end_date, status, created_at, updated_at)
	          VALUES ($1, $2::date, $3::date, $4, $5, $6) RETURNING id`
	logger.DatabaseCall("INSERT", "borrow_requests", "userID", req.UserID)
	err := r.db.QueryRowContext(ctx, query, req.UserID, utils.FormatDate(req.StartDate), utils.FormatDate(req.EndDate), req.Status, now, now).Scan(&req.ID)
	logger.DatabaseResult("INSERT", 1, err, "requestID", req.ID)
	if err != nil {
		logger.ExitMethodWithError("borrowRequestRepository.Create", err)
		return err
	}
	req.CreatedAt = now
	req.UpdatedAt = now

	itemQuery := `INSERT INTO borrow_request_items (request_id, book_id, quantity, created_at)
	              VALUES ($1, $2, $3, $4) RETURNING id`
	for i := range req.Items {
		it := &req.Items[i]
		it.RequestID = req.ID
		it.CreatedAt = now
		if err := r.db.QueryRowContext(ctx, itemQuery, req.ID, it.BookID, it.Quantity, now).Scan(&it.ID); err != nil {
			if isUniqueViolation(err) {
				err = domain.NewValidationError("duplicate book in request", fmt.Sprint(it.BookID))
			}
			logger.ExitMethodWithError("borrowRequestRepository.Create", err, "bookID", it.BookID)
			return err
		}
	}

	logger.ExitMethod("borrowRequestRepository.Create", "requestID", req.ID)
	return nil
}

func (r *borrowRequestRepository) GetByID(ctx context.Context, id int64) (*domain.BorrowRequest, error) {
	req := &domain.BorrowRequest{}
	query := `SELECT id, user_id, start_date, end_date, status, created_at, updated_at FROM borrow_requests WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&req.ID, &req.UserID, &req.StartDate, &req.EndDate, &req.Status, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}

	itemQuery := `SELECT id, request_id, book_id, quantity, created_at FROM borrow_request_items WHERE request_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, itemQuery, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var it domain.BorrowRequestItem
		if err := rows.Scan(&it.ID, &it.RequestID, &it.BookID, &it.Quantity, &it.CreatedAt); err != nil {
			return nil, err
		}
		req.Items = append(req.Items, it)
	}
	return req, rows.Err()
}

func (r *borrowRequestRepository) TransitionStatus(ctx context.Context, id int64, from, to domain.BorrowRequestStatus) (bool, error) {
	query := `UPDATE borrow_requests SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	logger.DatabaseCall("UPDATE", "borrow_requests", "requestID", id, "from", from, "to", to)
	result, err := r.db.ExecContext(ctx, query, to, time.Now(), id, from)
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err)
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	logger.DatabaseResult("UPDATE", n, nil)
	return n == 1, nil
}

// OldestPendingItem returns the head of the book's hold queue: the earliest
// item of a PENDING request, ties broken by item id.
func (r *borrowRequestRepository) OldestPendingItem(ctx context.Context, bookID int64) (*domain.BorrowRequestItem, error) {
	it := &domain.BorrowRequestItem{}
	query := `SELECT i.id, i.request_id, i.book_id, i.quantity, i.created_at
	          FROM borrow_request_items i JOIN borrow_requests r ON r.id = i.request_id
	          WHERE i.book_id = $1 AND r.status = $2
	          ORDER BY i.created_at ASC, i.id ASC LIMIT 1`
	err := r.db.QueryRowContext(ctx, query, bookID, domain.BorrowRequestStatusPending).Scan(&it.ID, &it.RequestID, &it.BookID, &it.Quantity, &it.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return it, nil
}

// ApprovedQuantity sums the copies already promised to APPROVED requests.
func (r *borrowRequestRepository) ApprovedQuantity(ctx context.Context, bookID int64) (int, error) {
	var n int
	query := `SELECT COALESCE(SUM(i.quantity), 0)
	          FROM borrow_request_items i JOIN borrow_requests r ON r.id = i.request_id
	          WHERE i.book_id = $1 AND r.status = $2`
	err := r.db.QueryRowContext(ctx, query, bookID, domain.BorrowRequestStatusApproved).Scan(&n)
	return n, err
}

func (r *borrowRequestRepository) PendingQueue(ctx context.Context, bookID int64) ([]domain.HoldQueueEntry, error) {
	query := `SELECT r.id, r.user_id, i.quantity, i.created_at
	          FROM borrow_request_items i JOIN borrow_requests r ON r.id = i.request_id
	          WHERE i.book_id = $1 AND r.status = $2
	          ORDER BY i.created_at ASC, i.id ASC`
	rows, err := r.db.QueryContext(ctx, query, bookID, domain.BorrowRequestStatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.HoldQueueEntry
	for rows.Next() {
		e := domain.HoldQueueEntry{Position: len(entries) + 1}
		if err := rows.Scan(&e.RequestID, &e.UserID, &e.Quantity, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
