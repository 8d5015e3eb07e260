package postgres

import (
	"context"
	"time"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/logger"
	"library-circulation-backend/internal/repository"
)

type paymentRepository struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) repository.PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	query := `INSERT INTO payments (reference, user_id, borrow_record_id, book_item_id, policy_id, amount, due_date, is_paid, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`
	p.CreatedAt = time.Now()
	logger.DatabaseCall("INSERT", "payments", "reference", p.Reference, "policyID", p.PolicyID)
	err := r.db.QueryRowContext(ctx, query, p.Reference, p.UserID, p.BorrowRecordID, p.BookItemID, p.PolicyID, p.Amount, p.DueDate, p.IsPaid, p.CreatedAt).Scan(&p.ID)
	logger.DatabaseResult("INSERT", 1, err, "paymentID", p.ID)
	return err
}

func (r *paymentRepository) ListByRecord(ctx context.Context, recordID int64) ([]domain.Payment, error) {
	query := `SELECT id, reference, user_id, borrow_record_id, book_item_id, policy_id, amount, due_date, is_paid, created_at
	          FROM payments WHERE borrow_record_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, recordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(&p.ID, &p.Reference, &p.UserID, &p.BorrowRecordID, &p.BookItemID, &p.PolicyID, &p.Amount, &p.DueDate, &p.IsPaid, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
