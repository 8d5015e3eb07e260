package postgres

import (
	"context"
	"fmt"
	"time"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/logger"
	"library-circulation-backend/internal/repository"
)

type userRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) repository.UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	u := &domain.User{}
	query := `SELECT id, name, email, role, violation_points, created_on FROM users WHERE id = $1`
	var createdOn time.Time
	err := r.db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.ViolationPoints, &createdOn)
	if err != nil {
		return nil, notFound(err)
	}
	u.CreatedOn = createdOn.Format("2006-01-02")
	return u, nil
}

// AddViolationPoints increments in place so concurrent returns by the same
// reader never lose an update.
func (r *userRepository) AddViolationPoints(ctx context.Context, id int64, points int) error {
	query := `UPDATE users SET violation_points = violation_points + $1 WHERE id = $2`
	logger.DatabaseCall("UPDATE", "users", "userID", id, "points", points)
	result, err := r.db.ExecContext(ctx, query, points, id)
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err)
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	logger.DatabaseResult("UPDATE", n, nil)
	if n == 0 {
		return fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	return nil
}
