package postgres

import (
	"context"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/repository"
)

type policyRepository struct {
	db DBTX
}

func NewPolicyRepository(db DBTX) repository.PolicyRepository {
	return &policyRepository{db: db}
}

func (r *policyRepository) GetByID(ctx context.Context, id string) (*domain.Policy, error) {
	p := &domain.Policy{}
	query := `SELECT id, name, description FROM policies WHERE id = $1`
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name, &p.Description); err != nil {
		return nil, notFound(err)
	}
	return p, nil
}
