package repository

import (
	"context"

	"priorauth-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PolicyRepository handles database operations for policy criteria
type PolicyRepository struct {
	db *pgxpool.Pool
}

// NewPolicyRepository creates a new policy repository
func NewPolicyRepository(db *pgxpool.Pool) *PolicyRepository {
	return &PolicyRepository{db: db}
}

// Create creates a new policy criterion record
func (r *PolicyRepository) Create(ctx context.Context, criterion *models.PolicyCriteria) error {
	query := `
		INSERT INTO policy_criteria (
			criteria_type, description, requirements, mandatory, weight, validation_rules
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := r.db.QueryRow(
		ctx, query,
		criterion.CriteriaType,
		criterion.Description,
		criterion.Requirements,
		criterion.Mandatory,
		criterion.Weight,
		criterion.ValidationRules,
	).Scan(&criterion.ID)

	return err
}

// GetByID retrieves a policy criterion by ID
func (r *PolicyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.PolicyCriteria, error) {
	criterion := &models.PolicyCriteria{}
	query := `
		SELECT id, criteria_type, description, requirements, mandatory, weight, validation_rules
		FROM policy_criteria
		WHERE id = $1`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&criterion.ID,
		&criterion.CriteriaType,
		&criterion.Description,
		&criterion.Requirements,
		&criterion.Mandatory,
		&criterion.Weight,
		&criterion.ValidationRules,
	)

	if err != nil {
		return nil, err
	}

	return criterion, nil
}

// ListByType retrieves policy criteria of one type
func (r *PolicyRepository) ListByType(ctx context.Context, criteriaType models.CriteriaType) ([]*models.PolicyCriteria, error) {
	query := `
		SELECT id, criteria_type, description, requirements, mandatory, weight, validation_rules
		FROM policy_criteria
		WHERE criteria_type = $1
		ORDER BY description`

	rows, err := r.db.Query(ctx, query, criteriaType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var criteria []*models.PolicyCriteria
	for rows.Next() {
		criterion := &models.PolicyCriteria{}
		err := rows.Scan(
			&criterion.ID,
			&criterion.CriteriaType,
			&criterion.Description,
			&criterion.Requirements,
			&criterion.Mandatory,
			&criterion.Weight,
			&criterion.ValidationRules,
		)
		if err != nil {
			return nil, err
		}
		criteria = append(criteria, criterion)
	}

	return criteria, rows.Err()
}

// Delete deletes a policy criterion record
func (r *PolicyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM policy_criteria WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id)
	return err
}
