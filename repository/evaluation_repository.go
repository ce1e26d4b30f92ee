package repository

import (
	"context"

	"priorauth-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EvaluationRepository handles database operations for match results
type EvaluationRepository struct {
	db *pgxpool.Pool
}

// NewEvaluationRepository creates a new evaluation repository
func NewEvaluationRepository(db *pgxpool.Pool) *EvaluationRepository {
	return &EvaluationRepository{db: db}
}

// Create persists a match result. The engine assigns the id and
// evaluated_at; the row stores them verbatim.
func (r *EvaluationRepository) Create(ctx context.Context, result *models.MatchResult) error {
	query := `
		INSERT INTO evaluations (
			id, request_id, overall_confidence, criteria_scores,
			evidence_mapping, missing_criteria, recommendation, evaluated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(
		ctx, query,
		result.ID,
		result.RequestID,
		result.OverallConfidence,
		result.CriteriaScores,
		result.EvidenceMapping,
		result.MissingCriteria,
		result.Recommendation,
		result.EvaluatedAt,
	)

	return err
}

// GetByID retrieves a match result by ID
func (r *EvaluationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.MatchResult, error) {
	result := &models.MatchResult{}
	query := `
		SELECT id, request_id, overall_confidence, criteria_scores,
			evidence_mapping, missing_criteria, recommendation, evaluated_at
		FROM evaluations
		WHERE id = $1`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&result.ID,
		&result.RequestID,
		&result.OverallConfidence,
		&result.CriteriaScores,
		&result.EvidenceMapping,
		&result.MissingCriteria,
		&result.Recommendation,
		&result.EvaluatedAt,
	)

	if err != nil {
		return nil, err
	}

	if result.MissingCriteria == nil {
		result.MissingCriteria = make([]uuid.UUID, 0)
	}

	return result, nil
}

// ListByRequestID retrieves all match results for a request, newest first
func (r *EvaluationRepository) ListByRequestID(ctx context.Context, requestID uuid.UUID) ([]*models.MatchResult, error) {
	query := `
		SELECT id, request_id, overall_confidence, criteria_scores,
			evidence_mapping, missing_criteria, recommendation, evaluated_at
		FROM evaluations
		WHERE request_id = $1
		ORDER BY evaluated_at DESC`

	rows, err := r.db.Query(ctx, query, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*models.MatchResult
	for rows.Next() {
		result := &models.MatchResult{}
		err := rows.Scan(
			&result.ID,
			&result.RequestID,
			&result.OverallConfidence,
			&result.CriteriaScores,
			&result.EvidenceMapping,
			&result.MissingCriteria,
			&result.Recommendation,
			&result.EvaluatedAt,
		)
		if err != nil {
			return nil, err
		}
		if result.MissingCriteria == nil {
			result.MissingCriteria = make([]uuid.UUID, 0)
		}
		results = append(results, result)
	}

	return results, rows.Err()
}
