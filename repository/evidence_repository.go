package repository

import (
	"context"

	"priorauth-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EvidenceRepository handles database operations for clinical evidence
type EvidenceRepository struct {
	db *pgxpool.Pool
}

// NewEvidenceRepository creates a new evidence repository
func NewEvidenceRepository(db *pgxpool.Pool) *EvidenceRepository {
	return &EvidenceRepository{db: db}
}

// Create creates a new evidence record
func (r *EvidenceRepository) Create(ctx context.Context, evidence *models.ClinicalEvidence) error {
	query := `
		INSERT INTO clinical_evidence (
			source_type, source_id, clinical_data, recorded_at, confidence_score, metadata
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := r.db.QueryRow(
		ctx, query,
		evidence.SourceType,
		evidence.SourceID,
		evidence.ClinicalData,
		evidence.RecordedAt,
		evidence.ConfidenceScore,
		evidence.Metadata,
	).Scan(&evidence.ID, &evidence.CreatedAt)

	return err
}

// GetByID retrieves an evidence record by ID
func (r *EvidenceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ClinicalEvidence, error) {
	evidence := &models.ClinicalEvidence{}
	query := `
		SELECT id, source_type, source_id, clinical_data, recorded_at,
			confidence_score, metadata, created_at
		FROM clinical_evidence
		WHERE id = $1`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&evidence.ID,
		&evidence.SourceType,
		&evidence.SourceID,
		&evidence.ClinicalData,
		&evidence.RecordedAt,
		&evidence.ConfidenceScore,
		&evidence.Metadata,
		&evidence.CreatedAt,
	)

	if err != nil {
		return nil, err
	}

	if evidence.Metadata == nil {
		evidence.Metadata = make(models.Metadata)
	}

	return evidence, nil
}

// ListByIDs retrieves evidence records in the order of the given ids
func (r *EvidenceRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.ClinicalEvidence, error) {
	items := make([]*models.ClinicalEvidence, 0, len(ids))
	for _, id := range ids {
		evidence, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		items = append(items, evidence)
	}
	return items, nil
}

// ListBySourceType retrieves evidence records of one source type, newest first
func (r *EvidenceRepository) ListBySourceType(ctx context.Context, sourceType models.EvidenceSourceType, limit int) ([]*models.ClinicalEvidence, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, source_type, source_id, clinical_data, recorded_at,
			confidence_score, metadata, created_at
		FROM clinical_evidence
		WHERE source_type = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, sourceType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.ClinicalEvidence
	for rows.Next() {
		evidence := &models.ClinicalEvidence{}
		err := rows.Scan(
			&evidence.ID,
			&evidence.SourceType,
			&evidence.SourceID,
			&evidence.ClinicalData,
			&evidence.RecordedAt,
			&evidence.ConfidenceScore,
			&evidence.Metadata,
			&evidence.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if evidence.Metadata == nil {
			evidence.Metadata = make(models.Metadata)
		}
		items = append(items, evidence)
	}

	return items, rows.Err()
}

// Delete deletes an evidence record
func (r *EvidenceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM clinical_evidence WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id)
	return err
}
