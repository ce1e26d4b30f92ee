package repository

import (
	"context"

	"priorauth-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DocumentRepository handles database operations for evidence documents
type DocumentRepository struct {
	db *pgxpool.Pool
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create creates a new document record
func (r *DocumentRepository) Create(ctx context.Context, doc *models.EvidenceDocument) error {
	query := `
		INSERT INTO evidence_documents (
			evidence_id, filename, mime_type, size, storage_path
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.QueryRow(
		ctx, query,
		doc.EvidenceID,
		doc.Filename,
		doc.MimeType,
		doc.Size,
		doc.StoragePath,
	).Scan(&doc.ID, &doc.CreatedAt)

	return err
}

// GetByID retrieves a document by ID
func (r *DocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.EvidenceDocument, error) {
	doc := &models.EvidenceDocument{}
	query := `
		SELECT id, evidence_id, filename, mime_type, size, storage_path, created_at
		FROM evidence_documents
		WHERE id = $1`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&doc.ID,
		&doc.EvidenceID,
		&doc.Filename,
		&doc.MimeType,
		&doc.Size,
		&doc.StoragePath,
		&doc.CreatedAt,
	)

	if err != nil {
		return nil, err
	}

	return doc, nil
}

// ListByEvidenceID retrieves all documents attached to an evidence item
func (r *DocumentRepository) ListByEvidenceID(ctx context.Context, evidenceID uuid.UUID) ([]*models.EvidenceDocument, error) {
	query := `
		SELECT id, evidence_id, filename, mime_type, size, storage_path, created_at
		FROM evidence_documents
		WHERE evidence_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, evidenceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.EvidenceDocument
	for rows.Next() {
		doc := &models.EvidenceDocument{}
		err := rows.Scan(
			&doc.ID,
			&doc.EvidenceID,
			&doc.Filename,
			&doc.MimeType,
			&doc.Size,
			&doc.StoragePath,
			&doc.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

// Delete deletes a document record
func (r *DocumentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM evidence_documents WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id)
	return err
}
