package models

import (
	"time"

	"github.com/google/uuid"
)

// EvidenceDocument represents a stored source document backing a
// DOCUMENT-type evidence item
type EvidenceDocument struct {
	ID          uuid.UUID  `json:"id"`
	EvidenceID  *uuid.UUID `json:"evidence_id,omitempty"`
	Filename    string     `json:"filename"`
	MimeType    string     `json:"mime_type"`
	Size        int64      `json:"size"`
	StoragePath string     `json:"storage_path"`
	CreatedAt   time.Time  `json:"created_at"`
}
