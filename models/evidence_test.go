package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEvidence() ClinicalEvidence {
	return ClinicalEvidence{
		ID:           uuid.New(),
		SourceType:   SourceEMR,
		SourceID:     "epic-encounter-4417",
		ClinicalData: ClinicalData{"diagnosis": StringValue("E11.9")},
		RecordedAt:   time.Now().AddDate(0, 0, -30),
	}
}

func TestClinicalEvidenceValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		e := validEvidence()
		assert.NoError(t, e.Validate())
	})

	tests := []struct {
		name   string
		mutate func(*ClinicalEvidence)
		field  string
	}{
		{
			name:   "unknown source type",
			mutate: func(e *ClinicalEvidence) { e.SourceType = "FAX" },
			field:  "source_type",
		},
		{
			name:   "empty source id",
			mutate: func(e *ClinicalEvidence) { e.SourceID = "" },
			field:  "source_id",
		},
		{
			name: "source id too long",
			mutate: func(e *ClinicalEvidence) {
				for len(e.SourceID) <= 255 {
					e.SourceID += "x"
				}
			},
			field: "source_id",
		},
		{
			name:   "empty clinical data",
			mutate: func(e *ClinicalEvidence) { e.ClinicalData = ClinicalData{} },
			field:  "clinical_data",
		},
		{
			name:   "stale evidence",
			mutate: func(e *ClinicalEvidence) { e.RecordedAt = time.Now().AddDate(0, 0, -366) },
			field:  "recorded_at",
		},
		{
			name: "confidence above one",
			mutate: func(e *ClinicalEvidence) {
				cs := 1.2
				e.ConfidenceScore = &cs
			},
			field: "confidence_score",
		},
		{
			name: "pre-scored below floor",
			mutate: func(e *ClinicalEvidence) {
				cs := 0.5
				e.ConfidenceScore = &cs
			},
			field: "confidence_score",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validEvidence()
			tt.mutate(&e)

			err := e.Validate()
			require.Error(t, err)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	t.Run("exactly 365 days old is still valid", func(t *testing.T) {
		e := validEvidence()
		e.RecordedAt = time.Now().AddDate(0, 0, -365)
		assert.NoError(t, e.Validate())
	})

	t.Run("confidence at floor is valid", func(t *testing.T) {
		e := validEvidence()
		cs := 0.75
		e.ConfidenceScore = &cs
		assert.NoError(t, e.Validate())
	})
}

func TestAgeDays(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		recordedAt time.Time
		want       int
	}{
		{"today", now, 0},
		{"future dated", now.AddDate(0, 0, 7), 0},
		{"thirty days", now.AddDate(0, 0, -30), 30},
		{"partial day rounds down", now.Add(-36 * time.Hour), 1},
		{"boundary", now.AddDate(0, 0, -365), 365},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := ClinicalEvidence{RecordedAt: tt.recordedAt}
			assert.Equal(t, tt.want, e.AgeDays(now))
		})
	}
}
