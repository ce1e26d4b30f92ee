package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCriterion() PolicyCriteria {
	return PolicyCriteria{
		ID:           uuid.New(),
		CriteriaType: CriteriaClinical,
		Description:  "Documented diagnosis of type 2 diabetes",
		Requirements: Requirements{"diagnosis_code": StringValue("E11")},
		Mandatory:    true,
		Weight:       1.0,
	}
}

func TestPolicyCriteriaValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		c := validCriterion()
		assert.NoError(t, c.Validate())
	})

	tests := []struct {
		name   string
		mutate func(*PolicyCriteria)
		field  string
	}{
		{
			name:   "unknown criteria type",
			mutate: func(c *PolicyCriteria) { c.CriteriaType = "BILLING" },
			field:  "criteria_type",
		},
		{
			name:   "empty description",
			mutate: func(c *PolicyCriteria) { c.Description = "" },
			field:  "description",
		},
		{
			name: "description too long",
			mutate: func(c *PolicyCriteria) {
				for len(c.Description) <= 1000 {
					c.Description += c.Description
				}
			},
			field: "description",
		},
		{
			name:   "empty requirements",
			mutate: func(c *PolicyCriteria) { c.Requirements = Requirements{} },
			field:  "requirements",
		},
		{
			name: "unknown rule type",
			mutate: func(c *PolicyCriteria) {
				c.ValidationRules = ValidationRules{
					"format": {Type: "shape", Value: StringValue("x")},
				}
			},
			field: "validation_rules",
		},
		{
			name: "rule without value",
			mutate: func(c *PolicyCriteria) {
				c.ValidationRules = ValidationRules{
					"format": {Type: RuleRegex},
				}
			},
			field: "validation_rules",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCriterion()
			tt.mutate(&c)

			err := c.Validate()
			require.Error(t, err)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	t.Run("well-formed rules pass", func(t *testing.T) {
		c := validCriterion()
		c.ValidationRules = ValidationRules{
			"code_format": {Type: RuleRegex, Value: StringValue(`^E11(\.\d+)?$`)},
			"hba1c_range": {Type: RuleRange, Value: SequenceValue(NumberValue(6.5), NumberValue(14))},
		}
		assert.NoError(t, c.Validate())
	})
}

func TestPolicyCriteriaNormalize(t *testing.T) {
	tests := []struct {
		name   string
		weight float64
		want   float64
	}{
		{"negative clamps to zero", -0.3, 0},
		{"above one clamps to one", 2.5, 1},
		{"in range untouched", 0.4, 0.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCriterion()
			c.Weight = tt.weight

			require.NoError(t, c.Validate())
			assert.Equal(t, tt.want, c.Weight)
		})
	}
}

func TestEvidenceThreshold(t *testing.T) {
	c := validCriterion()

	c.Mandatory = true
	assert.Equal(t, MandatoryEvidenceThreshold, c.EvidenceThreshold())

	c.Mandatory = false
	assert.Equal(t, MatchThreshold, c.EvidenceThreshold())
}
