package models

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/google/uuid"
)

// CriteriaType categorizes a policy criterion.
type CriteriaType string

const (
	CriteriaClinical       CriteriaType = "CLINICAL"
	CriteriaAdministrative CriteriaType = "ADMINISTRATIVE"
	CriteriaFormulary      CriteriaType = "FORMULARY"
)

// Evidence-vs-criterion thresholds. Evidence is recorded as matching a
// criterion only at or above the applicable threshold; a criterion whose
// best score falls below MatchThreshold is classified missing.
const (
	MatchThreshold             = 0.75
	MandatoryEvidenceThreshold = 0.85
)

// ValidationRuleType enumerates the supported named-rule shapes.
type ValidationRuleType string

const (
	RuleRegex      ValidationRuleType = "regex"
	RuleRange      ValidationRuleType = "range"
	RuleEnum       ValidationRuleType = "enum"
	RuleDependency ValidationRuleType = "dependency"
)

// ValidationRule is one named rule attached to a criterion.
type ValidationRule struct {
	Type  ValidationRuleType `json:"type"`
	Value Value              `json:"value"`
}

// ValidationRules maps rule names to rules.
type ValidationRules map[string]ValidationRule

// Value implements driver.Valuer for JSONB
func (v ValidationRules) Value() (driver.Value, error) {
	if v == nil {
		return json.Marshal(make(ValidationRules))
	}
	return json.Marshal(v)
}

// Scan implements sql.Scanner for JSONB
func (v *ValidationRules) Scan(value interface{}) error {
	if value == nil {
		*v = make(ValidationRules)
		return nil
	}

	var bytes []byte
	switch raw := value.(type) {
	case []byte:
		bytes = raw
	case string:
		bytes = []byte(raw)
	default:
		*v = make(ValidationRules)
		return nil
	}

	if len(bytes) == 0 {
		*v = make(ValidationRules)
		return nil
	}

	return json.Unmarshal(bytes, v)
}

// PolicyCriteria is one weighted, possibly-mandatory requirement from a
// payer's coverage policy. Immutable during evaluation.
type PolicyCriteria struct {
	ID              uuid.UUID       `json:"id"`
	CriteriaType    CriteriaType    `json:"criteria_type"`
	Description     string          `json:"description"`
	Requirements    Requirements    `json:"requirements"`
	Mandatory       bool            `json:"mandatory"`
	Weight          float64         `json:"weight"`
	ValidationRules ValidationRules `json:"validation_rules,omitempty"`
}

// EvidenceThreshold is the score evidence must reach against this
// criterion to be recorded in the evidence mapping.
func (c *PolicyCriteria) EvidenceThreshold() float64 {
	if c.Mandatory {
		return MandatoryEvidenceThreshold
	}
	return MatchThreshold
}

// Normalize clamps the weight into [0,1]. Out-of-range weights are
// clamped rather than rejected.
func (c *PolicyCriteria) Normalize() {
	if c.Weight < 0 {
		c.Weight = 0
	}
	if c.Weight > 1 {
		c.Weight = 1
	}
}

// Validate checks the criterion's invariants. Normalize is applied
// first, so weight range never fails validation.
func (c *PolicyCriteria) Validate() error {
	c.Normalize()

	switch c.CriteriaType {
	case CriteriaClinical, CriteriaAdministrative, CriteriaFormulary:
	default:
		return NewValidationError("criteria_type", "must be one of CLINICAL, ADMINISTRATIVE, FORMULARY")
	}

	if len(c.Description) == 0 || len(c.Description) > 1000 {
		return NewValidationError("description", "must be 1-1000 characters")
	}

	if len(c.Requirements) == 0 {
		return NewValidationError("requirements", "must not be empty")
	}

	for name, rule := range c.ValidationRules {
		switch rule.Type {
		case RuleRegex, RuleRange, RuleEnum, RuleDependency:
		default:
			return NewValidationError("validation_rules", "rule "+name+" has unknown type")
		}
		if rule.Value.Kind == KindNull {
			return NewValidationError("validation_rules", "rule "+name+" is missing a value")
		}
	}

	return nil
}
