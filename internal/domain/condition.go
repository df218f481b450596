package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// ConditionType selects the evaluation strategy for a guard condition.
type ConditionType string

const (
	ConditionField      ConditionType = "field"
	ConditionRole       ConditionType = "role"
	ConditionTime       ConditionType = "time"
	ConditionSLA        ConditionType = "sla"
	ConditionAssignment ConditionType = "assignment"
	ConditionCustom     ConditionType = "custom"
)

// ConditionOperator compares a resolved value against the expected value.
type ConditionOperator string

const (
	OperatorEquals         ConditionOperator = "equals"
	OperatorNotEquals      ConditionOperator = "not_equals"
	OperatorGreaterThan    ConditionOperator = "greater_than"
	OperatorLessThan       ConditionOperator = "less_than"
	OperatorGreaterOrEqual ConditionOperator = "greater_or_equal"
	OperatorLessOrEqual    ConditionOperator = "less_or_equal"
	OperatorContains       ConditionOperator = "contains"
	OperatorNotContains    ConditionOperator = "not_contains"
	OperatorStartsWith     ConditionOperator = "starts_with"
	OperatorEndsWith       ConditionOperator = "ends_with"
	OperatorIsEmpty        ConditionOperator = "is_empty"
	OperatorIsNotEmpty     ConditionOperator = "is_not_empty"
	OperatorIn             ConditionOperator = "in"
	OperatorNotIn          ConditionOperator = "not_in"
	OperatorRegex          ConditionOperator = "regex"
)

var operatorsByConditionType = map[ConditionType][]ConditionOperator{
	ConditionField: {
		OperatorEquals, OperatorNotEquals, OperatorGreaterThan, OperatorLessThan,
		OperatorGreaterOrEqual, OperatorLessOrEqual, OperatorContains, OperatorNotContains,
		OperatorStartsWith, OperatorEndsWith, OperatorIsEmpty, OperatorIsNotEmpty,
		OperatorIn, OperatorNotIn, OperatorRegex,
	},
	ConditionRole:       {OperatorEquals, OperatorIn, OperatorNotIn},
	ConditionTime:       {OperatorGreaterThan, OperatorLessThan},
	ConditionSLA:        {OperatorEquals, OperatorGreaterThan, OperatorLessThan},
	ConditionAssignment: {OperatorIsEmpty, OperatorIsNotEmpty, OperatorEquals},
	ConditionCustom:     {},
}

// Condition is a single guard predicate attached to a transition. Conditions
// sharing a Group are ORed; distinct groups are ANDed.
type Condition struct {
	ID            string            `json:"id"`
	TransitionID  string            `json:"transition_id"`
	Type          ConditionType     `json:"condition_type"`
	FieldName     string            `json:"field_name,omitempty"`
	Operator      ConditionOperator `json:"operator"`
	ExpectedValue string            `json:"expected_value"`
	Group         int               `json:"condition_group"`
	IsActive      bool              `json:"is_active"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Validate checks the condition at definition-write time so malformed
// definitions are rejected before they can reach the evaluator.
func (c *Condition) Validate() error {
	allowed, ok := operatorsByConditionType[c.Type]
	if !ok {
		return fmt.Errorf("unknown condition type %q", c.Type)
	}
	if c.Group <= 0 {
		return fmt.Errorf("condition_group must be positive, got %d", c.Group)
	}
	if c.Type == ConditionCustom {
		if c.ExpectedValue == "" {
			return fmt.Errorf("custom condition requires script source in expected_value")
		}
		return nil
	}
	operatorOK := false
	for _, op := range allowed {
		if op == c.Operator {
			operatorOK = true
			break
		}
	}
	if !operatorOK {
		return fmt.Errorf("operator %q not valid for condition type %q", c.Operator, c.Type)
	}
	if c.Type == ConditionField && c.FieldName == "" {
		return fmt.Errorf("field condition requires field_name")
	}
	switch c.Operator {
	case OperatorIn, OperatorNotIn:
		if _, err := ParseExpectedList(c.ExpectedValue); err != nil {
			return fmt.Errorf("expected_value for %s must be a JSON array: %w", c.Operator, err)
		}
	case OperatorRegex:
		if _, err := regexp.Compile(c.ExpectedValue); err != nil {
			return fmt.Errorf("expected_value is not a valid regex: %w", err)
		}
	case OperatorGreaterThan, OperatorLessThan, OperatorGreaterOrEqual, OperatorLessOrEqual:
		if c.Type == ConditionTime || c.Type == ConditionSLA {
			if _, err := strconv.ParseFloat(c.ExpectedValue, 64); err != nil {
				return fmt.Errorf("expected_value must be numeric for %s: %w", c.Operator, err)
			}
		}
	}
	return nil
}

// ParseExpectedList decodes the JSON-array encoding used by the in/not_in
// operators. Elements are stringified for comparison.
func ParseExpectedList(raw string) ([]string, error) {
	var values []any
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, err
	}
	result := make([]string, 0, len(values))
	for _, v := range values {
		switch typed := v.(type) {
		case string:
			result = append(result, typed)
		case float64:
			result = append(result, strconv.FormatFloat(typed, 'f', -1, 64))
		case bool:
			result = append(result, strconv.FormatBool(typed))
		default:
			return nil, fmt.Errorf("unsupported element type %T", v)
		}
	}
	return result, nil
}
