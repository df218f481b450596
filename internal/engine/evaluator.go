package engine

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spec-kit/workflow-engine/internal/domain"
)

// Evaluator computes a transition's guard: conditions sharing a group are
// ORed, distinct groups are ANDed. It is stateless and reentrant.
type Evaluator struct {
	scripts       ScriptRunner
	scriptTimeout time.Duration
	now           func() time.Time
}

// NewEvaluator constructs an evaluator. scripts may be nil when custom
// conditions are not configured.
func NewEvaluator(scripts ScriptRunner, scriptTimeout time.Duration) *Evaluator {
	if scriptTimeout <= 0 {
		scriptTimeout = 5 * time.Second
	}
	return &Evaluator{scripts: scripts, scriptTimeout: scriptTimeout, now: time.Now}
}

// Evaluate runs the transition's guard against the ticket, acting user and
// caller context. A transition with zero active conditions is
// unconditionally allowed. A malformed condition fails only itself; the
// failure reason lands in the trace.
func (e *Evaluator) Evaluate(ctx context.Context, transition *domain.Transition, ticket *domain.Ticket, user *domain.User, callerCtx map[string]any) (bool, []domain.ConditionResult) {
	conditions := transition.ActiveConditions()
	if len(conditions) == 0 {
		return true, []domain.ConditionResult{}
	}

	groups := map[int][]domain.Condition{}
	for _, c := range conditions {
		groups[c.Group] = append(groups[c.Group], c)
	}
	groupIDs := make([]int, 0, len(groups))
	for id := range groups {
		groupIDs = append(groupIDs, id)
	}
	sort.Ints(groupIDs)

	trace := make([]domain.ConditionResult, 0, len(conditions))
	allowed := true
	for _, groupID := range groupIDs {
		groupPassed := false
		for _, c := range groups[groupID] {
			result, reason := e.evaluateCondition(ctx, c, ticket, user, callerCtx)
			trace = append(trace, domain.ConditionResult{
				ConditionID: c.ID,
				Group:       c.Group,
				Result:      result,
				Reason:      reason,
			})
			if result {
				groupPassed = true
			}
		}
		if !groupPassed {
			allowed = false
		}
	}
	return allowed, trace
}

func (e *Evaluator) evaluateCondition(ctx context.Context, c domain.Condition, ticket *domain.Ticket, user *domain.User, callerCtx map[string]any) (bool, string) {
	switch c.Type {
	case domain.ConditionField:
		return e.evaluateField(c, ticket)
	case domain.ConditionRole:
		return e.evaluateRole(c, user)
	case domain.ConditionTime:
		return e.evaluateTime(c, ticket)
	case domain.ConditionSLA:
		return e.evaluateSLA(c, ticket)
	case domain.ConditionAssignment:
		return e.evaluateAssignment(c, ticket)
	case domain.ConditionCustom:
		return e.evaluateCustom(ctx, c, ticket, user, callerCtx)
	}
	return false, fmt.Sprintf("unknown condition type %q", c.Type)
}

func (e *Evaluator) evaluateField(c domain.Condition, ticket *domain.Ticket) (bool, string) {
	value, known := ticket.FieldValue(c.FieldName)
	if !known {
		// treat unknown fields as empty rather than erroring out
		value = nil
	}
	return compare(value, c.Operator, c.ExpectedValue)
}

func (e *Evaluator) evaluateRole(c domain.Condition, user *domain.User) (bool, string) {
	role := ""
	if user != nil {
		role = user.Role
	}
	switch c.Operator {
	case domain.OperatorEquals:
		return role == c.ExpectedValue, ""
	case domain.OperatorIn, domain.OperatorNotIn:
		return membership(role, c.Operator, c.ExpectedValue)
	}
	return false, fmt.Sprintf("operator %q not valid for role condition", c.Operator)
}

func (e *Evaluator) evaluateTime(c domain.Condition, ticket *domain.Ticket) (bool, string) {
	threshold, err := strconv.ParseFloat(c.ExpectedValue, 64)
	if err != nil {
		return false, fmt.Sprintf("expected_value is not numeric: %v", err)
	}
	elapsed := e.now().Sub(ticket.ReferenceTime()).Minutes()
	switch c.Operator {
	case domain.OperatorGreaterThan:
		return elapsed > threshold, ""
	case domain.OperatorLessThan:
		return elapsed < threshold, ""
	}
	return false, fmt.Sprintf("operator %q not valid for time condition", c.Operator)
}

func (e *Evaluator) evaluateSLA(c domain.Condition, ticket *domain.Ticket) (bool, string) {
	if c.Operator == domain.OperatorEquals {
		expected, err := strconv.ParseBool(c.ExpectedValue)
		if err != nil {
			return false, fmt.Sprintf("expected_value is not a bool: %v", err)
		}
		return ticket.SLABreached == expected, ""
	}
	// numeric comparison against minutes remaining until SLA breach
	threshold, err := strconv.ParseFloat(c.ExpectedValue, 64)
	if err != nil {
		return false, fmt.Sprintf("expected_value is not numeric: %v", err)
	}
	if ticket.SLADueAt == nil {
		return false, "ticket has no SLA due time"
	}
	remaining := ticket.SLADueAt.Sub(e.now()).Minutes()
	switch c.Operator {
	case domain.OperatorGreaterThan:
		return remaining > threshold, ""
	case domain.OperatorLessThan:
		return remaining < threshold, ""
	}
	return false, fmt.Sprintf("operator %q not valid for sla condition", c.Operator)
}

func (e *Evaluator) evaluateAssignment(c domain.Condition, ticket *domain.Ticket) (bool, string) {
	switch c.Operator {
	case domain.OperatorIsEmpty:
		return ticket.AssigneeID == nil || *ticket.AssigneeID == "", ""
	case domain.OperatorIsNotEmpty:
		return ticket.AssigneeID != nil && *ticket.AssigneeID != "", ""
	case domain.OperatorEquals:
		return ticket.AssigneeID != nil && *ticket.AssigneeID == c.ExpectedValue, ""
	}
	return false, fmt.Sprintf("operator %q not valid for assignment condition", c.Operator)
}

func (e *Evaluator) evaluateCustom(ctx context.Context, c domain.Condition, ticket *domain.Ticket, user *domain.User, callerCtx map[string]any) (bool, string) {
	if e.scripts == nil {
		return false, "no script runner configured"
	}
	scope := NewTemplateScope(ticket, user, callerCtx)
	value, err := e.scripts.Run(ctx, c.ExpectedValue, scope.Bindings(), e.scriptTimeout)
	if err != nil {
		return false, fmt.Sprintf("script error: %v", err)
	}
	result, ok := value.(bool)
	if !ok {
		return false, fmt.Sprintf("script returned non-boolean %T", value)
	}
	return result, ""
}

// compare applies a field operator against the expected value. It returns a
// reason only when the comparison itself could not be performed.
func compare(value any, operator domain.ConditionOperator, expected string) (bool, string) {
	switch operator {
	case domain.OperatorIsEmpty:
		return isEmpty(value), ""
	case domain.OperatorIsNotEmpty:
		return !isEmpty(value), ""
	case domain.OperatorIn, domain.OperatorNotIn:
		return membership(domain.Stringify(value), operator, expected)
	case domain.OperatorRegex:
		pattern, err := regexp.Compile(expected)
		if err != nil {
			return false, fmt.Sprintf("invalid regex: %v", err)
		}
		return pattern.MatchString(domain.Stringify(value)), ""
	case domain.OperatorContains, domain.OperatorNotContains:
		found := containsValue(value, expected)
		if operator == domain.OperatorContains {
			return found, ""
		}
		return !found, ""
	case domain.OperatorStartsWith:
		return strings.HasPrefix(domain.Stringify(value), expected), ""
	case domain.OperatorEndsWith:
		return strings.HasSuffix(domain.Stringify(value), expected), ""
	case domain.OperatorGreaterThan, domain.OperatorLessThan, domain.OperatorGreaterOrEqual, domain.OperatorLessOrEqual:
		left, leftErr := toFloat(value)
		right, rightErr := strconv.ParseFloat(expected, 64)
		if leftErr != nil || rightErr != nil {
			return false, "values are not comparable as numbers"
		}
		switch operator {
		case domain.OperatorGreaterThan:
			return left > right, ""
		case domain.OperatorLessThan:
			return left < right, ""
		case domain.OperatorGreaterOrEqual:
			return left >= right, ""
		default:
			return left <= right, ""
		}
	case domain.OperatorEquals, domain.OperatorNotEquals:
		equal := equalValues(value, expected)
		if operator == domain.OperatorEquals {
			return equal, ""
		}
		return !equal, ""
	}
	return false, fmt.Sprintf("unknown operator %q", operator)
}

func equalValues(value any, expected string) bool {
	if left, err := toFloat(value); err == nil {
		if right, err := strconv.ParseFloat(expected, 64); err == nil {
			return left == right
		}
	}
	return domain.Stringify(value) == expected
}

func membership(value string, operator domain.ConditionOperator, expected string) (bool, string) {
	list, err := domain.ParseExpectedList(expected)
	if err != nil {
		return false, fmt.Sprintf("expected_value is not a JSON array: %v", err)
	}
	found := false
	for _, item := range list {
		if item == value {
			found = true
			break
		}
	}
	if operator == domain.OperatorIn {
		return found, ""
	}
	return !found, ""
}

func containsValue(value any, expected string) bool {
	switch typed := value.(type) {
	case []string:
		for _, item := range typed {
			if item == expected {
				return true
			}
		}
		return false
	case []any:
		for _, item := range typed {
			if domain.Stringify(item) == expected {
				return true
			}
		}
		return false
	default:
		return strings.Contains(domain.Stringify(value), expected)
	}
}

func isEmpty(value any) bool {
	switch typed := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(typed) == ""
	case []string:
		return len(typed) == 0
	case []any:
		return len(typed) == 0
	case map[string]any:
		return len(typed) == 0
	default:
		return false
	}
}

func toFloat(value any) (float64, error) {
	switch typed := value.(type) {
	case int:
		return float64(typed), nil
	case int32:
		return float64(typed), nil
	case int64:
		return float64(typed), nil
	case float32:
		return float64(typed), nil
	case float64:
		return typed, nil
	case string:
		return strconv.ParseFloat(typed, 64)
	default:
		return 0, fmt.Errorf("not a number: %T", value)
	}
}
