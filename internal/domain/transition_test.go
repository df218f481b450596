package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActiveActionsOrdersByExecutionOrder(t *testing.T) {
	tr := Transition{Actions: []Action{
		{ID: "a-3", ExecutionOrder: 3, IsActive: true},
		{ID: "a-1", ExecutionOrder: 1, IsActive: true},
		{ID: "a-2", ExecutionOrder: 2, IsActive: false},
		{ID: "a-0", ExecutionOrder: 0, IsActive: true},
	}}

	active := tr.ActiveActions()
	require.Len(t, active, 3)
	assert.Equal(t, "a-0", active[0].ID)
	assert.Equal(t, "a-1", active[1].ID)
	assert.Equal(t, "a-3", active[2].ID)
}

func TestActiveActionsBreaksTiesByDeclarationOrder(t *testing.T) {
	tr := Transition{Actions: []Action{
		{ID: "a-first", ExecutionOrder: 5, IsActive: true},
		{ID: "a-second", ExecutionOrder: 5, IsActive: true},
		{ID: "a-early", ExecutionOrder: 1, IsActive: true},
		{ID: "a-third", ExecutionOrder: 5, IsActive: true},
	}}

	active := tr.ActiveActions()
	require.Len(t, active, 4)
	assert.Equal(t, "a-early", active[0].ID)
	assert.Equal(t, "a-first", active[1].ID)
	assert.Equal(t, "a-second", active[2].ID)
	assert.Equal(t, "a-third", active[3].ID)
}

func TestActiveConditionsKeepsDeclarationOrder(t *testing.T) {
	tr := Transition{Conditions: []Condition{
		{ID: "c-1", Group: 2, IsActive: true},
		{ID: "c-2", Group: 1, IsActive: false},
		{ID: "c-3", Group: 1, IsActive: true},
		{ID: "c-4", Group: 2, IsActive: true},
	}}

	active := tr.ActiveConditions()
	require.Len(t, active, 3)
	assert.Equal(t, "c-1", active[0].ID)
	assert.Equal(t, "c-3", active[1].ID)
	assert.Equal(t, "c-4", active[2].ID)
}
