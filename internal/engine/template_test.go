package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/workflow-engine/internal/domain"
)

func TestTemplateRender(t *testing.T) {
	ticket := baseTicket()
	user := &domain.User{ID: "u-1", Role: domain.RoleAgent, DisplayName: "Dana"}
	scope := NewTemplateScope(ticket, user, map[string]any{"channel": "web"})

	rendered := scope.Render("Ticket {{ticket.id}} ({{ticket.priority}}) handled by {{user.display_name}} via {{context.channel}}")
	assert.Equal(t, "Ticket t-1 (high) handled by Dana via web", rendered)
}

func TestTemplateRenderCustomField(t *testing.T) {
	ticket := baseTicket()
	scope := NewTemplateScope(ticket, nil, nil)

	assert.Equal(t, "emea", scope.Render("{{ticket.region}}"))
}

func TestTemplateRenderUnresolvableIsEmpty(t *testing.T) {
	scope := NewTemplateScope(baseTicket(), nil, nil)

	assert.Equal(t, "missing: ", scope.Render("missing: {{ticket.nope}}"))
	assert.Equal(t, "missing: ", scope.Render("missing: {{secrets.token}}"))
}

func TestTemplateRenderNilTicket(t *testing.T) {
	scope := NewTemplateScope(nil, nil, nil)

	assert.Equal(t, "", scope.Render("{{ticket.id}}"))
}

func TestTemplateRenderWhitespaceTolerant(t *testing.T) {
	scope := NewTemplateScope(baseTicket(), nil, nil)

	assert.Equal(t, "t-1", scope.Render("{{ ticket.id }}"))
}
