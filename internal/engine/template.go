package engine

import (
	"regexp"
	"strings"

	"github.com/spec-kit/workflow-engine/internal/domain"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*(?:\.[a-zA-Z0-9_]+)*)\s*\}\}`)

// TemplateScope is the read-only projection template placeholders resolve
// against. It never exposes anything beyond ticket, user and caller context.
type TemplateScope struct {
	roots map[string]map[string]any
}

// NewTemplateScope builds a scope from the ticket, user and caller context.
func NewTemplateScope(ticket *domain.Ticket, user *domain.User, context map[string]any) TemplateScope {
	roots := map[string]map[string]any{
		"user":    user.Projection(),
		"context": context,
	}
	if ticket != nil {
		roots["ticket"] = ticket.Projection()
	} else {
		roots["ticket"] = map[string]any{}
	}
	if context == nil {
		roots["context"] = map[string]any{}
	}
	return TemplateScope{roots: roots}
}

// Render substitutes {{ticket.field}}, {{user.field}} and {{context.key}}
// placeholders. Unresolvable placeholders render empty: template rendering
// must never fail an action on its own.
func (s TemplateScope) Render(template string) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		path := placeholderPattern.FindStringSubmatch(match)[1]
		value, ok := s.lookup(path)
		if !ok {
			return ""
		}
		return domain.Stringify(value)
	})
}

func (s TemplateScope) lookup(path string) (any, bool) {
	parts := strings.Split(path, ".")
	root, ok := s.roots[parts[0]]
	if !ok {
		return nil, false
	}
	if len(parts) == 1 {
		return root, true
	}
	var current any = root
	for _, part := range parts[1:] {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Bindings returns the scope as the {ticket, user, context} binding set
// handed to sandboxed scripts.
func (s TemplateScope) Bindings() map[string]any {
	return map[string]any{
		"ticket":  s.roots["ticket"],
		"user":    s.roots["user"],
		"context": s.roots["context"],
	}
}
