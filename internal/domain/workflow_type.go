package domain

import "time"

// LocalizedText maps a locale code (e.g. "en", "ru") to display text.
type LocalizedText map[string]string

// Resolve returns the text for locale, falling back to "en", then to any entry.
func (l LocalizedText) Resolve(locale string) string {
	if l == nil {
		return ""
	}
	if v, ok := l[locale]; ok {
		return v
	}
	if v, ok := l["en"]; ok {
		return v
	}
	for _, v := range l {
		return v
	}
	return ""
}

// WorkflowType is a named workflow definition owning a graph of statuses
// and transitions. At most one type per tenant is the default.
type WorkflowType struct {
	ID          string        `json:"id"`
	TenantID    string        `json:"tenant_id"`
	Name        string        `json:"name"`
	DisplayName LocalizedText `json:"display_name"`
	Description LocalizedText `json:"description"`
	Icon        string        `json:"icon"`
	Color       string        `json:"color"`
	IsActive    bool          `json:"is_active"`
	IsDefault   bool          `json:"is_default"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// WorkflowDefinition is the export/import document: a workflow type with its
// full nested graph, as consumed and produced by admin tooling.
type WorkflowDefinition struct {
	WorkflowType WorkflowType `json:"workflow_type"`
	Statuses     []Status     `json:"statuses"`
	Transitions  []Transition `json:"transitions"`
}
