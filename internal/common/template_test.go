package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandTemplate(t *testing.T) {
	vars := map[string]string{
		"category": "invoice",
		"year":     "2025",
		"title":    "march statement",
	}

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"no variables", "static", "static"},
		{"single variable", "{category}", "invoice"},
		{"mixed text", "{year}/{category}", "2025/invoice"},
		{"unknown variable expands empty", "{category}_{missing}", "invoice_"},
		{"unclosed brace passes through", "{category", "{category"},
		{"empty template", "", ""},
		{"adjacent variables", "{year}{category}", "2025invoice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandTemplate(tt.template, vars))
		})
	}
}
