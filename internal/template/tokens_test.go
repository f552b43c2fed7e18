package template_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"docfill/internal/domain"
	"docfill/internal/template"
)

func TestMatchTokens(t *testing.T) {
	tests := []struct {
		name string
		p    domain.Placeholder
		want []string
	}{
		{
			name: "untouched",
			p:    domain.Placeholder{Key: "company_name", Raw: "[Company Name]"},
			want: []string{"[Company Name]", "[COMPANY_NAME]"},
		},
		{
			name: "original had whitespace",
			p: domain.Placeholder{Key: "date", Raw: "{{  date }}",
				Context: &domain.PlaceholderContext{OriginalRaw: " {{  date }} "}},
			want: []string{" {{  date }} ", "{{  date }}", "{{ date }}", "[DATE]"},
		},
		{
			name: "renamed tries canonical raw first",
			p: domain.Placeholder{Key: "party_2", Raw: "[PARTY_2]",
				Context: &domain.PlaceholderContext{OriginalRaw: "[PARTY]"}},
			want: []string{"[PARTY_2]", "[PARTY]"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, template.MatchTokens(tt.p))
		})
	}
}
