package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrimLower(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "nil slice",
			input:    nil,
			expected: nil,
		},
		{
			name:     "lowercases and dedupes",
			input:    []string{"Admin", "admin", "ADMIN"},
			expected: []string{"admin"},
		},
		{
			name:     "drops blanks, keeps first-seen order",
			input:    []string{"  SUPPORT ", "", "info", "  ", "Support"},
			expected: []string{"support", "info"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrimLower(tt.input))
		})
	}
}

func TestNormalizeDomains(t *testing.T) {
	got := NormalizeDomains([]string{"@Mailinator.com.", "mailinator.com", ".guerrillamail.com", " ", "@"})
	assert.Equal(t, []string{"mailinator.com", "guerrillamail.com"}, got)
}
