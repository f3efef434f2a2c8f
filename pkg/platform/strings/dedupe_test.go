package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
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
			name:     "empty slice",
			input:    []string{},
			expected: []string{},
		},
		{
			name:     "single element",
			input:    []string{"friend"},
			expected: []string{"friend"},
		},
		{
			name:     "trims whitespace",
			input:    []string{"  friend  ", "family  ", "  partner"},
			expected: []string{"friend", "family", "partner"},
		},
		{
			name:     "removes duplicates preserving order",
			input:    []string{"friend", "family", "friend", "therapist", "family"},
			expected: []string{"friend", "family", "therapist"},
		},
		{
			name:     "removes empty strings",
			input:    []string{"friend", "", "  ", "best_friend"},
			expected: []string{"friend", "best_friend"},
		},
		{
			name:     "combined: trim, dedupe, remove empty",
			input:    []string{"  friend ", "family", "friend", "", "  ", "family"},
			expected: []string{"friend", "family"},
		},
		{
			name:     "preserves case",
			input:    []string{"Friend", "friend", "FRIEND"},
			expected: []string{"Friend", "friend", "FRIEND"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DedupeAndTrim(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

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
			input:    []string{"Friend", "friend", "FRIEND"},
			expected: []string{"friend"},
		},
		{
			name:     "trims, lowercases, and dedupes",
			input:    []string{"  FRIEND ", "family", "Friend", "FAMILY"},
			expected: []string{"friend", "family"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DedupeAndTrimLower(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}
