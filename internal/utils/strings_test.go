package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: nil,
		},
		{
			name:     "single value",
			input:    "http://localhost:3000",
			expected: []string{"http://localhost:3000"},
		},
		{
			name:     "two values with spacing",
			input:    "7203.T, 6758.T",
			expected: []string{"7203.T", "6758.T"},
		},
		{
			name:     "no spaces after comma",
			input:    "7203.T,6758.T,9984.T",
			expected: []string{"7203.T", "6758.T", "9984.T"},
		},
		{
			name:     "trailing comma",
			input:    "7203.T,",
			expected: []string{"7203.T"},
		},
		{
			name:     "leading comma",
			input:    ",6758.T",
			expected: []string{"6758.T"},
		},
		{
			name:     "only spaces",
			input:    "   ",
			expected: nil,
		},
		{
			name:     "comma only",
			input:    ",",
			expected: nil,
		},
		{
			name:     "empty fields between values",
			input:    ",,7203.T,,6758.T,,",
			expected: []string{"7203.T", "6758.T"},
		},
		{
			name:     "internal spaces preserved",
			input:    "Consumer Goods, Real Estate",
			expected: []string{"Consumer Goods", "Real Estate"},
		},
		{
			name:     "mixed spacing around values",
			input:    "  https://a.example  ,  https://b.example  ",
			expected: []string{"https://a.example", "https://b.example"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseCSV(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseCSV_PreservesInput(t *testing.T) {
	input := "7203.T, 6758.T"
	originalInput := input

	_ = ParseCSV(input)

	assert.Equal(t, originalInput, input, "input should not be modified")
}
