package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanJSONResponse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain json passes through",
			input:    `{"route":"NEARBY"}`,
			expected: `{"route":"NEARBY"}`,
		},
		{
			name:     "json fence stripped",
			input:    "```json\n{\"route\":\"NEARBY\"}\n```",
			expected: `{"route":"NEARBY"}`,
		},
		{
			name:     "bare fence stripped",
			input:    "```\n{\"a\":1}\n```",
			expected: `{"a":1}`,
		},
		{
			name:     "prose around object dropped",
			input:    "Here is the plan:\n{\"a\":{\"b\":2}}\nHope that helps!",
			expected: `{"a":{"b":2}}`,
		},
		{
			name:     "nested braces balanced",
			input:    `{"outer":{"inner":{"deep":true}}} trailing`,
			expected: `{"outer":{"inner":{"deep":true}}}`,
		},
		{
			name:     "no json returned as is",
			input:    "sorry, I cannot help",
			expected: "sorry, I cannot help",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, cleanJSONResponse(tt.input))
		})
	}
}
