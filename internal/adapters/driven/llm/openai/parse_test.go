package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
		fails bool
	}{
		{
			name:  "bare object",
			reply: `{"queries": ["a"]}`,
			want:  `{"queries": ["a"]}`,
		},
		{
			name:  "fenced json",
			reply: "```json\n{\"queries\": [\"a\"]}\n```",
			want:  `{"queries": ["a"]}`,
		},
		{
			name:  "prose around object",
			reply: `Sure! Here you go: {"queries": ["a"]} Hope that helps.`,
			want:  `{"queries": ["a"]}`,
		},
		{
			name:  "bare array",
			reply: `["a", "b"]`,
			want:  `["a", "b"]`,
		},
		{
			name:  "no json",
			reply: "I cannot answer that.",
			fails: true,
		},
		{
			name:  "empty",
			reply: "   ",
			fails: true,
		},
		{
			name:  "unterminated",
			reply: `{"queries": ["a"`,
			fails: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSON(tt.reply)
			if tt.fails {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseStringList(t *testing.T) {
	list, err := parseStringList(`{"ranking": ["c2", "c1"]}`, "ranking")
	require.NoError(t, err)
	assert.Equal(t, []string{"c2", "c1"}, list)

	list, err = parseStringList(`["x", "y"]`, "ranking")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, list)

	_, err = parseStringList(`{"other": []}`, "ranking")
	assert.Error(t, err)

	_, err = parseStringList(`{"ranking": "not-a-list"}`, "ranking")
	assert.Error(t, err)
}
