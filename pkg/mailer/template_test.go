package mailer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTemplate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		meta    map[string]any
		body    string
		wantErr bool
	}{
		{
			name:  "frontmatter and body",
			input: "---\nSubject: Hi\nPriority: 2\n---\nBody line\n",
			meta:  map[string]any{"Subject": "Hi", "Priority": 2},
			body:  "Body line\n",
		},
		{
			name:  "crlf after closing delimiter",
			input: "---\nSubject: Hi\n---\r\nBody",
			meta:  map[string]any{"Subject": "Hi"},
			body:  "Body",
		},
		{
			name:  "no frontmatter",
			input: "Just markdown",
			meta:  map[string]any{},
			body:  "Just markdown",
		},
		{
			name:  "empty frontmatter",
			input: "---\n---\nBody",
			meta:  map[string]any{},
			body:  "Body",
		},
		{
			name:    "unterminated",
			input:   "---\nSubject: Hi\nBody",
			wantErr: true,
		},
		{
			name:    "only delimiter",
			input:   "---\n",
			wantErr: true,
		},
		{
			name:    "invalid yaml",
			input:   "---\nSubject: [unclosed\n---\nBody",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseTemplate([]byte(tt.input))
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidFrontmatter)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.meta, got.Metadata)
			assert.Equal(t, tt.body, got.Body)
		})
	}
}

func TestTemplate_Subject(t *testing.T) {
	t.Parallel()

	s, ok := (&Template{Metadata: map[string]any{"Subject": "Hello"}}).Subject()
	assert.True(t, ok)
	assert.Equal(t, "Hello", s)

	_, ok = (&Template{Metadata: map[string]any{"Subject": 5}}).Subject()
	assert.False(t, ok)
}
