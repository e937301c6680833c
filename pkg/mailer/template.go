package mailer

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

const frontmatterDelim = "---"

// Template is a markdown body with its frontmatter metadata.
type Template struct {
	Metadata map[string]any
	Body     string
}

// ParseTemplate splits optional YAML frontmatter from a markdown body.
// Content that does not start with "---" is returned as body with empty metadata.
func ParseTemplate(content []byte) (*Template, error) {
	if !bytes.HasPrefix(content, []byte(frontmatterDelim)) {
		return &Template{Metadata: map[string]any{}, Body: string(content)}, nil
	}

	rest := bytes.TrimLeft(content[len(frontmatterDelim):], "\r\n")
	if len(rest) == 0 {
		return nil, fmt.Errorf("%w: nothing after opening delimiter", ErrInvalidFrontmatter)
	}

	front, body, found := bytes.Cut(rest, []byte(frontmatterDelim))
	if !found {
		return nil, fmt.Errorf("%w: closing delimiter not found", ErrInvalidFrontmatter)
	}

	// drop exactly one line break after the closing delimiter
	if b, ok := bytes.CutPrefix(body, []byte("\r\n")); ok {
		body = b
	} else if b, ok := bytes.CutPrefix(body, []byte("\n")); ok {
		body = b
	}

	meta := map[string]any{}
	if len(bytes.TrimSpace(front)) > 0 {
		if err := yaml.Unmarshal(front, &meta); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFrontmatter, err)
		}
	}

	return &Template{Metadata: meta, Body: string(body)}, nil
}

// Subject returns the "Subject" frontmatter key when it is a string.
func (t *Template) Subject() (string, bool) {
	s, ok := t.Metadata["Subject"].(string)
	return s, ok && s != ""
}
