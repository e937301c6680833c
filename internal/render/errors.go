package render

import "errors"

var (
	ErrIncompleteParams = errors.New("render: newsletter and edition are required")
	ErrRenderFailed     = errors.New("render: failed to render document")
)
