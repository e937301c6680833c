// Package tasks holds the background jobs run by the job manager.
package tasks

import (
	"embed"
	"io/fs"
)

//go:embed templates
var templates embed.FS

// Templates returns the email templates rooted so that welcome.md and
// layouts/base.html resolve for a mailer.Renderer.
func Templates() fs.FS {
	sub, err := fs.Sub(templates, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}

// DefaultLayout is the layout file the welcome email renders into.
const DefaultLayout = "base.html"
