// Package mailer separates email delivery from email rendering.
//
// Three pieces make up the package:
//
//   - Sender: the provider interface. One call delivers one fully prepared Email.
//     Implementations are constructed once at startup and passed to whoever
//     sends mail; the Resend adapter lives in the resend subpackage.
//   - Renderer: turns markdown with optional YAML frontmatter into HTML wrapped in
//     an html/template layout. Templates can come from an fs.FS or from a string
//     stored alongside tenant data.
//   - Mailer: glues a Sender and a Renderer for transactional mail such as
//     welcome messages.
//
// # Templates
//
// A template is markdown processed by text/template first, then by goldmark:
//
//	---
//	Subject: Welcome to {{.Newsletter}}
//	---
//	Hi {{.Name}},
//
//	[!button|Read the latest issue]({{.ArchiveURL}})
//
// The [!button|Label](URL) syntax renders a link styled as a button. Styles are
// written inline because most email clients drop <style> blocks:
//
//	md := goldmark.New(goldmark.WithExtensions(
//		mailer.NewButtonExtension(mailer.WithButtonStyle("background:#111;color:#fff")),
//	))
//
// # Subjects
//
// Mailer.Send resolves the subject from SendParams.Subject, then the template's
// Subject frontmatter key, then Config.FallbackSubject. The result is executed as
// a text/template against the same data as the body.
package mailer
