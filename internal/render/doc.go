// Package render turns an edition and its content into a complete, table-based
// HTML email document.
//
// Four layouts are available (morning-brew, minimalist, bold and magazine); any
// unknown style falls back to morning-brew. Editions with sections render their
// visible sections in display order, otherwise their legacy articles are shown
// as truncated cards with a read-more link. Every document carries the
// newsletter branding, an unsubscribe link and, when a pixel URL is given, the
// open-tracking image.
//
// Rendering is pure: the Renderer holds only parsed templates and cached
// markdown processors and is safe for concurrent use.
package render
