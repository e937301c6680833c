// Package slug turns titles into URL path segments.
//
//	slug.Make("Café & Restaurant")          // "cafe-restaurant"
//	slug.Make("München straße")             // "munchen-strasse"
//	slug.Make("A long title", slug.MaxLength(6)) // "a-long"
//
// Latin diacritics are folded to ASCII through Unicode decomposition; anything
// that is not a letter or digit after folding becomes a separator.
package slug
