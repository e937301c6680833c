package newsletter

import (
	"cmp"
	"slices"
	"time"
)

// SectionType is the closed set of content block kinds an edition can hold.
type SectionType string

const (
	SectionHeader  SectionType = "header"
	SectionText    SectionType = "text"
	SectionArticle SectionType = "article"
	SectionQuote   SectionType = "quote"
	SectionImage   SectionType = "image"
	SectionCTA     SectionType = "cta"
	SectionDivider SectionType = "divider"
	SectionList    SectionType = "list"
	SectionCode    SectionType = "code"
	SectionVideo   SectionType = "video"
)

// SectionTypes lists every section kind in declaration order.
var SectionTypes = []SectionType{
	SectionHeader, SectionText, SectionArticle, SectionQuote, SectionImage,
	SectionCTA, SectionDivider, SectionList, SectionCode, SectionVideo,
}

// Valid reports whether t is one of SectionTypes.
func (t SectionType) Valid() bool {
	return slices.Contains(SectionTypes, t)
}

// Section is an ordered content block of an edition.
type Section struct {
	Type         SectionType `json:"type"`
	Title        string      `json:"title,omitempty"`
	Subtitle     string      `json:"subtitle,omitempty"`
	Content      string      `json:"content,omitempty"`
	ImageURL     string      `json:"image_url,omitempty"`
	ImageCaption string      `json:"image_caption,omitempty"`
	ButtonText   string      `json:"button_text,omitempty"`
	ButtonURL    string      `json:"button_url,omitempty"`
	ID           int64       `json:"id"`
	EditionID    int64       `json:"edition_id"`
	DisplayOrder int         `json:"display_order"`
	IsVisible    bool        `json:"is_visible"`
}

// VisibleSections returns the visible sections sorted by ascending display order.
// The input slice is not modified.
func VisibleSections(sections []Section) []Section {
	out := make([]Section, 0, len(sections))
	for _, s := range sections {
		if s.IsVisible {
			out = append(out, s)
		}
	}
	slices.SortStableFunc(out, func(a, b Section) int {
		return cmp.Compare(a.DisplayOrder, b.DisplayOrder)
	})
	return out
}

// Article is a legacy content item attached to an edition.
type Article struct {
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	Category     string     `json:"category,omitempty"`
	Title        string     `json:"title"`
	Slug         string     `json:"slug"`
	Content      string     `json:"content"`
	Excerpt      string     `json:"excerpt,omitempty"`
	ImageURL     string     `json:"image_url,omitempty"`
	ImageCaption string     `json:"image_caption,omitempty"`
	ID           int64      `json:"id"`
	EditionID    int64      `json:"edition_id"`
	DisplayOrder int        `json:"display_order"`
}

// SortArticles orders articles by ascending display order in place.
func SortArticles(articles []Article) {
	slices.SortStableFunc(articles, func(a, b Article) int {
		return cmp.Compare(a.DisplayOrder, b.DisplayOrder)
	})
}
