package slug_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/letterpress/pkg/slug"
)

func TestMake(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		opts []slug.Option
		want string
	}{
		{"basic", "Hello, World!", nil, "hello-world"},
		{"diacritics", "Café & Restaurant", nil, "cafe-restaurant"},
		{"german", "München straße", nil, "munchen-strasse"},
		{"spanish", "Ñoño español", nil, "nono-espanol"},
		{"collapses separators", "  a -- b__c  ", nil, "a-b-c"},
		{"digits kept", "Top 10 tips for 2026", nil, "top-10-tips-for-2026"},
		{"non latin dropped", "Привет world", nil, "world"},
		{"empty", "!!!", nil, ""},
		{"custom separator", "Product Name", []slug.Option{slug.Separator("_")}, "product_name"},
		{"max length cuts at word", "A long article title", []slug.Option{slug.MaxLength(10)}, "a-long"},
		{"max length single word", "supercalifragilistic", []slug.Option{slug.MaxLength(5)}, "super"},
		{"max length not reached", "short", []slug.Option{slug.MaxLength(50)}, "short"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, slug.Make(tt.in, tt.opts...))
		})
	}
}
