package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// letters that do not decompose into a base letter plus a combining mark
var foldReplacer = strings.NewReplacer(
	"ß", "ss", "æ", "ae", "Æ", "AE", "œ", "oe", "Œ", "OE",
	"ø", "o", "Ø", "O", "ł", "l", "Ł", "L", "đ", "d", "Đ", "D", "þ", "th", "Þ", "TH",
)

type options struct {
	separator string
	maxLength int
}

// Option configures Make.
type Option func(*options)

// MaxLength caps the slug at n runes, cutting back to the last whole word when possible.
func MaxLength(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxLength = n
		}
	}
}

// Separator sets the string placed between words. Default "-".
func Separator(sep string) Option {
	return func(o *options) {
		if sep != "" {
			o.separator = sep
		}
	}
}

// Make returns a lowercase ASCII slug for s.
func Make(s string, opts ...Option) string {
	o := &options{separator: "-"}
	for _, opt := range opts {
		opt(o)
	}

	folded := fold(foldReplacer.Replace(s))

	words := strings.FieldsFunc(strings.ToLower(folded), func(r rune) bool {
		return !(r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)))
	})

	out := strings.Join(words, o.separator)
	if o.maxLength > 0 && len(out) > o.maxLength {
		cut := out[:o.maxLength]
		if !strings.HasPrefix(out[o.maxLength:], o.separator) {
			if i := strings.LastIndex(cut, o.separator); i > 0 {
				cut = cut[:i]
			}
		}
		out = strings.Trim(cut, o.separator)
	}
	return out
}

func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
