package reconcile

import (
	"strings"
	"unicode"

	"cloud.google.com/go/civil"
	"golang.org/x/text/width"
)

// NormalizePlate folds a license plate into its matching form: full-width
// characters are narrowed, letters lower-cased and everything that is not a
// letter or digit dropped, so "ABC 123", "abc-123" and "ＡＢＣ１２３" collapse.
func NormalizePlate(plate string) string {
	folded := width.Fold.String(plate)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// Key is the composite matching key of a receipt or external record
type Key struct {
	Plate string
	Date  civil.Date
}

// KeyOf builds a matching key from a raw plate and a calendar date
func KeyOf(plate string, date civil.Date) Key {
	return Key{Plate: NormalizePlate(plate), Date: date}
}

func (k Key) String() string {
	return k.Plate + "@" + k.Date.String()
}
