package strata

import (
	"strings"
	"unicode"

	"github.com/gertd/go-pluralize"
)

var pluralizer = pluralize.NewClient()

// Namer maps a model name to its collection name.
type Namer func(model string) string

// DefaultNamer maps a model name to a snake-cased plural collection name:
// "OrderLine" becomes "order_lines".
func DefaultNamer(model string) string {
	return pluralizer.Plural(snakeCase(model))
}

// Pluralize converts a singular name into its plural form.
func Pluralize(singular string) string {
	return pluralizer.Plural(singular)
}

// Singularize converts a plural name into its singular form.
func Singularize(plural string) string {
	return pluralizer.Singular(plural)
}

func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
