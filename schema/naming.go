package schema

import (
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// toSnake converts s to snake_case using ASCII-aware rules, dropping any
// punctuation so the result is usable as a relation name.
func toSnake(s string) string {
	if s == "" {
		return ""
	}

	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(runes) + len(runes)/2)

	lastUnderscore := false

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		switch {
		case unicode.IsUpper(r):
			if b.Len() > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if (unicode.IsLower(prev) || unicode.IsDigit(prev) || nextLower) && !lastUnderscore {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			lastUnderscore = false

		case unicode.IsLower(r), unicode.IsDigit(r):
			b.WriteRune(r)
			lastUnderscore = false

		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}

	return strings.Trim(b.String(), "_")
}

// toOneName derives the name of a to-one relation: "user_id" -> "user", or the
// singular target table name for composite foreign keys.
func toOneName(fkColumns []string, target string) string {
	if len(fkColumns) == 1 {
		col := toSnake(fkColumns[0])
		if base, ok := strings.CutSuffix(col, "_id"); ok && base != "" {
			return base
		}
	}
	return inflection.Singular(toSnake(target))
}

// toManyName derives the name of the inverse side: "order" -> "orders".
func toManyName(source string) string {
	return inflection.Plural(toSnake(source))
}

func inverseOneName(source string) string {
	return inflection.Singular(toSnake(source))
}
