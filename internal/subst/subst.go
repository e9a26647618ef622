// Package subst implements the one utility spec.md §9 insists on: "never
// shell out the substitution to the host shell... absent variables expand
// to empty string." It is used for every command template testr builds
// ($IDFILE, $IDLIST, $IDOPTION, $LISTOPT, $PROFILE, $INSTANCE_ID,
// $INSTANCE_COUNT, $INSTANCE_IDS, $COMMAND, $FILES).
package subst

import "strings"

// Expand replaces every $NAME (and ${NAME}) occurrence in template with
// vars[NAME], POSIX-shell style. A variable absent from vars expands to
// the empty string; it is never an error.
func Expand(template string, vars map[string]string) string {
	var b strings.Builder
	b.Grow(len(template))

	runes := []rune(template)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if c != '$' || i == len(runes)-1 {
			b.WriteRune(c)
			continue
		}

		next := runes[i+1]
		if next == '{' {
			end := indexRune(runes, i+2, '}')
			if end < 0 {
				b.WriteRune(c)
				continue
			}
			name := string(runes[i+2 : end])
			b.WriteString(vars[name])
			i = end
			continue
		}

		if !isIdentStart(next) {
			b.WriteRune(c)
			continue
		}

		j := i + 1
		for j < len(runes) && isIdentChar(runes[j]) {
			j++
		}
		name := string(runes[i+1 : j])
		b.WriteString(vars[name])
		i = j - 1
	}

	return b.String()
}

func indexRune(runes []rune, from int, target rune) int {
	for i := from; i < len(runes); i++ {
		if runes[i] == target {
			return i
		}
	}
	return -1
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')
}

func isIdentChar(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}
