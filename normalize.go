package gobolt

import "strings"

// NormalizeQuery replaces literal values in a Cypher query with placeholders
// so that structurally identical queries (differing only in literal data)
// group together for diagnostics. Single- and double-quoted string
// literals become '?', standalone numeric literals become ?, and $name
// parameters are kept as-is. Consecutive whitespace collapses to one space.
func NormalizeQuery(cypher string) string {
	if cypher == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(cypher))

	i := 0
	prevSpace := false
	for i < len(cypher) {
		ch := cypher[i]

		if ch == '\'' || ch == '"' {
			i = normalizeStringLiteral(&b, cypher, i, ch)
			prevSpace = false
			continue
		}

		if ch == '$' && i+1 < len(cypher) && isParamStart(cypher[i+1]) {
			i = keepNamedParam(&b, cypher, i)
			prevSpace = false
			continue
		}

		if isDigit(ch) && (i == 0 || isTokenBoundary(cypher[i-1])) {
			if next, ok := normalizeNumericLiteral(&b, cypher, i); ok {
				i = next
				prevSpace = false
				continue
			}
		}

		if isSpace(ch) {
			if !prevSpace && b.Len() > 0 {
				b.WriteByte(' ')
				prevSpace = true
			}
			i++
			continue
		}

		b.WriteByte(ch)
		i++
		prevSpace = false
	}

	return strings.TrimRight(b.String(), " ")
}

func normalizeStringLiteral(b *strings.Builder, s string, pos int, quote byte) int {
	j := pos + 1
	for j < len(s) {
		if s[j] == quote && j+1 < len(s) && s[j+1] == quote {
			j += 2
			continue
		}
		if s[j] == quote {
			j++
			break
		}
		j++
	}
	b.WriteByte('\'')
	b.WriteByte('?')
	b.WriteByte('\'')
	return j
}

func keepNamedParam(b *strings.Builder, s string, pos int) int {
	b.WriteByte('$')
	j := pos + 1
	for j < len(s) && isParamRune(s[j]) {
		b.WriteByte(s[j])
		j++
	}
	return j
}

func normalizeNumericLiteral(b *strings.Builder, s string, pos int) (int, bool) {
	j := pos + 1
	for j < len(s) && (isDigit(s[j]) || s[j] == '.') {
		j++
	}
	if j >= len(s) || isTokenBoundary(s[j]) {
		b.WriteByte('?')
		return j, true
	}
	return 0, false
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isParamStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

func isParamRune(c byte) bool {
	return isParamStart(c) || isDigit(c)
}

func isTokenBoundary(c byte) bool {
	return isSpace(c) ||
		c == ',' || c == '(' || c == ')' || c == '[' || c == ']' || c == '{' || c == '}' ||
		c == '=' || c == '<' || c == '>' || c == '+' || c == '-' ||
		c == '*' || c == '/' || c == ';' || c == ':'
}
