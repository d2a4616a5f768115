package tables

import "strings"

// TitleTokenTolerance is how many expected title tokens a fuzzy title may
// miss and still be accepted. Exports of the same layout drift by one word
// between tool versions ("CW JOIST SCHEDULE" vs "JOIST SCHEDULE").
// FuzzyTitle still requires one matched token whatever the tolerance.
const TitleTokenTolerance = 1

// Normalize trims s and collapses internal whitespace to single spaces.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeAll applies Normalize to every header cell.
func NormalizeAll(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = Normalize(c)
	}
	return out
}

// ExactTitle accepts a title equal to expected, ignoring case and spacing.
func ExactTitle(expected, actual string) bool {
	return strings.EqualFold(Normalize(expected), Normalize(actual))
}

// TitleTokenScore counts expected tokens matched by some actual token that
// starts with it, case-insensitively. It returns the match count and the
// number of expected tokens.
func TitleTokenScore(expected, actual string) (matched, total int) {
	want := strings.Fields(strings.ToLower(expected))
	got := strings.Fields(strings.ToLower(actual))

	for _, w := range want {
		for _, g := range got {
			if strings.HasPrefix(g, w) {
				matched++
				break
			}
		}
	}
	return matched, len(want)
}

// FuzzyTitle accepts a title whose token score is within TitleTokenTolerance
// of a full match. At least one token must match, so a single-token title
// never accepts an unrelated one.
func FuzzyTitle(expected, actual string) bool {
	matched, total := TitleTokenScore(expected, actual)
	return matched > 0 && matched >= total-TitleTokenTolerance
}

// ColumnKey normalises a header cell for fuzzy comparison: lower-cased, a
// leading "X." style prefix removed and anything from the first "(" dropped.
// "P.Has Peno" becomes "has peno" and "Length (mm)" becomes "length".
func ColumnKey(header string) string {
	key := strings.ToLower(Normalize(header))
	if len(key) > 2 {
		if dot := strings.Index(key[:2], "."); dot >= 0 {
			key = key[dot+1:]
		}
	}
	if paren := strings.Index(key, "("); paren >= 0 {
		key = key[:paren]
	}
	return strings.TrimSpace(key)
}

// ColumnCoverage counts the expected columns satisfied by at least one header.
// Each expected column is counted once no matter how many headers satisfy it.
func ColumnCoverage(expected, headers []string, match func(expected, header string) bool) int {
	covered := 0
	for _, e := range expected {
		for _, h := range headers {
			if match(e, h) {
				covered++
				break
			}
		}
	}
	return covered
}

// ExactColumns accepts headers that contain every expected column name,
// case-insensitively and in any position.
func ExactColumns(expected, headers []string) bool {
	if len(headers) < len(expected) {
		return false
	}
	headers = NormalizeAll(headers)
	return ColumnCoverage(expected, headers, func(e, h string) bool {
		return strings.EqualFold(Normalize(e), h)
	}) == len(expected)
}

// FuzzyColumns accepts headers where every expected column is the prefix of
// some header's ColumnKey.
func FuzzyColumns(expected, headers []string) bool {
	if len(headers) < len(expected) {
		return false
	}
	return ColumnCoverage(expected, headers, func(e, h string) bool {
		return strings.HasPrefix(ColumnKey(h), strings.ToLower(Normalize(e)))
	}) == len(expected)
}

// ResolveField returns the index of the first header, left to right, that
// equals or starts with any alias, case-insensitively.
func ResolveField(aliases, headers []string) (int, bool) {
	for i, h := range headers {
		key := strings.ToLower(Normalize(h))
		for _, a := range aliases {
			if strings.HasPrefix(key, strings.ToLower(a)) {
				return i, true
			}
		}
	}
	return -1, false
}
