// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package linking

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// HolderMatches compares account holder names ignoring accents, case, punctuation
// and word order. "Hélène O'Brien" matches "OBRIEN, HELENE".
func HolderMatches(expected, actual string) bool {
	a, b := holderTokens(expected), holderTokens(actual)
	if len(a) == 0 || len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func holderTokens(name string) []string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	folded = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return unicode.ToLower(r)
		case r == '\'' || r == '’' || r == '.':
			return -1 // O'Brien and St. collapse
		}
		return ' '
	}, folded)

	tokens := strings.Fields(folded)
	sort.Strings(tokens)
	return tokens
}
