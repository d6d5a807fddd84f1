// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package linking

import (
	"testing"
)

func TestHolderMatches(t *testing.T) {
	cases := []struct {
		expected, actual string
		match            bool
	}{
		{"Jane Doe", "Jane Doe", true},
		{"Jane Doe", "DOE, JANE", true},
		{"Hélène O'Brien", "OBRIEN, HELENE", true},
		{"St. Pierre Marc", "marc st pierre", true},
		{"François  Côté", "francois cote", true},
		{"Jane Doe", "John Doe", false},
		{"Jane Doe", "Jane Q Doe", false},
		{"", "", false},
		{"Jane", "", false},
	}
	for _, tc := range cases {
		if got := HolderMatches(tc.expected, tc.actual); got != tc.match {
			t.Errorf("HolderMatches(%q, %q) = %v", tc.expected, tc.actual, got)
		}
	}
}
