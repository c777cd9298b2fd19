package automaton

import (
	"strings"
	"unicode/utf8"
)

// Match is a keyword occurrence found by a scan.
type Match struct {
	Interval `yaml:",inline"`

	Keyword string `json:"keyword" yaml:"keyword"`
}

// newMatch builds the match for keyword ending at the rune index pos.
func newMatch(pos int, keyword string) Match {
	return Match{
		Interval: Interval{
			Start: pos - utf8.RuneCountInString(keyword) + 1,
			End:   pos,
		},
		Keyword: keyword,
	}
}

func (m Match) String() string {
	return m.Interval.String() + "=" + m.Keyword
}

// CompareMatches orders matches by interval and breaks ties on the keyword,
// so keywords that differ only by case still sort deterministically.
func CompareMatches(a, b Match) int {
	if c := Compare(a.Interval, b.Interval); c != 0 {
		return c
	}

	return strings.Compare(a.Keyword, b.Keyword)
}
