package automaton

import "strconv"

// Interval is an inclusive range of rune indices.
type Interval struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end"   yaml:"end"`
}

// Len returns the number of runes covered by the interval.
func (i Interval) Len() int {
	return i.End - i.Start + 1
}

// Overlaps reports whether the two intervals share at least one index.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start <= other.End && i.End >= other.Start
}

// Contains reports whether point falls inside the interval.
func (i Interval) Contains(point int) bool {
	return i.Start <= point && point <= i.End
}

func (i Interval) String() string {
	return strconv.Itoa(i.Start) + ":" + strconv.Itoa(i.End)
}

// Compare orders intervals by start, then by end.
func Compare(a, b Interval) int {
	if a.Start != b.Start {
		return a.Start - b.Start
	}

	return a.End - b.End
}
