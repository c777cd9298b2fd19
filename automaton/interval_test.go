package automaton_test

import (
	"slices"
	"testing"

	"github.com/jtarchie/scrub/automaton"
	. "github.com/onsi/gomega"
)

func TestInterval(t *testing.T) {
	t.Parallel()

	assert := NewGomegaWithT(t)

	interval := automaton.Interval{Start: 2, End: 5}

	assert.Expect(interval.Len()).To(Equal(4))
	assert.Expect(interval.String()).To(Equal("2:5"))

	assert.Expect(interval.Overlaps(automaton.Interval{Start: 5, End: 8})).To(BeTrue())
	assert.Expect(interval.Overlaps(automaton.Interval{Start: 0, End: 2})).To(BeTrue())
	assert.Expect(interval.Overlaps(automaton.Interval{Start: 3, End: 4})).To(BeTrue())
	assert.Expect(interval.Overlaps(automaton.Interval{Start: 6, End: 8})).To(BeFalse())
	assert.Expect(interval.Overlaps(automaton.Interval{Start: 0, End: 1})).To(BeFalse())

	assert.Expect(interval.Contains(2)).To(BeTrue())
	assert.Expect(interval.Contains(5)).To(BeTrue())
	assert.Expect(interval.Contains(6)).To(BeFalse())
	assert.Expect(interval.Contains(1)).To(BeFalse())
}

func TestCompare(t *testing.T) {
	t.Parallel()

	assert := NewGomegaWithT(t)

	intervals := []automaton.Interval{
		{Start: 3, End: 4},
		{Start: 1, End: 5},
		{Start: 1, End: 2},
		{Start: 0, End: 9},
	}
	slices.SortFunc(intervals, automaton.Compare)

	assert.Expect(intervals).To(Equal([]automaton.Interval{
		{Start: 0, End: 9},
		{Start: 1, End: 2},
		{Start: 1, End: 5},
		{Start: 3, End: 4},
	}))
}

func TestMatch(t *testing.T) {
	t.Parallel()

	assert := NewGomegaWithT(t)

	m := match(2, 5, "hers")
	assert.Expect(m.String()).To(Equal("2:5=hers"))
	assert.Expect(m.Len()).To(Equal(4))

	assert.Expect(automaton.CompareMatches(match(0, 2, "SHE"), match(0, 2, "she"))).To(BeNumerically("<", 0))
	assert.Expect(automaton.CompareMatches(match(1, 2, "a"), match(0, 2, "b"))).To(BeNumerically(">", 0))
	assert.Expect(automaton.CompareMatches(match(1, 2, "a"), match(1, 2, "a"))).To(Equal(0))
}
