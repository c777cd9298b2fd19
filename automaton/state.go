package automaton

import (
	"slices"

	"github.com/samber/lo"
)

// stateID addresses a state in the automaton's arena.
type stateID int32

const (
	rootState stateID = 0
	noState   stateID = -1
)

// state is one trie node. Failure links are arena indices, so the graph
// carries no owning back-references.
type state struct {
	root  bool
	depth int
	fail  stateID
	next  map[rune]stateID
	// emits is kept sorted and free of duplicates.
	emits []string
}

func newState(root bool, depth int) state {
	return state{
		root:  root,
		depth: depth,
		fail:  noState,
	}
}

// transition returns the child reached on c. The root absorbs characters it
// has no edge for, unless ignoreRootFallback is set.
func (s *state) transition(self stateID, c rune, ignoreRootFallback bool) (stateID, bool) {
	if next, ok := s.next[c]; ok {
		return next, true
	}

	if s.root && !ignoreRootFallback {
		return self, true
	}

	return noState, false
}

// addEmit inserts keyword into the emit set. Duplicates are ignored.
func (s *state) addEmit(keyword string) {
	index, found := slices.BinarySearch(s.emits, keyword)
	if found {
		return
	}

	s.emits = slices.Insert(s.emits, index, keyword)
}

func (s *state) addEmits(keywords []string) {
	for _, keyword := range keywords {
		s.addEmit(keyword)
	}
}

func (s *state) failure() stateID {
	return s.fail
}

// emitted returns a copy of the emit set.
func (s *state) emitted() []string {
	return slices.Clone(s.emits)
}

// transitions returns the outgoing characters in ascending order so that
// construction visits children deterministically.
func (s *state) transitions() []rune {
	keys := lo.Keys(s.next)
	slices.Sort(keys)

	return keys
}

// children returns the child states in transition order.
func (s *state) children() []stateID {
	return lo.Map(s.transitions(), func(c rune, _ int) stateID {
		return s.next[c]
	})
}

// addOrGetChild returns the child of parent on c, appending a new state to
// states when the edge does not exist yet.
func addOrGetChild(states []state, parent stateID, c rune) ([]state, stateID) {
	if next, ok := states[parent].transition(parent, c, true); ok {
		return states, next
	}

	child := stateID(len(states))
	states = append(states, newState(false, states[parent].depth+1))

	if states[parent].next == nil {
		states[parent].next = map[rune]stateID{}
	}

	states[parent].next[c] = child

	return states, child
}
