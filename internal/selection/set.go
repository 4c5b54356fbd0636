// Package selection maintains the user's issue selection within one stage visit
// and loads remediation suggestions for it.
package selection

import (
	"fmt"
	"sort"

	"github.com/textaudit/layered-audit/internal/types"
)

// Set is a set of indices into the current issue list. It is not safe for
// concurrent use; the owning stage serializes access.
type Set struct {
	size    int
	members map[int]struct{}
}

// NewSet creates an empty selection over an issue list of the given size.
func NewSet(size int) *Set {
	return &Set{size: size, members: make(map[int]struct{})}
}

// Reset clears the selection and rebinds it to a recomputed issue list.
func (s *Set) Reset(size int) {
	s.size = size
	s.members = make(map[int]struct{})
}

// Toggle flips membership of index. Indices outside the issue list are rejected.
func (s *Set) Toggle(index int) error {
	if index < 0 || index >= s.size {
		return fmt.Errorf("issue index %d out of range [0, %d)", index, s.size)
	}
	if _, ok := s.members[index]; ok {
		delete(s.members, index)
	} else {
		s.members[index] = struct{}{}
	}
	return nil
}

// Contains reports whether index is selected.
func (s *Set) Contains(index int) bool {
	_, ok := s.members[index]
	return ok
}

// Len returns the number of selected issues.
func (s *Set) Len() int {
	return len(s.members)
}

// Indices returns the selected indices in ascending issue-list order.
func (s *Set) Indices() []int {
	out := make([]int, 0, len(s.members))
	for i := range s.members {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// First returns the lowest selected index.
func (s *Set) First() (int, bool) {
	indices := s.Indices()
	if len(indices) == 0 {
		return 0, false
	}
	return indices[0], true
}

// Issues returns the selected issues from list in ascending index order.
func (s *Set) Issues(list []types.Issue) []types.Issue {
	var out []types.Issue
	for _, i := range s.Indices() {
		if i < len(list) {
			out = append(out, list[i])
		}
	}
	return out
}
