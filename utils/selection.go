package utils

import "sync"

// MaxSelection is the upper bound on contacts chosen for one outreach run
const MaxSelection = 50

// SelectionSet is the operator's bounded, insertion-ordered set of chosen contact ids
type SelectionSet struct {
	mu    sync.Mutex
	ids   []string
	index map[string]struct{}
}

func NewSelectionSet() *SelectionSet {
	return &SelectionSet{index: make(map[string]struct{})}
}

// Toggle removes id if present, otherwise adds it while under the cap.
// It returns whether id is selected afterwards; ErrSelectionFull leaves the set unchanged.
func (s *SelectionSet) Toggle(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[id]; ok {
		s.remove(id)
		return false, nil
	}
	if len(s.ids) >= MaxSelection {
		return false, ErrSelectionFull
	}
	s.add(id)
	return true, nil
}

// SelectUpTo replaces the set with the first n candidates, in list order
func (s *SelectionSet) SelectUpTo(n int, candidates []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()
	for _, id := range firstN(candidates, n) {
		s.add(id)
	}
	return len(s.ids)
}

// ToggleAll clears the set when every candidate that fits under the cap is already
// selected, otherwise selects exactly those candidates. It returns the new size.
func (s *SelectionSet) ToggleAll(candidates []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	head := firstN(candidates, MaxSelection)
	allSelected := len(head) > 0 && len(s.ids) == len(head)
	for _, id := range head {
		if !allSelected {
			break
		}
		if _, ok := s.index[id]; !ok {
			allSelected = false
		}
	}

	s.reset()
	if !allSelected {
		for _, id := range head {
			s.add(id)
		}
	}
	return len(s.ids)
}

func (s *SelectionSet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

// IDs returns a copy of the selected ids in insertion order
func (s *SelectionSet) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

func (s *SelectionSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

func (s *SelectionSet) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[id]
	return ok
}

func (s *SelectionSet) add(id string) {
	if _, ok := s.index[id]; ok {
		return
	}
	s.ids = append(s.ids, id)
	s.index[id] = struct{}{}
}

func (s *SelectionSet) remove(id string) {
	delete(s.index, id)
	for i, existing := range s.ids {
		if existing == id {
			s.ids = append(s.ids[:i], s.ids[i+1:]...)
			return
		}
	}
}

func (s *SelectionSet) reset() {
	s.ids = nil
	s.index = make(map[string]struct{})
}

// firstN returns up to n distinct ids from the head of candidates, never more than MaxSelection
func firstN(candidates []string, n int) []string {
	if n > MaxSelection {
		n = MaxSelection
	}
	seen := make(map[string]struct{}, n)
	var out []string
	for _, id := range candidates {
		if len(out) >= n {
			break
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
