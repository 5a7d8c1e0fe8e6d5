package controller

import "codeberg.org/mutker/tdpctl/internal/profile"

// Stack is the ordered set of active triggers, most recently activated on
// top. A trigger appears at most once.
type Stack struct {
	entries []profile.Trigger
}

// Push moves t to the top, adding it if absent.
func (s *Stack) Push(t profile.Trigger) {
	s.Remove(t)
	s.entries = append(s.entries, t)
}

// Remove drops t and reports whether it was present.
func (s *Stack) Remove(t profile.Trigger) bool {
	key := t.Key()
	for i, e := range s.entries {
		if e.Key() == key {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Replace swaps the entry with t's key for t, keeping its position. It
// reports whether such an entry was present.
func (s *Stack) Replace(t profile.Trigger) bool {
	key := t.Key()
	for i, e := range s.entries {
		if e.Key() == key {
			s.entries[i] = t
			return true
		}
	}
	return false
}

// Top returns the most recently activated trigger.
func (s *Stack) Top() (profile.Trigger, bool) {
	if len(s.entries) == 0 {
		return profile.Trigger{}, false
	}
	return s.entries[len(s.entries)-1], true
}

// IsTop reports whether t is the top entry.
func (s *Stack) IsTop(t profile.Trigger) bool {
	top, ok := s.Top()
	return ok && top.Key() == t.Key()
}

func (s *Stack) Len() int {
	return len(s.entries)
}

// Entries returns a copy, bottom first.
func (s *Stack) Entries() []profile.Trigger {
	return append([]profile.Trigger(nil), s.entries...)
}
