// internal/model/item_set.go
package model

import "sort"

// ItemSet is a set of item identifiers.
type ItemSet map[string]struct{}

func NewItemSet(ids ...string) ItemSet {
	s := make(ItemSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s ItemSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s ItemSet) Add(id string) {
	s[id] = struct{}{}
}

func (s ItemSet) Len() int {
	return len(s)
}

func (s ItemSet) Clear() {
	for id := range s {
		delete(s, id)
	}
}

// Covers reports whether every item of the catalog is in s.
func (s ItemSet) Covers(items []Item) bool {
	for _, it := range items {
		if !s.Has(it.ID) {
			return false
		}
	}
	return true
}

func (s ItemSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s ItemSet) Clone() ItemSet {
	out := make(ItemSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}
