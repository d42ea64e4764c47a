package authstate

import (
	"encoding/json"
	"slices"
)

// TokenSet is an immutable set of API names. Add and Remove return a new
// set and never touch the receiver, so States that share a TokenSet stay
// independent.
type TokenSet struct {
	items []string // sorted, unique
}

// NewTokenSet builds a set from names, ignoring blanks and duplicates
func NewTokenSet(names ...string) TokenSet {
	items := make([]string, 0, len(names))
	for _, n := range names {
		if n != "" {
			items = append(items, n)
		}
	}
	slices.Sort(items)
	return TokenSet{items: slices.Compact(items)}
}

// Has reports whether name is in the set
func (s TokenSet) Has(name string) bool {
	_, found := slices.BinarySearch(s.items, name)
	return found
}

// Len returns the number of names in the set
func (s TokenSet) Len() int {
	return len(s.items)
}

// Add returns a set that also contains name
func (s TokenSet) Add(name string) TokenSet {
	i, found := slices.BinarySearch(s.items, name)
	if found || name == "" {
		return s
	}
	items := make([]string, 0, len(s.items)+1)
	items = append(items, s.items[:i]...)
	items = append(items, name)
	items = append(items, s.items[i:]...)
	return TokenSet{items: items}
}

// Remove returns a set without name
func (s TokenSet) Remove(name string) TokenSet {
	i, found := slices.BinarySearch(s.items, name)
	if !found {
		return s
	}
	items := make([]string, 0, len(s.items)-1)
	items = append(items, s.items[:i]...)
	items = append(items, s.items[i+1:]...)
	return TokenSet{items: items}
}

// Slice returns a sorted copy of the names
func (s TokenSet) Slice() []string {
	return slices.Clone(s.items)
}

// Equal reports whether both sets hold the same names
func (s TokenSet) Equal(other TokenSet) bool {
	return slices.Equal(s.items, other.items)
}

func (s TokenSet) MarshalJSON() ([]byte, error) {
	if s.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.items)
}

func (s *TokenSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*s = NewTokenSet(names...)
	return nil
}
