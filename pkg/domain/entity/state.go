package entity

import (
	"encoding/json"
	"sort"
)

// StringSet is a set of strings persisted as a JSON array
type StringSet map[string]struct{}

// NewStringSet creates a set holding the given values
func NewStringSet(values ...string) StringSet {
	s := make(StringSet, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

// Has checks membership
func (s StringSet) Has(v string) bool {
	_, ok := s[v]
	return ok
}

// Add inserts v and reports whether it was absent
func (s StringSet) Add(v string) bool {
	if _, ok := s[v]; ok {
		return false
	}
	s[v] = struct{}{}
	return true
}

// Values returns the members in sorted order
func (s StringSet) Values() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON encodes the set as a sorted array
func (s StringSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Values())
}

// UnmarshalJSON decodes an array, tolerating null
func (s *StringSet) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*s = NewStringSet(values...)
	return nil
}

// PersistedState is the single aggregate stored under one key
type PersistedState struct {
	CapturedURLs   StringSet       `json:"capturedUrls"`
	UniqueItems    []CanonicalItem `json:"uniqueItems"`
	UniqueItemKeys StringSet       `json:"uniqueItemKeys"`
}

// NewPersistedState returns an empty state
func NewPersistedState() *PersistedState {
	s := &PersistedState{}
	s.Normalize()
	return s
}

// Normalize replaces nil members with empty ones
func (s *PersistedState) Normalize() {
	if s.CapturedURLs == nil {
		s.CapturedURLs = StringSet{}
	}
	if s.UniqueItemKeys == nil {
		s.UniqueItemKeys = StringSet{}
	}
	if s.UniqueItems == nil {
		s.UniqueItems = []CanonicalItem{}
	}
	for i := range s.UniqueItems {
		s.UniqueItems[i].Fill()
	}
}

// Clone returns a deep copy that can be read without holding the writer
func (s *PersistedState) Clone() *PersistedState {
	c := &PersistedState{
		CapturedURLs:   make(StringSet, len(s.CapturedURLs)),
		UniqueItemKeys: make(StringSet, len(s.UniqueItemKeys)),
		UniqueItems:    make([]CanonicalItem, len(s.UniqueItems)),
	}
	for k := range s.CapturedURLs {
		c.CapturedURLs[k] = struct{}{}
	}
	for k := range s.UniqueItemKeys {
		c.UniqueItemKeys[k] = struct{}{}
	}
	copy(c.UniqueItems, s.UniqueItems)
	return c
}
