package storage

import "encoding/json"

// IDSet is an insertion-ordered set of video ids. It is stored on disk as a
// plain JSON array.
type IDSet struct {
	ids   []string
	index map[string]struct{}
}

// NewIDSet returns a set holding ids in the given order, duplicates dropped.
func NewIDSet(ids ...string) IDSet {
	var s IDSet
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts id and reports whether it was absent.
func (s *IDSet) Add(id string) bool {
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	if _, ok := s.index[id]; ok {
		return false
	}
	s.index[id] = struct{}{}
	s.ids = append(s.ids, id)
	return true
}

// Has reports whether id is in the set.
func (s IDSet) Has(id string) bool {
	_, ok := s.index[id]
	return ok
}

// Len returns the number of ids in the set.
func (s IDSet) Len() int { return len(s.ids) }

// IDs returns a copy of the ids in insertion order.
func (s IDSet) IDs() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// Union adds every id of other to s.
func (s *IDSet) Union(other IDSet) {
	for _, id := range other.ids {
		s.Add(id)
	}
}

// Clone returns an independent copy.
func (s IDSet) Clone() IDSet {
	return NewIDSet(s.ids...)
}

func (s IDSet) MarshalJSON() ([]byte, error) {
	if s.ids == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.ids)
}

func (s *IDSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewIDSet(ids...)
	return nil
}
