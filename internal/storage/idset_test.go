package storage

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestIDSet_KeepsInsertionOrder(t *testing.T) {
	s := NewIDSet("c", "a", "b", "a", "c")

	want := []string{"c", "a", "b"}
	if got := s.IDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("IDs() = %v, want %v", got, want)
	}
	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}
}

func TestIDSet_Add(t *testing.T) {
	var s IDSet

	if !s.Add("x") {
		t.Error("Add(x) on empty set = false, want true")
	}
	if s.Add("x") {
		t.Error("second Add(x) = true, want false")
	}
	if !s.Has("x") || s.Has("y") {
		t.Error("Has() mismatch after Add")
	}
}

func TestIDSet_ZeroValue(t *testing.T) {
	var s IDSet

	if s.Has("x") || s.Len() != 0 || len(s.IDs()) != 0 {
		t.Error("zero IDSet should be empty")
	}

	raw, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "[]" {
		t.Errorf("Marshal(zero) = %s, want []", raw)
	}
}

func TestIDSet_UnmarshalDropsDuplicates(t *testing.T) {
	var s IDSet
	if err := json.Unmarshal([]byte(`["a","b","a"]`), &s); err != nil {
		t.Fatal(err)
	}
	if got := s.IDs(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("IDs() = %v", got)
	}

	if err := json.Unmarshal([]byte(`null`), &s); err != nil {
		t.Fatalf("Unmarshal(null) error = %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len() after null = %d, want 0", s.Len())
	}

	if err := json.Unmarshal([]byte(`{"a":1}`), &s); err == nil {
		t.Error("Unmarshal(object) error = nil, want error")
	}
}

func TestIDSet_UnionAndClone(t *testing.T) {
	a := NewIDSet("1", "2")
	b := NewIDSet("2", "3")

	clone := a.Clone()
	a.Union(b)

	if got := a.IDs(); !reflect.DeepEqual(got, []string{"1", "2", "3"}) {
		t.Errorf("Union() = %v", got)
	}
	if clone.Len() != 2 || clone.Has("3") {
		t.Error("Clone shares state with the original")
	}
}
