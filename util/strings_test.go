package util

import (
	"reflect"
	"testing"
)

func TestRemoveElement(t *testing.T) {

	tests := []struct {
		in      []string
		element string
		out     []string
		removed bool
	}{
		{[]string{"a", "b", "c"}, "b", []string{"a", "c"}, true},
		{[]string{"a", "a", "b"}, "a", []string{"b"}, true},
		{[]string{"a", "b"}, "z", []string{"a", "b"}, false},
		{[]string{}, "a", []string{}, false},
	}

	for _, test := range tests {
		slice := append([]string{}, test.in...)
		removed := RemoveElement(&slice, test.element)
		if removed != test.removed {
			t.Errorf("RemoveElement(%v, %q) removed = %v, want %v", test.in, test.element, removed, test.removed)
		}
		if !reflect.DeepEqual(slice, test.out) {
			t.Errorf("RemoveElement(%v, %q) = %v, want %v", test.in, test.element, slice, test.out)
		}
	}
}
