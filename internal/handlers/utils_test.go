package handlers

import (
	"reflect"
	"testing"
)

func TestParseIDList(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   []int
	}{
		{"empty", nil, []int{}},
		{"repeated", []string{"1", "2"}, []int{1, 2}},
		{"comma list", []string{"3, 4,5"}, []int{3, 4, 5}},
		{"json array", []string{"[6,7]"}, []int{6, 7}},
		{"mixed", []string{"[1]", "2,3", ""}, []int{1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseIDList(tt.values)
			if err != nil {
				t.Fatalf("parseIDList: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("parseIDList(%v) = %v, want %v", tt.values, got, tt.want)
			}
		})
	}

	for _, bad := range []string{"a", "1,x", "[1,", "-3", "[0]"} {
		if _, err := parseIDList([]string{bad}); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
