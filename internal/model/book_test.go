package model

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFilter(t *testing.T) {
	books := []Book{
		{ID: "1", Title: "The Sealed Nectar", Author: "Safiur Rahman Mubarakpuri", Category: "Biography"},
		{ID: "2", Title: "Clean Code", Author: "Robert C. Martin", Category: "Programming"},
	}
	tests := []struct {
		name string
		term string
		want []string
	}{
		{name: "empty term returns all", term: "", want: []string{"1", "2"}},
		{name: "title match ignores case", term: "NECTAR", want: []string{"1"}},
		{name: "author match", term: "martin", want: []string{"2"}},
		{name: "category match", term: "program", want: []string{"2"}},
		{name: "no match", term: "poetry", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := []string{}
			for _, b := range Filter(books, tt.term) {
				got = append(got, b.ID)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Filter(%q) mismatch (-want +got):\n%s", tt.term, diff)
			}
		})
	}
}

func TestFileName(t *testing.T) {
	b := Book{ID: "abc", Title: "AC/DC: Live?"}
	if got, want := b.FileName(), "AC_DC_ Live_.pdf"; got != want {
		t.Errorf("FileName() = %q, want %q", got, want)
	}
	empty := Book{ID: "abc"}
	if got, want := empty.FileName(), "abc.pdf"; got != want {
		t.Errorf("FileName() = %q, want %q", got, want)
	}
}

func TestScale(t *testing.T) {
	if ScaleNormal.Next() != ScaleZoomed || ScaleZoomed.Next() != ScaleNormal {
		t.Fatalf("scale toggle does not cycle through the set")
	}
	if got := ScaleNormal.String(); got != "1.0" {
		t.Errorf("String() = %q, want 1.0", got)
	}
	s, err := ParseScale("1.5")
	if err != nil || s != ScaleZoomed {
		t.Fatalf("ParseScale(1.5) = %v, %v", s, err)
	}
	for _, bad := range []string{"2.0", "abc", "0"} {
		if _, err := ParseScale(bad); err == nil {
			t.Errorf("ParseScale(%q) should fail", bad)
		}
	}
}
