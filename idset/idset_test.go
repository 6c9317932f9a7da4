package idset

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []string{
		"",
		"0",
		"0-3",
		"0-3,7,9-11",
		"5,6,7",    // should normalize to "5-7"
		"10,0,5",   // unordered input should normalize
		"0-0",      // single-element range should render as "0"
	}
	want := map[string]string{
		"5,6,7":  "5-7",
		"10,0,5": "0,5,10",
		"0-0":    "0",
	}
	for _, in := range cases {
		s, err := Decode(in)
		if err != nil {
			t.Fatalf("Decode(%q) error: %v", in, err)
		}
		got := Encode(s)
		expect := in
		if w, ok := want[in]; ok {
			expect = w
		}
		if got != expect {
			t.Errorf("Decode(%q) -> Encode = %q, want %q", in, got, expect)
		}
		again, err := Decode(got)
		if err != nil {
			t.Fatalf("Decode(%q) (re-decode) error: %v", got, err)
		}
		if !again.Equal(s) {
			t.Errorf("re-decode of %q did not round-trip", got)
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	bad := []string{"a", "1-", "-1", "3-1", "1,,2", " "}
	for _, in := range bad {
		if _, err := Decode(in); err == nil {
			t.Errorf("Decode(%q) expected error, got nil", in)
		}
	}
}

func TestSetAlgebra(t *testing.T) {
	a := New(0, 1, 2, 3)
	b := New(2, 3, 4, 5)

	union := a.Union(b)
	if union.String() != "0-5" {
		t.Errorf("Union = %q, want 0-5", union.String())
	}

	inter := a.Intersect(b)
	if inter.String() != "2-3" {
		t.Errorf("Intersect = %q, want 2-3", inter.String())
	}

	diff := a.Difference(b)
	if diff.String() != "0-1" {
		t.Errorf("Difference = %q, want 0-1", diff.String())
	}

	if !inter.Subset(a) || !inter.Subset(b) {
		t.Errorf("intersection must be a subset of both operands")
	}
}

func TestContainsAndLen(t *testing.T) {
	s, err := Decode("0-3,7,9-11")
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 8 {
		t.Errorf("Len = %d, want 8", s.Len())
	}
	for _, r := range []Rank{0, 1, 2, 3, 7, 9, 10, 11} {
		if !s.Contains(r) {
			t.Errorf("expected set to contain %d", r)
		}
	}
	for _, r := range []Rank{4, 5, 6, 8, 12} {
		if s.Contains(r) {
			t.Errorf("expected set not to contain %d", r)
		}
	}
}

func TestAddRemove(t *testing.T) {
	s := New(0, 2, 4)
	s = s.Add(1).Add(3)
	if s.String() != "0-4" {
		t.Errorf("got %q, want 0-4", s.String())
	}
	s = s.Remove(2)
	if s.String() != "0-1,3-4" {
		t.Errorf("got %q, want 0-1,3-4", s.String())
	}
}

func TestTextMarshalRoundTrip(t *testing.T) {
	s := New(0, 1, 2, 5)
	text, err := s.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	var got Set
	if err := got.UnmarshalText(text); err != nil {
		t.Fatal(err)
	}
	if !got.Equal(s) {
		t.Errorf("round trip mismatch: %q -> %q", s, got)
	}
}
