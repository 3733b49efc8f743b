package outbox

import "testing"

func TestPow2IntGrowth(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{-1, 1},
		{0, 1},
		{1, 2},
		{2, 4},
		{6, 64},
	}
	for _, c := range cases {
		if got := pow2Int(c.in); got != c.want {
			t.Errorf("pow2Int(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestMinIntPicksSmaller(t *testing.T) {
	if got := minInt(3, 5); got != 3 {
		t.Errorf("minInt(3,5) = %d, want 3", got)
	}
	if got := minInt(10, 2); got != 2 {
		t.Errorf("minInt(10,2) = %d, want 2", got)
	}
}

func TestContainsAnyFindsSubstring(t *testing.T) {
	if !containsAny("ERROR: duplicate key value violates constraint", []string{"duplicate key"}) {
		t.Fatal("expected match on duplicate key")
	}
	if containsAny("some other error", []string{"duplicate key", "UNIQUE constraint"}) {
		t.Fatal("expected no match")
	}
}

func TestTruncateRespectsLimit(t *testing.T) {
	s := "0123456789"
	if got := truncate(s, 5); got != "01234" {
		t.Errorf("truncate(%q,5) = %q", s, got)
	}
	if got := truncate(s, 100); got != s {
		t.Errorf("truncate should not pad short strings, got %q", got)
	}
}
