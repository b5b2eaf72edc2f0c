package util

import "testing"

func TestParseIntDefault(t *testing.T) {
	cases := map[string]int{"": 7, "12": 12, " 3 ": 3, "x": 7, "-2": -2}
	for in, want := range cases {
		if got := ParseIntDefault(in, 7); got != want {
			t.Fatalf("ParseIntDefault(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestSplitAssignment(t *testing.T) {
	name, value, ok := SplitAssignment(" pd = sub(sma(close,10),sma(close,30)) ")
	if !ok || name != "pd" || value != "sub(sma(close,10),sma(close,30))" {
		t.Fatalf("unexpected split %q %q %v", name, value, ok)
	}
	name, value, ok = SplitAssignment("a=b=c")
	if !ok || name != "a" || value != "b=c" {
		t.Fatalf("expected split at first '=', got %q %q", name, value)
	}
	for _, bad := range []string{"", "novalue", "=x", "x="} {
		if _, _, ok := SplitAssignment(bad); ok {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}
