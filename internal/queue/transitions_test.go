package queue

import "testing"

func TestValidTransition(t *testing.T) {
	cases := []struct {
		outcome string
		from    string
		valid   bool
	}{
		{"attend", "empty", true},
		{"absent", "empty", true},
		{"attend", "attend", false},
		{"attend", "absent", false},
		{"absent", "attend", false},
		{"absent", "absent", false},
		{"empty", "empty", false},
		{"unknown", "empty", false},
	}

	for _, tt := range cases {
		if got := ValidTransition(tt.outcome, tt.from); got != tt.valid {
			t.Fatalf("ValidTransition(%q, %q)=%v, want %v", tt.outcome, tt.from, got, tt.valid)
		}
	}
}
