package common

import "testing"

func TestHasAny(t *testing.T) {
	if !HasAny("Invalid JWT token", "expired", "JWT") {
		t.Fatal("expected match on JWT")
	}
	if HasAny("Invalid Credentials", "JWT") {
		t.Fatal("did not expect match")
	}
	if HasAny("anything") {
		t.Fatal("no substrings must never match")
	}
}

func TestRound(t *testing.T) {
	tests := []struct {
		x        float64
		decimals int
		want     float64
	}{
		{27.04, 1, 27.0},
		{27.06, 1, 27.1},
		{18.000000000000004, 0, 18},
		{-2.56, 1, -2.6},
		{0.18, 1, 0.2},
	}
	for _, tt := range tests {
		if got := Round(tt.x, tt.decimals); got != tt.want {
			t.Errorf("Round(%v, %d) = %v, want %v", tt.x, tt.decimals, got, tt.want)
		}
	}
}
