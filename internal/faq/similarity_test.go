package faq

import (
	"math"
	"testing"
)

func TestRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "hello", "hello", 1},
		{"disjoint", "abc", "xyz", 0},
		{"both empty", "", "", 1},
		{"one empty", "abc", "", 0},
		{"classic overlap", "abcd", "bcde", 0.75},
		{"case sensitive", "Hello", "hello", 2 * 4.0 / 10.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Ratio(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("Ratio(%q,%q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestRatioSymmetricOnLength(t *testing.T) {
	a, b := "what are your opening hours", "what are your working hours"
	if Ratio(a, b) != Ratio(b, a) {
		t.Fatal("ratio must not depend on argument order for equal-length inputs")
	}
	if Ratio(a, b) < 0.8 {
		t.Fatalf("near-identical phrases should score high, got %v", Ratio(a, b))
	}
}

func TestRatioCountsAllMatchingBlocks(t *testing.T) {
	// "ab" + "ef" match around the mismatched middle.
	got := Ratio("abxef", "abyef")
	want := 2 * 4.0 / 10.0
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("Ratio = %v, want %v", got, want)
	}
}
