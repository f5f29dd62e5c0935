package mathx

import (
	"testing"
	"time"
)

func TestClamp(t *testing.T) {
	cases := []struct {
		v, lo, hi, want int
	}{
		{5, 0, 10, 5},
		{-1, 0, 10, 0},
		{11, 0, 10, 10},
		{5, 10, 0, 5}, // swapped bounds
	}
	for _, c := range cases {
		if got := Clamp(c.v, c.lo, c.hi); got != c.want {
			t.Fatalf("Clamp(%d,%d,%d)=%d want %d", c.v, c.lo, c.hi, got, c.want)
		}
	}
	if got := Clamp(45*time.Second, 0, 30*time.Second); got != 30*time.Second {
		t.Fatalf("duration clamp = %v", got)
	}
}

func TestBetween(t *testing.T) {
	if !Between(500, 500, 60000) || !Between(60000, 60000, 500) {
		t.Fatal("bounds should be inclusive and order-insensitive")
	}
	if Between(499, 500, 60000) {
		t.Fatal("499 is out of range")
	}
}

func TestSpan(t *testing.T) {
	if got := Span(50.0, 100.0, 120); got != 60 {
		t.Fatalf("half scale = %d", got)
	}
	if got := Span(150, 100, 120); got != 120 {
		t.Fatalf("over scale = %d", got)
	}
	if got := Span(-3, 100, 120); got != 0 {
		t.Fatalf("under scale = %d", got)
	}
	if got := Span(10, 0, 120); got != 0 {
		t.Fatalf("zero full scale = %d", got)
	}
}
