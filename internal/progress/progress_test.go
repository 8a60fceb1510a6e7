package progress

import (
	"math"
	"testing"
)

func TestOf(t *testing.T) {
	cases := []struct {
		name           string
		actual, target float64
		want           float64
	}{
		{"partial", 4, 10, 40},
		{"exact", 10, 10, 100},
		{"clamped", 15, 10, 100},
		{"fraction", 1, 3, 100.0 / 3},
		{"zero target touched", 1, 0, 100},
		{"zero target untouched", 0, 0, 0},
		{"negative target touched", 2, -5, 100},
		{"negative target untouched", -1, -5, 0},
		{"negative actual", -3, 10, 0},
		{"nan actual", math.NaN(), 10, 0},
		{"inf target", 5, math.Inf(1), 100},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Of(c.actual, c.target)
			if math.Abs(got-c.want) > 1e-9 {
				t.Fatalf("Of(%v, %v) = %v, ожидали %v", c.actual, c.target, got, c.want)
			}
		})
	}
}

func TestOf_MatchesFormula(t *testing.T) {
	for target := 1.0; target <= 20; target += 1.5 {
		for actual := 0.0; actual <= 40; actual += 0.75 {
			want := math.Min(100, actual/target*100)
			if got := Of(actual, target); got != want {
				t.Fatalf("Of(%v, %v) = %v, ожидали %v", actual, target, got, want)
			}
		}
	}
}

func TestFromCells(t *testing.T) {
	if got := FromCells("4", "10"); got != 40 {
		t.Fatalf("получили %v", got)
	}
	if got := FromCells("abc", "10"); got != 0 {
		t.Fatalf("мусор должен дать 0, получили %v", got)
	}
	if got := FromCells("2,5", ""); got != 100 {
		t.Fatalf("пустая цель и факт>0 → 100, получили %v", got)
	}
}
