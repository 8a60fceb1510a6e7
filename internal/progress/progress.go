// Package progress считает процент выполнения ключевого результата.
package progress

import (
	"math"

	"github.com/Spok95/okr-tracker/internal/schema"
)

// Of — процент выполнения в [0, 100].
// Нулевая (или отрицательная) цель считается выполненной, как только есть хоть какой-то факт.
func Of(actual, target float64) float64 {
	if math.IsNaN(actual) || math.IsInf(actual, 0) {
		actual = 0
	}
	if math.IsNaN(target) || math.IsInf(target, 0) {
		target = 0
	}
	if target <= 0 {
		if actual > 0 {
			return 100
		}
		return 0
	}
	p := actual / target * 100
	switch {
	case p > 100:
		return 100
	case p < 0:
		return 0
	}
	return p
}

// FromCells — то же для сырых ячеек таблицы; нечисловое значение считается нулём.
func FromCells(actual, target string) float64 {
	return Of(schema.Number(actual), schema.Number(target))
}
