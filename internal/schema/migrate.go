package schema

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Report — что мигратор поправил при чтении. Это не ошибка, а информация для логов.
type Report struct {
	Table      string
	Backfilled []string // объявленные колонки, которых не было в таблице
	Coerced    int      // числовые ячейки, приведённые к каноническому виду
}

// Repaired — были ли расхождения со схемой.
func (r Report) Repaired() bool {
	return len(r.Backfilled) > 0 || r.Coerced > 0
}

// Migrate приводит прочитанную таблицу к объявленной схеме:
// добавляет недостающие колонки значениями по умолчанию, ставит объявленные колонки
// первыми (в объявленном порядке), сохраняет необъявленные следом и нормализует
// числовые ячейки. Строки меняются на месте. Никогда не падает.
func Migrate[R ~map[string]string](reg *Registry, table string, observed []string, rows []R) ([]string, Report) {
	rep := Report{Table: table}
	declared, _ := reg.ColumnsOf(table)

	seen := make(map[string]bool, len(observed))
	for _, c := range observed {
		seen[c] = true
	}
	// колонки могут быть только в строках (например, JSON-хранилище без заголовка)
	var extra []string
	for _, row := range rows {
		for c := range row {
			if !seen[c] {
				seen[c] = true
				extra = append(extra, c)
			}
		}
	}
	sort.Strings(extra)
	observed = append(append([]string(nil), observed...), extra...)

	isDeclared := make(map[string]bool, len(declared))
	columns := make([]string, 0, len(declared)+len(observed))
	for _, c := range declared {
		isDeclared[c.Name] = true
		columns = append(columns, c.Name)
		if !seen[c.Name] {
			rep.Backfilled = append(rep.Backfilled, c.Name)
		}
	}
	for _, c := range observed {
		if c == "" || isDeclared[c] {
			continue
		}
		isDeclared[c] = true
		columns = append(columns, c)
	}

	for i := range rows {
		if rows[i] == nil {
			rows[i] = R{}
		}
		row := rows[i]
		for _, c := range declared {
			v, ok := row[c.Name]
			if c.Kind != Numeric {
				if !ok {
					row[c.Name] = ""
				}
				continue
			}
			norm := NormalizeNumber(v)
			if ok && norm != v {
				rep.Coerced++
			}
			row[c.Name] = norm
		}
		for _, c := range columns[len(declared):] {
			if _, ok := row[c]; !ok {
				row[c] = ""
			}
		}
	}
	return columns, rep
}

// ParseNumber — разбор числа "как получится": пробелы, запятая как десятичный разделитель.
// ok=false, если ячейка не число.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Number — число из ячейки, 0 при ошибке разбора.
func Number(s string) float64 {
	v, _ := ParseNumber(s)
	return v
}

func FormatNumber(v float64) string {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// NormalizeNumber — каноническая запись числовой ячейки.
func NormalizeNumber(s string) string {
	return FormatNumber(Number(s))
}
