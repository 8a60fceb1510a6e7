// Package table — единственный шлюз к табличному хранилищу: чтение с миграцией схемы и кэшем,
// точечные записи (ячейка/строка), добавление и удаление строк.
package table

import (
	"strings"
)

// Row — строка таблицы: колонка -> значение ячейки.
type Row map[string]string

func (r Row) Get(col string) string { return r[col] }

func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Cond — равенство значения колонки.
type Cond struct {
	Column string
	Value  string
}

// Match — конъюнкция равенств. Адресация строк только по значениям колонок.
type Match []Cond

// Where — совпадение по одной колонке (ID, Email, TenDot).
func Where(col, val string) Match {
	return Match{{Column: col, Value: val}}
}

// And добавляет условие, не трогая исходный Match.
func (m Match) And(col, val string) Match {
	out := make(Match, len(m), len(m)+1)
	copy(out, m)
	return append(out, Cond{Column: col, Value: val})
}

// Matches сравнивает значения без пробелов по краям: чтение моделей обрезает ключи так же.
func (m Match) Matches(r Row) bool {
	if len(m) == 0 {
		return false
	}
	for _, c := range m {
		if strings.TrimSpace(r[c.Column]) != strings.TrimSpace(c.Value) {
			return false
		}
	}
	return true
}

// Fields — условия как строка-образец (для JSON-хранилищ).
func (m Match) Fields() Row {
	out := make(Row, len(m))
	for _, c := range m {
		out[c.Column] = c.Value
	}
	return out
}

func (m Match) String() string {
	parts := make([]string, 0, len(m))
	for _, c := range m {
		parts = append(parts, c.Column+"="+c.Value)
	}
	return strings.Join(parts, "&")
}

// Table — мигрированный снимок таблицы. Пустой Rows означает "подтверждённо пусто";
// неизвестное состояние выражается ошибкой, а не пустой таблицей.
type Table struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
	Version int64    `json:"version"`
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	out := &Table{
		Name:    t.Name,
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([]Row, len(t.Rows)),
		Version: t.Version,
	}
	for i, r := range t.Rows {
		out.Rows[i] = r.Clone()
	}
	return out
}

// Find — первая подходящая строка (тот же порядок, что и у точечных записей).
func (t *Table) Find(m Match) (Row, bool) {
	for _, r := range t.Rows {
		if m.Matches(r) {
			return r, true
		}
	}
	return nil, false
}

func (t *Table) Filter(m Match) []Row {
	var out []Row
	for _, r := range t.Rows {
		if m.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// Index — позиции строк по значению колонки.
func (t *Table) Index(col string) map[string][]int {
	idx := make(map[string][]int, len(t.Rows))
	for i, r := range t.Rows {
		v := r[col]
		idx[v] = append(idx[v], i)
	}
	return idx
}

func (t *Table) HasColumn(col string) bool {
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}
