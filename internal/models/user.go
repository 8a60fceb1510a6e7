// Package models — типизированные строки таблиц и индексы по ключам.
package models

import (
	"strings"

	"github.com/Spok95/okr-tracker/internal/schema"
	"github.com/Spok95/okr-tracker/internal/table"
)

type Role string

// Значения колонки Role, как они записаны в таблице Users.
const (
	Admin   Role = "Admin"
	Teacher Role = "GiaoVien"
	Student Role = "HocSinh"
	Parent  Role = "PhuHuynh"
)

func (r Role) Valid() bool {
	switch r {
	case Admin, Teacher, Student, Parent:
		return true
	}
	return false
}

// Email — ключ пользователя во всех четырёх таблицах.
type Email string

// NormalizeEmail убирает пробелы по краям; регистр не меняется, сравнение точное.
func NormalizeEmail(s string) Email {
	return Email(strings.TrimSpace(s))
}

type User struct {
	Email       Email  `json:"email"`
	Password    string `json:"-"`
	Role        Role   `json:"role"`
	Name        string `json:"name"`
	Class       string `json:"class,omitempty"`
	ParentEmail Email  `json:"parent_email,omitempty"`
	ClassSize   int    `json:"class_size,omitempty"`
}

func UserFromRow(r table.Row) User {
	return User{
		Email:       NormalizeEmail(r[schema.ColEmail]),
		Password:    r[schema.ColPassword],
		Role:        Role(strings.TrimSpace(r[schema.ColRole])),
		Name:        r[schema.ColHoTen],
		Class:       strings.TrimSpace(r[schema.ColLop]),
		ParentEmail: NormalizeEmail(r[schema.ColEmailPH]),
		ClassSize:   int(schema.Number(r[schema.ColSiSo])),
	}
}

func (u User) Row() table.Row {
	return table.Row{
		schema.ColEmail:    string(u.Email),
		schema.ColPassword: u.Password,
		schema.ColRole:     string(u.Role),
		schema.ColHoTen:    u.Name,
		schema.ColLop:      u.Class,
		schema.ColEmailPH:  string(u.ParentEmail),
		schema.ColSiSo:     schema.FormatNumber(float64(u.ClassSize)),
	}
}

func UsersFrom(t *table.Table) []User {
	out := make([]User, 0, t.Len())
	if t == nil {
		return out
	}
	for _, r := range t.Rows {
		out = append(out, UserFromRow(r))
	}
	return out
}

// UserIndex — пользователи по e-mail, e-mail родителя и классу.
// При повторяющемся e-mail выигрывает первая строка.
type UserIndex struct {
	users    []User
	byEmail  map[Email]int
	byParent map[Email][]int
	byClass  map[string][]int
}

func NewUserIndex(users []User) *UserIndex {
	idx := &UserIndex{
		users:    users,
		byEmail:  make(map[Email]int, len(users)),
		byParent: make(map[Email][]int),
		byClass:  make(map[string][]int),
	}
	for i, u := range users {
		if _, dup := idx.byEmail[u.Email]; !dup {
			idx.byEmail[u.Email] = i
		}
		if u.ParentEmail != "" {
			idx.byParent[u.ParentEmail] = append(idx.byParent[u.ParentEmail], i)
		}
		if u.Class != "" {
			idx.byClass[u.Class] = append(idx.byClass[u.Class], i)
		}
	}
	return idx
}

func (x *UserIndex) All() []User { return x.users }

func (x *UserIndex) ByEmail(e Email) (User, bool) {
	i, ok := x.byEmail[e]
	if !ok {
		return User{}, false
	}
	return x.users[i], true
}

// Children — ученики, у которых указан этот e-mail родителя.
func (x *UserIndex) Children(parent Email) []User {
	return x.pick(x.byParent[parent], Student)
}

func (x *UserIndex) Students(class string) []User {
	return x.pick(x.byClass[class], Student)
}

// TeacherOf — первый учитель класса.
func (x *UserIndex) TeacherOf(class string) (User, bool) {
	for _, i := range x.byClass[class] {
		if x.users[i].Role == Teacher {
			return x.users[i], true
		}
	}
	return User{}, false
}

func (x *UserIndex) Teachers() []User {
	var out []User
	for _, u := range x.users {
		if u.Role == Teacher {
			out = append(out, u)
		}
	}
	return out
}

func (x *UserIndex) pick(ids []int, role Role) []User {
	var out []User
	for _, i := range ids {
		if x.users[i].Role == role {
			out = append(out, x.users[i])
		}
	}
	return out
}
