package app

import "github.com/Spok95/okr-tracker/internal/models"

// Identity — кто выполняет операцию. Выдаётся Accounts.Authenticate.
// Для родителя Email — это EmailPH, а ChildEmail указывает на ученика.
type Identity struct {
	Email      models.Email `json:"email"`
	Role       models.Role  `json:"role"`
	Name       string       `json:"name"`
	Class      string       `json:"class,omitempty"`
	ChildEmail models.Email `json:"child_email,omitempty"`
	ChildName  string       `json:"child_name,omitempty"`
}

func (id Identity) Is(r models.Role) bool { return id.Role == r }

// TeachesClass — учитель именно этого класса.
func (id Identity) TeachesClass(class string) bool {
	return id.Role == models.Teacher && id.Class != "" && id.Class == class
}

// CanView — может ли пользователь смотреть данные ученика.
func (id Identity) CanView(student models.User) bool {
	switch id.Role {
	case models.Admin:
		return true
	case models.Teacher:
		return id.TeachesClass(student.Class)
	case models.Student:
		return id.Email == student.Email
	case models.Parent:
		return id.ChildEmail == student.Email
	}
	return false
}
