package app

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Spok95/okr-tracker/internal/models"
	"github.com/Spok95/okr-tracker/internal/schema"
	"github.com/Spok95/okr-tracker/internal/table"
)

// Credentials — логин встроенного администратора (его нет в таблице Users).
type Credentials struct {
	Email    string
	Password string
}

// Accounts — вход, пароли и ведение таблицы Users.
type Accounts struct {
	store           Store
	log             *zap.Logger
	master          Credentials
	defaultPassword string
}

func NewAccounts(s Store, log *zap.Logger, master Credentials, defaultPassword string) *Accounts {
	if log == nil {
		log = zap.NewNop()
	}
	if defaultPassword == "" {
		defaultPassword = "123"
	}
	return &Accounts{store: s, log: log, master: master, defaultPassword: defaultPassword}
}

func same(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Authenticate проверяет по порядку: встроенный администратор, строка Users по Email,
// строка ученика по EmailPH (вход родителя паролем ребёнка).
func (a *Accounts) Authenticate(ctx context.Context, email, password string) (Identity, error) {
	e := models.NormalizeEmail(email)
	if e == "" || password == "" {
		return Identity{}, ErrUnauthenticated
	}
	if a.master.Email != "" && same(string(e), a.master.Email) && same(password, a.master.Password) {
		return Identity{Email: e, Role: models.Admin, Name: "Admin"}, nil
	}

	users, err := reader(a.store.ReadAll).users(ctx)
	if err != nil {
		return Identity{}, err
	}
	for _, u := range users.All() {
		if u.Email == e && same(u.Password, password) {
			return Identity{Email: u.Email, Role: u.Role, Name: u.Name, Class: u.Class}, nil
		}
	}
	for _, child := range users.Children(e) {
		if same(child.Password, password) {
			return Identity{
				Email:      e,
				Role:       models.Parent,
				Name:       "PH em " + child.Name,
				Class:      child.Class,
				ChildEmail: child.Email,
				ChildName:  child.Name,
			}, nil
		}
	}
	return Identity{}, ErrUnauthenticated
}

// ChangePassword меняет пароль своей строки. Родитель меняет пароль строки ребёнка:
// у родителя нет своей строки, он входит паролем ребёнка.
func (a *Accounts) ChangePassword(ctx context.Context, actor Identity, oldPassword, newPassword string) error {
	if strings.TrimSpace(newPassword) == "" {
		return invalid("new password is empty")
	}
	target := actor.Email
	if actor.Is(models.Parent) {
		target = actor.ChildEmail
	}
	users, err := reader(a.store.ReadFresh).users(ctx)
	if err != nil {
		return err
	}
	u, ok := users.ByEmail(target)
	if !ok {
		// встроенный администратор
		return ErrForbidden
	}
	if !same(u.Password, oldPassword) {
		return ErrUnauthenticated
	}
	if err := a.store.UpdateCell(ctx, schema.Users, schema.ColEmail, string(target), schema.ColPassword, newPassword); err != nil {
		return storeErr(err)
	}
	a.log.Info("password changed", zap.String("user", string(target)), zap.String("by", string(actor.Email)))
	return nil
}

// NewUser — учитель или ученик для добавления. Пустой пароль — пароль по умолчанию.
type NewUser struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	Class       string `json:"class,omitempty"`
	ParentEmail string `json:"parent_email,omitempty"`
	ClassSize   int    `json:"class_size,omitempty"`
	Password    string `json:"password,omitempty"`
}

func (a *Accounts) build(in NewUser, role models.Role) (models.User, error) {
	u := models.User{
		Email:       models.NormalizeEmail(in.Email),
		Password:    in.Password,
		Role:        role,
		Name:        strings.TrimSpace(in.Name),
		Class:       strings.TrimSpace(in.Class),
		ParentEmail: models.NormalizeEmail(in.ParentEmail),
	}
	if u.Email == "" || !strings.Contains(string(u.Email), "@") {
		return models.User{}, invalid("bad email %q", in.Email)
	}
	if u.Name == "" {
		return models.User{}, invalid("name is required for %s", u.Email)
	}
	if u.Class == "" {
		return models.User{}, invalid("class is required for %s", u.Email)
	}
	if u.Password == "" {
		u.Password = a.defaultPassword
	}
	if role == models.Teacher {
		if in.ClassSize < 0 {
			return models.User{}, invalid("class size must be non-negative")
		}
		u.ClassSize = in.ClassSize
	}
	return u, nil
}

// AddTeacher — администратор заводит учителя класса.
func (a *Accounts) AddTeacher(ctx context.Context, actor Identity, in NewUser) (models.User, error) {
	if !actor.Is(models.Admin) {
		return models.User{}, ErrForbidden
	}
	return a.add(ctx, in, models.Teacher)
}

// AddStudent — учитель добавляет ученика в свой класс.
func (a *Accounts) AddStudent(ctx context.Context, actor Identity, in NewUser) (models.User, error) {
	if !actor.Is(models.Teacher) || actor.Class == "" {
		return models.User{}, ErrForbidden
	}
	in.Class = actor.Class
	return a.add(ctx, in, models.Student)
}

func (a *Accounts) add(ctx context.Context, in NewUser, role models.Role) (models.User, error) {
	u, err := a.build(in, role)
	if err != nil {
		return models.User{}, err
	}
	users, err := reader(a.store.ReadFresh).users(ctx)
	if err != nil {
		return models.User{}, err
	}
	if _, exists := users.ByEmail(u.Email); exists || same(string(u.Email), a.master.Email) {
		return models.User{}, fmt.Errorf("%w: user %s", ErrAlreadyExists, u.Email)
	}
	if err := a.store.Append(ctx, schema.Users, u.Row()); err != nil {
		return models.User{}, storeErr(err)
	}
	a.log.Info("user added", zap.String("email", string(u.Email)), zap.String("role", string(role)))
	return u, nil
}

type ImportResult struct {
	Added   []models.Email `json:"added"`
	Skipped []models.Email `json:"skipped"`
}

// ImportUsers — массовое добавление одним append. Уже существующие e-mail пропускаются,
// как и повторы внутри самого импорта. Учитель импортирует только учеников своего класса.
func (a *Accounts) ImportUsers(ctx context.Context, actor Identity, role models.Role, in []NewUser) (ImportResult, error) {
	switch {
	case actor.Is(models.Admin) && (role == models.Teacher || role == models.Student):
	case actor.Is(models.Teacher) && role == models.Student && actor.Class != "":
	default:
		return ImportResult{}, ErrForbidden
	}
	users, err := reader(a.store.ReadFresh).users(ctx)
	if err != nil {
		return ImportResult{}, err
	}

	var res ImportResult
	seen := map[models.Email]bool{}
	rows := make([]table.Row, 0, len(in))
	for _, nu := range in {
		if actor.Is(models.Teacher) {
			nu.Class = actor.Class
		}
		u, err := a.build(nu, role)
		if err != nil {
			return ImportResult{}, err
		}
		if _, exists := users.ByEmail(u.Email); exists || seen[u.Email] {
			res.Skipped = append(res.Skipped, u.Email)
			continue
		}
		seen[u.Email] = true
		res.Added = append(res.Added, u.Email)
		rows = append(rows, u.Row())
	}
	if err := a.store.AppendMany(ctx, schema.Users, rows); err != nil {
		return ImportResult{}, storeErr(err)
	}
	a.log.Info("users imported",
		zap.String("role", string(role)),
		zap.Int("added", len(res.Added)),
		zap.Int("skipped", len(res.Skipped)),
	)
	return res, nil
}

// DeleteUser — администратор удаляет любого, учитель — только ученика своего класса.
func (a *Accounts) DeleteUser(ctx context.Context, actor Identity, email models.Email) error {
	users, err := reader(a.store.ReadFresh).users(ctx)
	if err != nil {
		return err
	}
	u, ok := users.ByEmail(email)
	if !ok {
		return fmt.Errorf("%w: user %s", ErrNotFound, email)
	}
	switch {
	case actor.Is(models.Admin) && u.Email != actor.Email:
	case u.Role == models.Student && actor.TeachesClass(u.Class):
	default:
		return ErrForbidden
	}
	if err := a.store.DeleteRow(ctx, schema.Users, table.Where(schema.ColEmail, string(email))); err != nil {
		return storeErr(err)
	}
	a.log.Info("user deleted", zap.String("email", string(email)), zap.String("by", string(actor.Email)))
	return nil
}

// MoveStudent — администратор переводит ученика в другой класс.
// Уже созданные строки OKR сохраняют прежний Lop.
func (a *Accounts) MoveStudent(ctx context.Context, actor Identity, email models.Email, class string) error {
	if !actor.Is(models.Admin) {
		return ErrForbidden
	}
	class = strings.TrimSpace(class)
	if class == "" {
		return invalid("class is required")
	}
	users, err := reader(a.store.ReadFresh).users(ctx)
	if err != nil {
		return err
	}
	u, ok := users.ByEmail(email)
	if !ok || u.Role != models.Student {
		return fmt.Errorf("%w: student %s", ErrNotFound, email)
	}
	if err := a.store.UpdateCell(ctx, schema.Users, schema.ColEmail, string(email), schema.ColLop, class); err != nil {
		return storeErr(err)
	}
	return nil
}

// List — администратор видит всех (или класс), учитель — свой класс.
func (a *Accounts) List(ctx context.Context, actor Identity, class string) ([]models.User, error) {
	switch {
	case actor.Is(models.Admin):
	case actor.Is(models.Teacher) && actor.Class != "":
		class = actor.Class
	default:
		return nil, ErrForbidden
	}
	users, err := reader(a.store.ReadAll).users(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.User
	for _, u := range users.All() {
		if class == "" || u.Class == class {
			out = append(out, u)
		}
	}
	return out, nil
}
