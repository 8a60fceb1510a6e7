package app

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Spok95/okr-tracker/internal/models"
	"github.com/Spok95/okr-tracker/internal/progress"
	"github.com/Spok95/okr-tracker/internal/schema"
	"github.com/Spok95/okr-tracker/internal/table"
)

// KeyResults — жизненный цикл строки OKR.
//
//	Chờ duyệt <-> Cần sửa <-> Đã duyệt   (учитель, период открыт)
//	ThucDat/TienDo                       (ученик, только Đã duyệt, период открыт)
//	YeuCauXoa=TRUE -> удаление           (ученик просит, учитель удаляет)
//	DiemHaiLong_PH, NhanXet_PH           (родитель, в любой момент)
type KeyResults struct {
	store Store
	log   *zap.Logger
	newID func() string
}

func NewKeyResults(s Store, log *zap.Logger) *KeyResults {
	if log == nil {
		log = zap.NewNop()
	}
	return &KeyResults{store: s, log: log, newID: uuid.NewString}
}

type NewKeyResult struct {
	Period      models.PeriodName `json:"period"`
	Objective   string            `json:"objective"`
	Description string            `json:"key_result"`
	Target      float64           `json:"target"`
	Unit        string            `json:"unit"`
}

type RevisedKeyResult struct {
	Objective   string  `json:"objective"`
	Description string  `json:"key_result"`
	Target      float64 `json:"target"`
	Unit        string  `json:"unit"`
}

func validText(objective, description string) (string, string, error) {
	objective = strings.TrimSpace(objective)
	description = strings.TrimSpace(description)
	if objective == "" || description == "" {
		return "", "", invalid("objective and key result are required")
	}
	return objective, description, nil
}

func validAmount(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return invalid("%s must be a non-negative number", name)
	}
	return nil
}

// Create — ученик регистрирует ключевой результат в открытом периоде.
func (s *KeyResults) Create(ctx context.Context, actor Identity, in NewKeyResult) (models.KeyResult, error) {
	if !actor.Is(models.Student) {
		return models.KeyResult{}, ErrForbidden
	}
	objective, description, err := validText(in.Objective, in.Description)
	if err != nil {
		return models.KeyResult{}, err
	}
	if err := validAmount("target", in.Target); err != nil {
		return models.KeyResult{}, err
	}
	fresh := reader(s.store.ReadFresh)
	if err := fresh.requireOpen(ctx, in.Period); err != nil {
		return models.KeyResult{}, err
	}
	idx, err := fresh.keyResults(ctx)
	if err != nil {
		return models.KeyResult{}, err
	}
	if idx.HasDuplicate(actor.Email, in.Period, objective, description) {
		return models.KeyResult{}, ErrDuplicateObjective
	}

	kr := models.KeyResult{
		ID:          models.KeyResultID(s.newID()),
		Student:     actor.Email,
		Class:       actor.Class,
		Period:      in.Period,
		Objective:   objective,
		Description: description,
		Target:      in.Target,
		Unit:        strings.TrimSpace(in.Unit),
		Progress:    progress.Of(0, in.Target),
		Status:      models.StatusPending,
	}
	if err := s.store.Append(ctx, schema.OKRs, kr.Row()); err != nil {
		return models.KeyResult{}, storeErr(err)
	}
	s.log.Info("key result created",
		zap.String("id", string(kr.ID)),
		zap.String("student", string(kr.Student)),
		zap.String("period", string(kr.Period)),
	)
	return kr, nil
}

// Decide — учитель класса ставит статус и, если передан, комментарий. Переходы в обе стороны разрешены.
func (s *KeyResults) Decide(ctx context.Context, actor Identity, id models.KeyResultID, status models.KeyResultStatus, comment *string) error {
	if !status.Valid() {
		return invalid("unknown status %q", status)
	}
	kr, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if !actor.TeachesClass(kr.Class) {
		return ErrForbidden
	}
	if err := reader(s.store.ReadAll).requireOpen(ctx, kr.Period); err != nil {
		return err
	}
	fields := table.Row{schema.ColTrangThai: string(status)}
	if comment != nil {
		fields[schema.ColNhanXetGV] = *comment
	}
	if err := s.store.UpdateRow(ctx, schema.OKRs, table.Where(schema.ColID, string(id)), fields); err != nil {
		return storeErr(err)
	}
	s.log.Info("key result decided",
		zap.String("id", string(id)),
		zap.String("status", string(status)),
		zap.String("teacher", string(actor.Email)),
	)
	return nil
}

func (s *KeyResults) Approve(ctx context.Context, actor Identity, id models.KeyResultID, comment *string) error {
	return s.Decide(ctx, actor, id, models.StatusApproved, comment)
}

func (s *KeyResults) RequestRevision(ctx context.Context, actor Identity, id models.KeyResultID, comment string) error {
	return s.Decide(ctx, actor, id, models.StatusNeedsRevision, &comment)
}

// Edit — ученик правит ещё не утверждённый ключевой результат; статус возвращается в Chờ duyệt.
func (s *KeyResults) Edit(ctx context.Context, actor Identity, id models.KeyResultID, in RevisedKeyResult) error {
	objective, description, err := validText(in.Objective, in.Description)
	if err != nil {
		return err
	}
	if err := validAmount("target", in.Target); err != nil {
		return err
	}
	fresh := reader(s.store.ReadFresh)
	idx, err := fresh.keyResults(ctx)
	if err != nil {
		return err
	}
	kr, ok := idx.Get(id)
	if !ok {
		return fmt.Errorf("%w: key result %s", ErrNotFound, id)
	}
	if !actor.Is(models.Student) || kr.Student != actor.Email {
		return ErrForbidden
	}
	if kr.Approved() {
		return ErrAlreadyApproved
	}
	if err := fresh.requireOpen(ctx, kr.Period); err != nil {
		return err
	}
	if objective != kr.Objective || description != kr.Description {
		if idx.HasDuplicate(actor.Email, kr.Period, objective, description) {
			return ErrDuplicateObjective
		}
	}

	fields := table.Row{
		schema.ColMucTieu:        objective,
		schema.ColKetQuaThenChot: description,
		schema.ColMucTieuSo:      schema.FormatNumber(in.Target),
		schema.ColDonVi:          strings.TrimSpace(in.Unit),
		schema.ColTienDo:         schema.FormatNumber(progress.Of(kr.Actual, in.Target)),
		schema.ColTrangThai:      string(models.StatusPending),
	}
	if err := s.store.UpdateRow(ctx, schema.OKRs, table.Where(schema.ColID, string(id)), fields); err != nil {
		return storeErr(err)
	}
	return nil
}

// UpdateActual — ученик вносит факт; TienDo пересчитывается в той же записи.
func (s *KeyResults) UpdateActual(ctx context.Context, actor Identity, id models.KeyResultID, actual float64) (models.KeyResult, error) {
	if err := validAmount("actual", actual); err != nil {
		return models.KeyResult{}, err
	}
	kr, err := s.get(ctx, id)
	if err != nil {
		return models.KeyResult{}, err
	}
	if !actor.Is(models.Student) || kr.Student != actor.Email {
		return models.KeyResult{}, ErrForbidden
	}
	if !kr.Approved() {
		return models.KeyResult{}, ErrNotApproved
	}
	if err := reader(s.store.ReadAll).requireOpen(ctx, kr.Period); err != nil {
		return models.KeyResult{}, err
	}
	fields := models.ProgressFields(actual, kr.Target)
	if err := s.store.UpdateRow(ctx, schema.OKRs, table.Where(schema.ColID, string(id)), fields); err != nil {
		return models.KeyResult{}, storeErr(err)
	}
	kr.Actual = actual
	kr.Progress = progress.Of(actual, kr.Target)
	return kr, nil
}

// RequestDeletion — ученик просит удалить строку. Отменить просьбу нельзя.
func (s *KeyResults) RequestDeletion(ctx context.Context, actor Identity, id models.KeyResultID) error {
	kr, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if !actor.Is(models.Student) || kr.Student != actor.Email {
		return ErrForbidden
	}
	if err := reader(s.store.ReadAll).requireOpen(ctx, kr.Period); err != nil {
		return err
	}
	if kr.DeletionRequested {
		return nil
	}
	err = s.store.UpdateCell(ctx, schema.OKRs, schema.ColID, string(id), schema.ColYeuCauXoa, models.FlagTrue)
	return storeErr(err)
}

// Delete — учитель класса удаляет строку, о которой попросил ученик.
func (s *KeyResults) Delete(ctx context.Context, actor Identity, id models.KeyResultID) error {
	kr, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if !actor.TeachesClass(kr.Class) {
		return ErrForbidden
	}
	if !kr.DeletionRequested {
		return ErrDeletionNotRequested
	}
	if err := s.store.DeleteRow(ctx, schema.OKRs, table.Where(schema.ColID, string(id))); err != nil {
		return storeErr(err)
	}
	s.log.Info("key result deleted", zap.String("id", string(id)), zap.String("teacher", string(actor.Email)))
	return nil
}

// Rate — родитель ставит оценку 0..5 (0 — снять оценку) и комментарий.
func (s *KeyResults) Rate(ctx context.Context, actor Identity, id models.KeyResultID, stars int, comment *string) error {
	if stars < 0 || stars > models.MaxRating {
		return invalid("rating must be between 0 and %d", models.MaxRating)
	}
	kr, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if !actor.Is(models.Parent) || kr.Student != actor.ChildEmail {
		return ErrForbidden
	}
	fields := table.Row{schema.ColDiemHaiLongPH: schema.FormatNumber(float64(stars))}
	if comment != nil {
		fields[schema.ColNhanXetPH] = *comment
	}
	if err := s.store.UpdateRow(ctx, schema.OKRs, table.Where(schema.ColID, string(id)), fields); err != nil {
		return storeErr(err)
	}
	return nil
}

// Get — строка по ID без проверки прав.
func (s *KeyResults) Get(ctx context.Context, id models.KeyResultID) (models.KeyResult, error) {
	idx, err := reader(s.store.ReadAll).keyResults(ctx)
	if err != nil {
		return models.KeyResult{}, err
	}
	kr, ok := idx.Get(id)
	if !ok {
		return models.KeyResult{}, fmt.Errorf("%w: key result %s", ErrNotFound, id)
	}
	return kr, nil
}

// ForStudent — ключевые результаты ученика за период, сгруппированные по цели.
func (s *KeyResults) ForStudent(ctx context.Context, viewer Identity, student models.Email, period models.PeriodName) ([]models.ObjectiveGroup, error) {
	read := reader(s.store.ReadAll)
	users, err := read.users(ctx)
	if err != nil {
		return nil, err
	}
	u, ok := users.ByEmail(student)
	if !ok {
		return nil, fmt.Errorf("%w: student %s", ErrNotFound, student)
	}
	if !viewer.CanView(u) {
		return nil, ErrForbidden
	}
	idx, err := read.keyResults(ctx)
	if err != nil {
		return nil, err
	}
	return models.GroupByObjective(idx.ForStudent(student, period)), nil
}

// ForClass — все строки класса за период (по колонке Lop строки OKR).
func (s *KeyResults) ForClass(ctx context.Context, viewer Identity, class string, period models.PeriodName) ([]models.KeyResult, error) {
	if !viewer.Is(models.Admin) && !viewer.TeachesClass(class) {
		return nil, ErrForbidden
	}
	idx, err := reader(s.store.ReadAll).keyResults(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.KeyResult
	for _, k := range idx.InPeriod(period) {
		if k.Class == class {
			out = append(out, k)
		}
	}
	return out, nil
}

// get — свежее чтение перед записью: права и статус проверяются по актуальной строке.
func (s *KeyResults) get(ctx context.Context, id models.KeyResultID) (models.KeyResult, error) {
	idx, err := reader(s.store.ReadFresh).keyResults(ctx)
	if err != nil {
		return models.KeyResult{}, err
	}
	kr, ok := idx.Get(id)
	if !ok {
		return models.KeyResult{}, fmt.Errorf("%w: key result %s", ErrNotFound, id)
	}
	return kr, nil
}
