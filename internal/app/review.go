package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Spok95/okr-tracker/internal/models"
	"github.com/Spok95/okr-tracker/internal/schema"
	"github.com/Spok95/okr-tracker/internal/table"
)

// Reviews — итоговый отзыв за период: одна строка на (Email, Dot), которую
// создаёт тот, кто пишет первым (учитель или родитель), а второй дописывает своё поле.
type Reviews struct {
	store Store
	log   *zap.Logger
}

func NewReviews(s Store, log *zap.Logger) *Reviews {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reviews{store: s, log: log}
}

// TeacherReview — что учитель меняет. nil-поле не трогается.
type TeacherReview struct {
	Comment   *string `json:"comment,omitempty"`
	Finalized *bool   `json:"finalized,omitempty"`
}

// SaveTeacher — отзыв учителя класса в открытом периоде.
// Комментарий зафиксированного отзыва менять нельзя, если тот же запрос не снимает фиксацию.
func (s *Reviews) SaveTeacher(ctx context.Context, actor Identity, student models.Email, period models.PeriodName, in TeacherReview) (models.FinalReview, error) {
	if in.Comment == nil && in.Finalized == nil {
		return models.FinalReview{}, invalid("nothing to save")
	}
	fresh := reader(s.store.ReadFresh)
	users, err := fresh.users(ctx)
	if err != nil {
		return models.FinalReview{}, err
	}
	u, ok := users.ByEmail(student)
	if !ok || u.Role != models.Student {
		return models.FinalReview{}, fmt.Errorf("%w: student %s", ErrNotFound, student)
	}
	if !actor.TeachesClass(u.Class) {
		return models.FinalReview{}, ErrForbidden
	}
	if err := fresh.requireOpen(ctx, period); err != nil {
		return models.FinalReview{}, err
	}

	key := models.ReviewKey{Student: student, Period: period}
	existing, found, err := s.find(ctx, key)
	if err != nil {
		return models.FinalReview{}, err
	}
	unfinalize := in.Finalized != nil && !*in.Finalized
	if found && existing.Finalized() && in.Comment != nil && *in.Comment != existing.TeacherComment && !unfinalize {
		return models.FinalReview{}, ErrReviewFinalized
	}

	fields := table.Row{}
	if in.Comment != nil {
		fields[schema.ColNhanXetCuoiKy] = *in.Comment
		existing.TeacherComment = *in.Comment
	}
	if in.Finalized != nil {
		st := models.ReviewDraft
		if *in.Finalized {
			st = models.ReviewFinalized
		}
		fields[schema.ColTrangThaiCuoiKy] = string(st)
		existing.Status = st
	}
	if err := s.upsert(ctx, key, found, fields); err != nil {
		return models.FinalReview{}, err
	}
	s.log.Info("final review saved by teacher",
		zap.String("student", string(student)),
		zap.String("period", string(period)),
		zap.Bool("created", !found),
		zap.String("status", string(existing.Status)),
	)
	return existing, nil
}

// SaveParent — отзыв родителя о своём ребёнке. От статуса периода и фиксации не зависит.
func (s *Reviews) SaveParent(ctx context.Context, actor Identity, period models.PeriodName, feedback string) (models.FinalReview, error) {
	if !actor.Is(models.Parent) || actor.ChildEmail == "" {
		return models.FinalReview{}, ErrForbidden
	}
	if period == "" {
		return models.FinalReview{}, invalid("period is required")
	}
	key := models.ReviewKey{Student: actor.ChildEmail, Period: period}
	existing, found, err := s.find(ctx, key)
	if err != nil {
		return models.FinalReview{}, err
	}
	existing.ParentFeedback = feedback
	if err := s.upsert(ctx, key, found, table.Row{schema.ColPhanHoiPH: feedback}); err != nil {
		return models.FinalReview{}, err
	}
	return existing, nil
}

// Get — отзыв ученика за период. found=false, если отзыва ещё нет.
func (s *Reviews) Get(ctx context.Context, viewer Identity, student models.Email, period models.PeriodName) (models.FinalReview, bool, error) {
	read := reader(s.store.ReadAll)
	users, err := read.users(ctx)
	if err != nil {
		return models.FinalReview{}, false, err
	}
	u, ok := users.ByEmail(student)
	if !ok {
		return models.FinalReview{}, false, fmt.Errorf("%w: student %s", ErrNotFound, student)
	}
	if !viewer.CanView(u) {
		return models.FinalReview{}, false, ErrForbidden
	}
	idx, err := read.reviews(ctx)
	if err != nil {
		return models.FinalReview{}, false, err
	}
	r, found := idx.Get(models.ReviewKey{Student: student, Period: period})
	if !found {
		r = models.FinalReview{Student: student, Period: period, Status: models.ReviewDraft}
	}
	return r, found, nil
}

// find — свежее чтение по естественному ключу. Отсутствующий отзыв возвращается заготовкой.
func (s *Reviews) find(ctx context.Context, key models.ReviewKey) (models.FinalReview, bool, error) {
	idx, err := reader(s.store.ReadFresh).reviews(ctx)
	if err != nil {
		return models.FinalReview{}, false, err
	}
	if n := idx.Duplicates(); n > 0 {
		s.log.Warn("duplicate final review rows merged", zap.Int("extra_rows", n))
	}
	r, ok := idx.Get(key)
	if !ok {
		r = models.FinalReview{Student: key.Student, Period: key.Period, Status: models.ReviewDraft}
	}
	return r, ok, nil
}

// upsert — второй шаг find-or-create: либо добавить строку целиком, либо точечно
// обновить только переданные поля. Ошибка второго шага возвращается, без повторов.
func (s *Reviews) upsert(ctx context.Context, key models.ReviewKey, found bool, fields table.Row) error {
	var err error
	if found {
		err = s.store.UpdateRow(ctx, schema.FinalReviews, key.Match(), fields)
	} else {
		row := models.FinalReview{Student: key.Student, Period: key.Period, Status: models.ReviewDraft}.Row()
		for k, v := range fields {
			row[k] = v
		}
		err = s.store.Append(ctx, schema.FinalReviews, row)
	}
	return storeErr(err)
}
