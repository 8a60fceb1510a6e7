package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Spok95/okr-tracker/internal/app"
	"github.com/Spok95/okr-tracker/internal/cache"
	"github.com/Spok95/okr-tracker/internal/models"
	"github.com/Spok95/okr-tracker/internal/schema"
	"github.com/Spok95/okr-tracker/internal/table"
)

const (
	adminEmail = "admin@school.com"
	teacherA   = "gv.10a1@school.com"
	teacherB   = "gv.10a2@school.com"
	studentA   = "hs1@school.com"
	parentA    = "ph1@school.com"
	period     = models.PeriodName("HK1 2025-2026")
	locked     = models.PeriodName("HK2 2024-2025")
)

type fixture struct {
	mem   *table.MemoryBackend
	store *table.Store
	svc   app.Services

	admin, teacher, otherTeacher, student, parent app.Identity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	mem := table.NewMemoryBackend()
	st := table.NewStore(mem, schema.Default(), table.WithCache(cache.NewMemory(time.Minute)))

	f := &fixture{
		mem:   mem,
		store: st,
		svc: app.Services{
			Accounts:   app.NewAccounts(st, nil, app.Credentials{Email: adminEmail, Password: "123"}, ""),
			Periods:    app.NewPeriods(st, nil),
			KeyResults: app.NewKeyResults(st, nil),
			Reviews:    app.NewReviews(st, nil),
			Stats:      app.NewStats(st),
			Reports:    app.NewReports(st),
			Admin:      app.NewAdmin(st, nil),
		},
	}

	users := []models.User{
		{Email: teacherA, Password: "gv", Role: models.Teacher, Name: "Cô Lan", Class: "10A1", ClassSize: 30},
		{Email: teacherB, Password: "gv", Role: models.Teacher, Name: "Thầy Minh", Class: "10A2"},
		{Email: studentA, Password: "hs", Role: models.Student, Name: "Nguyễn An", Class: "10A1", ParentEmail: parentA},
	}
	for _, u := range users {
		if err := st.Append(ctx, schema.Users, u.Row()); err != nil {
			t.Fatalf("не удалось добавить пользователя: %v", err)
		}
	}
	for _, p := range []models.Period{
		{Name: locked, Status: models.PeriodLocked},
		{Name: period, Status: models.PeriodOpen},
	} {
		if err := st.Append(ctx, schema.Periods, p.Row()); err != nil {
			t.Fatalf("не удалось добавить период: %v", err)
		}
	}

	f.admin = f.login(t, adminEmail, "123")
	f.teacher = f.login(t, teacherA, "gv")
	f.otherTeacher = f.login(t, teacherB, "gv")
	f.student = f.login(t, studentA, "hs")
	f.parent = f.login(t, parentA, "hs")
	return f
}

func (f *fixture) login(t *testing.T, email, password string) app.Identity {
	t.Helper()
	id, err := f.svc.Accounts.Authenticate(context.Background(), email, password)
	if err != nil {
		t.Fatalf("вход %s: %v", email, err)
	}
	return id
}

func (f *fixture) createKR(t *testing.T, objective, kr string, target float64) models.KeyResult {
	t.Helper()
	out, err := f.svc.KeyResults.Create(context.Background(), f.student, app.NewKeyResult{
		Period: period, Objective: objective, Description: kr, Target: target, Unit: "cuốn",
	})
	if err != nil {
		t.Fatalf("создание OKR: %v", err)
	}
	return out
}

func TestKeyResult_BooksScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	kr := f.createKR(t, "Đọc sách", "Đọc 10 cuốn sách", 10)
	if kr.Status != models.StatusPending || kr.Progress != 0 {
		t.Fatalf("новая строка: статус %q, прогресс %v", kr.Status, kr.Progress)
	}

	if _, err := f.svc.KeyResults.UpdateActual(ctx, f.student, kr.ID, 1); !errors.Is(err, app.ErrNotApproved) {
		t.Fatalf("факт до утверждения: ожидали ErrNotApproved, получили %v", err)
	}
	if err := f.svc.KeyResults.Approve(ctx, f.teacher, kr.ID, nil); err != nil {
		t.Fatalf("утверждение: %v", err)
	}

	for _, step := range []struct{ actual, progress float64 }{{4, 40}, {10, 100}} {
		got, err := f.svc.KeyResults.UpdateActual(ctx, f.student, kr.ID, step.actual)
		if err != nil {
			t.Fatalf("факт %v: %v", step.actual, err)
		}
		if got.Progress != step.progress {
			t.Fatalf("факт %v: ожидали прогресс %v, получили %v", step.actual, step.progress, got.Progress)
		}
	}
	if _, err := f.svc.KeyResults.UpdateActual(ctx, f.student, kr.ID, 15); err != nil {
		t.Fatalf("факт 15: %v", err)
	}

	stored, err := f.svc.KeyResults.Get(ctx, kr.ID)
	if err != nil {
		t.Fatalf("чтение: %v", err)
	}
	if stored.Actual != 15 || stored.Progress != 100 {
		t.Fatalf("после перевыполнения: факт %v, прогресс %v; ожидали 15 и 100", stored.Actual, stored.Progress)
	}
	if stored.Status != models.StatusApproved {
		t.Fatalf("статус изменился: %q", stored.Status)
	}
}

func TestKeyResult_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	kr := f.createKR(t, "Toán", "Giải 50 bài", 50)

	cases := []struct {
		name string
		err  error
		want error
	}{
		{"дубликат цели", func() error {
			_, err := f.svc.KeyResults.Create(ctx, f.student, app.NewKeyResult{Period: period, Objective: " Toán ", Description: "Giải 50 bài", Target: 10})
			return err
		}(), app.ErrDuplicateObjective},
		{"закрытый период", func() error {
			_, err := f.svc.KeyResults.Create(ctx, f.student, app.NewKeyResult{Period: locked, Objective: "Văn", Description: "Viết 3 bài", Target: 3})
			return err
		}(), app.ErrPeriodLocked},
		{"отрицательная цель", func() error {
			_, err := f.svc.KeyResults.Create(ctx, f.student, app.NewKeyResult{Period: period, Objective: "Văn", Description: "Viết", Target: -1})
			return err
		}(), app.ErrInvalidInput},
		{"учитель создаёт", func() error {
			_, err := f.svc.KeyResults.Create(ctx, f.teacher, app.NewKeyResult{Period: period, Objective: "Văn", Description: "Viết", Target: 1})
			return err
		}(), app.ErrForbidden},
		{"чужой учитель", f.svc.KeyResults.Approve(ctx, f.otherTeacher, kr.ID, nil), app.ErrForbidden},
		{"неизвестный статус", f.svc.KeyResults.Decide(ctx, f.teacher, kr.ID, "Xong", nil), app.ErrInvalidInput},
		{"оценка вне диапазона", f.svc.KeyResults.Rate(ctx, f.parent, kr.ID, 6, nil), app.ErrInvalidInput},
		{"нет строки", f.svc.KeyResults.Approve(ctx, f.teacher, "missing", nil), app.ErrNotFound},
	}
	for _, c := range cases {
		if !errors.Is(c.err, c.want) {
			t.Fatalf("%s: ожидали %v, получили %v", c.name, c.want, c.err)
		}
	}
}

func TestKeyResult_EditReturnsToPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	kr := f.createKR(t, "Toán", "Giải 50 bài", 50)

	comment := "Mục tiêu quá thấp"
	if err := f.svc.KeyResults.RequestRevision(ctx, f.teacher, kr.ID, comment); err != nil {
		t.Fatalf("на доработку: %v", err)
	}
	if err := f.svc.KeyResults.Edit(ctx, f.student, kr.ID, app.RevisedKeyResult{Objective: "Toán", Description: "Giải 80 bài", Target: 80}); err != nil {
		t.Fatalf("правка: %v", err)
	}
	got, _ := f.svc.KeyResults.Get(ctx, kr.ID)
	if got.Status != models.StatusPending || got.Target != 80 || got.TeacherComment != comment {
		t.Fatalf("после правки: %+v", got)
	}

	if err := f.svc.KeyResults.Approve(ctx, f.teacher, kr.ID, nil); err != nil {
		t.Fatalf("утверждение: %v", err)
	}
	err := f.svc.KeyResults.Edit(ctx, f.student, kr.ID, app.RevisedKeyResult{Objective: "Toán", Description: "Giải 90 bài", Target: 90})
	if !errors.Is(err, app.ErrAlreadyApproved) {
		t.Fatalf("правка утверждённой строки: ожидали ErrAlreadyApproved, получили %v", err)
	}
}

func TestKeyResult_DeleteAfterRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	keep := f.createKR(t, "Toán", "Giải 50 bài", 50)
	drop := f.createKR(t, "Toán", "Giải 20 đề", 20)

	if err := f.svc.KeyResults.Delete(ctx, f.teacher, drop.ID); !errors.Is(err, app.ErrDeletionNotRequested) {
		t.Fatalf("удаление без запроса: %v", err)
	}
	if err := f.svc.KeyResults.RequestDeletion(ctx, f.student, drop.ID); err != nil {
		t.Fatalf("запрос удаления: %v", err)
	}
	if err := f.svc.KeyResults.RequestDeletion(ctx, f.student, drop.ID); err != nil {
		t.Fatalf("повторный запрос должен быть no-op: %v", err)
	}
	if err := f.svc.KeyResults.Delete(ctx, f.teacher, drop.ID); err != nil {
		t.Fatalf("удаление: %v", err)
	}
	if _, err := f.svc.KeyResults.Get(ctx, drop.ID); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("строка не удалена: %v", err)
	}
	if _, err := f.svc.KeyResults.Get(ctx, keep.ID); err != nil {
		t.Fatalf("соседняя строка пропала: %v", err)
	}
}

func TestKeyResult_ParentRating(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	kr := f.createKR(t, "Toán", "Giải 50 bài", 50)

	comment := "Con cố gắng"
	if err := f.svc.KeyResults.Rate(ctx, f.parent, kr.ID, 4, &comment); err != nil {
		t.Fatalf("оценка: %v", err)
	}
	if err := f.svc.KeyResults.Rate(ctx, f.student, kr.ID, 5, nil); !errors.Is(err, app.ErrForbidden) {
		t.Fatalf("ученик не может ставить оценку: %v", err)
	}
	got, _ := f.svc.KeyResults.Get(ctx, kr.ID)
	if got.ParentRating != 4 || got.ParentComment != comment {
		t.Fatalf("оценка родителя: %+v", got)
	}
}

func TestKeyResult_ForStudentGroups(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createKR(t, "Toán", "Giải 50 bài", 50)
	f.createKR(t, "Đọc sách", "Đọc 10 cuốn", 10)
	f.createKR(t, "Toán", "Thi 9 điểm", 9)

	groups, err := f.svc.KeyResults.ForStudent(ctx, f.parent, studentA, period)
	if err != nil {
		t.Fatalf("просмотр родителем: %v", err)
	}
	if len(groups) != 2 || groups[0].Objective != "Toán" || len(groups[0].KeyResults) != 2 {
		t.Fatalf("группировка: %+v", groups)
	}
	if _, err := f.svc.KeyResults.ForStudent(ctx, f.otherTeacher, studentA, period); !errors.Is(err, app.ErrForbidden) {
		t.Fatalf("учитель другого класса: %v", err)
	}
	krs, err := f.svc.KeyResults.ForClass(ctx, f.teacher, "10A1", period)
	if err != nil || len(krs) != 3 {
		t.Fatalf("строки класса: %d, %v", len(krs), err)
	}
}

func TestReviews_FindOrCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Reviews.SaveParent(ctx, f.parent, period, "Cảm ơn cô"); err != nil {
		t.Fatalf("отзыв родителя: %v", err)
	}
	comment := "Tiến bộ tốt"
	done := true
	if _, err := f.svc.Reviews.SaveTeacher(ctx, f.teacher, studentA, period, app.TeacherReview{Comment: &comment, Finalized: &done}); err != nil {
		t.Fatalf("отзыв учителя: %v", err)
	}

	snap, err := f.store.ReadFresh(ctx, schema.FinalReviews)
	if err != nil {
		t.Fatalf("чтение: %v", err)
	}
	if snap.Len() != 1 {
		t.Fatalf("ожидали одну строку отзыва, получили %d", snap.Len())
	}

	got, found, err := f.svc.Reviews.Get(ctx, f.student, studentA, period)
	if err != nil || !found {
		t.Fatalf("чтение отзыва: found=%v err=%v", found, err)
	}
	if got.ParentFeedback != "Cảm ơn cô" || got.TeacherComment != comment || !got.Finalized() {
		t.Fatalf("отзыв: %+v", got)
	}

	other := "Sửa lại"
	_, err = f.svc.Reviews.SaveTeacher(ctx, f.teacher, studentA, period, app.TeacherReview{Comment: &other})
	if !errors.Is(err, app.ErrReviewFinalized) {
		t.Fatalf("правка зафиксированного: ожидали ErrReviewFinalized, получили %v", err)
	}

	if _, err := f.svc.Reviews.SaveParent(ctx, f.parent, period, "Cảm ơn thầy cô"); err != nil {
		t.Fatalf("родитель после фиксации: %v", err)
	}
	got, _, _ = f.svc.Reviews.Get(ctx, f.teacher, studentA, period)
	if got.TeacherComment != comment || got.ParentFeedback != "Cảm ơn thầy cô" {
		t.Fatalf("родитель затёр поле учителя: %+v", got)
	}
}

func TestReviews_TeacherOfOtherClass(t *testing.T) {
	f := newFixture(t)
	c := "x"
	_, err := f.svc.Reviews.SaveTeacher(context.Background(), f.otherTeacher, studentA, period, app.TeacherReview{Comment: &c})
	if !errors.Is(err, app.ErrForbidden) {
		t.Fatalf("ожидали ErrForbidden, получили %v", err)
	}
}

func TestStats_ForPeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	kr := f.createKR(t, "Toán", "Giải 50 bài", 50)
	if err := f.svc.KeyResults.Approve(ctx, f.teacher, kr.ID, nil); err != nil {
		t.Fatalf("утверждение: %v", err)
	}
	done := true
	if _, err := f.svc.Reviews.SaveTeacher(ctx, f.teacher, studentA, period, app.TeacherReview{Finalized: &done}); err != nil {
		t.Fatalf("фиксация: %v", err)
	}

	stats, err := f.svc.Stats.ForPeriod(ctx, f.admin, period)
	if err != nil {
		t.Fatalf("статистика: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("ожидали два класса, получили %+v", stats)
	}
	a, b := stats[0], stats[1]
	if a.Class != "10A1" || a.Submitted != 1 || a.Approved != 1 || a.Finalized != 1 {
		t.Fatalf("10A1: %+v", a)
	}
	if a.SubmittedRate == nil || *a.SubmittedRate < 3.33 || *a.SubmittedRate > 3.34 {
		t.Fatalf("доля 1 из 30: %v", a.SubmittedRate)
	}
	if b.Class != "10A2" || b.SubmittedRate != nil || b.ApprovedRate != nil || b.FinalizedRate != nil {
		t.Fatalf("10A2 без SiSo должен давать N/A: %+v", b)
	}

	own, err := f.svc.Stats.ForPeriod(ctx, f.teacher, period)
	if err != nil || len(own) != 1 || own[0].Class != "10A1" {
		t.Fatalf("учитель видит только свой класс: %+v, %v", own, err)
	}
	if _, err := f.svc.Stats.ForPeriod(ctx, f.student, period); !errors.Is(err, app.ErrForbidden) {
		t.Fatalf("ученик: %v", err)
	}
}

func TestAccounts_Authenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if f.admin.Role != models.Admin {
		t.Fatalf("встроенный администратор: %+v", f.admin)
	}
	if f.parent.Role != models.Parent || f.parent.ChildEmail != studentA || f.parent.Name != "PH em Nguyễn An" {
		t.Fatalf("вход родителя: %+v", f.parent)
	}
	if _, err := f.svc.Accounts.Authenticate(ctx, studentA, "wrong"); !errors.Is(err, app.ErrUnauthenticated) {
		t.Fatalf("неверный пароль: %v", err)
	}
	if _, err := f.svc.Accounts.Authenticate(ctx, parentA, "gv"); !errors.Is(err, app.ErrUnauthenticated) {
		t.Fatalf("родитель с чужим паролем: %v", err)
	}

	if err := f.svc.Accounts.ChangePassword(ctx, f.parent, "hs", "new"); err != nil {
		t.Fatalf("смена пароля родителем: %v", err)
	}
	if _, err := f.svc.Accounts.Authenticate(ctx, studentA, "new"); err != nil {
		t.Fatalf("ученик входит новым паролем: %v", err)
	}
}

func TestAccounts_ImportSkipsExisting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Accounts.ImportUsers(ctx, f.teacher, models.Student, []app.NewUser{
		{Email: studentA, Name: "Nguyễn An"},
		{Email: "hs2@school.com", Name: "Trần Bình", Class: "10A2"},
		{Email: "hs2@school.com", Name: "Trần Bình"},
	})
	if err != nil {
		t.Fatalf("импорт: %v", err)
	}
	if len(res.Added) != 1 || len(res.Skipped) != 2 {
		t.Fatalf("импорт: %+v", res)
	}
	u, err := f.svc.Accounts.Authenticate(ctx, "hs2@school.com", "123")
	if err != nil {
		t.Fatalf("вход паролем по умолчанию: %v", err)
	}
	if u.Class != "10A1" {
		t.Fatalf("учитель импортирует только в свой класс, получили %q", u.Class)
	}

	if _, err := f.svc.Accounts.ImportUsers(ctx, f.student, models.Student, nil); !errors.Is(err, app.ErrForbidden) {
		t.Fatalf("импорт учеником: %v", err)
	}
}

func TestPeriods_Toggle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.Periods.Toggle(ctx, f.admin, period)
	if err != nil || p.Status != models.PeriodLocked {
		t.Fatalf("блокировка: %+v, %v", p, err)
	}
	_, err = f.svc.KeyResults.Create(ctx, f.student, app.NewKeyResult{Period: period, Objective: "Văn", Description: "Viết", Target: 1})
	if !errors.Is(err, app.ErrPeriodLocked) {
		t.Fatalf("создание в закрытом периоде: %v", err)
	}
	if _, err := f.svc.Periods.Create(ctx, f.admin, string(period)); !errors.Is(err, app.ErrAlreadyExists) {
		t.Fatalf("повтор имени периода: %v", err)
	}
	if _, err := f.svc.Periods.Toggle(ctx, f.teacher, period); !errors.Is(err, app.ErrForbidden) {
		t.Fatalf("учитель не управляет периодами: %v", err)
	}
}

func TestAdmin_NormalizeTable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mem.Seed(schema.OKRs, []string{schema.ColID, schema.ColEmail, schema.ColMucTieuSo, "GhiChu"},
		table.Row{schema.ColID: "kr-1", schema.ColEmail: studentA, schema.ColMucTieuSo: "1,5", "GhiChu": "x"},
	)
	_ = f.svc.Admin.ClearCache(ctx, f.admin)

	res, err := f.svc.Admin.NormalizeTable(ctx, f.admin, schema.OKRs)
	if err != nil {
		t.Fatalf("нормализация: %v", err)
	}
	if res.Rows != 1 {
		t.Fatalf("строк: %d", res.Rows)
	}
	snap, err := f.mem.Fetch(ctx, schema.OKRs)
	if err != nil {
		t.Fatalf("чтение хранилища: %v", err)
	}
	names := schema.Default().Names(schema.OKRs)
	for i, n := range names {
		if snap.Columns[i] != n {
			t.Fatalf("колонка %d: ожидали %s, получили %s", i, n, snap.Columns[i])
		}
	}
	row := snap.Rows[0]
	if row[schema.ColMucTieuSo] != "1.5" || row[schema.ColThucDat] != "0" || row["GhiChu"] != "x" {
		t.Fatalf("строка после нормализации: %v", row)
	}

	if _, err := f.svc.Admin.NormalizeTable(ctx, f.teacher, schema.OKRs); !errors.Is(err, app.ErrForbidden) {
		t.Fatalf("учитель: %v", err)
	}
	if _, err := f.svc.Admin.NormalizeTable(ctx, f.admin, "Nope"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("неизвестная таблица: %v", err)
	}
}

func TestReviews_ConcurrentFirstWritersMergedOnRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	comment := "Tốt"
	errs := make(chan error, 2)
	go func() {
		_, err := f.svc.Reviews.SaveParent(ctx, f.parent, period, "Cảm ơn")
		errs <- err
	}()
	go func() {
		_, err := f.svc.Reviews.SaveTeacher(ctx, f.teacher, studentA, period, app.TeacherReview{Comment: &comment})
		errs <- err
	}()
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("сохранение: %v", err)
		}
	}
	snap, err := f.store.ReadFresh(ctx, schema.FinalReviews)
	if err != nil {
		t.Fatalf("чтение: %v", err)
	}
	if n := snap.Len(); n < 1 || n > 2 {
		t.Fatalf("строк отзыва: %d", n)
	}
	got, found, err := f.svc.Reviews.Get(ctx, f.teacher, studentA, period)
	if err != nil || !found {
		t.Fatalf("чтение отзыва: found=%v err=%v", found, err)
	}
	if got.TeacherComment != comment || got.ParentFeedback != "Cảm ơn" {
		t.Fatalf("одно из полей потеряно: %+v", got)
	}
}

func TestPaddedKeysStayWritable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seed := []struct {
		table string
		row   table.Row
	}{
		{schema.FinalReviews, table.Row{schema.ColEmail: studentA + " ", schema.ColDot: string(period) + "\t", schema.ColPhanHoiPH: "Cảm ơn"}},
		{schema.Periods, table.Row{schema.ColTenDot: "HK3 ", schema.ColTrangThai: string(models.PeriodOpen)}},
		{schema.Users, table.Row{schema.ColEmail: " hs2@school.com", schema.ColPassword: "hs", schema.ColRole: string(models.Student), schema.ColLop: "10A1"}},
	}
	for _, s := range seed {
		if err := f.store.Append(ctx, s.table, s.row); err != nil {
			t.Fatalf("%s: %v", s.table, err)
		}
	}

	comment := "Tiến bộ"
	if _, err := f.svc.Reviews.SaveTeacher(ctx, f.teacher, studentA, period, app.TeacherReview{Comment: &comment}); err != nil {
		t.Fatalf("отзыв с пробелами в ключе: %v", err)
	}
	snap, err := f.store.ReadFresh(ctx, schema.FinalReviews)
	if err != nil {
		t.Fatalf("чтение: %v", err)
	}
	if snap.Len() != 1 {
		t.Fatalf("появилась вторая строка отзыва: %d", snap.Len())
	}
	got, _, _ := f.svc.Reviews.Get(ctx, f.teacher, studentA, period)
	if got.TeacherComment != comment || got.ParentFeedback != "Cảm ơn" {
		t.Fatalf("отзыв: %+v", got)
	}

	p, err := f.svc.Periods.Toggle(ctx, f.admin, "HK3")
	if err != nil || p.Status != models.PeriodLocked {
		t.Fatalf("период с пробелом в имени: %+v, %v", p, err)
	}

	if err := f.svc.Accounts.MoveStudent(ctx, f.admin, "hs2@school.com", "10A2"); err != nil {
		t.Fatalf("перевод ученика: %v", err)
	}
	if err := f.svc.Accounts.DeleteUser(ctx, f.admin, "hs2@school.com"); err != nil {
		t.Fatalf("удаление ученика: %v", err)
	}
}

func TestLockedPeriodTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	kr := f.createKR(t, "Toán", "Giải 50 bài", 50)
	if err := f.svc.KeyResults.Approve(ctx, f.teacher, kr.ID, nil); err != nil {
		t.Fatalf("утверждение: %v", err)
	}
	if _, err := f.svc.Periods.Toggle(ctx, f.admin, period); err != nil {
		t.Fatalf("блокировка: %v", err)
	}

	comment := "Tốt"
	cases := []struct {
		name string
		do   func() error
		want error
	}{
		{"decide", func() error {
			return f.svc.KeyResults.Decide(ctx, f.teacher, kr.ID, models.StatusNeedsRevision, &comment)
		}, app.ErrPeriodLocked},
		{"actual", func() error {
			_, err := f.svc.KeyResults.UpdateActual(ctx, f.student, kr.ID, 20)
			return err
		}, app.ErrPeriodLocked},
		{"deletion request", func() error {
			return f.svc.KeyResults.RequestDeletion(ctx, f.student, kr.ID)
		}, app.ErrPeriodLocked},
		{"teacher review", func() error {
			_, err := f.svc.Reviews.SaveTeacher(ctx, f.teacher, studentA, period, app.TeacherReview{Comment: &comment})
			return err
		}, app.ErrPeriodLocked},
		{"parent rating", func() error {
			return f.svc.KeyResults.Rate(ctx, f.parent, kr.ID, 5, &comment)
		}, nil},
		{"parent review", func() error {
			_, err := f.svc.Reviews.SaveParent(ctx, f.parent, period, "Cảm ơn cô")
			return err
		}, nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.do()
			if c.want == nil && err != nil {
				t.Fatalf("в закрытом периоде: %v", err)
			}
			if c.want != nil && !errors.Is(err, c.want) {
				t.Fatalf("ожидали %v, получили %v", c.want, err)
			}
		})
	}

	got, err := f.svc.KeyResults.Get(ctx, kr.ID)
	if err != nil {
		t.Fatalf("чтение: %v", err)
	}
	if got.Status != models.StatusApproved || got.Actual != 0 || got.DeletionRequested || got.ParentRating != 5 {
		t.Fatalf("строка после закрытия периода: %+v", got)
	}
}
