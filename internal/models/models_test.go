package models

import (
	"testing"

	"github.com/Spok95/okr-tracker/internal/schema"
	"github.com/Spok95/okr-tracker/internal/table"
)

func TestGroupByObjective_ExactStringEquality(t *testing.T) {
	items := []KeyResult{
		{ID: "1", Objective: "Học tập tốt"},
		{ID: "2", Objective: "Rèn luyện sức khỏe"},
		{ID: "3", Objective: "Học tập tốt"},
		{ID: "4", Objective: "Học tập tốt "},
	}
	groups := GroupByObjective(items)
	if len(groups) != 3 {
		t.Fatalf("ожидали 3 группы, получили %d", len(groups))
	}
	if groups[0].Objective != "Học tập tốt" || len(groups[0].KeyResults) != 2 {
		t.Fatalf("первая группа: %+v", groups[0])
	}
	if groups[0].KeyResults[0].ID != "1" || groups[0].KeyResults[1].ID != "3" {
		t.Fatalf("порядок внутри группы нарушен: %+v", groups[0].KeyResults)
	}
	if groups[2].Objective != "Học tập tốt " {
		t.Fatal("строки с пробелом — другая цель")
	}
}

func TestKeyResult_RowRoundTrip(t *testing.T) {
	r := table.Row{
		schema.ColID: "kr-1", schema.ColEmail: " hs@school.com ", schema.ColDot: "HK1",
		schema.ColMucTieuSo: "10", schema.ColThucDat: "4", schema.ColTienDo: "40",
		schema.ColTrangThai: "Đã duyệt", schema.ColYeuCauXoa: "true", schema.ColDiemHaiLongPH: "5",
	}
	k := KeyResultFromRow(r)
	if k.Student != "hs@school.com" || !k.Approved() || !k.DeletionRequested || k.ParentRating != 5 {
		t.Fatalf("разбор строки: %+v", k)
	}
	back := k.Row()
	if back[schema.ColYeuCauXoa] != FlagTrue || back[schema.ColTienDo] != "40" {
		t.Fatalf("обратно в строку: %v", back)
	}
}

func TestProgressFields(t *testing.T) {
	f := ProgressFields(15, 10)
	if f[schema.ColThucDat] != "15" || f[schema.ColTienDo] != "100" {
		t.Fatalf("получили %v", f)
	}
}

func TestKeyResultIndex(t *testing.T) {
	idx := NewKeyResultIndex([]KeyResult{
		{ID: "1", Student: "a", Period: "HK1", Objective: "O", Description: "K"},
		{ID: "2", Student: "a", Period: "HK2", Objective: "O", Description: "K"},
		{ID: "3", Student: "b", Period: "HK1"},
	})
	if k, ok := idx.Get("2"); !ok || k.Period != "HK2" {
		t.Fatalf("Get: %+v %v", k, ok)
	}
	if n := len(idx.ForStudent("a", "HK1")); n != 1 {
		t.Fatalf("ForStudent HK1: %d", n)
	}
	if n := len(idx.ForStudent("a", "")); n != 2 {
		t.Fatalf("ForStudent все периоды: %d", n)
	}
	if !idx.HasDuplicate("a", "HK2", "O", "K") || idx.HasDuplicate("b", "HK1", "O", "K") {
		t.Fatal("HasDuplicate работает неверно")
	}
}

func TestReviewIndex_MergesDuplicateKeys(t *testing.T) {
	tb := &table.Table{Rows: []table.Row{
		{schema.ColEmail: "a", schema.ColDot: "HK1", schema.ColNhanXetCuoiKy: "GV", schema.ColTrangThaiCuoiKy: "Chưa chốt"},
		{schema.ColEmail: "b", schema.ColDot: "HK1", schema.ColPhanHoiPH: "PH-b"},
		{schema.ColEmail: "a", schema.ColDot: "HK1", schema.ColNhanXetCuoiKy: "другой", schema.ColPhanHoiPH: "PH", schema.ColTrangThaiCuoiKy: "Đã chốt"},
	}}
	idx := NewReviewIndex(tb)

	r, ok := idx.Get(ReviewKey{Student: "a", Period: "HK1"})
	if !ok {
		t.Fatal("отзыв не найден")
	}
	if r.TeacherComment != "GV" || r.ParentFeedback != "PH" || r.Status != ReviewDraft {
		t.Fatalf("слияние: %+v", r)
	}
	if idx.Duplicates() != 1 {
		t.Fatalf("Duplicates: %d", idx.Duplicates())
	}
	if got := idx.InPeriod("HK1"); len(got) != 2 || got[0].Student != "a" {
		t.Fatalf("InPeriod: %+v", got)
	}
}

func TestReviewFromRow_EmptyStatusIsDraft(t *testing.T) {
	r := ReviewFromRow(table.Row{schema.ColEmail: "a", schema.ColDot: "HK1"})
	if r.Finalized() || r.Status != ReviewDraft {
		t.Fatalf("пустой статус: %+v", r)
	}
	m := r.Key().Match()
	if m.String() != "Email=a&Dot=HK1" {
		t.Fatalf("Match: %s", m)
	}
}

func TestUserIndex(t *testing.T) {
	idx := NewUserIndex([]User{
		{Email: "gv@school.com", Role: Teacher, Class: "10A1", ClassSize: 30},
		{Email: "hs1@school.com", Role: Student, Class: "10A1", ParentEmail: "ph@school.com"},
		{Email: "hs2@school.com", Role: Student, Class: "10A1", ParentEmail: "ph@school.com"},
		{Email: "hs1@school.com", Role: Student, Class: "10A2"},
	})
	if u, ok := idx.ByEmail("hs1@school.com"); !ok || u.Class != "10A1" {
		t.Fatalf("ByEmail должен вернуть первую строку: %+v", u)
	}
	if n := len(idx.Children("ph@school.com")); n != 2 {
		t.Fatalf("Children: %d", n)
	}
	if gv, ok := idx.TeacherOf("10A1"); !ok || gv.ClassSize != 30 {
		t.Fatalf("TeacherOf: %+v", gv)
	}
	if n := len(idx.Students("10A1")); n != 2 {
		t.Fatalf("Students: %d", n)
	}
}

func TestCurrentPeriod(t *testing.T) {
	ps := []Period{{Name: "HK1", Status: PeriodLocked}, {Name: "HK2", Status: PeriodOpen}}
	if p, _ := CurrentPeriod(ps); p.Name != "HK2" {
		t.Fatalf("ожидали первый открытый: %v", p)
	}
	ps[1].Status = PeriodLocked
	if p, _ := CurrentPeriod(ps); p.Name != "HK1" {
		t.Fatalf("без открытых — первый: %v", p)
	}
	if _, ok := CurrentPeriod(nil); ok {
		t.Fatal("пустой список")
	}
}
