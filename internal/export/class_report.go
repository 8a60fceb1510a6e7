// Package export — выгрузки в Excel.
package export

import (
	"fmt"

	"github.com/Spok95/okr-tracker/internal/models"
	"github.com/Spok95/okr-tracker/internal/schema"
)

// ClassData — всё, что нужно для отчёта по классу; собирается из ReadAll.
type ClassData struct {
	Class      string
	Period     models.PeriodName
	Students   []models.User
	KeyResults []models.KeyResult
	Reviews    *models.ReviewIndex
}

// ClassWorkbook — отчёт по классу: лист OKR (все ключевые результаты периода)
// и лист итоговых отзывов (по строке на ученика, даже если отзыва нет).
func ClassWorkbook(d ClassData) (*Workbook, error) {
	names := make(map[models.Email]string, len(d.Students))
	for _, u := range d.Students {
		names[u.Email] = u.Name
	}

	okr := SheetSpec{
		Title: "OKR",
		Header: []string{
			schema.ColHoTen, schema.ColEmail, schema.ColMucTieu, schema.ColKetQuaThenChot,
			schema.ColMucTieuSo, schema.ColThucDat, schema.ColDonVi, schema.ColTienDo,
			schema.ColTrangThai, schema.ColNhanXetGV, schema.ColDiemHaiLongPH, schema.ColNhanXetPH,
		},
	}
	for _, g := range models.GroupByObjective(d.KeyResults) {
		for _, k := range g.KeyResults {
			okr.Rows = append(okr.Rows, []string{
				names[k.Student], string(k.Student), k.Objective, k.Description,
				schema.FormatNumber(k.Target), schema.FormatNumber(k.Actual), k.Unit,
				fmt.Sprintf("%.0f%%", k.Progress),
				string(k.Status), k.TeacherComment, rating(k.ParentRating), k.ParentComment,
			})
		}
	}

	final := SheetSpec{
		Title:  "FinalReviews",
		Header: []string{schema.ColHoTen, schema.ColEmail, schema.ColNhanXetCuoiKy, schema.ColPhanHoiPH, schema.ColTrangThaiCuoiKy},
	}
	for _, u := range d.Students {
		r := models.FinalReview{Status: models.ReviewDraft}
		if d.Reviews != nil {
			if got, ok := d.Reviews.Get(models.ReviewKey{Student: u.Email, Period: d.Period}); ok {
				r = got
			}
		}
		final.Rows = append(final.Rows, []string{u.Name, string(u.Email), r.TeacherComment, r.ParentFeedback, string(r.Status)})
	}

	return NewWorkbook([]SheetSpec{okr, final})
}

func rating(n int) string {
	if n <= 0 {
		return ""
	}
	return fmt.Sprintf("%d/%d", n, models.MaxRating)
}
