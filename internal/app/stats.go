package app

import (
	"context"
	"sort"

	"github.com/Spok95/okr-tracker/internal/models"
)

// ClassStats — сводка по классу за период. Доли в процентах; nil, если SiSo не задан (N/A).
type ClassStats struct {
	Class         string   `json:"class"`
	Teacher       string   `json:"teacher"`
	ClassSize     int      `json:"class_size"`
	Submitted     int      `json:"submitted"`
	Approved      int      `json:"approved"`
	Finalized     int      `json:"finalized"`
	SubmittedRate *float64 `json:"submitted_rate"`
	ApprovedRate  *float64 `json:"approved_rate"`
	FinalizedRate *float64 `json:"finalized_rate"`
}

type Stats struct {
	store Store
}

func NewStats(s Store) *Stats { return &Stats{store: s} }

// ForPeriod — сводка по всем классам (админ) или по своему классу (учитель).
// Классы: классы учителей плюс классы, встречающиеся в строках OKR периода.
func (s *Stats) ForPeriod(ctx context.Context, viewer Identity, period models.PeriodName) ([]ClassStats, error) {
	if !viewer.Is(models.Admin) && !viewer.Is(models.Teacher) {
		return nil, ErrForbidden
	}
	read := reader(s.store.ReadAll)
	users, err := read.users(ctx)
	if err != nil {
		return nil, err
	}
	krs, err := read.keyResults(ctx)
	if err != nil {
		return nil, err
	}
	reviews, err := read.reviews(ctx)
	if err != nil {
		return nil, err
	}

	type tally struct {
		submitted map[models.Email]bool
		pending   map[models.Email]bool
		finalized map[models.Email]bool
	}
	byClass := map[string]*tally{}
	get := func(class string) *tally {
		t, ok := byClass[class]
		if !ok {
			t = &tally{
				submitted: map[models.Email]bool{},
				pending:   map[models.Email]bool{},
				finalized: map[models.Email]bool{},
			}
			byClass[class] = t
		}
		return t
	}

	for _, gv := range users.Teachers() {
		if gv.Class != "" {
			get(gv.Class)
		}
	}
	for _, k := range krs.InPeriod(period) {
		t := get(k.Class)
		t.submitted[k.Student] = true
		if !k.Approved() {
			t.pending[k.Student] = true
		}
	}
	for _, r := range reviews.InPeriod(period) {
		if !r.Finalized() {
			continue
		}
		u, ok := users.ByEmail(r.Student)
		if !ok || u.Class == "" {
			continue
		}
		get(u.Class).finalized[r.Student] = true
	}

	classes := make([]string, 0, len(byClass))
	for c := range byClass {
		if viewer.Is(models.Teacher) && !viewer.TeachesClass(c) {
			continue
		}
		classes = append(classes, c)
	}
	sort.Strings(classes)

	out := make([]ClassStats, 0, len(classes))
	for _, c := range classes {
		t := byClass[c]
		st := ClassStats{Class: c}
		if gv, ok := users.TeacherOf(c); ok {
			st.Teacher = gv.Name
			st.ClassSize = gv.ClassSize
		}
		st.Submitted = len(t.submitted)
		for e := range t.submitted {
			if !t.pending[e] {
				st.Approved++
			}
		}
		st.Finalized = len(t.finalized)
		st.SubmittedRate = rate(st.Submitted, st.ClassSize)
		st.ApprovedRate = rate(st.Approved, st.ClassSize)
		st.FinalizedRate = rate(st.Finalized, st.ClassSize)
		out = append(out, st)
	}
	return out, nil
}

// rate — n от size в процентах; при size <= 0 доля не определена.
func rate(n, size int) *float64 {
	if size <= 0 {
		return nil
	}
	v := float64(n) / float64(size) * 100
	return &v
}
