package schema

import "sort"

// Kind — домен значений колонки.
type Kind int

const (
	Text Kind = iota
	Numeric
)

func (k Kind) String() string {
	if k == Numeric {
		return "numeric"
	}
	return "text"
}

// Default — значение, которым заполняется отсутствующая ячейка.
func (k Kind) Default() string {
	if k == Numeric {
		return "0"
	}
	return ""
}

type Column struct {
	Name string
	Kind Kind
}

// Таблицы хранилища.
const (
	Users        = "Users"
	Periods      = "Periods"
	OKRs         = "OKRs"
	FinalReviews = "FinalReviews"
)

// Колонки. Имена совпадают с заголовками в таблицах, менять нельзя.
const (
	ColEmail    = "Email"
	ColPassword = "Password"
	ColRole     = "Role"
	ColHoTen    = "HoTen"
	ColLop      = "Lop"
	ColEmailPH  = "EmailPH"
	ColSiSo     = "SiSo"

	ColTenDot    = "TenDot"
	ColTrangThai = "TrangThai"

	ColID             = "ID"
	ColDot            = "Dot"
	ColMucTieu        = "MucTieu"
	ColKetQuaThenChot = "KetQuaThenChot"
	ColMucTieuSo      = "MucTieuSo"
	ColThucDat        = "ThucDat"
	ColDonVi          = "DonVi"
	ColTienDo         = "TienDo"
	ColYeuCauXoa      = "YeuCauXoa"
	ColNhanXetGV      = "NhanXet_GV"
	ColDiemHaiLongPH  = "DiemHaiLong_PH"
	ColNhanXetPH      = "NhanXet_PH"

	ColNhanXetCuoiKy   = "NhanXet_CuoiKy"
	ColPhanHoiPH       = "PhanHoi_PH"
	ColTrangThaiCuoiKy = "TrangThai_CuoiKy"
)

// Registry — объявленные колонки по таблицам.
type Registry struct {
	tables map[string][]Column
}

func NewRegistry(tables map[string][]Column) *Registry {
	r := &Registry{tables: make(map[string][]Column, len(tables))}
	for name, cols := range tables {
		r.tables[name] = append([]Column(nil), cols...)
	}
	return r
}

// Default — схема приложения OKR.
func Default() *Registry {
	return NewRegistry(map[string][]Column{
		Users: {
			{ColEmail, Text}, {ColPassword, Text}, {ColRole, Text}, {ColHoTen, Text},
			{ColLop, Text}, {ColEmailPH, Text}, {ColSiSo, Numeric},
		},
		Periods: {
			{ColTenDot, Text}, {ColTrangThai, Text},
		},
		OKRs: {
			{ColID, Text}, {ColEmail, Text}, {ColLop, Text}, {ColDot, Text},
			{ColMucTieu, Text}, {ColKetQuaThenChot, Text}, {ColMucTieuSo, Numeric},
			{ColThucDat, Numeric}, {ColDonVi, Text}, {ColTienDo, Numeric},
			{ColTrangThai, Text}, {ColYeuCauXoa, Text}, {ColNhanXetGV, Text},
			{ColDiemHaiLongPH, Numeric}, {ColNhanXetPH, Text},
		},
		FinalReviews: {
			{ColEmail, Text}, {ColDot, Text}, {ColNhanXetCuoiKy, Text},
			{ColPhanHoiPH, Text}, {ColTrangThaiCuoiKy, Text},
		},
	})
}

// ColumnsOf возвращает копию объявленных колонок. ok=false для незнакомой таблицы.
func (r *Registry) ColumnsOf(table string) ([]Column, bool) {
	cols, ok := r.tables[table]
	if !ok {
		return nil, false
	}
	return append([]Column(nil), cols...), true
}

// Names — имена объявленных колонок по порядку.
func (r *Registry) Names(table string) []string {
	cols := r.tables[table]
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		out = append(out, c.Name)
	}
	return out
}

// KindOf — домен колонки; незнакомые колонки считаются текстовыми.
func (r *Registry) KindOf(table, column string) Kind {
	for _, c := range r.tables[table] {
		if c.Name == column {
			return c.Kind
		}
	}
	return Text
}

func (r *Registry) Tables() []string {
	out := make([]string, 0, len(r.tables))
	for _, name := range []string{Users, Periods, OKRs, FinalReviews} {
		if _, ok := r.tables[name]; ok {
			out = append(out, name)
		}
	}
	var extra []string
	for name := range r.tables {
		switch name {
		case Users, Periods, OKRs, FinalReviews:
			continue
		}
		extra = append(extra, name)
	}
	sort.Strings(extra)
	return append(out, extra...)
}
