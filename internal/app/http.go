package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Spok95/okr-tracker/internal/ctxutil"
	"github.com/Spok95/okr-tracker/internal/export"
	"github.com/Spok95/okr-tracker/internal/logging"
	"github.com/Spok95/okr-tracker/internal/metrics"
	"github.com/Spok95/okr-tracker/internal/models"
	"github.com/Spok95/okr-tracker/internal/observability"
)

// Services — все сервисы, которые обслуживает HTTP API.
type Services struct {
	Accounts   *Accounts
	Periods    *Periods
	KeyResults *KeyResults
	Reviews    *Reviews
	Stats      *Stats
	Reports    *Reports
	Admin      *Admin
}

// API — JSON поверх net/http. Аутентификация — HTTP Basic, проверяется на каждом запросе.
type API struct {
	svc  Services
	log  *zap.Logger
	ping func(context.Context) error
	mux  *http.ServeMux
}

type authedHandler func(w http.ResponseWriter, r *http.Request, id Identity) error

func NewAPI(svc Services, ping func(context.Context) error, log *zap.Logger) *API {
	if log == nil {
		log = zap.NewNop()
	}
	a := &API{svc: svc, log: log, ping: ping, mux: http.NewServeMux()}

	a.mux.HandleFunc("GET /healthz", a.healthz)
	a.mux.Handle("GET /metrics", metrics.Handler())

	a.handle("GET /api/me", a.me)
	a.handle("POST /api/me/password", a.changePassword)

	a.handle("GET /api/periods", a.listPeriods)
	a.handle("POST /api/periods", a.createPeriod)
	a.handle("POST /api/periods/{name}/toggle", a.togglePeriod)

	a.handle("GET /api/okrs", a.studentKeyResults)
	a.handle("POST /api/okrs", a.createKeyResult)
	a.handle("PUT /api/okrs/{id}", a.editKeyResult)
	a.handle("POST /api/okrs/{id}/decision", a.decideKeyResult)
	a.handle("POST /api/okrs/{id}/actual", a.updateActual)
	a.handle("POST /api/okrs/{id}/deletion-request", a.requestDeletion)
	a.handle("DELETE /api/okrs/{id}", a.deleteKeyResult)
	a.handle("POST /api/okrs/{id}/rating", a.rateKeyResult)

	a.handle("GET /api/classes/{class}/okrs", a.classKeyResults)
	a.handle("GET /api/classes/{class}/report.xlsx", a.classReport)

	a.handle("GET /api/reviews", a.getReview)
	a.handle("PUT /api/reviews/teacher", a.saveTeacherReview)
	a.handle("PUT /api/reviews/parent", a.saveParentReview)

	a.handle("GET /api/stats", a.stats)

	a.handle("GET /api/users", a.listUsers)
	a.handle("POST /api/users/teachers", a.addTeacher)
	a.handle("POST /api/users/students", a.addStudent)
	a.handle("POST /api/users/import", a.importUsers)
	a.handle("DELETE /api/users/{email}", a.deleteUser)
	a.handle("POST /api/users/{email}/class", a.moveStudent)

	a.handle("GET /api/admin/tables/{name}", a.tableSnapshot)
	a.handle("POST /api/admin/tables/{name}/normalize", a.normalizeTable)
	a.handle("POST /api/admin/cache/clear", a.clearCache)
	return a
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) { a.mux.ServeHTTP(w, r) }

// statusWriter запоминает код ответа для метрик.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (a *API) handle(pattern string, h authedHandler) {
	a.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			metrics.HTTPRequests.WithLabelValues(pattern, strconv.Itoa(sw.code/100)+"xx").Inc()
		}()

		ctx := ctxutil.WithRequestID(r.Context(), uuid.NewString())
		ctx = ctxutil.WithOp(ctx, pattern)
		r = r.WithContext(ctx)

		email, password, ok := r.BasicAuth()
		if !ok {
			sw.Header().Set("WWW-Authenticate", `Basic realm="okr"`)
			a.fail(sw, r, ErrUnauthenticated)
			return
		}
		id, err := a.svc.Accounts.Authenticate(ctx, email, password)
		if err != nil {
			if errors.Is(err, ErrUnauthenticated) {
				sw.Header().Set("WWW-Authenticate", `Basic realm="okr"`)
			}
			a.fail(sw, r, err)
			return
		}
		r = r.WithContext(ctxutil.WithActor(ctx, string(id.Email)))
		if err := h(sw, r, id); err != nil {
			a.fail(sw, r, err)
		}
	})
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := StatusOf(err)
	if status >= 500 {
		logging.FromContext(r.Context(), a.log).Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("method", r.Method),
			zap.Error(err),
		)
		if status != http.StatusServiceUnavailable {
			observability.CaptureCtxErr(r.Context(), err)
		}
	}
	writeJSON(w, status, map[string]string{"error": code, "message": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respond(w http.ResponseWriter, v any) error {
	writeJSON(w, http.StatusOK, v)
	return nil
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return invalid("bad json: %v", err)
	}
	return nil
}

// period — ?period=..., по умолчанию текущий период.
func (a *API) period(r *http.Request) (models.PeriodName, error) {
	if p := r.URL.Query().Get("period"); p != "" {
		return models.PeriodName(p), nil
	}
	cur, found, err := a.svc.Periods.Current(r.Context())
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("%w: no periods yet", ErrNotFound)
	}
	return cur.Name, nil
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 800*time.Millisecond)
	defer cancel()
	if a.ping != nil {
		if err := a.ping(ctx); err != nil {
			http.Error(w, "store not ok: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	_, _ = w.Write([]byte("ok"))
}

func (a *API) me(w http.ResponseWriter, _ *http.Request, id Identity) error {
	return respond(w, id)
}

func (a *API) changePassword(w http.ResponseWriter, r *http.Request, id Identity) error {
	var in struct {
		Old string `json:"old_password"`
		New string `json:"new_password"`
	}
	if err := decode(r, &in); err != nil {
		return err
	}
	if err := a.svc.Accounts.ChangePassword(r.Context(), id, in.Old, in.New); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (a *API) listPeriods(w http.ResponseWriter, r *http.Request, _ Identity) error {
	ps, err := a.svc.Periods.List(r.Context())
	if err != nil {
		return err
	}
	return respond(w, ps)
}

func (a *API) createPeriod(w http.ResponseWriter, r *http.Request, id Identity) error {
	var in struct {
		Name string `json:"name"`
	}
	if err := decode(r, &in); err != nil {
		return err
	}
	p, err := a.svc.Periods.Create(r.Context(), id, in.Name)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, p)
	return nil
}

func (a *API) togglePeriod(w http.ResponseWriter, r *http.Request, id Identity) error {
	p, err := a.svc.Periods.Toggle(r.Context(), id, models.PeriodName(r.PathValue("name")))
	if err != nil {
		return err
	}
	return respond(w, p)
}

// studentKeyResults — ?student=... (по умолчанию сам ученик или ребёнок родителя).
func (a *API) studentKeyResults(w http.ResponseWriter, r *http.Request, id Identity) error {
	student := models.NormalizeEmail(r.URL.Query().Get("student"))
	if student == "" {
		student = id.Email
		if id.Is(models.Parent) {
			student = id.ChildEmail
		}
	}
	period, err := a.period(r)
	if err != nil {
		return err
	}
	groups, err := a.svc.KeyResults.ForStudent(r.Context(), id, student, period)
	if err != nil {
		return err
	}
	return respond(w, map[string]any{"student": student, "period": period, "objectives": groups})
}

func (a *API) createKeyResult(w http.ResponseWriter, r *http.Request, id Identity) error {
	var in NewKeyResult
	if err := decode(r, &in); err != nil {
		return err
	}
	if in.Period == "" {
		p, err := a.period(r)
		if err != nil {
			return err
		}
		in.Period = p
	}
	kr, err := a.svc.KeyResults.Create(r.Context(), id, in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, kr)
	return nil
}

func (a *API) editKeyResult(w http.ResponseWriter, r *http.Request, id Identity) error {
	var in RevisedKeyResult
	if err := decode(r, &in); err != nil {
		return err
	}
	if err := a.svc.KeyResults.Edit(r.Context(), id, models.KeyResultID(r.PathValue("id")), in); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (a *API) decideKeyResult(w http.ResponseWriter, r *http.Request, id Identity) error {
	var in struct {
		Status  models.KeyResultStatus `json:"status"`
		Comment *string                `json:"comment"`
	}
	if err := decode(r, &in); err != nil {
		return err
	}
	if err := a.svc.KeyResults.Decide(r.Context(), id, models.KeyResultID(r.PathValue("id")), in.Status, in.Comment); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (a *API) updateActual(w http.ResponseWriter, r *http.Request, id Identity) error {
	var in struct {
		Actual float64 `json:"actual"`
	}
	if err := decode(r, &in); err != nil {
		return err
	}
	kr, err := a.svc.KeyResults.UpdateActual(r.Context(), id, models.KeyResultID(r.PathValue("id")), in.Actual)
	if err != nil {
		return err
	}
	return respond(w, kr)
}

func (a *API) requestDeletion(w http.ResponseWriter, r *http.Request, id Identity) error {
	if err := a.svc.KeyResults.RequestDeletion(r.Context(), id, models.KeyResultID(r.PathValue("id"))); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (a *API) deleteKeyResult(w http.ResponseWriter, r *http.Request, id Identity) error {
	if err := a.svc.KeyResults.Delete(r.Context(), id, models.KeyResultID(r.PathValue("id"))); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (a *API) rateKeyResult(w http.ResponseWriter, r *http.Request, id Identity) error {
	var in struct {
		Stars   int     `json:"stars"`
		Comment *string `json:"comment"`
	}
	if err := decode(r, &in); err != nil {
		return err
	}
	if err := a.svc.KeyResults.Rate(r.Context(), id, models.KeyResultID(r.PathValue("id")), in.Stars, in.Comment); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (a *API) classKeyResults(w http.ResponseWriter, r *http.Request, id Identity) error {
	period, err := a.period(r)
	if err != nil {
		return err
	}
	krs, err := a.svc.KeyResults.ForClass(r.Context(), id, r.PathValue("class"), period)
	if err != nil {
		return err
	}
	return respond(w, krs)
}

func (a *API) classReport(w http.ResponseWriter, r *http.Request, id Identity) error {
	period, err := a.period(r)
	if err != nil {
		return err
	}
	class := r.PathValue("class")
	wb, err := a.svc.Reports.ClassWorkbook(r.Context(), id, class, period)
	if err != nil {
		return err
	}
	defer wb.Close()
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.BuildClassReportFilename(class, string(period))))
	if _, err := wb.WriteTo(w); err != nil {
		a.log.Warn("write report", zap.Error(err))
	}
	return nil
}

func (a *API) getReview(w http.ResponseWriter, r *http.Request, id Identity) error {
	student := models.NormalizeEmail(r.URL.Query().Get("student"))
	if student == "" {
		student = id.Email
		if id.Is(models.Parent) {
			student = id.ChildEmail
		}
	}
	period, err := a.period(r)
	if err != nil {
		return err
	}
	rev, found, err := a.svc.Reviews.Get(r.Context(), id, student, period)
	if err != nil {
		return err
	}
	return respond(w, map[string]any{"review": rev, "exists": found})
}

func (a *API) saveTeacherReview(w http.ResponseWriter, r *http.Request, id Identity) error {
	var in struct {
		Student models.Email      `json:"student"`
		Period  models.PeriodName `json:"period"`
		TeacherReview
	}
	if err := decode(r, &in); err != nil {
		return err
	}
	rev, err := a.svc.Reviews.SaveTeacher(r.Context(), id, in.Student, in.Period, in.TeacherReview)
	if err != nil {
		return err
	}
	return respond(w, rev)
}

func (a *API) saveParentReview(w http.ResponseWriter, r *http.Request, id Identity) error {
	var in struct {
		Period   models.PeriodName `json:"period"`
		Feedback string            `json:"feedback"`
	}
	if err := decode(r, &in); err != nil {
		return err
	}
	rev, err := a.svc.Reviews.SaveParent(r.Context(), id, in.Period, in.Feedback)
	if err != nil {
		return err
	}
	return respond(w, rev)
}

func (a *API) stats(w http.ResponseWriter, r *http.Request, id Identity) error {
	period, err := a.period(r)
	if err != nil {
		return err
	}
	st, err := a.svc.Stats.ForPeriod(r.Context(), id, period)
	if err != nil {
		return err
	}
	return respond(w, st)
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request, id Identity) error {
	users, err := a.svc.Accounts.List(r.Context(), id, r.URL.Query().Get("class"))
	if err != nil {
		return err
	}
	return respond(w, users)
}

func (a *API) addTeacher(w http.ResponseWriter, r *http.Request, id Identity) error {
	var in NewUser
	if err := decode(r, &in); err != nil {
		return err
	}
	u, err := a.svc.Accounts.AddTeacher(r.Context(), id, in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, u)
	return nil
}

func (a *API) addStudent(w http.ResponseWriter, r *http.Request, id Identity) error {
	var in NewUser
	if err := decode(r, &in); err != nil {
		return err
	}
	u, err := a.svc.Accounts.AddStudent(r.Context(), id, in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, u)
	return nil
}

func (a *API) importUsers(w http.ResponseWriter, r *http.Request, id Identity) error {
	var in struct {
		Role  models.Role `json:"role"`
		Users []NewUser   `json:"users"`
	}
	if err := decode(r, &in); err != nil {
		return err
	}
	res, err := a.svc.Accounts.ImportUsers(r.Context(), id, in.Role, in.Users)
	if err != nil {
		return err
	}
	return respond(w, res)
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request, id Identity) error {
	if err := a.svc.Accounts.DeleteUser(r.Context(), id, models.NormalizeEmail(r.PathValue("email"))); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (a *API) moveStudent(w http.ResponseWriter, r *http.Request, id Identity) error {
	var in struct {
		Class string `json:"class"`
	}
	if err := decode(r, &in); err != nil {
		return err
	}
	if err := a.svc.Accounts.MoveStudent(r.Context(), id, models.NormalizeEmail(r.PathValue("email")), in.Class); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (a *API) tableSnapshot(w http.ResponseWriter, r *http.Request, id Identity) error {
	t, err := a.svc.Admin.Snapshot(r.Context(), id, r.PathValue("name"))
	if err != nil {
		return err
	}
	return respond(w, t)
}

func (a *API) normalizeTable(w http.ResponseWriter, r *http.Request, id Identity) error {
	res, err := a.svc.Admin.NormalizeTable(r.Context(), id, r.PathValue("name"))
	if err != nil {
		return err
	}
	return respond(w, res)
}

func (a *API) clearCache(w http.ResponseWriter, r *http.Request, id Identity) error {
	if err := a.svc.Admin.ClearCache(r.Context(), id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
