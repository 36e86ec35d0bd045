package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/schedule"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/taxtable"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/lock"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/retry"
	"github.com/cmlabs-hris/payroll-engine/internal/repository/memory"
	attendanceService "github.com/cmlabs-hris/payroll-engine/internal/service/attendance"
	compensationService "github.com/cmlabs-hris/payroll-engine/internal/service/compensation"
	hoursbankService "github.com/cmlabs-hris/payroll-engine/internal/service/hoursbank"
	payrollService "github.com/cmlabs-hris/payroll-engine/internal/service/payroll"
	taxtableService "github.com/cmlabs-hris/payroll-engine/internal/service/taxtable"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const handlerTestSecret = "test-secret-key-for-jwt"

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
	Meta *struct {
		TotalItems int64 `json:"total_items"`
	} `json:"meta"`
}

type testServer struct {
	router *chi.Mux
	jwt    jwt.Service
	store  *memory.Store
	token  string
}

func newTestServer(t *testing.T, checks map[string]HealthCheck) *testServer {
	t.Helper()
	store := memory.NewStore()
	tx := memory.NewTxManager(store)
	payrollRepo := memory.NewPayrollRepository(store)
	employeeRepo := memory.NewEmployeeRepository(store)
	bracketRepo := memory.NewBracketRepository(store)

	settings := payrollService.DefaultSettings()
	settings.Retry = retry.Policy{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}

	aggregator := attendanceService.NewAggregator(
		memory.NewTimeEntryRepository(store),
		memory.NewWorkScheduleRepository(store),
		memory.NewLeaveRepository(store),
		schedule.WorkSchedule{DailyMinutes: 480, StartMinute: 480, Workdays: schedule.DefaultWorkdays},
		settings.Retry,
	)
	ledger := hoursbankService.NewLedger(tx, memory.NewHoursBankRepository(store), payrollRepo)
	assembler := compensationService.NewAssembler(payrollRepo, memory.NewEnrollmentRepository(store), compensationService.DefaultPolicy())
	engine := payrollService.NewEngine(tx, payrollRepo, employeeRepo, taxtableService.NewResolver(bracketRepo), aggregator, assembler, ledger, settings)
	periods := payrollService.NewPeriodService(tx, payrollRepo, employeeRepo, engine, lock.NewLocalLocker())

	from := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	for _, b := range []taxtable.Bracket{
		{Type: taxtable.TaxTypeINSS, BracketMin: decimal.Zero, Rate: decimal.RequireFromString("0.09"), EffectiveFrom: from},
		{Type: taxtable.TaxTypeIRRF, BracketMin: decimal.Zero, Rate: decimal.Zero, EffectiveFrom: from},
	} {
		_, err := bracketRepo.Create(context.Background(), b)
		require.NoError(t, err)
	}

	jwtService := jwt.NewJWTService(handlerTestSecret, time.Hour)
	token, _, err := jwtService.GenerateAccessToken("admin-1", jwt.RolePayrollAdmin)
	require.NoError(t, err)

	handler := NewPayrollHandler(periods, ledger, payroll.CalculationModeResume)
	return &testServer{
		router: NewRouter(jwtService, handler, RouterOptions{Env: "test", HealthChecks: checks}),
		jwt:    jwtService,
		store:  store,
		token:  token,
	}
}

// hireWithFullMonth adds an employee earning 3000 who clocked every
// weekday of March 2024.
func (s *testServer) hireWithFullMonth() employee.Employee {
	emp := s.store.AddEmployee(employee.Employee{
		EmployeeCode: "E001", FullName: "Ana", HireDate: time.Date(2023, time.January, 2, 0, 0, 0, 0, time.UTC),
	})
	s.store.AddComponent(payroll.Component{
		EmployeeID: emp.ID, Type: payroll.ComponentTypeBaseSalary, Amount: decimal.NewFromInt(3000),
		IsActive: true, EffectiveFrom: emp.HireDate,
	})
	for day := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC); day.Month() == time.March; day = day.AddDate(0, 0, 1) {
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}
		at := func(hour int) *time.Time {
			v := day.Add(time.Duration(hour) * time.Hour)
			return &v
		}
		s.store.AddTimeEntries(attendance.TimeEntry{
			EmployeeID: emp.ID, Date: day, Type: attendance.EntryTypeRegular,
			ClockIn: at(8), ClockOut: at(17), LunchStart: at(12), LunchEnd: at(13),
		})
	}
	return emp
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestPayrollHandler_FullCycle(t *testing.T) {
	s := newTestServer(t, nil)
	emp := s.hireWithFullMonth()

	rec, env := s.do(t, http.MethodPost, "/api/v1/payroll/periods", s.token, map[string]int{"month": 3, "year": 2024})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var period payroll.PeriodResponse
	require.NoError(t, json.Unmarshal(env.Data, &period))
	assert.Equal(t, "open", period.Status)
	base := "/api/v1/payroll/periods/" + period.ID

	rec, _ = s.do(t, http.MethodPost, base+"/calculate", s.token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "calculate needs a calculating period")

	rec, _ = s.do(t, http.MethodPost, base+"/start", s.token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env = s.do(t, http.MethodPost, base+"/calculate", s.token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var batch payroll.BatchSummaryResponse
	require.NoError(t, json.Unmarshal(env.Data, &batch))
	assert.Equal(t, 1, batch.SucceededCount)
	assert.Equal(t, []string{emp.ID}, batch.Succeeded)

	rec, env = s.do(t, http.MethodGet, base+"/slips/"+emp.ID, s.token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var slip payroll.SlipResponse
	require.NoError(t, json.Unmarshal(env.Data, &slip))
	assert.True(t, slip.NetSalary.Equal(decimal.NewFromInt(2730)), slip.NetSalary.String())
	assert.True(t, slip.FGTSAmount.Equal(decimal.NewFromInt(240)))
	assert.Len(t, slip.Entries, 3)

	rec, env = s.do(t, http.MethodGet, base+"/entries?code=inss", s.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []payroll.EntryResponse
	require.NoError(t, json.Unmarshal(env.Data, &entries))
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Amount.Equal(decimal.NewFromInt(270)))
	require.NotNil(t, env.Meta)
	assert.Equal(t, int64(1), env.Meta.TotalItems)

	rec, _ = s.do(t, http.MethodPost, base+"/close", s.token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "draft slips block close")

	rec, _ = s.do(t, http.MethodPost, base+"/finalize", s.token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env = s.do(t, http.MethodPost, base+"/close", s.token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &period))
	assert.Equal(t, "closed", period.Status)
	require.NotNil(t, period.ClosedBy)
	assert.Equal(t, "admin-1", *period.ClosedBy)

	rec, _ = s.do(t, http.MethodPost, base+"/purge", s.token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, env = s.do(t, http.MethodGet, "/api/v1/payroll/hours-bank/"+emp.ID+"?year=2024", s.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var banks []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &banks))
	require.Len(t, banks, 1)
	assert.EqualValues(t, 3, banks[0]["month"])
}

func TestPayrollHandler_Validation(t *testing.T) {
	s := newTestServer(t, nil)

	rec, env := s.do(t, http.MethodPost, "/api/v1/payroll/periods", s.token, map[string]int{"month": 13, "year": 2024})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Details, "month")

	rec, _ = s.do(t, http.MethodGet, "/api/v1/payroll/periods/not-a-uuid", s.token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/v1/payroll/periods/01890a5d-ac96-774b-bcce-b302099a8057", s.token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/api/v1/payroll/periods/01890a5d-ac96-774b-bcce-b302099a8057/calculate", s.token,
		map[string]string{"mode": "eager"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/v1/payroll/periods/01890a5d-ac96-774b-bcce-b302099a8057/entries?code=tip", s.token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/v1/payroll/hours-bank/01890a5d-ac96-774b-bcce-b302099a8057?year=24", s.token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPayrollHandler_Auth(t *testing.T) {
	s := newTestServer(t, nil)
	path := "/api/v1/payroll/periods/01890a5d-ac96-774b-bcce-b302099a8057"

	rec, _ := s.do(t, http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	viewer, _, err := s.jwt.GenerateAccessToken("viewer-1", jwt.RoleViewer)
	require.NoError(t, err)
	rec, _ = s.do(t, http.MethodGet, path, viewer, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	owner, expiresAt, err := s.jwt.GenerateAccessToken("owner-1", jwt.RoleOwner)
	require.NoError(t, err)
	rec, _ = s.do(t, http.MethodGet, path, owner, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	s.jwt.RevokeToken(owner, expiresAt)
	rec, _ = s.do(t, http.MethodGet, path, owner, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	foreign, _, err := jwt.NewJWTService("other-secret", time.Hour).GenerateAccessToken("x", jwt.RoleOwner)
	require.NoError(t, err)
	rec, _ = s.do(t, http.MethodGet, path, foreign, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, map[string]HealthCheck{
		"postgres": func(ctx context.Context) error { return nil },
	})
	rec, env := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"postgres":"up"}`, string(env.Data))

	s = newTestServer(t, map[string]HealthCheck{
		"redis": func(ctx context.Context) error { return errors.New("connection refused") },
	})
	rec, env = s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"redis":"down"}`, string(env.Data))
}
