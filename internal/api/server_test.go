package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinrooster/tedecom-v1/internal/aggregate"
	"github.com/tinrooster/tedecom-v1/internal/auth"
	"github.com/tinrooster/tedecom-v1/internal/models"
	"github.com/tinrooster/tedecom-v1/internal/render"
	"github.com/tinrooster/tedecom-v1/internal/report"
	"github.com/tinrooster/tedecom-v1/internal/retry"
	"github.com/tinrooster/tedecom-v1/internal/scheduler"
	"github.com/tinrooster/tedecom-v1/internal/templates"
	"github.com/tinrooster/tedecom-v1/internal/testutil"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	db      *gorm.DB
	server  *Server
	manager *report.Manager
	tokens  map[models.Role]string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewDB(t)
	ctx := context.Background()

	tmpl := templates.NewService(db)
	_, err := tmpl.EnsureDefaults(ctx)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	manager := report.NewManager(report.Config{
		DB:         db,
		Aggregator: aggregate.New(db),
		Templates:  tmpl,
		Renderer:   render.NewRegistry(),
		Artifacts:  report.NewArtifactStore(t.TempDir(), retry.Options{MaxAttempts: 2, Delay: time.Millisecond}),
		Metrics:    report.NewMetrics(reg),
	})
	t.Cleanup(manager.Wait)

	sched := scheduler.New(manager, scheduler.Options{Location: time.UTC, Registerer: reg})
	require.NoError(t, sched.Init(ctx))
	t.Cleanup(func() { _ = sched.Shutdown(context.Background()) })

	authenticator := auth.New(db, "test-secret", time.Hour)
	env := &testEnv{
		db:      db,
		manager: manager,
		tokens:  map[models.Role]string{},
		server: NewServer(Config{
			DB:        db,
			Reports:   manager,
			Scheduler: sched,
			Templates: tmpl,
			Auth:      authenticator,
			Gatherer:  reg,
		}),
	}

	for _, role := range []models.Role{models.RoleAdmin, models.RoleTechnician, models.RoleViewer} {
		user := testutil.CreateUser(t, db, string(role), role)
		token, err := authenticator.GenerateToken(user)
		require.NoError(t, err)
		env.tokens[role] = token
	}
	return env
}

func (e *testEnv) do(t *testing.T, role models.Role, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if token, ok := e.tokens[role]; ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestCSVReportEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	testutil.CreateEquipment(t, env.db,
		&models.Equipment{Name: "srv-01", Type: "server", Status: models.EquipmentStatusActive, Location: "DC1"},
		&models.Equipment{Name: "srv-02", Type: "server", Status: models.EquipmentStatusActive, Location: "DC1"},
		&models.Equipment{Name: "sw-01", Type: "switch", Status: models.EquipmentStatusDecommissioned, Location: "DC2"},
	)

	w := env.do(t, models.RoleTechnician, http.MethodPost, "/api/v1/reports", gin.H{
		"title":  "Status",
		"type":   "equipment_status",
		"format": "csv",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created models.Report
	decode(t, w, &created)
	assert.Equal(t, models.ReportStatusPending, created.Status)
	env.manager.Wait()

	w = env.do(t, models.RoleViewer, http.MethodGet, "/api/v1/reports/"+created.ID+"/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status report.Status
	decode(t, w, &status)
	assert.Equal(t, models.ReportStatusCompleted, status.Status)
	assert.NotNil(t, status.GeneratedAt)

	w = env.do(t, models.RoleViewer, http.MethodGet, "/api/v1/reports/"+created.ID+"/download", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), created.ID)

	records, err := csv.NewReader(strings.NewReader(w.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"name", "type", "status", "location", "lastUpdated"}, records[0])

	w = env.do(t, models.RoleViewer, http.MethodGet, "/api/v1/reports", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Report
	decode(t, w, &list)
	require.Len(t, list, 1)
	assert.Equal(t, string(models.RoleTechnician), list[0].CreatorName)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "", http.MethodPost, "/api/v1/auth/login", gin.H{"username": "admin", "password": "secret"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Token string `json:"token"`
	}
	decode(t, w, &resp)
	assert.NotEmpty(t, resp.Token)

	w = env.do(t, "", http.MethodPost, "/api/v1/auth/login", gin.H{"username": "admin", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, "", http.MethodGet, "/api/v1/reports", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReportErrorMapping(t *testing.T) {
	env := newTestEnv(t)

	pending := &models.Report{Title: "p", Type: models.ReportTypeEquipmentStatus, Format: models.ReportFormatPDF}
	require.NoError(t, env.db.Create(pending).Error)
	completed := &models.Report{Title: "c", Type: models.ReportTypeEquipmentStatus, Format: models.ReportFormatPDF, Status: models.ReportStatusCompleted}
	require.NoError(t, env.db.Create(completed).Error)

	cases := []struct {
		name   string
		role   models.Role
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"unknown report", models.RoleViewer, http.MethodGet, "/api/v1/reports/missing", nil, http.StatusNotFound},
		{"unknown status", models.RoleViewer, http.MethodGet, "/api/v1/reports/missing/status", nil, http.StatusNotFound},
		{"invalid type", models.RoleAdmin, http.MethodPost, "/api/v1/reports", gin.H{"title": "x", "type": "bogus", "format": "csv"}, http.StatusBadRequest},
		{"invalid format", models.RoleAdmin, http.MethodPost, "/api/v1/reports", gin.H{"title": "x", "type": "equipment_status", "format": "docx"}, http.StatusBadRequest},
		{"viewer cannot create", models.RoleViewer, http.MethodPost, "/api/v1/reports", gin.H{"title": "x", "type": "equipment_status", "format": "csv"}, http.StatusForbidden},
		{"download pending", models.RoleViewer, http.MethodGet, "/api/v1/reports/" + pending.ID + "/download", nil, http.StatusBadRequest},
		{"download without file", models.RoleViewer, http.MethodGet, "/api/v1/reports/" + completed.ID + "/download", nil, http.StatusNotFound},
		{"retry completed", models.RoleTechnician, http.MethodPost, "/api/v1/reports/" + completed.ID + "/retry", nil, http.StatusConflict},
		{"retry unknown", models.RoleTechnician, http.MethodPost, "/api/v1/reports/missing/retry", nil, http.StatusNotFound},
		{"bad schedule", models.RoleTechnician, http.MethodPost, "/api/v1/reports/" + pending.ID + "/schedule", gin.H{"frequency": "hourly", "time": "09:00"}, http.StatusBadRequest},
		{"schedule unknown", models.RoleTechnician, http.MethodPost, "/api/v1/reports/missing/schedule", gin.H{"frequency": "daily", "time": "09:00"}, http.StatusNotFound},
		{"delete unknown", models.RoleAdmin, http.MethodDelete, "/api/v1/reports/missing", nil, http.StatusNotFound},
		{"technician cannot set default", models.RoleTechnician, http.MethodPost, "/api/v1/templates/x/default", nil, http.StatusForbidden},
		{"unknown template", models.RoleAdmin, http.MethodPost, "/api/v1/templates/x/default", nil, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(t, tc.role, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.want, w.Code, w.Body.String())
			if w.Code >= 400 {
				assert.Contains(t, w.Body.String(), `"error"`)
			}
		})
	}
}

func TestRetryFailedReport(t *testing.T) {
	env := newTestEnv(t)
	failed := &models.Report{Title: "f", Type: models.ReportTypeDecommissionProgress, Format: models.ReportFormatExcel, Status: models.ReportStatusFailed, ErrorMessage: "boom"}
	require.NoError(t, env.db.Create(failed).Error)

	w := env.do(t, models.RoleTechnician, http.MethodPost, "/api/v1/reports/"+failed.ID+"/retry", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got models.Report
	decode(t, w, &got)
	assert.Equal(t, models.ReportStatusCompleted, got.Status)
	assert.Empty(t, got.ErrorMessage)
}

func TestScheduleLifecycle(t *testing.T) {
	env := newTestEnv(t)
	r := &models.Report{Title: "weekly", Type: models.ReportTypeEquipmentStatus, Format: models.ReportFormatCSV, Status: models.ReportStatusCompleted}
	require.NoError(t, env.db.Create(r).Error)
	path := "/api/v1/reports/" + r.ID + "/schedule"

	w := env.do(t, models.RoleTechnician, http.MethodPost, path, gin.H{
		"frequency":  "weekly",
		"dayOfWeek":  3,
		"time":       "09:00",
		"recipients": []string{"ops@example.com"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, models.RoleViewer, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp scheduleResponse
	decode(t, w, &resp)
	require.NotNil(t, resp.Schedule)
	assert.Equal(t, models.FrequencyWeekly, resp.Schedule.Frequency)
	require.NotNil(t, resp.NextRun)
	assert.Equal(t, time.Wednesday, resp.NextRun.In(time.UTC).Weekday())

	w = env.do(t, models.RoleTechnician, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(t, models.RoleTechnician, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, w.Code, "cancelling twice is a no-op")

	w = env.do(t, models.RoleViewer, http.MethodGet, path, nil)
	decode(t, w, &resp)
	assert.Nil(t, resp.Schedule)
	assert.Nil(t, resp.NextRun)
}

func TestDeleteReport(t *testing.T) {
	env := newTestEnv(t)
	r := &models.Report{Title: "d", Type: models.ReportTypeEquipmentStatus, Format: models.ReportFormatCSV}
	require.NoError(t, env.db.Create(r).Error)

	w := env.do(t, models.RoleViewer, http.MethodDelete, "/api/v1/reports/"+r.ID, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, models.RoleAdmin, http.MethodDelete, "/api/v1/reports/"+r.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(t, models.RoleAdmin, http.MethodGet, "/api/v1/reports/"+r.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReportTypes(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, models.RoleViewer, http.MethodGet, "/api/v1/reports/types", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var types []models.ReportTypeInfo
	decode(t, w, &types)
	assert.Len(t, types, 9)
	assert.Equal(t, models.ReportTypeEquipmentStatus, types[0].Type)
}

func TestTemplateEndpoints(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, models.RoleViewer, http.MethodGet, "/api/v1/templates?type=cost_analysis", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.ReportTemplate
	decode(t, w, &list)
	assert.Len(t, list, 3)

	w = env.do(t, models.RoleAdmin, http.MethodPost, "/api/v1/templates", gin.H{
		"name":   "Branded",
		"type":   "cost_analysis",
		"format": "pdf",
		"settings": gin.H{
			"header":   gin.H{"title": "Costs", "companyName": "Acme"},
			"sections": gin.H{"summary": true, "details": true},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.ReportTemplate
	decode(t, w, &created)
	assert.False(t, created.IsDefault)
	assert.Equal(t, "#1976d2", created.Settings.Styling.PrimaryColor)

	w = env.do(t, models.RoleAdmin, http.MethodPost, "/api/v1/templates/"+created.ID+"/default", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, models.RoleViewer, http.MethodGet, "/api/v1/templates?type=cost_analysis&format=pdf", nil)
	decode(t, w, &list)
	defaults := 0
	for _, tmpl := range list {
		if tmpl.IsDefault {
			defaults++
			assert.Equal(t, created.ID, tmpl.ID)
		}
	}
	assert.Equal(t, 1, defaults)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "", http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, "", http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tedecom_reports_generations_in_flight")
}
