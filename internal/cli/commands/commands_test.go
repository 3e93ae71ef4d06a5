package commands

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinrooster/tedecom-v1/internal/models"
)

func useServer(t *testing.T, handler http.HandlerFunc) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	viper.Set("api_url", srv.URL)
	viper.Set("token", "test-token")
	t.Cleanup(viper.Reset)
}

func TestReportCreateSendsParameters(t *testing.T) {
	var body map[string]interface{}
	useServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/reports", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.Report{ID: "r1", Status: models.ReportStatusPending})
	})

	cmd := NewReportCommand()
	cmd.SetArgs([]string{"create",
		"--title", "Q1 progress",
		"--type", "decommission_progress",
		"--format", "csv",
		"--start", "2024-01-01",
		"--end", "2024-03-31",
		"--equipment", "3,5",
	})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, "Q1 progress", body["title"])
	assert.Equal(t, "decommission_progress", body["type"])
	assert.Equal(t, "csv", body["format"])
	params := body["parameters"].(map[string]interface{})
	assert.Equal(t, "2024-01-01", params["startDate"])
	assert.Equal(t, "2024-03-31", params["endDate"])
	assert.Equal(t, []interface{}{float64(3), float64(5)}, params["equipmentIds"])
	assert.NotContains(t, params, "location")
}

func TestReportCreateWaitReportsFailure(t *testing.T) {
	useServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/reports":
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(models.Report{ID: "r1", Status: models.ReportStatusPending})
		case "/api/v1/reports/r1/status":
			json.NewEncoder(w).Encode(map[string]string{"status": "failed", "error": "startDate is required"})
		default:
			http.NotFound(w, r)
		}
	})

	cmd := NewReportCommand()
	cmd.SetArgs([]string{"create", "--title", "x", "--wait"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "startDate is required")
}

func TestScheduleSetOnlySendsChangedDays(t *testing.T) {
	var body map[string]interface{}
	useServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/reports/r1/schedule", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"schedule": body})
	})

	cmd := NewScheduleCommand()
	cmd.SetArgs([]string{"set", "r1", "--frequency", "weekly", "--day-of-week", "3", "--time", "06:30", "--email", "ops@example.com"})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, "weekly", body["frequency"])
	assert.Equal(t, "06:30", body["time"])
	assert.Equal(t, float64(3), body["dayOfWeek"])
	assert.NotContains(t, body, "dayOfMonth")
	assert.Equal(t, []interface{}{"ops@example.com"}, body["recipients"])
}

func TestScheduleSetQuarterlySendsDayOfMonth(t *testing.T) {
	var body map[string]interface{}
	useServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"schedule": body})
	})

	cmd := NewScheduleCommand()
	cmd.SetArgs([]string{"set", "r1", "--frequency", "quarterly"})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, float64(1), body["dayOfMonth"])
	assert.NotContains(t, body, "dayOfWeek")
}

func TestReportDeleteSurfacesAPIError(t *testing.T) {
	useServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "report not found"})
	})

	cmd := NewReportCommand()
	cmd.SetArgs([]string{"delete", "missing"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to delete report")
}
