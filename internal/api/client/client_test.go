package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinrooster/tedecom-v1/internal/models"
)

func TestClientSendsTokenAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/api/v1/reports":
			assert.Equal(t, "failed", r.URL.Query().Get("status"))
			json.NewEncoder(w).Encode([]models.Report{{ID: "r1", Status: models.ReportStatusFailed}})
		case "/api/v1/reports/r1/schedule":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "get report missing: not found"})
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")

	reports, err := c.ListReports("", "failed")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "r1", reports[0].ID)

	require.NoError(t, c.CancelSchedule("r1"))

	_, err = c.GetReport("missing")
	assert.EqualError(t, err, "API error: get report missing: not found")
}

func TestLoginAndDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/login":
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "admin", body["username"])
			json.NewEncoder(w).Encode(map[string]string{"token": "issued"})
		case "/api/v1/reports/r1/download":
			w.Header().Set("Content-Type", "text/csv")
			w.Write([]byte("name\nsrv-01\n"))
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	token, err := c.Login("admin", "secret")
	require.NoError(t, err)
	assert.Equal(t, "issued", token)

	out := filepath.Join(t.TempDir(), "r1.csv")
	n, err := c.DownloadReport("r1", out)
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)

	content, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "name\nsrv-01\n", string(content))
}
