package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"time"

	"github.com/spf13/viper"
	"github.com/tinrooster/tedecom-v1/internal/models"
)

const DefaultBaseURL = "http://localhost:8080"

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient builds a client from the CLI configuration: api_url and token,
// overridable through TEDECOM_API_URL and TEDECOM_TOKEN.
func NewClient() (*Client, error) {
	baseURL := viper.GetString("api_url")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return New(baseURL, viper.GetString("token")), nil
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

type ScheduleInfo struct {
	Schedule *models.ReportSchedule `json:"schedule"`
	NextRun  *time.Time             `json:"nextRun,omitempty"`
}

type ReportStatus struct {
	Status      models.ReportStatus `json:"status"`
	Error       string              `json:"error,omitempty"`
	LastErrorAt *time.Time          `json:"lastErrorAt,omitempty"`
	GeneratedAt *time.Time          `json:"generatedAt,omitempty"`
}

type CreateReportRequest struct {
	Title      string                 `json:"title"`
	Type       models.ReportType      `json:"type"`
	Format     models.ReportFormat    `json:"format"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

func (c *Client) Login(username, password string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	data := map[string]string{"username": username, "password": password}
	if err := c.send(http.MethodPost, "/api/v1/auth/login", nil, data, &resp); err != nil {
		return "", err
	}
	return resp.Token, nil
}

func (c *Client) ListReports(reportType, status string) ([]models.Report, error) {
	query := url.Values{}
	if reportType != "" {
		query.Set("type", reportType)
	}
	if status != "" {
		query.Set("status", status)
	}

	var reports []models.Report
	if err := c.send(http.MethodGet, "/api/v1/reports", query, nil, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

func (c *Client) ListReportTypes() ([]models.ReportTypeInfo, error) {
	var types []models.ReportTypeInfo
	if err := c.send(http.MethodGet, "/api/v1/reports/types", nil, nil, &types); err != nil {
		return nil, err
	}
	return types, nil
}

func (c *Client) GetReport(id string) (*models.Report, error) {
	var r models.Report
	if err := c.send(http.MethodGet, "/api/v1/reports/"+id, nil, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) CreateReport(req CreateReportRequest) (*models.Report, error) {
	var r models.Report
	if err := c.send(http.MethodPost, "/api/v1/reports", nil, req, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) GetReportStatus(id string) (*ReportStatus, error) {
	var status ReportStatus
	if err := c.send(http.MethodGet, "/api/v1/reports/"+id+"/status", nil, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) RetryReport(id string) (*models.Report, error) {
	var r models.Report
	if err := c.send(http.MethodPost, "/api/v1/reports/"+id+"/retry", nil, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) DeleteReport(id string) error {
	return c.send(http.MethodDelete, "/api/v1/reports/"+id, nil, nil, nil)
}

// DownloadReport writes the report file to output and returns the number
// of bytes written.
func (c *Client) DownloadReport(id, output string) (int64, error) {
	resp, err := c.doRequest(http.MethodGet, "/api/v1/reports/"+id+"/download", nil, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	out, err := os.Create(output)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	return io.Copy(out, resp.Body)
}

func (c *Client) ScheduleReport(id string, schedule models.ReportSchedule) (*ScheduleInfo, error) {
	var info ScheduleInfo
	if err := c.send(http.MethodPost, "/api/v1/reports/"+id+"/schedule", nil, schedule, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) GetSchedule(id string) (*ScheduleInfo, error) {
	var info ScheduleInfo
	if err := c.send(http.MethodGet, "/api/v1/reports/"+id+"/schedule", nil, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) CancelSchedule(id string) error {
	return c.send(http.MethodDelete, "/api/v1/reports/"+id+"/schedule", nil, nil, nil)
}

func (c *Client) ListTemplates(reportType, format string) ([]models.ReportTemplate, error) {
	query := url.Values{}
	if reportType != "" {
		query.Set("type", reportType)
	}
	if format != "" {
		query.Set("format", format)
	}

	var list []models.ReportTemplate
	if err := c.send(http.MethodGet, "/api/v1/templates", query, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) SetDefaultTemplate(id string) (*models.ReportTemplate, error) {
	var tmpl models.ReportTemplate
	if err := c.send(http.MethodPost, "/api/v1/templates/"+id+"/default", nil, nil, &tmpl); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

func (c *Client) send(method, endpoint string, query url.Values, data, v interface{}) error {
	var body io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	resp, err := c.doRequest(method, endpoint, query, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if v != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(v)
	}
	return nil
}

func (c *Client) doRequest(method, endpoint string, query url.Values, body io.Reader) (*http.Response, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	u.Path = path.Join(u.Path, endpoint)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequest(method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		var errResp struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
			return nil, fmt.Errorf("API error: %s", errResp.Error)
		}
		return nil, fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	return resp, nil
}
