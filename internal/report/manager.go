// Package report owns the report lifecycle: creation, background
// generation, retries, status, downloads and deletion.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tinrooster/tedecom-v1/internal/apperrors"
	"github.com/tinrooster/tedecom-v1/internal/models"
	"golang.org/x/sync/semaphore"
	"gorm.io/gorm"
)

const interruptedMessage = "interrupted by restart"

type Config struct {
	DB            *gorm.DB
	Aggregator    Aggregator
	Templates     TemplateResolver
	Renderer      Renderer
	Artifacts     *ArtifactStore
	Mailer        Mailer
	Notifier      Notifier
	Metrics       *Metrics
	MaxConcurrent int64
}

type Manager struct {
	db         *gorm.DB
	aggregator Aggregator
	templates  TemplateResolver
	renderer   Renderer
	artifacts  *ArtifactStore
	mailer     Mailer
	notifier   Notifier
	metrics    *Metrics
	now        func() time.Time

	sem     *semaphore.Weighted
	wg      sync.WaitGroup
	queue   context.Context
	cancel  context.CancelFunc
	closing bool
	mu      sync.Mutex
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(nil)
	}
	queue, cancel := context.WithCancel(context.Background())
	return &Manager{
		db:         cfg.DB,
		aggregator: cfg.Aggregator,
		templates:  cfg.Templates,
		renderer:   cfg.Renderer,
		artifacts:  cfg.Artifacts,
		mailer:     cfg.Mailer,
		notifier:   cfg.Notifier,
		metrics:    cfg.Metrics,
		now:        time.Now,
		sem:        semaphore.NewWeighted(cfg.MaxConcurrent),
		queue:      queue,
		cancel:     cancel,
	}
}

type CreateInput struct {
	Title      string                 `json:"title"`
	Type       models.ReportType      `json:"type"`
	Format     models.ReportFormat    `json:"format"`
	Parameters map[string]interface{} `json:"parameters"`
	CreatedBy  uint                   `json:"-"`
}

func (in CreateInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return apperrors.Validationf("create report", "title is required")
	}
	if !in.Type.Valid() {
		return apperrors.Validationf("create report", "invalid report type: %s", in.Type)
	}
	if !in.Format.Valid() {
		return apperrors.Validationf("create report", "invalid report format: %s", in.Format)
	}
	return nil
}

// Create stores a pending report and starts generating it in the
// background. The returned report is the pending record.
func (m *Manager) Create(ctx context.Context, in CreateInput) (*models.Report, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	r := &models.Report{
		Title:      strings.TrimSpace(in.Title),
		Type:       in.Type,
		Format:     in.Format,
		Status:     models.ReportStatusPending,
		Parameters: in.Parameters,
		CreatedBy:  in.CreatedBy,
	}
	if err := m.db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, fmt.Errorf("failed to create report: %w", err)
	}

	log.Info().
		Str("component", "report").
		Str("report_id", r.ID).
		Str("type", string(r.Type)).
		Str("format", string(r.Format)).
		Uint("created_by", r.CreatedBy).
		Msg("Report created")

	m.enqueue(r.ID)
	return r, nil
}

// enqueue generates the report on its own goroutine once a slot is free.
func (m *Manager) enqueue(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closing {
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.sem.Acquire(m.queue, 1); err != nil {
			log.Warn().Str("component", "report").Str("report_id", id).Msg("Generation not started, manager shutting down")
			return
		}
		defer m.sem.Release(1)

		if _, err := m.Generate(context.Background(), id); err != nil && !errors.Is(err, apperrors.ErrGeneration) {
			log.Warn().Err(err).Str("component", "report").Str("report_id", id).Msg("Background generation skipped")
		}
	}()
}

// Retry moves a failed report back to pending and generates it again.
// Reports in any other state are rejected without modification.
func (m *Manager) Retry(ctx context.Context, id string) (*models.Report, error) {
	result := m.db.WithContext(ctx).Model(&models.Report{}).
		Where("id = ? AND status = ?", id, models.ReportStatusFailed).
		Updates(map[string]interface{}{
			"status":        models.ReportStatusPending,
			"error_message": "",
			"last_error_at": nil,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to reset report: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		status, err := m.status(ctx, id, "retry")
		if err != nil {
			return nil, err
		}
		return nil, apperrors.InvalidStatef("retry", id, "only failed reports can be retried, report is %s", status)
	}

	log.Info().Str("component", "report").Str("report_id", id).Msg("Retrying report")
	return m.Generate(ctx, id)
}

func (m *Manager) Get(ctx context.Context, id string) (*models.Report, error) {
	var r models.Report
	if err := m.db.WithContext(ctx).Preload("Creator").First(&r, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("get report", id)
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return &r, nil
}

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	Type   models.ReportType
	Status models.ReportStatus
}

// List returns reports newest first with their creators resolved.
func (m *Manager) List(ctx context.Context, filter ListFilter) ([]models.Report, error) {
	query := m.db.WithContext(ctx).Preload("Creator")
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var reports []models.Report
	if err := query.Order("created_at desc").Find(&reports).Error; err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	return reports, nil
}

// Status is the progress view of a report.
type Status struct {
	Status      models.ReportStatus `json:"status"`
	Error       string              `json:"error,omitempty"`
	LastErrorAt *time.Time          `json:"lastErrorAt,omitempty"`
	GeneratedAt *time.Time          `json:"generatedAt,omitempty"`
}

func (m *Manager) GetStatus(ctx context.Context, id string) (*Status, error) {
	var r models.Report
	err := m.db.WithContext(ctx).
		Select("id", "status", "error_message", "last_error_at", "generated_at").
		First(&r, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("get report status", id)
		}
		return nil, fmt.Errorf("failed to get report status: %w", err)
	}
	return &Status{
		Status:      r.Status,
		Error:       r.ErrorMessage,
		LastErrorAt: r.LastErrorAt,
		GeneratedAt: r.GeneratedAt,
	}, nil
}

// Artifact returns a completed report whose file is available for
// download.
func (m *Manager) Artifact(ctx context.Context, id string) (*models.Report, error) {
	r, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != models.ReportStatusCompleted {
		return nil, apperrors.InvalidStatef("download report", id, "report is %s", r.Status)
	}
	if !m.artifacts.Exists(r.FilePath) {
		return nil, apperrors.NotFound("download report", id)
	}
	return r, nil
}

// Delete removes the report, its artifact records and files.
func (m *Manager) Delete(ctx context.Context, id string) error {
	var r models.Report
	if err := m.db.WithContext(ctx).Preload("Artifacts").First(&r, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("delete report", id)
		}
		return fmt.Errorf("failed to get report: %w", err)
	}

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("report_id = ?", id).Delete(&models.ReportArtifact{}).Error; err != nil {
			return fmt.Errorf("failed to delete artifacts: %w", err)
		}
		if err := tx.Delete(&models.Report{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete report: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	paths := map[string]bool{r.FilePath: true}
	for _, a := range r.Artifacts {
		paths[a.FilePath] = true
	}
	for path := range paths {
		if err := m.artifacts.Remove(path); err != nil {
			log.Warn().Err(err).Str("component", "report").Str("report_id", id).Msg("Failed to remove report file")
		}
	}

	log.Info().Str("component", "report").Str("report_id", id).Msg("Report deleted")
	return nil
}

// SetSchedule stores or clears (nil) the schedule of a report.
func (m *Manager) SetSchedule(ctx context.Context, id string, schedule *models.ReportSchedule) error {
	var value interface{} = gorm.Expr("NULL")
	if schedule != nil {
		encoded, err := json.Marshal(schedule)
		if err != nil {
			return fmt.Errorf("failed to encode schedule: %w", err)
		}
		value = string(encoded)
	}

	result := m.db.WithContext(ctx).Model(&models.Report{}).Where("id = ?", id).Update("schedule", value)
	if result.Error != nil {
		return fmt.Errorf("failed to save schedule: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("schedule report", id)
	}
	return nil
}

// ScheduledReports returns every report that carries a schedule.
func (m *Manager) ScheduledReports(ctx context.Context) ([]models.Report, error) {
	var reports []models.Report
	if err := m.db.WithContext(ctx).Where("schedule IS NOT NULL").Find(&reports).Error; err != nil {
		return nil, fmt.Errorf("failed to list scheduled reports: %w", err)
	}

	scheduled := reports[:0]
	for _, r := range reports {
		if r.Schedule != nil {
			scheduled = append(scheduled, r)
		}
	}
	return scheduled, nil
}

// Init recovers reports left behind by a previous process: in-progress
// reports are marked failed and pending ones are queued again.
func (m *Manager) Init(ctx context.Context) error {
	now := m.now()
	result := m.db.WithContext(ctx).Model(&models.Report{}).
		Where("status = ?", models.ReportStatusInProgress).
		Updates(map[string]interface{}{
			"status":        models.ReportStatusFailed,
			"error_message": interruptedMessage,
			"last_error_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to recover interrupted reports: %w", result.Error)
	}

	var pending []string
	if err := m.db.WithContext(ctx).Model(&models.Report{}).
		Where("status = ?", models.ReportStatusPending).
		Order("created_at asc").
		Pluck("id", &pending).Error; err != nil {
		return fmt.Errorf("failed to list pending reports: %w", err)
	}
	for _, id := range pending {
		m.enqueue(id)
	}

	log.Info().
		Str("component", "report").
		Int64("interrupted", result.RowsAffected).
		Int("requeued", len(pending)).
		Msg("Report manager initialized")
	return nil
}

// Wait blocks until every background generation has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Shutdown stops accepting background work, abandons generations still
// waiting for a slot and waits for running ones until ctx is done.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closing = true
	m.mu.Unlock()
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) status(ctx context.Context, id, op string) (models.ReportStatus, error) {
	var r models.Report
	if err := m.db.WithContext(ctx).Select("id", "status").First(&r, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperrors.NotFound(op, id)
		}
		return "", fmt.Errorf("failed to get report: %w", err)
	}
	return r.Status, nil
}
