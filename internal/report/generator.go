package report

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tinrooster/tedecom-v1/internal/aggregate"
	"github.com/tinrooster/tedecom-v1/internal/apperrors"
	"github.com/tinrooster/tedecom-v1/internal/models"
	"github.com/tinrooster/tedecom-v1/internal/notify"
	"github.com/tinrooster/tedecom-v1/internal/render"
	"gorm.io/gorm"
)

type Aggregator interface {
	Aggregate(ctx context.Context, reportType models.ReportType, params map[string]interface{}) (aggregate.Data, error)
}

type TemplateResolver interface {
	Resolve(ctx context.Context, reportType models.ReportType, format models.ReportFormat, userID uint) (*models.ReportTemplate, error)
}

// Renderer turns aggregated data into file content. render.Registry
// satisfies it.
type Renderer interface {
	Render(data aggregate.Data, opts render.Options) ([]byte, error)
}

type Mailer interface {
	SendReport(ctx context.Context, mail notify.ReportMail) error
}

type Notifier interface {
	ReportFinished(ctx context.Context, r *models.Report) error
}

var claimable = []models.ReportStatus{
	models.ReportStatusPending,
	models.ReportStatusCompleted,
	models.ReportStatusFailed,
}

// Generate runs one generation attempt for the report. The report is
// claimed by moving it to in_progress; a report that is already being
// generated, or is in a state that cannot be generated, is rejected with an
// InvalidState error and left untouched. Once claimed the returned report
// is never nil, even when the attempt fails.
func (m *Manager) Generate(ctx context.Context, id string) (*models.Report, error) {
	if err := m.claim(ctx, id); err != nil {
		return nil, err
	}

	var r models.Report
	if err := m.db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		r.ID = id
		r.Status = models.ReportStatusInProgress
		cause := fmt.Errorf("failed to load report: %w", err)
		if ferr := m.fail(ctx, &r, cause); ferr != nil {
			log.Error().Err(ferr).Str("component", "report").Str("report_id", id).Msg("Failed to record generation failure")
		}
		return &r, apperrors.Generation("generate", id, cause)
	}

	m.metrics.inFlight.Inc()
	defer m.metrics.inFlight.Dec()

	logger := log.With().
		Str("component", "report").
		Str("report_id", r.ID).
		Str("type", string(r.Type)).
		Str("format", string(r.Format)).
		Logger()
	logger.Info().Msg("Generating report")

	start := m.now()
	artifact, err := m.run(ctx, &r, start)
	if err == nil {
		if err = m.complete(ctx, &r, artifact); err != nil {
			m.artifacts.Remove(artifact.FilePath)
		}
	}
	if err != nil {
		m.metrics.observe(&r, "failed", m.now().Sub(start))
		if ferr := m.fail(ctx, &r, err); ferr != nil {
			logger.Error().Err(ferr).Msg("Failed to record generation failure")
		}
		logger.Warn().Err(err).Msg("Report generation failed")
		m.notifyFinished(ctx, &r)
		return &r, apperrors.Generation("generate", r.ID, err)
	}

	m.metrics.observe(&r, "completed", m.now().Sub(start))
	logger.Info().
		Str("file", artifact.FilePath).
		Int64("size", artifact.Size).
		Dur("elapsed", m.now().Sub(start)).
		Msg("Report generated")
	m.notifyFinished(ctx, &r)
	return &r, nil
}

func (m *Manager) claim(ctx context.Context, id string) error {
	result := m.db.WithContext(ctx).Model(&models.Report{}).
		Where("id = ? AND status IN ?", id, claimable).
		Updates(map[string]interface{}{
			"status":        models.ReportStatusInProgress,
			"error_message": "",
			"last_error_at": nil,
			"file_path":     "",
			"generated_at":  nil,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to claim report: %w", result.Error)
	}
	if result.RowsAffected == 1 {
		return nil
	}

	status, err := m.status(ctx, id, "generate")
	if err != nil {
		return err
	}
	return apperrors.InvalidStatef("generate", id, "report is %s", status)
}

// run is the generation pipeline: aggregate, resolve the template, render,
// store the artifact and email it to schedule recipients.
func (m *Manager) run(ctx context.Context, r *models.Report, at time.Time) (*models.ReportArtifact, error) {
	data, err := m.aggregator.Aggregate(ctx, r.Type, r.Parameters)
	if err != nil {
		return nil, err
	}

	tmpl, err := m.templates.Resolve(ctx, r.Type, r.Format, r.CreatedBy)
	if err != nil {
		return nil, err
	}

	content, err := m.renderer.Render(data, render.Options{
		Title:       r.Title,
		Type:        r.Type,
		Format:      r.Format,
		GeneratedAt: at,
		Settings:    tmpl.Settings,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}

	artifact, err := m.artifacts.Write(ctx, r.ID, r.Format, content)
	if err != nil {
		return nil, err
	}

	if recipients := r.Recipients(); len(recipients) > 0 {
		if m.mailer == nil {
			log.Warn().Str("component", "report").Str("report_id", r.ID).Msg("Email disabled, skipping report delivery")
			return artifact, nil
		}
		err := m.mailer.SendReport(ctx, notify.ReportMail{
			ReportID:    r.ID,
			Recipients:  recipients,
			Title:       r.Title,
			TypeName:    r.Type.DisplayName(),
			Format:      string(r.Format),
			GeneratedAt: at,
			Attachment:  artifact.FilePath,
		})
		if err != nil {
			m.artifacts.Remove(artifact.FilePath)
			return nil, err
		}
	}
	return artifact, nil
}

func (m *Manager) complete(ctx context.Context, r *models.Report, artifact *models.ReportArtifact) error {
	generatedAt := m.now()
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Report{}).
			Where("id = ? AND status = ?", r.ID, models.ReportStatusInProgress).
			Updates(map[string]interface{}{
				"status":       models.ReportStatusCompleted,
				"generated_at": generatedAt,
				"file_path":    artifact.FilePath,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to complete report: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperrors.InvalidStatef("complete report", r.ID, "report is no longer in progress")
		}
		if err := tx.Create(artifact).Error; err != nil {
			return fmt.Errorf("failed to record artifact: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.Status = models.ReportStatusCompleted
	r.GeneratedAt = &generatedAt
	r.FilePath = artifact.FilePath
	return nil
}

func (m *Manager) fail(ctx context.Context, r *models.Report, cause error) error {
	failedAt := m.now()
	message := apperrors.Cause(cause).Error()

	// The attempt may have been cancelled; the failure is still recorded.
	ctx = context.WithoutCancel(ctx)
	result := m.db.WithContext(ctx).Model(&models.Report{}).
		Where("id = ? AND status = ?", r.ID, models.ReportStatusInProgress).
		Updates(map[string]interface{}{
			"status":        models.ReportStatusFailed,
			"last_error_at": failedAt,
			"error_message": message,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return nil
	}

	r.Status = models.ReportStatusFailed
	r.LastErrorAt = &failedAt
	r.ErrorMessage = message
	return nil
}

func (m *Manager) notifyFinished(ctx context.Context, r *models.Report) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.ReportFinished(context.WithoutCancel(ctx), r); err != nil {
		log.Warn().Err(err).Str("component", "report").Str("report_id", r.ID).Msg("Failed to send report notification")
	}
}
