// Package templates stores report templates and picks the one used for a
// generation.
package templates

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tinrooster/tedecom-v1/internal/apperrors"
	"github.com/tinrooster/tedecom-v1/internal/models"
	"gorm.io/gorm"
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Type   models.ReportType
	Format models.ReportFormat
}

// Resolve returns the template for a generation: the requesting user's own
// non-default template for (type, format), otherwise the default for that
// pair. No match is a validation error.
func (s *Service) Resolve(ctx context.Context, reportType models.ReportType, format models.ReportFormat, userID uint) (*models.ReportTemplate, error) {
	var tmpl models.ReportTemplate

	err := s.db.WithContext(ctx).
		Where("type = ? AND format = ? AND created_by = ? AND is_default = ?", reportType, format, userID, false).
		Order("updated_at desc").
		First(&tmpl).Error
	if err == nil {
		return &tmpl, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to find user template: %w", err)
	}

	err = s.db.WithContext(ctx).
		Where("type = ? AND format = ? AND is_default = ?", reportType, format, true).
		First(&tmpl).Error
	if err == nil {
		return &tmpl, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Validationf("resolve template", "no template found for %s/%s", reportType, format)
	}
	return nil, fmt.Errorf("failed to find default template: %w", err)
}

func (s *Service) Get(ctx context.Context, id string) (*models.ReportTemplate, error) {
	var tmpl models.ReportTemplate
	if err := s.db.WithContext(ctx).First(&tmpl, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("get template", id)
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return &tmpl, nil
}

func (s *Service) List(ctx context.Context, filter Filter) ([]models.ReportTemplate, error) {
	query := s.db.WithContext(ctx)
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Format != "" {
		query = query.Where("format = ?", filter.Format)
	}

	var templates []models.ReportTemplate
	if err := query.Order("type asc").Order("format asc").Order("name asc").Find(&templates).Error; err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	return templates, nil
}

func validate(tmpl *models.ReportTemplate) error {
	if strings.TrimSpace(tmpl.Name) == "" {
		return apperrors.Validationf("save template", "name is required")
	}
	if !tmpl.Type.Valid() {
		return apperrors.Validationf("save template", "invalid report type: %s", tmpl.Type)
	}
	if !tmpl.Format.Valid() {
		return apperrors.Validationf("save template", "invalid report format: %s", tmpl.Format)
	}
	return nil
}

// Create stores a new template. A template created with IsDefault set
// becomes the default for its pair through SetDefault.
func (s *Service) Create(ctx context.Context, tmpl *models.ReportTemplate) error {
	if err := validate(tmpl); err != nil {
		return err
	}

	makeDefault := tmpl.IsDefault
	tmpl.IsDefault = false
	if err := s.db.WithContext(ctx).Create(tmpl).Error; err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}

	if makeDefault {
		updated, err := s.SetDefault(ctx, tmpl.ID)
		if err != nil {
			return err
		}
		*tmpl = *updated
	}
	return nil
}

// Update replaces the editable fields of a template. The default flag is
// only set through SetDefault, and is cleared when the template moves to
// another (type, format).
func (s *Service) Update(ctx context.Context, id string, changes *models.ReportTemplate) (*models.ReportTemplate, error) {
	tmpl, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	pairType, pairFormat := tmpl.Type, tmpl.Format
	tmpl.Name = changes.Name
	tmpl.Description = changes.Description
	tmpl.Settings = changes.Settings
	if changes.Type != "" {
		tmpl.Type = changes.Type
	}
	if changes.Format != "" {
		tmpl.Format = changes.Format
	}
	// A default moved to another pair stops being a default; the target
	// pair keeps its own.
	if tmpl.Type != pairType || tmpl.Format != pairFormat {
		tmpl.IsDefault = false
	}
	if err := validate(tmpl); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Save(tmpl).Error; err != nil {
		return nil, fmt.Errorf("failed to update template: %w", err)
	}
	return tmpl, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&models.ReportTemplate{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete template: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("delete template", id)
	}
	return nil
}

// SetDefault makes the template the only default for its (type, format).
func (s *Service) SetDefault(ctx context.Context, id string) (*models.ReportTemplate, error) {
	var tmpl models.ReportTemplate

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&tmpl, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("set default template", id)
			}
			return err
		}

		if err := tx.Model(&models.ReportTemplate{}).
			Where("type = ? AND format = ? AND id <> ?", tmpl.Type, tmpl.Format, tmpl.ID).
			Update("is_default", false).Error; err != nil {
			return fmt.Errorf("failed to clear default templates: %w", err)
		}

		if err := tx.Model(&tmpl).Update("is_default", true).Error; err != nil {
			return fmt.Errorf("failed to set default template: %w", err)
		}
		tmpl.IsDefault = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("component", "templates").
		Str("template_id", tmpl.ID).
		Str("type", string(tmpl.Type)).
		Str("format", string(tmpl.Format)).
		Msg("Default template changed")
	return &tmpl, nil
}

// EnsureDefaults seeds a system template for every (type, format) pair that
// has no default yet and returns how many were created.
func (s *Service) EnsureDefaults(ctx context.Context) (int, error) {
	created := 0
	for _, info := range models.ReportTypes {
		for _, format := range models.ReportFormats {
			var count int64
			if err := s.db.WithContext(ctx).Model(&models.ReportTemplate{}).
				Where("type = ? AND format = ? AND is_default = ?", info.Type, format, true).
				Count(&count).Error; err != nil {
				return created, fmt.Errorf("failed to count default templates: %w", err)
			}
			if count > 0 {
				continue
			}

			tmpl := &models.ReportTemplate{
				Name:        fmt.Sprintf("%s (%s)", info.Name, format),
				Description: info.Description,
				Type:        info.Type,
				Format:      format,
				IsDefault:   true,
				Settings:    models.DefaultTemplateSettings(info.Name + " Report"),
			}
			if err := s.db.WithContext(ctx).Create(tmpl).Error; err != nil {
				return created, fmt.Errorf("failed to create default template: %w", err)
			}
			created++
		}
	}
	return created, nil
}
