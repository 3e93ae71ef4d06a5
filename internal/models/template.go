package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultDateFormat     = "MM/DD/YYYY"
	DefaultPrimaryColor   = "#1976d2"
	DefaultSecondaryColor = "#dc004e"
	DefaultFontFamily     = "Arial"
	DefaultFontSize       = 12
	DefaultMargin         = 0.5
)

type HeaderSettings struct {
	Title       string `json:"title"`
	Logo        string `json:"logo,omitempty"`
	CompanyName string `json:"companyName,omitempty"`
	DateFormat  string `json:"dateFormat"`
}

type StylingSettings struct {
	PrimaryColor   string  `json:"primaryColor"`
	SecondaryColor string  `json:"secondaryColor"`
	FontFamily     string  `json:"fontFamily"`
	FontSize       float64 `json:"fontSize"`
}

type SectionSettings struct {
	Summary         bool `json:"summary"`
	Details         bool `json:"details"`
	Charts          bool `json:"charts"`
	Recommendations bool `json:"recommendations"`
}

type TableSettings struct {
	ShowBorders        bool `json:"showBorders"`
	AlternateRowColors bool `json:"alternateRowColors"`
	CompactMode        bool `json:"compactMode"`
}

// Margins are expressed in inches.
type Margins struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

type PageSettings struct {
	Orientation string  `json:"orientation"`
	Margins     Margins `json:"margins"`
}

type TemplateSettings struct {
	Header        HeaderSettings  `json:"header"`
	Styling       StylingSettings `json:"styling"`
	Sections      SectionSettings `json:"sections"`
	TableSettings TableSettings   `json:"tableSettings"`
	PageSettings  PageSettings    `json:"pageSettings"`
}

// DefaultTemplateSettings returns the settings used for seeded templates.
func DefaultTemplateSettings(title string) TemplateSettings {
	return TemplateSettings{
		Header: HeaderSettings{
			Title:      title,
			DateFormat: DefaultDateFormat,
		},
		Styling: StylingSettings{
			PrimaryColor:   DefaultPrimaryColor,
			SecondaryColor: DefaultSecondaryColor,
			FontFamily:     DefaultFontFamily,
			FontSize:       DefaultFontSize,
		},
		Sections: SectionSettings{
			Summary:         true,
			Details:         true,
			Charts:          true,
			Recommendations: true,
		},
		TableSettings: TableSettings{
			ShowBorders:        true,
			AlternateRowColors: true,
		},
		PageSettings: PageSettings{
			Orientation: "portrait",
			Margins: Margins{
				Top:    DefaultMargin,
				Right:  DefaultMargin,
				Bottom: DefaultMargin,
				Left:   DefaultMargin,
			},
		},
	}
}

// WithDefaults fills zero-valued styling, header and page fields.
func (s TemplateSettings) WithDefaults() TemplateSettings {
	if s.Header.DateFormat == "" {
		s.Header.DateFormat = DefaultDateFormat
	}
	if s.Styling.PrimaryColor == "" {
		s.Styling.PrimaryColor = DefaultPrimaryColor
	}
	if s.Styling.SecondaryColor == "" {
		s.Styling.SecondaryColor = DefaultSecondaryColor
	}
	if s.Styling.FontFamily == "" {
		s.Styling.FontFamily = DefaultFontFamily
	}
	if s.Styling.FontSize <= 0 {
		s.Styling.FontSize = DefaultFontSize
	}
	if s.PageSettings.Orientation == "" {
		s.PageSettings.Orientation = "portrait"
	}
	m := &s.PageSettings.Margins
	if m.Top <= 0 && m.Right <= 0 && m.Bottom <= 0 && m.Left <= 0 {
		*m = Margins{Top: DefaultMargin, Right: DefaultMargin, Bottom: DefaultMargin, Left: DefaultMargin}
	}
	return s
}

var dateFormatReplacer = strings.NewReplacer(
	"YYYY", "2006",
	"YY", "06",
	"MM", "01",
	"DD", "02",
	"HH", "15",
	"mm", "04",
	"ss", "05",
)

// GoDateLayout converts a header date format such as MM/DD/YYYY into a
// time.Format layout.
func (h HeaderSettings) GoDateLayout() string {
	format := h.DateFormat
	if format == "" {
		format = DefaultDateFormat
	}
	return dateFormatReplacer.Replace(format)
}

type ReportTemplate struct {
	ID          string           `gorm:"primaryKey;size:36" json:"id"`
	Name        string           `gorm:"not null" json:"name"`
	Description string           `json:"description"`
	Type        ReportType       `gorm:"index:idx_template_lookup;not null" json:"type"`
	Format      ReportFormat     `gorm:"index:idx_template_lookup;not null" json:"format"`
	CreatedBy   *uint            `gorm:"index" json:"createdBy,omitempty"`
	IsDefault   bool             `gorm:"index;default:false" json:"isDefault"`
	Settings    TemplateSettings `gorm:"serializer:json" json:"settings"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

func (t *ReportTemplate) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
