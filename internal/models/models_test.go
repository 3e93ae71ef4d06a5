package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReportFormatContentTypes(t *testing.T) {
	tests := []struct {
		format      ReportFormat
		contentType string
		ext         string
	}{
		{ReportFormatPDF, "application/pdf", "pdf"},
		{ReportFormatExcel, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "xlsx"},
		{ReportFormatCSV, "text/csv", "csv"},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			assert.True(t, tt.format.Valid())
			assert.Equal(t, tt.contentType, tt.format.ContentType())
			assert.Equal(t, tt.ext, tt.format.Extension())
		})
	}

	assert.False(t, ReportFormat("docx").Valid())
}

func TestReportTypes(t *testing.T) {
	assert.Len(t, ReportTypes, 9)
	assert.True(t, ReportTypeCompliance.Valid())
	assert.False(t, ReportType("weather").Valid())
	assert.Equal(t, "Rack Utilization", ReportTypeRackUtilization.DisplayName())
}

func TestGoDateLayout(t *testing.T) {
	ts := time.Date(2024, time.March, 7, 14, 5, 0, 0, time.UTC)

	assert.Equal(t, "03/07/2024", ts.Format(HeaderSettings{}.GoDateLayout()))
	assert.Equal(t, "2024-03-07 14:05", ts.Format(HeaderSettings{DateFormat: "YYYY-MM-DD HH:mm"}.GoDateLayout()))
}

func TestSettingsWithDefaults(t *testing.T) {
	s := TemplateSettings{Sections: SectionSettings{Details: true}}.WithDefaults()

	assert.Equal(t, DefaultPrimaryColor, s.Styling.PrimaryColor)
	assert.Equal(t, float64(DefaultFontSize), s.Styling.FontSize)
	assert.Equal(t, "portrait", s.PageSettings.Orientation)
	assert.Equal(t, DefaultMargin, s.PageSettings.Margins.Left)
	assert.False(t, s.Sections.Summary, "sections are never defaulted")
	assert.True(t, s.Sections.Details)
}

func TestUserDisplayName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", (&User{Username: "ada", FirstName: "Ada", LastName: "Lovelace"}).DisplayName())
	assert.Equal(t, "ada", (&User{Username: "ada"}).DisplayName())
}

func TestEquipmentRackUnits(t *testing.T) {
	assert.Equal(t, 1, (&Equipment{}).RackUnits())
	assert.Equal(t, 4, (&Equipment{Units: 4}).RackUnits())
}
