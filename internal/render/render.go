// Package render turns aggregated report data into PDF, Excel and CSV
// artifacts.
package render

import (
	"fmt"
	"time"

	"github.com/tinrooster/tedecom-v1/internal/aggregate"
	"github.com/tinrooster/tedecom-v1/internal/models"
)

// Options carries everything besides the data that shapes an artifact.
type Options struct {
	Title       string
	Type        models.ReportType
	Format      models.ReportFormat
	GeneratedAt time.Time
	Settings    models.TemplateSettings
}

type Renderer interface {
	Render(data aggregate.Data, opts Options) ([]byte, error)
}

// Registry maps each output format to its renderer.
type Registry map[models.ReportFormat]Renderer

func NewRegistry() Registry {
	return Registry{
		models.ReportFormatPDF:   &PDFRenderer{},
		models.ReportFormatExcel: &ExcelRenderer{},
		models.ReportFormatCSV:   &CSVRenderer{},
	}
}

func (r Registry) For(format models.ReportFormat) (Renderer, error) {
	renderer, ok := r[format]
	if !ok {
		return nil, fmt.Errorf("unsupported report format: %s", format)
	}
	return renderer, nil
}

// Render builds the document layout for data and renders it in opts.Format.
func (r Registry) Render(data aggregate.Data, opts Options) ([]byte, error) {
	renderer, err := r.For(opts.Format)
	if err != nil {
		return nil, err
	}
	return renderer.Render(data, opts)
}

func (o Options) title(doc *Document) string {
	if o.Title != "" {
		return o.Title
	}
	if o.Settings.Header.Title != "" {
		return o.Settings.Header.Title
	}
	return doc.Type.DisplayName() + " Report"
}
