package render

import (
	"fmt"
	"strings"

	"github.com/tinrooster/tedecom-v1/internal/aggregate"
	"github.com/xuri/excelize/v2"
)

const (
	sheetInfo            = "Report Info"
	sheetSummary         = "Summary"
	sheetRecommendations = "Recommendations"
	maxSheetName         = 31
)

// ExcelRenderer writes an info sheet, a summary sheet, one sheet per detail
// table and a recommendations sheet. Column widths come from the table
// definitions so the workbook layout is stable across runs.
type ExcelRenderer struct{}

type excelWriter struct {
	f        *excelize.File
	opts     Options
	header   int
	body     int
	stripe   int
	sheets   map[string]bool
	borders  []excelize.Border
	fontName string
}

func (r *ExcelRenderer) Render(data aggregate.Data, opts Options) ([]byte, error) {
	doc, err := Build(data)
	if err != nil {
		return nil, err
	}
	opts.Settings = opts.Settings.WithDefaults()

	f := excelize.NewFile()
	defer f.Close()

	w := &excelWriter{f: f, opts: opts, sheets: map[string]bool{}, fontName: opts.Settings.Styling.FontFamily}
	if err := w.initStyles(); err != nil {
		return nil, err
	}

	if err := f.SetSheetName("Sheet1", sheetInfo); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	w.sheets[sheetInfo] = true
	if err := w.writeInfo(doc); err != nil {
		return nil, err
	}

	s := opts.Settings.Sections
	if s.Summary {
		rows := make([][]string, 0, len(doc.Summary))
		for _, m := range doc.Summary {
			rows = append(rows, []string{m.Label, m.Value})
		}
		cols := []Column{{Key: "metric", Header: "Metric", Width: 30}, {Key: "value", Header: "Value", Width: 20}}
		if err := w.writeTable(sheetSummary, cols, rows); err != nil {
			return nil, err
		}
	}
	if s.Details {
		for _, table := range doc.Tables {
			if err := w.writeTable(table.Name, table.Columns, table.Rows); err != nil {
				return nil, err
			}
		}
	}
	if s.Recommendations && len(doc.Recommendations) > 0 {
		rows := make([][]string, 0, len(doc.Recommendations))
		for i, rec := range doc.Recommendations {
			rows = append(rows, []string{fmt.Sprintf("%d", i+1), rec})
		}
		cols := []Column{{Key: "number", Header: "#", Width: 6}, {Key: "recommendation", Header: "Recommendation", Width: 80}}
		if err := w.writeTable(sheetRecommendations, cols, rows); err != nil {
			return nil, err
		}
	}

	f.SetActiveSheet(0)
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (w *excelWriter) initStyles() error {
	st := w.opts.Settings
	if st.TableSettings.ShowBorders {
		for _, side := range []string{"left", "top", "right", "bottom"} {
			w.borders = append(w.borders, excelize.Border{Type: side, Color: "BFBFBF", Style: 1})
		}
	}

	var err error
	w.header, err = w.f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true, Color: "FFFFFF", Family: w.fontName},
		Fill:   excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{hexColor(st.Styling.PrimaryColor)}},
		Border: w.borders,
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	w.body, err = w.f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Family: w.fontName},
		Border: w.borders,
	})
	if err != nil {
		return fmt.Errorf("create body style: %w", err)
	}

	stripe := tint(parseHexColor(st.Styling.PrimaryColor, [3]int{25, 118, 210}), 0.9)
	w.stripe, err = w.f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Family: w.fontName},
		Fill:   excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{fmt.Sprintf("%02X%02X%02X", stripe[0], stripe[1], stripe[2])}},
		Border: w.borders,
	})
	if err != nil {
		return fmt.Errorf("create stripe style: %w", err)
	}
	return nil
}

func (w *excelWriter) writeInfo(doc *Document) error {
	generated := w.opts.GeneratedAt.Format(w.opts.Settings.Header.GoDateLayout() + " 15:04")
	rows := [][]string{
		{"Report Title", w.opts.title(doc)},
		{"Report Type", doc.Type.DisplayName()},
		{"Generated On", generated},
		{"Format", "Excel"},
	}
	if name := w.opts.Settings.Header.CompanyName; name != "" {
		rows = append(rows, []string{"Company", name})
	}
	cols := []Column{{Key: "field", Header: "Field", Width: 20}, {Key: "value", Header: "Value", Width: 40}}
	return w.fill(sheetInfo, cols, rows)
}

func (w *excelWriter) writeTable(name string, cols []Column, rows [][]string) error {
	sheet := w.sheetName(name)
	if _, err := w.f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %q: %w", sheet, err)
	}
	return w.fill(sheet, cols, rows)
}

func (w *excelWriter) fill(sheet string, cols []Column, rows [][]string) error {
	if len(cols) == 0 {
		return nil
	}
	lastCol, err := excelize.ColumnNumberToName(len(cols))
	if err != nil {
		return err
	}

	header := make([]interface{}, len(cols))
	for i, col := range cols {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := w.f.SetColWidth(sheet, name, name, col.Width); err != nil {
			return fmt.Errorf("set width on %s: %w", sheet, err)
		}
		header[i] = col.Header
	}
	if err := w.f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header on %s: %w", sheet, err)
	}
	if err := w.f.SetCellStyle(sheet, "A1", lastCol+"1", w.header); err != nil {
		return err
	}

	for r, row := range rows {
		values := make([]interface{}, len(cols))
		for i := range cols {
			if i < len(row) {
				values[i] = row[i]
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := w.f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d on %s: %w", r+1, sheet, err)
		}

		style := w.body
		if w.opts.Settings.TableSettings.AlternateRowColors && r%2 == 1 {
			style = w.stripe
		}
		end := fmt.Sprintf("%s%d", lastCol, r+2)
		if err := w.f.SetCellStyle(sheet, cell, end, style); err != nil {
			return err
		}
	}
	return nil
}

// sheetName makes name a valid, unused worksheet name.
func (w *excelWriter) sheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '-'
		}
		return r
	}, name)
	if name == "" {
		name = "Details"
	}
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}

	candidate := name
	for i := 2; w.sheets[candidate]; i++ {
		suffix := fmt.Sprintf(" (%d)", i)
		base := name
		if len(base)+len(suffix) > maxSheetName {
			base = base[:maxSheetName-len(suffix)]
		}
		candidate = base + suffix
	}
	w.sheets[candidate] = true
	return candidate
}

func hexColor(s string) string {
	c := parseHexColor(s, [3]int{25, 118, 210})
	return fmt.Sprintf("%02X%02X%02X", c[0], c[1], c[2])
}
