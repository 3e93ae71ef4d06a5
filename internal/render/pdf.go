package render

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/tinrooster/tedecom-v1/internal/aggregate"
)

var (
	colorTextDark  = [3]int{44, 62, 80}
	colorTextMuted = [3]int{127, 140, 141}
	colorGridLine  = [3]int{220, 220, 220}
	colorWhite     = [3]int{255, 255, 255}
)

const mmPerInch = 25.4

// PDFRenderer lays out the document on A4 pages using the template's
// header, styling, sections, table and page settings.
type PDFRenderer struct{}

type pdfWriter struct {
	pdf       *fpdf.Fpdf
	tr        func(string) string
	font      string
	fontSize  float64
	primary   [3]int
	secondary [3]int
	opts      Options
}

func (r *PDFRenderer) Render(data aggregate.Data, opts Options) ([]byte, error) {
	doc, err := Build(data)
	if err != nil {
		return nil, err
	}
	opts.Settings = opts.Settings.WithDefaults()
	s := opts.Settings

	orientation := "P"
	if strings.EqualFold(s.PageSettings.Orientation, "landscape") {
		orientation = "L"
	}
	pdf := fpdf.New(orientation, "mm", "A4", "")
	m := s.PageSettings.Margins
	pdf.SetMargins(m.Left*mmPerInch, m.Top*mmPerInch, m.Right*mmPerInch)
	pdf.SetAutoPageBreak(true, m.Bottom*mmPerInch+8)

	w := &pdfWriter{
		pdf:       pdf,
		tr:        pdf.UnicodeTranslatorFromDescriptor(""),
		font:      pdfFontFamily(s.Styling.FontFamily),
		fontSize:  s.Styling.FontSize,
		primary:   parseHexColor(s.Styling.PrimaryColor, [3]int{25, 118, 210}),
		secondary: parseHexColor(s.Styling.SecondaryColor, [3]int{220, 0, 78}),
		opts:      opts,
	}

	pdf.AddPage()
	w.writeHeader(opts.title(doc))

	if s.Sections.Summary && len(doc.Summary) > 0 {
		w.writeSummary(doc.Summary)
	}
	if s.Sections.Charts {
		for _, chart := range doc.Charts {
			if len(chart.Values) > 0 {
				w.writeChart(chart)
			}
		}
	}
	if s.Sections.Details {
		for _, table := range doc.Tables {
			w.writeTable(table)
		}
	}
	if s.Sections.Recommendations && len(doc.Recommendations) > 0 {
		w.writeRecommendations(doc.Recommendations)
	}

	w.addPageNumbers()

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("PDF output error: %w", err)
	}
	return buf.Bytes(), nil
}

func (w *pdfWriter) setColor(c [3]int) { w.pdf.SetTextColor(c[0], c[1], c[2]) }
func (w *pdfWriter) setFill(c [3]int)  { w.pdf.SetFillColor(c[0], c[1], c[2]) }
func (w *pdfWriter) setDraw(c [3]int)  { w.pdf.SetDrawColor(c[0], c[1], c[2]) }

func (w *pdfWriter) contentWidth() float64 {
	pageWidth, _ := w.pdf.GetPageSize()
	left, _, right, _ := w.pdf.GetMargins()
	return pageWidth - left - right
}

// ensureSpace starts a new page when fewer than h mm remain.
func (w *pdfWriter) ensureSpace(h float64) bool {
	_, pageHeight := w.pdf.GetPageSize()
	_, _, _, bottom := w.pdf.GetMargins()
	if w.pdf.GetY()+h > pageHeight-bottom {
		w.pdf.AddPage()
		return true
	}
	return false
}

func (w *pdfWriter) writeHeader(title string) {
	pdf := w.pdf
	h := w.opts.Settings.Header

	if h.Logo != "" {
		if _, err := os.Stat(h.Logo); err == nil {
			left, top, _, _ := pdf.GetMargins()
			pdf.ImageOptions(h.Logo, left, top, 0, 12, false, fpdf.ImageOptions{ReadDpi: true}, 0, "")
			pdf.SetY(top + 14)
		}
	}

	if h.CompanyName != "" {
		pdf.SetFont(w.font, "B", w.fontSize)
		w.setColor(w.secondary)
		pdf.CellFormat(0, 6, w.tr(h.CompanyName), "", 1, "L", false, 0, "")
	}

	pdf.SetFont(w.font, "B", w.fontSize+8)
	w.setColor(w.primary)
	pdf.MultiCell(0, 10, w.tr(title), "", "L", false)

	pdf.SetFont(w.font, "", w.fontSize-2)
	w.setColor(colorTextMuted)
	generated := w.opts.GeneratedAt.Format(h.GoDateLayout() + " 15:04")
	pdf.CellFormat(0, 6, w.tr(fmt.Sprintf("%s  |  Generated %s", w.opts.Type.DisplayName(), generated)), "", 1, "L", false, 0, "")

	left, _, _, _ := pdf.GetMargins()
	w.setDraw(w.primary)
	pdf.SetLineWidth(0.6)
	pdf.Line(left, pdf.GetY()+2, left+w.contentWidth(), pdf.GetY()+2)
	pdf.Ln(6)
}

func (w *pdfWriter) writeSectionTitle(title string) {
	w.ensureSpace(20)
	w.pdf.SetFont(w.font, "B", w.fontSize+2)
	w.setColor(w.primary)
	w.pdf.CellFormat(0, 9, w.tr(title), "", 1, "L", false, 0, "")
	w.pdf.Ln(1)
}

func (w *pdfWriter) writeSummary(metrics []Metric) {
	pdf := w.pdf
	w.writeSectionTitle("Summary")

	labelWidth := w.contentWidth() * 0.6
	valueWidth := w.contentWidth() - labelWidth
	for i, m := range metrics {
		w.ensureSpace(7)
		fill := w.opts.Settings.TableSettings.AlternateRowColors && i%2 == 1
		w.setFill(tint(w.primary, 0.92))
		pdf.SetFont(w.font, "", w.fontSize)
		w.setColor(colorTextDark)
		pdf.CellFormat(labelWidth, 7, w.tr(m.Label), w.border(), 0, "L", fill, 0, "")
		pdf.SetFont(w.font, "B", w.fontSize)
		pdf.CellFormat(valueWidth, 7, w.tr(m.Value), w.border(), 1, "R", fill, 0, "")
	}
	pdf.Ln(4)
}

func (w *pdfWriter) writeChart(chart Chart) {
	pdf := w.pdf
	const chartHeight = 50.0
	w.writeSectionTitle(chart.Title)
	w.ensureSpace(chartHeight + 12)

	left, _, _, _ := pdf.GetMargins()
	x := left
	y := pdf.GetY()
	width := w.contentWidth()

	maxValue := 0.0
	for _, v := range chart.Values {
		maxValue = math.Max(maxValue, v)
	}
	if maxValue == 0 {
		maxValue = 1
	}

	w.setDraw(colorGridLine)
	pdf.SetLineWidth(0.2)
	for i := 0; i <= 4; i++ {
		gridY := y + chartHeight - chartHeight*float64(i)/4
		pdf.Line(x, gridY, x+width, gridY)
	}

	n := float64(len(chart.Values))
	slot := width / n
	barWidth := math.Min(slot*0.7, 25)
	pdf.SetFont(w.font, "", math.Max(w.fontSize-4, 6))
	for i, v := range chart.Values {
		barHeight := chartHeight * v / maxValue
		barX := x + slot*float64(i) + (slot-barWidth)/2
		if i%2 == 0 {
			w.setFill(w.primary)
		} else {
			w.setFill(w.secondary)
		}
		pdf.Rect(barX, y+chartHeight-barHeight, barWidth, barHeight, "F")

		w.setColor(colorTextDark)
		pdf.SetXY(x+slot*float64(i), y+chartHeight-barHeight-4)
		pdf.CellFormat(slot, 4, strconv.FormatFloat(v, 'f', -1, 64), "", 0, "C", false, 0, "")
		pdf.SetXY(x+slot*float64(i), y+chartHeight+1)
		pdf.CellFormat(slot, 4, w.fit(chart.Labels[i], slot), "", 0, "C", false, 0, "")
	}
	pdf.SetXY(left, y+chartHeight+8)
}

func (w *pdfWriter) writeTable(table Table) {
	pdf := w.pdf
	ts := w.opts.Settings.TableSettings
	w.writeSectionTitle(table.Name)

	rowHeight := 7.0
	if ts.CompactMode {
		rowHeight = 5.0
	}

	widths := w.columnWidths(table.Columns)
	header := func() {
		pdf.SetFont(w.font, "B", w.fontSize-2)
		w.setFill(w.primary)
		w.setColor(colorWhite)
		for i, col := range table.Columns {
			pdf.CellFormat(widths[i], rowHeight, w.fit(col.Header, widths[i]), w.border(), 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
	}

	header()
	if len(table.Rows) == 0 {
		pdf.SetFont(w.font, "I", w.fontSize-2)
		w.setColor(colorTextMuted)
		pdf.CellFormat(0, rowHeight, "No records", "", 1, "L", false, 0, "")
		pdf.Ln(4)
		return
	}

	for r, row := range table.Rows {
		if w.ensureSpace(rowHeight) {
			header()
		}
		pdf.SetFont(w.font, "", w.fontSize-2)
		w.setColor(colorTextDark)
		fill := ts.AlternateRowColors && r%2 == 1
		w.setFill(tint(w.primary, 0.92))
		for i := range table.Columns {
			var cell string
			if i < len(row) {
				cell = row[i]
			}
			pdf.CellFormat(widths[i], rowHeight, w.fit(cell, widths[i]), w.border(), 0, "L", fill, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(4)
}

func (w *pdfWriter) writeRecommendations(recs []string) {
	pdf := w.pdf
	w.writeSectionTitle("Recommendations")
	pdf.SetFont(w.font, "", w.fontSize)
	w.setColor(colorTextDark)
	for _, rec := range recs {
		w.ensureSpace(7)
		pdf.MultiCell(0, 6, w.tr("- "+rec), "", "L", false)
	}
}

func (w *pdfWriter) addPageNumbers() {
	pdf := w.pdf
	pdf.SetAutoPageBreak(false, 0)

	total := pdf.PageCount()
	for i := 1; i <= total; i++ {
		pdf.SetPage(i)
		_, pageHeight := pdf.GetPageSize()
		pdf.SetY(pageHeight - 12)
		pdf.SetFont(w.font, "", 8)
		w.setColor(colorTextMuted)
		pdf.CellFormat(0, 5, fmt.Sprintf("Page %d of %d", i, total), "", 0, "C", false, 0, "")
	}
}

func (w *pdfWriter) border() string {
	if w.opts.Settings.TableSettings.ShowBorders {
		return "1"
	}
	return ""
}

// columnWidths scales the spreadsheet widths to the printable width.
func (w *pdfWriter) columnWidths(cols []Column) []float64 {
	total := 0.0
	for _, c := range cols {
		total += c.Width
	}
	widths := make([]float64, len(cols))
	for i, c := range cols {
		if total == 0 {
			widths[i] = w.contentWidth() / float64(len(cols))
			continue
		}
		widths[i] = w.contentWidth() * c.Width / total
	}
	return widths
}

// fit translates s for the core fonts and truncates it to width mm.
func (w *pdfWriter) fit(s string, width float64) string {
	s = w.tr(s)
	limit := width - 2
	if w.pdf.GetStringWidth(s) <= limit {
		return s
	}
	for len(s) > 0 && w.pdf.GetStringWidth(s+"...") > limit {
		s = s[:len(s)-1]
	}
	return s + "..."
}

func pdfFontFamily(family string) string {
	f := strings.ToLower(family)
	switch {
	case strings.Contains(f, "times"):
		return "Times"
	case strings.Contains(f, "courier"):
		return "Courier"
	case strings.Contains(f, "helvetica"):
		return "Helvetica"
	default:
		return "Arial"
	}
}

func parseHexColor(s string, fallback [3]int) [3]int {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return fallback
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return fallback
	}
	return [3]int{int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)}
}

// tint mixes c towards white by amount (0..1).
func tint(c [3]int, amount float64) [3]int {
	var out [3]int
	for i := range c {
		out[i] = c[i] + int(float64(255-c[i])*amount)
	}
	return out
}
