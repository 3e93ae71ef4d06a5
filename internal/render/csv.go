package render

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/tinrooster/tedecom-v1/internal/aggregate"
)

// CSVRenderer writes the document's flat table with a header row. Template
// styling does not apply to CSV.
type CSVRenderer struct{}

func (r *CSVRenderer) Render(data aggregate.Data, opts Options) ([]byte, error) {
	doc, err := Build(data)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := make([]string, len(doc.Flat.Columns))
	for i, col := range doc.Flat.Columns {
		header[i] = col.Key
	}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write CSV header: %w", err)
	}

	for _, row := range doc.Flat.Rows {
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write CSV row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush CSV: %w", err)
	}
	return buf.Bytes(), nil
}
