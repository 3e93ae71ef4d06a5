package render

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/tinrooster/tedecom-v1/internal/aggregate"
	"github.com/tinrooster/tedecom-v1/internal/models"
)

// Column describes one table column. Key is the machine name used as the CSV
// header; Width is in spreadsheet character units and is scaled for PDF.
type Column struct {
	Key    string
	Header string
	Width  float64
}

type Table struct {
	Name    string
	Columns []Column
	Rows    [][]string
}

type Metric struct {
	Label string
	Value string
}

// Chart is a single bar series.
type Chart struct {
	Title  string
	Labels []string
	Values []float64
}

// Document is the format-independent layout of a report.
type Document struct {
	Type            models.ReportType
	Summary         []Metric
	Charts          []Chart
	Tables          []Table
	Recommendations []string
	// Flat is the single table exported to CSV.
	Flat Table
}

var (
	equipmentColumns = []Column{
		{Key: "name", Header: "Name", Width: 30},
		{Key: "type", Header: "Type", Width: 18},
		{Key: "status", Header: "Status", Width: 22},
		{Key: "location", Header: "Location", Width: 20},
		{Key: "lastUpdated", Header: "Last Updated", Width: 22},
	}
	rackColumns = []Column{
		{Key: "rack", Header: "Rack", Width: 14},
		{Key: "location", Header: "Location", Width: 20},
		{Key: "equipmentCount", Header: "Equipment", Width: 12},
		{Key: "unitsUsed", Header: "Units Used", Width: 12},
		{Key: "capacity", Header: "Capacity", Width: 10},
		{Key: "utilization", Header: "Utilization %", Width: 14},
		{Key: "totalPower", Header: "Power (W)", Width: 14},
	}
	powerColumns = []Column{
		{Key: "period", Header: "Period", Width: 12},
		{Key: "powerConsumption", Header: "Power (W)", Width: 16},
		{Key: "equipmentCount", Header: "Equipment", Width: 12},
	}
	inventoryColumns = []Column{
		{Key: "type", Header: "Type", Width: 20},
		{Key: "count", Header: "Count", Width: 10},
		{Key: "totalValue", Header: "Total Value", Width: 16},
		{Key: "averageAge", Header: "Avg Age (years)", Width: 16},
		{Key: "currentValue", Header: "Current Value", Width: 16},
		{Key: "depreciationRate", Header: "Depreciation %", Width: 15},
	}
	maintenanceColumns = []Column{
		{Key: "name", Header: "Name", Width: 28},
		{Key: "type", Header: "Type", Width: 16},
		{Key: "status", Header: "Status", Width: 20},
		{Key: "nextDue", Header: "Next Due", Width: 22},
		{Key: "frequency", Header: "Frequency", Width: 12},
		{Key: "lastPerformed", Header: "Last Performed", Width: 22},
		{Key: "cost", Header: "Cost", Width: 12},
		{Key: "overdue", Header: "Overdue", Width: 9},
	}
	riskColumns = []Column{
		{Key: "riskLevel", Header: "Risk Level", Width: 12},
		{Key: "name", Header: "Name", Width: 28},
		{Key: "type", Header: "Type", Width: 16},
		{Key: "status", Header: "Status", Width: 20},
		{Key: "riskFactors", Header: "Risk Factors", Width: 40},
	}
	costColumns = []Column{
		{Key: "type", Header: "Type", Width: 20},
		{Key: "count", Header: "Count", Width: 10},
		{Key: "equipmentCost", Header: "Equipment", Width: 15},
		{Key: "maintenanceCost", Header: "Maintenance", Width: 15},
		{Key: "decommissioningCost", Header: "Decommissioning", Width: 17},
		{Key: "totalCost", Header: "Total", Width: 15},
	}
	complianceColumns = []Column{
		{Key: "complianceStatus", Header: "Compliance", Width: 16},
		{Key: "name", Header: "Name", Width: 28},
		{Key: "type", Header: "Type", Width: 16},
		{Key: "status", Header: "Status", Width: 20},
		{Key: "lastAudit", Header: "Last Audit", Width: 22},
		{Key: "notes", Header: "Notes", Width: 30},
	}
)

// Build lays out aggregated data. Nil or unknown data is an error.
func Build(data aggregate.Data) (*Document, error) {
	if data == nil {
		return nil, errors.New("no report data")
	}
	if v := reflect.ValueOf(data); v.Kind() == reflect.Pointer && v.IsNil() {
		return nil, fmt.Errorf("no report data in %T", data)
	}

	switch d := data.(type) {
	case *aggregate.EquipmentStatusData:
		return buildEquipmentStatus(d), nil
	case *aggregate.DecommissionProgressData:
		return buildDecommissionProgress(d), nil
	case *aggregate.RackUtilizationData:
		return buildRackUtilization(d), nil
	case *aggregate.PowerConsumptionData:
		return buildPowerConsumption(d), nil
	case *aggregate.InventoryValuationData:
		return buildInventoryValuation(d), nil
	case *aggregate.MaintenanceScheduleData:
		return buildMaintenanceSchedule(d), nil
	case *aggregate.RiskAssessmentData:
		return buildRiskAssessment(d), nil
	case *aggregate.CostAnalysisData:
		return buildCostAnalysis(d), nil
	case *aggregate.ComplianceData:
		return buildCompliance(d), nil
	default:
		return nil, fmt.Errorf("unsupported report data %T", data)
	}
}

func equipmentRow(e aggregate.EquipmentItem) []string {
	return []string{e.Name, e.Type, string(e.Status), e.Location, formatTime(e.LastUpdated)}
}

func buildEquipmentStatus(d *aggregate.EquipmentStatusData) *Document {
	doc := &Document{
		Type:    models.ReportTypeEquipmentStatus,
		Summary: []Metric{{"Total Equipment", strconv.Itoa(d.TotalEquipment)}},
	}
	chart := Chart{Title: "Equipment by Status"}
	for _, c := range d.StatusDistribution {
		doc.Summary = append(doc.Summary, Metric{statusLabel(c.Label), strconv.Itoa(c.Count)})
		chart.Labels = append(chart.Labels, statusLabel(c.Label))
		chart.Values = append(chart.Values, float64(c.Count))
	}
	doc.Charts = []Chart{chart}

	table := Table{Name: "Equipment", Columns: equipmentColumns}
	for _, e := range d.Equipment {
		table.Rows = append(table.Rows, equipmentRow(e))
	}
	doc.Tables = []Table{table}
	doc.Flat = table
	return doc
}

func buildDecommissionProgress(d *aggregate.DecommissionProgressData) *Document {
	doc := &Document{
		Type: models.ReportTypeDecommissionProgress,
		Summary: []Metric{
			{"Total Equipment", strconv.Itoa(d.TotalEquipment)},
			{"Decommissioned", strconv.Itoa(d.Decommissioned)},
			{"Ready for Decommission", strconv.Itoa(d.ReadyForDecommission)},
			{"Progress", formatPercent(d.ProgressPercentage)},
		},
		Charts: []Chart{{
			Title:  "Decommissioning",
			Labels: []string{"Decommissioned", "Ready", "Remaining"},
			Values: []float64{
				float64(d.Decommissioned),
				float64(d.ReadyForDecommission),
				float64(d.TotalEquipment - d.Decommissioned - d.ReadyForDecommission),
			},
		}},
	}

	table := Table{Name: "Decommissioning", Columns: equipmentColumns}
	for _, e := range d.Equipment {
		table.Rows = append(table.Rows, equipmentRow(e))
	}
	doc.Tables = []Table{table}
	doc.Flat = table
	return doc
}

func buildRackUtilization(d *aggregate.RackUtilizationData) *Document {
	doc := &Document{
		Type: models.ReportTypeRackUtilization,
		Summary: []Metric{
			{"Total Racks", strconv.Itoa(d.TotalRacks)},
			{"Average Utilization", formatPercent(d.AverageUtilization)},
			{"Total Power (W)", formatNumber(d.TotalPower)},
		},
	}

	chart := Chart{Title: "Utilization by Rack (%)"}
	table := Table{Name: "Racks", Columns: rackColumns}
	for _, r := range d.Racks {
		chart.Labels = append(chart.Labels, r.Label)
		chart.Values = append(chart.Values, r.Utilization)
		table.Rows = append(table.Rows, []string{
			r.Label,
			r.Location,
			strconv.Itoa(r.EquipmentCount),
			strconv.Itoa(r.UnitsUsed),
			strconv.Itoa(r.Capacity),
			formatNumber(r.Utilization),
			formatNumber(r.TotalPower),
		})
	}
	doc.Charts = []Chart{chart}
	doc.Tables = []Table{table}
	doc.Flat = table
	return doc
}

func buildPowerConsumption(d *aggregate.PowerConsumptionData) *Document {
	doc := &Document{
		Type: models.ReportTypePowerConsumption,
		Summary: []Metric{
			{"Period Start", formatTime(d.Range.Start)},
			{"Period End", formatTime(d.Range.End)},
			{"Total Power (W)", formatNumber(d.TotalPower)},
			{"Months", strconv.Itoa(len(d.Periods))},
		},
	}

	chart := Chart{Title: "Power by Month (W)"}
	table := Table{Name: "Power", Columns: powerColumns}
	for _, p := range d.Periods {
		chart.Labels = append(chart.Labels, p.Period)
		chart.Values = append(chart.Values, p.PowerConsumption)
		table.Rows = append(table.Rows, []string{p.Period, formatNumber(p.PowerConsumption), strconv.Itoa(p.EquipmentCount)})
	}
	doc.Charts = []Chart{chart}
	doc.Tables = []Table{table}
	doc.Flat = table
	return doc
}

func buildInventoryValuation(d *aggregate.InventoryValuationData) *Document {
	doc := &Document{
		Type: models.ReportTypeInventoryValuation,
		Summary: []Metric{
			{"Total Items", strconv.Itoa(d.TotalItems)},
			{"Total Value", formatNumber(d.TotalValue)},
			{"Current Value", formatNumber(d.TotalCurrentValue)},
		},
	}

	chart := Chart{Title: "Current Value by Type"}
	table := Table{Name: "Inventory", Columns: inventoryColumns}
	for _, g := range d.Groups {
		chart.Labels = append(chart.Labels, g.Type)
		chart.Values = append(chart.Values, g.CurrentValue)
		table.Rows = append(table.Rows, []string{
			g.Type,
			strconv.Itoa(g.Count),
			formatNumber(g.TotalValue),
			formatNumber(g.AverageAge),
			formatNumber(g.CurrentValue),
			formatNumber(g.DepreciationRate),
		})
	}
	doc.Charts = []Chart{chart}
	doc.Tables = []Table{table}
	doc.Flat = table
	return doc
}

func buildMaintenanceSchedule(d *aggregate.MaintenanceScheduleData) *Document {
	doc := &Document{
		Type: models.ReportTypeMaintenanceSchedule,
		Summary: []Metric{
			{"Period Start", formatTime(d.Range.Start)},
			{"Period End", formatTime(d.Range.End)},
			{"Scheduled", strconv.Itoa(d.Total)},
			{"Overdue", strconv.Itoa(d.Overdue)},
			{"Estimated Cost", formatNumber(d.TotalCost)},
		},
	}
	if d.Overdue > 0 {
		doc.Recommendations = append(doc.Recommendations,
			fmt.Sprintf("Complete %d overdue maintenance tasks", d.Overdue))
	}

	table := Table{Name: "Maintenance", Columns: maintenanceColumns}
	for _, m := range d.Items {
		table.Rows = append(table.Rows, []string{
			m.Name,
			m.Type,
			string(m.Status),
			formatTime(m.NextDue),
			m.Frequency,
			formatTimePtr(m.LastPerformed),
			formatNumber(m.Cost),
			strconv.FormatBool(m.Overdue),
		})
	}
	doc.Tables = []Table{table}
	doc.Flat = table
	return doc
}

func buildRiskAssessment(d *aggregate.RiskAssessmentData) *Document {
	doc := &Document{
		Type:            models.ReportTypeRiskAssessment,
		Summary:         []Metric{{"Total Equipment", strconv.Itoa(d.TotalEquipment)}, {"High Risk", strconv.Itoa(len(d.CriticalItems))}},
		Recommendations: d.Recommendations,
	}

	chart := Chart{Title: "Equipment by Risk Level"}
	flat := Table{Name: "Risk", Columns: riskColumns}
	for _, g := range d.Groups {
		chart.Labels = append(chart.Labels, g.Level)
		chart.Values = append(chart.Values, float64(g.Count))
		doc.Summary = append(doc.Summary, Metric{"Risk: " + g.Level, strconv.Itoa(g.Count)})
		for _, item := range g.Items {
			flat.Rows = append(flat.Rows, []string{
				item.RiskLevel, item.Name, item.Type, string(item.Status), strings.Join(item.RiskFactors, "; "),
			})
		}
	}

	critical := Table{Name: "High Risk", Columns: riskColumns}
	for _, item := range d.CriticalItems {
		critical.Rows = append(critical.Rows, []string{
			item.RiskLevel, item.Name, item.Type, string(item.Status), strings.Join(item.RiskFactors, "; "),
		})
	}

	doc.Charts = []Chart{chart}
	doc.Tables = []Table{critical, flat}
	doc.Flat = flat
	return doc
}

func buildCostAnalysis(d *aggregate.CostAnalysisData) *Document {
	doc := &Document{
		Type: models.ReportTypeCostAnalysis,
		Summary: []Metric{
			{"Period Start", formatTime(d.Range.Start)},
			{"Period End", formatTime(d.Range.End)},
			{"Equipment Cost", formatNumber(d.TotalEquipmentCost)},
			{"Maintenance Cost", formatNumber(d.TotalMaintenanceCost)},
			{"Decommissioning Cost", formatNumber(d.TotalDecommissioningCost)},
			{"Grand Total", formatNumber(d.GrandTotal)},
			{"Maintenance Trend", d.Trends.Maintenance},
			{"Decommissioning Trend", d.Trends.Decommissioning},
		},
	}

	chart := Chart{Title: "Total Cost by Type"}
	table := Table{Name: "Costs", Columns: costColumns}
	for _, g := range d.Groups {
		chart.Labels = append(chart.Labels, g.Type)
		chart.Values = append(chart.Values, g.TotalCost)
		table.Rows = append(table.Rows, []string{
			g.Type,
			strconv.Itoa(g.Count),
			formatNumber(g.EquipmentCost),
			formatNumber(g.MaintenanceCost),
			formatNumber(g.DecommissioningCost),
			formatNumber(g.TotalCost),
		})
	}
	doc.Charts = []Chart{chart}
	doc.Tables = []Table{table}
	doc.Flat = table
	return doc
}

func buildCompliance(d *aggregate.ComplianceData) *Document {
	doc := &Document{
		Type: models.ReportTypeCompliance,
		Summary: []Metric{
			{"Total Equipment", strconv.Itoa(d.TotalEquipment)},
			{"Compliant", strconv.Itoa(d.CompliantCount)},
			{"Non-compliant", strconv.Itoa(len(d.NonCompliant))},
			{"Compliance Rate", formatPercent(d.ComplianceRate)},
		},
		Recommendations: d.Recommendations,
	}

	row := func(item aggregate.ComplianceItem) []string {
		return []string{item.ComplianceStatus, item.Name, item.Type, string(item.Status), formatTimePtr(item.LastAudit), item.Notes}
	}

	chart := Chart{Title: "Equipment by Compliance Status"}
	flat := Table{Name: "Compliance", Columns: complianceColumns}
	for _, g := range d.Groups {
		chart.Labels = append(chart.Labels, g.Status)
		chart.Values = append(chart.Values, float64(g.Count))
		for _, item := range g.Items {
			flat.Rows = append(flat.Rows, row(item))
		}
	}
	nonCompliant := Table{Name: "Non-compliant", Columns: complianceColumns}
	for _, item := range d.NonCompliant {
		nonCompliant.Rows = append(nonCompliant.Rows, row(item))
	}

	doc.Charts = []Chart{chart}
	doc.Tables = []Table{nonCompliant, flat}
	doc.Flat = flat
	return doc
}

func statusLabel(s string) string {
	if s == "" {
		return "unspecified"
	}
	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}
