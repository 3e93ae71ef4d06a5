// Package aggregate computes the typed data behind each report type from the
// equipment and rack tables.
package aggregate

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/tinrooster/tedecom-v1/internal/apperrors"
	"github.com/tinrooster/tedecom-v1/internal/models"
	"gorm.io/gorm"
)

const (
	// annual depreciation applied to inventory value, in percent
	depreciationRate = 10

	riskLevelHigh       = "high"
	riskLevelUnassessed = "unassessed"
	complianceCompliant = "compliant"
	complianceUnknown   = "unknown"
)

type Aggregator struct {
	db  *gorm.DB
	now func() time.Time
}

func New(db *gorm.DB) *Aggregator {
	return &Aggregator{db: db, now: time.Now}
}

// WithClock replaces the clock used for ages and overdue checks.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// Aggregate runs the query for reportType. Missing or malformed parameters
// and unknown types are validation errors.
func (a *Aggregator) Aggregate(ctx context.Context, reportType models.ReportType, params map[string]interface{}) (Data, error) {
	if params == nil {
		params = map[string]interface{}{}
	}

	switch reportType {
	case models.ReportTypeEquipmentStatus:
		return a.equipmentStatus(ctx, params)
	case models.ReportTypeDecommissionProgress:
		return a.decommissionProgress(ctx, params)
	case models.ReportTypeRackUtilization:
		return a.rackUtilization(ctx, params)
	case models.ReportTypePowerConsumption:
		return a.powerConsumption(ctx, params)
	case models.ReportTypeInventoryValuation:
		return a.inventoryValuation(ctx, params)
	case models.ReportTypeMaintenanceSchedule:
		return a.maintenanceSchedule(ctx, params)
	case models.ReportTypeRiskAssessment:
		return a.riskAssessment(ctx, params)
	case models.ReportTypeCostAnalysis:
		return a.costAnalysis(ctx, params)
	case models.ReportTypeCompliance:
		return a.compliance(ctx, params)
	default:
		return nil, apperrors.Validationf("aggregate", "unsupported report type: %s", reportType)
	}
}

// equipment loads the equipment matching the id and location filters,
// ordered by name.
func (a *Aggregator) equipment(ctx context.Context, params map[string]interface{}) ([]models.Equipment, error) {
	ids, err := equipmentIDs(params)
	if err != nil {
		return nil, err
	}

	query := a.db.WithContext(ctx).Model(&models.Equipment{})
	if len(ids) > 0 {
		query = query.Where("id IN ?", ids)
	}
	if loc, ok := params[ParamLocation].(string); ok && strings.TrimSpace(loc) != "" {
		query = query.Where("location = ?", strings.TrimSpace(loc))
	}

	var items []models.Equipment
	if err := query.Order("name asc").Order("id asc").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to load equipment: %w", err)
	}
	return items, nil
}

func (a *Aggregator) equipmentStatus(ctx context.Context, params map[string]interface{}) (Data, error) {
	items, err := a.equipment(ctx, params)
	if err != nil {
		return nil, err
	}

	data := &EquipmentStatusData{
		TotalEquipment: len(items),
		Equipment:      make([]EquipmentItem, 0, len(items)),
	}
	counts := make(map[string]int)
	for i := range items {
		counts[string(items[i].Status)]++
		data.Equipment = append(data.Equipment, newItem(&items[i]))
	}
	data.StatusDistribution = sortedCounts(counts)

	return data, nil
}

func (a *Aggregator) decommissionProgress(ctx context.Context, params map[string]interface{}) (Data, error) {
	items, err := a.equipment(ctx, params)
	if err != nil {
		return nil, err
	}

	data := &DecommissionProgressData{
		TotalEquipment: len(items),
		Equipment:      make([]EquipmentItem, 0),
	}
	for i := range items {
		switch items[i].Status {
		case models.EquipmentStatusDecommissioned:
			data.Decommissioned++
		case models.EquipmentStatusReadyForDecommission:
			data.ReadyForDecommission++
		default:
			continue
		}
		data.Equipment = append(data.Equipment, newItem(&items[i]))
	}
	data.ProgressPercentage = percent(float64(data.Decommissioned), float64(data.TotalEquipment))

	return data, nil
}

func (a *Aggregator) rackUtilization(ctx context.Context, params map[string]interface{}) (Data, error) {
	items, err := a.equipment(ctx, params)
	if err != nil {
		return nil, err
	}

	var racks []models.Rack
	if err := a.db.WithContext(ctx).Order("row_id asc").Order("rack_number asc").Find(&racks).Error; err != nil {
		return nil, fmt.Errorf("failed to load racks: %w", err)
	}

	summaries := make(map[uint]*RackSummary, len(racks))
	order := make([]uint, 0, len(racks))
	for i := range racks {
		summaries[racks[i].ID] = &RackSummary{
			RackID:   racks[i].ID,
			Label:    racks[i].Label(),
			Location: racks[i].Location,
			Capacity: models.RackUnitCapacity,
		}
		order = append(order, racks[i].ID)
	}

	for i := range items {
		e := &items[i]
		if e.RackID == nil {
			continue
		}
		s, ok := summaries[*e.RackID]
		if !ok {
			s = &RackSummary{
				RackID:   *e.RackID,
				Label:    fmt.Sprintf("rack-%d", *e.RackID),
				Location: e.Location,
				Capacity: models.RackUnitCapacity,
			}
			summaries[*e.RackID] = s
			order = append(order, *e.RackID)
		}
		s.UnitsUsed += e.RackUnits()
		s.TotalPower += e.PowerConsumption
		s.EquipmentCount++
	}

	data := &RackUtilizationData{Racks: make([]RackSummary, 0, len(order))}
	var totalUtilization float64
	for _, id := range order {
		s := summaries[id]
		s.Utilization = percent(float64(s.UnitsUsed), float64(s.Capacity))
		totalUtilization += s.Utilization
		data.TotalPower += s.TotalPower
		data.Racks = append(data.Racks, *s)
	}
	data.TotalRacks = len(data.Racks)
	if data.TotalRacks > 0 {
		data.AverageUtilization = totalUtilization / float64(data.TotalRacks)
	}

	return data, nil
}

func (a *Aggregator) powerConsumption(ctx context.Context, params map[string]interface{}) (Data, error) {
	r, err := dateRange(params, true)
	if err != nil {
		return nil, err
	}
	items, err := a.equipment(ctx, params)
	if err != nil {
		return nil, err
	}

	periods := make(map[string]*PowerPeriod)
	data := &PowerConsumptionData{Range: *r, Periods: make([]PowerPeriod, 0)}
	for i := range items {
		e := &items[i]
		if !r.Contains(e.LastUpdated) {
			continue
		}
		key := e.LastUpdated.Format("2006-01")
		p, ok := periods[key]
		if !ok {
			p = &PowerPeriod{Period: key}
			periods[key] = p
		}
		p.PowerConsumption += e.PowerConsumption
		p.EquipmentCount++
		data.TotalPower += e.PowerConsumption
	}

	for _, p := range periods {
		data.Periods = append(data.Periods, *p)
	}
	sort.Slice(data.Periods, func(i, j int) bool {
		return data.Periods[i].Period < data.Periods[j].Period
	})

	return data, nil
}

func (a *Aggregator) inventoryValuation(ctx context.Context, params map[string]interface{}) (Data, error) {
	items, err := a.equipment(ctx, params)
	if err != nil {
		return nil, err
	}

	type acc struct {
		group    InventoryGroup
		ageSum   float64
		ageCount int
	}
	now := a.now()
	groups := make(map[string]*acc)
	for i := range items {
		e := &items[i]
		g, ok := groups[e.Type]
		if !ok {
			g = &acc{group: InventoryGroup{Type: e.Type, DepreciationRate: depreciationRate}}
			groups[e.Type] = g
		}
		g.group.Count++
		g.group.TotalValue += e.Value
		if e.PurchaseDate != nil {
			g.ageSum += math.Max(0, now.Sub(*e.PurchaseDate).Hours()/(24*365))
			g.ageCount++
		}
	}

	data := &InventoryValuationData{TotalItems: len(items), Groups: make([]InventoryGroup, 0, len(groups))}
	for _, g := range groups {
		if g.ageCount > 0 {
			g.group.AverageAge = g.ageSum / float64(g.ageCount)
		}
		g.group.CurrentValue = g.group.TotalValue * math.Pow(1-depreciationRate/100.0, g.group.AverageAge)
		data.TotalValue += g.group.TotalValue
		data.TotalCurrentValue += g.group.CurrentValue
		data.Groups = append(data.Groups, g.group)
	}
	sort.Slice(data.Groups, func(i, j int) bool {
		return data.Groups[i].Type < data.Groups[j].Type
	})

	return data, nil
}

func (a *Aggregator) maintenanceSchedule(ctx context.Context, params map[string]interface{}) (Data, error) {
	r, err := dateRange(params, true)
	if err != nil {
		return nil, err
	}
	items, err := a.equipment(ctx, params)
	if err != nil {
		return nil, err
	}

	now := a.now()
	data := &MaintenanceScheduleData{Range: *r, Items: make([]MaintenanceItem, 0)}
	for i := range items {
		e := &items[i]
		if e.Maintenance.NextDue == nil || !r.Contains(*e.Maintenance.NextDue) {
			continue
		}
		item := MaintenanceItem{
			EquipmentItem: newItem(e),
			NextDue:       *e.Maintenance.NextDue,
			Frequency:     e.Maintenance.Frequency,
			LastPerformed: e.Maintenance.LastPerformed,
			Cost:          e.Maintenance.Cost,
			Overdue:       e.Maintenance.NextDue.Before(now),
		}
		if item.Overdue {
			data.Overdue++
		}
		data.TotalCost += item.Cost
		data.Items = append(data.Items, item)
	}
	sort.SliceStable(data.Items, func(i, j int) bool {
		return data.Items[i].NextDue.Before(data.Items[j].NextDue)
	})
	data.Total = len(data.Items)

	return data, nil
}

var riskOrder = map[string]int{"critical": 0, "high": 1, "medium": 2, "low": 3}

func (a *Aggregator) riskAssessment(ctx context.Context, params map[string]interface{}) (Data, error) {
	items, err := a.equipment(ctx, params)
	if err != nil {
		return nil, err
	}

	groups := make(map[string]*RiskGroup)
	data := &RiskAssessmentData{
		TotalEquipment:  len(items),
		CriticalItems:   make([]RiskItem, 0),
		Recommendations: make([]string, 0),
	}
	for i := range items {
		e := &items[i]
		level := strings.ToLower(strings.TrimSpace(e.RiskLevel))
		if level == "" {
			level = riskLevelUnassessed
		}
		item := RiskItem{EquipmentItem: newItem(e), RiskLevel: level, RiskFactors: e.RiskFactors}
		g, ok := groups[level]
		if !ok {
			g = &RiskGroup{Level: level}
			groups[level] = g
		}
		g.Count++
		g.Items = append(g.Items, item)
		if level == riskLevelHigh {
			data.CriticalItems = append(data.CriticalItems, item)
		}
	}

	for _, g := range groups {
		data.Groups = append(data.Groups, *g)
	}
	sort.Slice(data.Groups, func(i, j int) bool {
		oi, iKnown := riskOrder[data.Groups[i].Level]
		oj, jKnown := riskOrder[data.Groups[j].Level]
		if iKnown != jKnown {
			return iKnown
		}
		if oi != oj {
			return oi < oj
		}
		return data.Groups[i].Level < data.Groups[j].Level
	})

	if n := len(data.CriticalItems); n > 0 {
		data.Recommendations = append(data.Recommendations,
			fmt.Sprintf("Address %d high-risk items immediately", n))
	}

	return data, nil
}

func (a *Aggregator) costAnalysis(ctx context.Context, params map[string]interface{}) (Data, error) {
	r, err := dateRange(params, true)
	if err != nil {
		return nil, err
	}
	items, err := a.equipment(ctx, params)
	if err != nil {
		return nil, err
	}

	groups := make(map[string]*CostGroup)
	data := &CostAnalysisData{
		Range:  *r,
		Groups: make([]CostGroup, 0),
		Trends: CostTrends{Maintenance: "increasing", Decommissioning: "stable"},
	}
	for i := range items {
		e := &items[i]
		if !r.Contains(e.LastUpdated) {
			continue
		}
		g, ok := groups[e.Type]
		if !ok {
			g = &CostGroup{Type: e.Type}
			groups[e.Type] = g
		}
		g.Count++
		g.EquipmentCost += e.Value
		g.MaintenanceCost += e.Maintenance.Cost
		g.DecommissioningCost += e.Decommissioning.Cost
	}

	for _, g := range groups {
		g.TotalCost = g.EquipmentCost + g.MaintenanceCost + g.DecommissioningCost
		data.TotalEquipmentCost += g.EquipmentCost
		data.TotalMaintenanceCost += g.MaintenanceCost
		data.TotalDecommissioningCost += g.DecommissioningCost
		data.Groups = append(data.Groups, *g)
	}
	data.GrandTotal = data.TotalEquipmentCost + data.TotalMaintenanceCost + data.TotalDecommissioningCost
	sort.Slice(data.Groups, func(i, j int) bool {
		return data.Groups[i].Type < data.Groups[j].Type
	})

	return data, nil
}

func (a *Aggregator) compliance(ctx context.Context, params map[string]interface{}) (Data, error) {
	items, err := a.equipment(ctx, params)
	if err != nil {
		return nil, err
	}

	groups := make(map[string]*ComplianceGroup)
	data := &ComplianceData{
		TotalEquipment:  len(items),
		NonCompliant:    make([]ComplianceItem, 0),
		Recommendations: make([]string, 0),
	}
	for i := range items {
		e := &items[i]
		status := strings.ToLower(strings.TrimSpace(e.Compliance.Status))
		if status == "" {
			status = complianceUnknown
		}
		item := ComplianceItem{
			EquipmentItem:    newItem(e),
			ComplianceStatus: status,
			LastAudit:        e.Compliance.LastAudit,
			Notes:            e.Compliance.Notes,
		}
		g, ok := groups[status]
		if !ok {
			g = &ComplianceGroup{Status: status}
			groups[status] = g
		}
		g.Count++
		g.Items = append(g.Items, item)
		if status == complianceCompliant {
			data.CompliantCount++
		} else {
			data.NonCompliant = append(data.NonCompliant, item)
		}
	}

	for _, g := range groups {
		data.Groups = append(data.Groups, *g)
	}
	sort.Slice(data.Groups, func(i, j int) bool {
		return data.Groups[i].Status < data.Groups[j].Status
	})
	for _, g := range data.Groups {
		if g.Status == complianceCompliant {
			continue
		}
		data.Recommendations = append(data.Recommendations,
			fmt.Sprintf("Review %d non-compliant items with status %q", g.Count, g.Status))
	}
	data.ComplianceRate = percent(float64(data.CompliantCount), float64(data.TotalEquipment))

	return data, nil
}

func percent(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole * 100
}

func sortedCounts(counts map[string]int) []Count {
	result := make([]Count, 0, len(counts))
	for label, n := range counts {
		result = append(result, Count{Label: label, Count: n})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Label < result[j].Label
	})
	return result
}
