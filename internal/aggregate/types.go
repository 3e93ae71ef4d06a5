package aggregate

import (
	"time"

	"github.com/tinrooster/tedecom-v1/internal/models"
)

// Data is the typed result of one aggregation. Renderers switch on the
// concrete type.
type Data interface {
	ReportType() models.ReportType
}

// DateRange is an inclusive time window taken from report parameters.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// EquipmentItem is the listing row shared by most report types.
type EquipmentItem struct {
	ID          uint                   `json:"id"`
	Name        string                 `json:"name"`
	Type        string                 `json:"type"`
	Status      models.EquipmentStatus `json:"status"`
	Location    string                 `json:"location"`
	LastUpdated time.Time              `json:"lastUpdated"`
}

func newItem(e *models.Equipment) EquipmentItem {
	return EquipmentItem{
		ID:          e.ID,
		Name:        e.Name,
		Type:        e.Type,
		Status:      e.Status,
		Location:    e.Location,
		LastUpdated: e.LastUpdated,
	}
}

// Count is a labelled tally used for distributions.
type Count struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

type EquipmentStatusData struct {
	TotalEquipment     int             `json:"totalEquipment"`
	StatusDistribution []Count         `json:"statusDistribution"`
	Equipment          []EquipmentItem `json:"equipment"`
}

func (EquipmentStatusData) ReportType() models.ReportType { return models.ReportTypeEquipmentStatus }

type DecommissionProgressData struct {
	TotalEquipment       int             `json:"totalEquipment"`
	Decommissioned       int             `json:"decommissioned"`
	ReadyForDecommission int             `json:"readyForDecommission"`
	ProgressPercentage   float64         `json:"progressPercentage"`
	Equipment            []EquipmentItem `json:"equipment"`
}

func (DecommissionProgressData) ReportType() models.ReportType {
	return models.ReportTypeDecommissionProgress
}

type RackSummary struct {
	RackID         uint    `json:"rackId"`
	Label          string  `json:"label"`
	Location       string  `json:"location"`
	UnitsUsed      int     `json:"unitsUsed"`
	Capacity       int     `json:"capacity"`
	Utilization    float64 `json:"utilization"`
	TotalPower     float64 `json:"totalPower"`
	EquipmentCount int     `json:"equipmentCount"`
}

type RackUtilizationData struct {
	TotalRacks         int           `json:"totalRacks"`
	AverageUtilization float64       `json:"averageUtilization"`
	TotalPower         float64       `json:"totalPower"`
	Racks              []RackSummary `json:"racks"`
}

func (RackUtilizationData) ReportType() models.ReportType { return models.ReportTypeRackUtilization }

type PowerPeriod struct {
	Period           string  `json:"period"`
	PowerConsumption float64 `json:"powerConsumption"`
	EquipmentCount   int     `json:"equipmentCount"`
}

type PowerConsumptionData struct {
	Range      DateRange     `json:"range"`
	TotalPower float64       `json:"totalPower"`
	Periods    []PowerPeriod `json:"periods"`
}

func (PowerConsumptionData) ReportType() models.ReportType { return models.ReportTypePowerConsumption }

type InventoryGroup struct {
	Type             string  `json:"type"`
	Count            int     `json:"count"`
	TotalValue       float64 `json:"totalValue"`
	AverageAge       float64 `json:"averageAge"`
	CurrentValue     float64 `json:"currentValue"`
	DepreciationRate float64 `json:"depreciationRate"`
}

type InventoryValuationData struct {
	TotalItems        int              `json:"totalItems"`
	TotalValue        float64          `json:"totalValue"`
	TotalCurrentValue float64          `json:"totalCurrentValue"`
	Groups            []InventoryGroup `json:"groups"`
}

func (InventoryValuationData) ReportType() models.ReportType {
	return models.ReportTypeInventoryValuation
}

type MaintenanceItem struct {
	EquipmentItem
	NextDue       time.Time  `json:"nextDue"`
	Frequency     string     `json:"frequency"`
	LastPerformed *time.Time `json:"lastPerformed,omitempty"`
	Cost          float64    `json:"cost"`
	Overdue       bool       `json:"overdue"`
}

type MaintenanceScheduleData struct {
	Range     DateRange         `json:"range"`
	Total     int               `json:"total"`
	Overdue   int               `json:"overdue"`
	TotalCost float64           `json:"totalCost"`
	Items     []MaintenanceItem `json:"items"`
}

func (MaintenanceScheduleData) ReportType() models.ReportType {
	return models.ReportTypeMaintenanceSchedule
}

type RiskItem struct {
	EquipmentItem
	RiskLevel   string   `json:"riskLevel"`
	RiskFactors []string `json:"riskFactors"`
}

type RiskGroup struct {
	Level string     `json:"level"`
	Count int        `json:"count"`
	Items []RiskItem `json:"items"`
}

type RiskAssessmentData struct {
	TotalEquipment  int         `json:"totalEquipment"`
	Groups          []RiskGroup `json:"groups"`
	CriticalItems   []RiskItem  `json:"criticalItems"`
	Recommendations []string    `json:"recommendations"`
}

func (RiskAssessmentData) ReportType() models.ReportType { return models.ReportTypeRiskAssessment }

type CostGroup struct {
	Type                string  `json:"type"`
	Count               int     `json:"count"`
	EquipmentCost       float64 `json:"equipmentCost"`
	MaintenanceCost     float64 `json:"maintenanceCost"`
	DecommissioningCost float64 `json:"decommissioningCost"`
	TotalCost           float64 `json:"totalCost"`
}

type CostTrends struct {
	Maintenance     string `json:"maintenanceTrend"`
	Decommissioning string `json:"decommissioningTrend"`
}

type CostAnalysisData struct {
	Range                    DateRange   `json:"range"`
	Groups                   []CostGroup `json:"groups"`
	TotalEquipmentCost       float64     `json:"totalEquipmentCost"`
	TotalMaintenanceCost     float64     `json:"totalMaintenanceCost"`
	TotalDecommissioningCost float64     `json:"totalDecommissioningCost"`
	GrandTotal               float64     `json:"grandTotal"`
	Trends                   CostTrends  `json:"trends"`
}

func (CostAnalysisData) ReportType() models.ReportType { return models.ReportTypeCostAnalysis }

type ComplianceItem struct {
	EquipmentItem
	ComplianceStatus string     `json:"complianceStatus"`
	LastAudit        *time.Time `json:"lastAudit,omitempty"`
	Notes            string     `json:"notes,omitempty"`
}

type ComplianceGroup struct {
	Status string           `json:"status"`
	Count  int              `json:"count"`
	Items  []ComplianceItem `json:"items"`
}

type ComplianceData struct {
	TotalEquipment  int               `json:"totalEquipment"`
	CompliantCount  int               `json:"compliantCount"`
	ComplianceRate  float64           `json:"complianceRate"`
	Groups          []ComplianceGroup `json:"groups"`
	NonCompliant    []ComplianceItem  `json:"nonCompliant"`
	Recommendations []string          `json:"recommendations"`
}

func (ComplianceData) ReportType() models.ReportType { return models.ReportTypeCompliance }
