package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ReportType string

const (
	ReportTypeEquipmentStatus      ReportType = "equipment_status"
	ReportTypeDecommissionProgress ReportType = "decommission_progress"
	ReportTypeRackUtilization      ReportType = "rack_utilization"
	ReportTypePowerConsumption     ReportType = "power_consumption"
	ReportTypeInventoryValuation   ReportType = "inventory_valuation"
	ReportTypeMaintenanceSchedule  ReportType = "maintenance_schedule"
	ReportTypeRiskAssessment       ReportType = "risk_assessment"
	ReportTypeCostAnalysis         ReportType = "cost_analysis"
	ReportTypeCompliance           ReportType = "compliance_report"
)

// ReportTypeInfo describes a report type for listing endpoints.
type ReportTypeInfo struct {
	Type        ReportType `json:"type"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
}

// ReportTypes lists every supported report type in display order.
var ReportTypes = []ReportTypeInfo{
	{ReportTypeEquipmentStatus, "Equipment Status", "Current status of all equipment"},
	{ReportTypeDecommissionProgress, "Decommission Progress", "Progress of equipment decommissioning"},
	{ReportTypeRackUtilization, "Rack Utilization", "Rack space and power utilization"},
	{ReportTypePowerConsumption, "Power Consumption", "Monthly power consumption over a date range"},
	{ReportTypeInventoryValuation, "Inventory Valuation", "Equipment value and depreciation by type"},
	{ReportTypeMaintenanceSchedule, "Maintenance Schedule", "Upcoming and overdue maintenance"},
	{ReportTypeRiskAssessment, "Risk Assessment", "Equipment grouped by risk level"},
	{ReportTypeCostAnalysis, "Cost Analysis", "Equipment, maintenance and decommissioning costs"},
	{ReportTypeCompliance, "Compliance Report", "Compliance status of all equipment"},
}

func (t ReportType) Valid() bool {
	for _, info := range ReportTypes {
		if info.Type == t {
			return true
		}
	}
	return false
}

// DisplayName returns the human readable name of the report type.
func (t ReportType) DisplayName() string {
	for _, info := range ReportTypes {
		if info.Type == t {
			return info.Name
		}
	}
	return string(t)
}

type ReportFormat string

const (
	ReportFormatPDF   ReportFormat = "pdf"
	ReportFormatExcel ReportFormat = "excel"
	ReportFormatCSV   ReportFormat = "csv"
)

var ReportFormats = []ReportFormat{ReportFormatPDF, ReportFormatExcel, ReportFormatCSV}

func (f ReportFormat) Valid() bool {
	switch f {
	case ReportFormatPDF, ReportFormatExcel, ReportFormatCSV:
		return true
	}
	return false
}

// ContentType returns the MIME type served for artifacts of this format.
func (f ReportFormat) ContentType() string {
	switch f {
	case ReportFormatPDF:
		return "application/pdf"
	case ReportFormatExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ReportFormatCSV:
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}

// Extension returns the artifact file extension without the dot.
func (f ReportFormat) Extension() string {
	if f == ReportFormatExcel {
		return "xlsx"
	}
	return string(f)
}

type ReportStatus string

const (
	ReportStatusPending    ReportStatus = "pending"
	ReportStatusInProgress ReportStatus = "in_progress"
	ReportStatusCompleted  ReportStatus = "completed"
	ReportStatusFailed     ReportStatus = "failed"
	// ReportStatusCancelled is accepted from stored data but never assigned.
	ReportStatusCancelled ReportStatus = "cancelled"
)

type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

// ReportSchedule is the recurring generation rule stored on a report.
type ReportSchedule struct {
	Frequency  Frequency `json:"frequency"`
	DayOfWeek  *int      `json:"dayOfWeek,omitempty"`
	DayOfMonth *int      `json:"dayOfMonth,omitempty"`
	Time       string    `json:"time"`
	Recipients []string  `json:"recipients"`
}

type Report struct {
	ID           string            `gorm:"primaryKey;size:36" json:"id"`
	Title        string            `gorm:"not null" json:"title"`
	Type         ReportType        `gorm:"index;not null" json:"type"`
	Format       ReportFormat      `gorm:"not null" json:"format"`
	Status       ReportStatus      `gorm:"index;not null" json:"status"`
	Parameters   datatypes.JSONMap `json:"parameters,omitempty"`
	CreatedBy    uint              `gorm:"index" json:"createdBy"`
	Creator      *User             `gorm:"foreignKey:CreatedBy" json:"-"`
	CreatorName  string            `gorm:"-" json:"creatorName,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
	GeneratedAt  *time.Time        `json:"generatedAt,omitempty"`
	LastErrorAt  *time.Time        `json:"lastErrorAt,omitempty"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
	FilePath     string            `json:"filePath,omitempty"`
	Schedule     *ReportSchedule   `gorm:"serializer:json" json:"schedule,omitempty"`
	Artifacts    []ReportArtifact  `gorm:"foreignKey:ReportID" json:"-"`
}

func (r *Report) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = ReportStatusPending
	}
	return nil
}

func (r *Report) AfterFind(tx *gorm.DB) error {
	if r.Creator != nil {
		r.CreatorName = r.Creator.DisplayName()
	}
	return nil
}

// Recipients returns the email recipients of the report's schedule.
func (r *Report) Recipients() []string {
	if r.Schedule == nil {
		return nil
	}
	return r.Schedule.Recipients
}

// ReportArtifact records one generated file of a report.
type ReportArtifact struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ReportID    string    `gorm:"index;size:36;not null" json:"reportId"`
	FilePath    string    `gorm:"not null" json:"filePath"`
	Size        int64     `json:"size"`
	Checksum    string    `gorm:"size:64" json:"checksum"`
	GeneratedAt time.Time `json:"generatedAt"`
}
