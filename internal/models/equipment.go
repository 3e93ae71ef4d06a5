package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

type EquipmentStatus string

const (
	EquipmentStatusActive               EquipmentStatus = "active"
	EquipmentStatusInSignalPath         EquipmentStatus = "in_signal_path"
	EquipmentStatusReadyForDecommission EquipmentStatus = "ready_for_decommission"
	EquipmentStatusDecommissioned       EquipmentStatus = "decommissioned"
	EquipmentStatusPending              EquipmentStatus = "pending"
)

// RackUnitCapacity is the number of rack units in a standard rack.
const RackUnitCapacity = 42

type ComplianceInfo struct {
	Status    string     `json:"status"`
	Notes     string     `json:"notes,omitempty"`
	LastAudit *time.Time `json:"lastAudit,omitempty"`
}

type MaintenanceInfo struct {
	NextDue       *time.Time `gorm:"index" json:"nextDue,omitempty"`
	Frequency     string     `json:"frequency,omitempty"`
	LastPerformed *time.Time `json:"lastPerformed,omitempty"`
	Cost          float64    `json:"cost"`
}

type DecommissioningInfo struct {
	Cost         float64    `json:"cost"`
	ScheduledFor *time.Time `json:"scheduledFor,omitempty"`
}

// Equipment represents a tracked piece of data-center hardware
type Equipment struct {
	gorm.Model
	Name             string              `gorm:"not null" json:"name"`
	Type             string              `gorm:"index" json:"type"`
	Status           EquipmentStatus     `gorm:"index" json:"status"`
	Location         string              `json:"location"`
	SerialNumber     string              `json:"serialNumber"`
	RackID           *uint               `gorm:"index" json:"rackId,omitempty"`
	Rack             *Rack               `json:"rack,omitempty"`
	StartUnit        int                 `json:"startUnit"`
	Units            int                 `json:"units"`
	PowerConsumption float64             `json:"powerConsumption"`
	Value            float64             `json:"value"`
	PurchaseDate     *time.Time          `json:"purchaseDate,omitempty"`
	RiskLevel        string              `json:"riskLevel"`
	RiskFactors      []string            `gorm:"serializer:json" json:"riskFactors"`
	Compliance       ComplianceInfo      `gorm:"embedded;embeddedPrefix:compliance_" json:"compliance"`
	Maintenance      MaintenanceInfo     `gorm:"embedded;embeddedPrefix:maintenance_" json:"maintenance"`
	Decommissioning  DecommissioningInfo `gorm:"embedded;embeddedPrefix:decommissioning_" json:"decommissioning"`
	LastUpdated      time.Time           `gorm:"index" json:"lastUpdated"`
}

func (e *Equipment) BeforeSave(tx *gorm.DB) error {
	if e.LastUpdated.IsZero() {
		e.LastUpdated = time.Now()
	}
	return nil
}

// RackUnits returns the number of rack units the equipment occupies.
func (e *Equipment) RackUnits() int {
	if e.Units < 1 {
		return 1
	}
	return e.Units
}

// Rack represents a physical rack position
type Rack struct {
	gorm.Model
	RowID      string      `gorm:"not null" json:"rowId"`
	RackNumber string      `gorm:"not null" json:"rackNumber"`
	Location   string      `json:"location"`
	TotalUnits int         `gorm:"default:42" json:"totalUnits"`
	UsedUnits  int         `json:"usedUnits"`
	Status     string      `json:"status"`
	Notes      string      `json:"notes,omitempty"`
	Equipment  []Equipment `json:"equipment,omitempty"`
}

func (r *Rack) Label() string {
	return fmt.Sprintf("%s-%s", r.RowID, r.RackNumber)
}
