package aggregate

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinrooster/tedecom-v1/internal/apperrors"
	"github.com/tinrooster/tedecom-v1/internal/models"
	"github.com/tinrooster/tedecom-v1/internal/testutil"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

func newAggregator(t *testing.T) (*Aggregator, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	return New(db).WithClock(func() time.Time { return fixedNow }), db
}

func TestDecommissionProgressEmptyStore(t *testing.T) {
	agg, _ := newAggregator(t)

	data, err := agg.Aggregate(context.Background(), models.ReportTypeDecommissionProgress, nil)
	require.NoError(t, err)

	progress := data.(*DecommissionProgressData)
	assert.Equal(t, 0, progress.TotalEquipment)
	assert.Equal(t, 0.0, progress.ProgressPercentage)
	assert.Empty(t, progress.Equipment)
}

func TestDecommissionProgress(t *testing.T) {
	agg, db := newAggregator(t)
	testutil.CreateEquipment(t, db,
		&models.Equipment{Name: "sw-01", Status: models.EquipmentStatusDecommissioned},
		&models.Equipment{Name: "sw-02", Status: models.EquipmentStatusReadyForDecommission},
		&models.Equipment{Name: "sw-03", Status: models.EquipmentStatusActive},
		&models.Equipment{Name: "sw-04", Status: models.EquipmentStatusActive},
	)

	data, err := agg.Aggregate(context.Background(), models.ReportTypeDecommissionProgress, nil)
	require.NoError(t, err)

	progress := data.(*DecommissionProgressData)
	assert.Equal(t, 4, progress.TotalEquipment)
	assert.Equal(t, 1, progress.Decommissioned)
	assert.Equal(t, 1, progress.ReadyForDecommission)
	assert.Equal(t, 25.0, progress.ProgressPercentage)
	require.Len(t, progress.Equipment, 2)
	assert.Equal(t, "sw-01", progress.Equipment[0].Name)
}

func TestEquipmentStatusDistribution(t *testing.T) {
	agg, db := newAggregator(t)
	testutil.CreateEquipment(t, db,
		&models.Equipment{Name: "b", Status: models.EquipmentStatusActive, Location: "DC1"},
		&models.Equipment{Name: "a", Status: models.EquipmentStatusActive, Location: "DC1"},
		&models.Equipment{Name: "c", Status: models.EquipmentStatusPending, Location: "DC2"},
	)

	data, err := agg.Aggregate(context.Background(), models.ReportTypeEquipmentStatus, nil)
	require.NoError(t, err)

	status := data.(*EquipmentStatusData)
	assert.Equal(t, 3, status.TotalEquipment)
	assert.Equal(t, []Count{{Label: "active", Count: 2}, {Label: "pending", Count: 1}}, status.StatusDistribution)
	assert.Equal(t, "a", status.Equipment[0].Name)

	data, err = agg.Aggregate(context.Background(), models.ReportTypeEquipmentStatus, map[string]interface{}{
		ParamLocation: "DC2",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, data.(*EquipmentStatusData).TotalEquipment)
}

func TestEquipmentIDFilter(t *testing.T) {
	agg, db := newAggregator(t)
	a := &models.Equipment{Name: "a"}
	b := &models.Equipment{Name: "b"}
	testutil.CreateEquipment(t, db, a, b)

	data, err := agg.Aggregate(context.Background(), models.ReportTypeEquipmentStatus, map[string]interface{}{
		ParamEquipmentIDs: []interface{}{float64(b.ID)},
	})
	require.NoError(t, err)

	status := data.(*EquipmentStatusData)
	require.Len(t, status.Equipment, 1)
	assert.Equal(t, "b", status.Equipment[0].Name)

	_, err = agg.Aggregate(context.Background(), models.ReportTypeEquipmentStatus, map[string]interface{}{
		ParamEquipmentIDs: "b",
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestRackUtilization(t *testing.T) {
	agg, db := newAggregator(t)
	r1 := testutil.CreateRack(t, db, "A", "01")
	testutil.CreateRack(t, db, "A", "02")
	testutil.CreateEquipment(t, db,
		&models.Equipment{Name: "srv-1", RackID: &r1.ID, Units: 2, PowerConsumption: 400},
		&models.Equipment{Name: "srv-2", RackID: &r1.ID, Units: 0, PowerConsumption: 100},
		&models.Equipment{Name: "loose", PowerConsumption: 50},
	)

	data, err := agg.Aggregate(context.Background(), models.ReportTypeRackUtilization, nil)
	require.NoError(t, err)

	util := data.(*RackUtilizationData)
	require.Equal(t, 2, util.TotalRacks)
	assert.Equal(t, "A-01", util.Racks[0].Label)
	assert.Equal(t, 3, util.Racks[0].UnitsUsed)
	assert.InDelta(t, 3.0/42*100, util.Racks[0].Utilization, 1e-9)
	assert.Equal(t, 500.0, util.Racks[0].TotalPower)
	assert.Equal(t, 0.0, util.Racks[1].Utilization)
	assert.InDelta(t, 3.0/42*100/2, util.AverageUtilization, 1e-9)
	assert.Equal(t, 500.0, util.TotalPower)
}

func TestRackUtilizationNoRacks(t *testing.T) {
	agg, _ := newAggregator(t)

	data, err := agg.Aggregate(context.Background(), models.ReportTypeRackUtilization, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, data.(*RackUtilizationData).AverageUtilization)
}

func TestPowerConsumptionGroupsByMonth(t *testing.T) {
	agg, db := newAggregator(t)
	testutil.CreateEquipment(t, db,
		&models.Equipment{Name: "a", PowerConsumption: 100, LastUpdated: time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)},
		&models.Equipment{Name: "b", PowerConsumption: 250, LastUpdated: time.Date(2024, 1, 31, 23, 0, 0, 0, time.UTC)},
		&models.Equipment{Name: "c", PowerConsumption: 50, LastUpdated: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)},
		&models.Equipment{Name: "d", PowerConsumption: 999, LastUpdated: time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)},
	)

	data, err := agg.Aggregate(context.Background(), models.ReportTypePowerConsumption, map[string]interface{}{
		ParamStartDate: "2024-01-01",
		ParamEndDate:   "2024-02-10",
	})
	require.NoError(t, err)

	power := data.(*PowerConsumptionData)
	assert.Equal(t, []PowerPeriod{
		{Period: "2024-01", PowerConsumption: 300, EquipmentCount: 2},
		{Period: "2024-02", PowerConsumption: 100, EquipmentCount: 1},
	}, power.Periods)
	assert.Equal(t, 400.0, power.TotalPower)
}

func TestDateRangeRequired(t *testing.T) {
	agg, _ := newAggregator(t)

	for _, rt := range []models.ReportType{
		models.ReportTypePowerConsumption,
		models.ReportTypeCostAnalysis,
		models.ReportTypeMaintenanceSchedule,
	} {
		t.Run(string(rt), func(t *testing.T) {
			_, err := agg.Aggregate(context.Background(), rt, map[string]interface{}{ParamStartDate: "2024-01-01"})
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrValidation))
			assert.Contains(t, err.Error(), "endDate is required")
		})
	}

	_, err := agg.Aggregate(context.Background(), models.ReportTypePowerConsumption, map[string]interface{}{
		ParamStartDate: "2024-03-01",
		ParamEndDate:   "2024-01-01",
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = agg.Aggregate(context.Background(), models.ReportTypePowerConsumption, map[string]interface{}{
		ParamStartDate: "yesterday",
		ParamEndDate:   "2024-01-01",
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestUnknownReportType(t *testing.T) {
	agg, _ := newAggregator(t)

	_, err := agg.Aggregate(context.Background(), models.ReportType("weather"), nil)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestInventoryValuationDepreciation(t *testing.T) {
	agg, db := newAggregator(t)
	twoYearsAgo := fixedNow.Add(-2 * 365 * 24 * time.Hour)
	testutil.CreateEquipment(t, db,
		&models.Equipment{Name: "s1", Type: "server", Value: 1000, PurchaseDate: &twoYearsAgo},
		&models.Equipment{Name: "s2", Type: "server", Value: 1000, PurchaseDate: &twoYearsAgo},
		&models.Equipment{Name: "p1", Type: "patch-panel", Value: 50},
	)

	data, err := agg.Aggregate(context.Background(), models.ReportTypeInventoryValuation, nil)
	require.NoError(t, err)

	inv := data.(*InventoryValuationData)
	require.Len(t, inv.Groups, 2)
	assert.Equal(t, "patch-panel", inv.Groups[0].Type)
	assert.Equal(t, 0.0, inv.Groups[0].AverageAge)
	assert.Equal(t, 50.0, inv.Groups[0].CurrentValue)

	server := inv.Groups[1]
	assert.Equal(t, 2, server.Count)
	assert.Equal(t, 2000.0, server.TotalValue)
	assert.InDelta(t, 2.0, server.AverageAge, 1e-9)
	assert.InDelta(t, 2000*math.Pow(0.9, 2), server.CurrentValue, 1e-6)
	assert.Equal(t, 10.0, server.DepreciationRate)
	assert.Equal(t, 2050.0, inv.TotalValue)
}

func TestMaintenanceScheduleOverdue(t *testing.T) {
	agg, db := newAggregator(t)
	testutil.CreateEquipment(t, db,
		&models.Equipment{Name: "later", Maintenance: models.MaintenanceInfo{NextDue: testutil.TimePtr(fixedNow.AddDate(0, 0, 10)), Cost: 20}},
		&models.Equipment{Name: "late", Maintenance: models.MaintenanceInfo{NextDue: testutil.TimePtr(fixedNow.AddDate(0, 0, -3)), Cost: 5}},
		&models.Equipment{Name: "outside", Maintenance: models.MaintenanceInfo{NextDue: testutil.TimePtr(fixedNow.AddDate(1, 0, 0))}},
		&models.Equipment{Name: "none"},
	)

	data, err := agg.Aggregate(context.Background(), models.ReportTypeMaintenanceSchedule, map[string]interface{}{
		ParamStartDate: "2024-06-01",
		ParamEndDate:   "2024-06-30",
	})
	require.NoError(t, err)

	m := data.(*MaintenanceScheduleData)
	require.Len(t, m.Items, 2)
	assert.Equal(t, "late", m.Items[0].Name)
	assert.True(t, m.Items[0].Overdue)
	assert.False(t, m.Items[1].Overdue)
	assert.Equal(t, 1, m.Overdue)
	assert.Equal(t, 25.0, m.TotalCost)
}

func TestRiskAssessmentRecommendations(t *testing.T) {
	agg, db := newAggregator(t)
	testutil.CreateEquipment(t, db,
		&models.Equipment{Name: "a", RiskLevel: "high", RiskFactors: []string{"end of life"}},
		&models.Equipment{Name: "b", RiskLevel: "High"},
		&models.Equipment{Name: "c", RiskLevel: "low"},
		&models.Equipment{Name: "d"},
	)

	data, err := agg.Aggregate(context.Background(), models.ReportTypeRiskAssessment, nil)
	require.NoError(t, err)

	risk := data.(*RiskAssessmentData)
	require.Len(t, risk.Groups, 3)
	assert.Equal(t, "high", risk.Groups[0].Level)
	assert.Equal(t, "low", risk.Groups[1].Level)
	assert.Equal(t, "unassessed", risk.Groups[2].Level)
	assert.Len(t, risk.CriticalItems, 2)
	assert.Equal(t, []string{"Address 2 high-risk items immediately"}, risk.Recommendations)
}

func TestRiskAssessmentNoHighRisk(t *testing.T) {
	agg, db := newAggregator(t)
	testutil.CreateEquipment(t, db, &models.Equipment{Name: "a", RiskLevel: "medium"})

	data, err := agg.Aggregate(context.Background(), models.ReportTypeRiskAssessment, nil)
	require.NoError(t, err)
	assert.Empty(t, data.(*RiskAssessmentData).Recommendations)
}

func TestCostAnalysis(t *testing.T) {
	agg, db := newAggregator(t)
	inRange := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	testutil.CreateEquipment(t, db,
		&models.Equipment{Name: "a", Type: "server", Value: 1000, LastUpdated: inRange,
			Maintenance: models.MaintenanceInfo{Cost: 100}, Decommissioning: models.DecommissioningInfo{Cost: 50}},
		&models.Equipment{Name: "b", Type: "switch", Value: 300, LastUpdated: inRange},
		&models.Equipment{Name: "c", Type: "server", Value: 5000, LastUpdated: inRange.AddDate(1, 0, 0)},
	)

	data, err := agg.Aggregate(context.Background(), models.ReportTypeCostAnalysis, map[string]interface{}{
		ParamStartDate: "2024-01-01T00:00:00Z",
		ParamEndDate:   "2024-12-31T23:59:59Z",
	})
	require.NoError(t, err)

	cost := data.(*CostAnalysisData)
	require.Len(t, cost.Groups, 2)
	assert.Equal(t, CostGroup{Type: "server", Count: 1, EquipmentCost: 1000, MaintenanceCost: 100, DecommissioningCost: 50, TotalCost: 1150}, cost.Groups[0])
	assert.Equal(t, 1450.0, cost.GrandTotal)
	assert.Equal(t, "increasing", cost.Trends.Maintenance)
	assert.Equal(t, "stable", cost.Trends.Decommissioning)
}

func TestComplianceReport(t *testing.T) {
	agg, db := newAggregator(t)
	testutil.CreateEquipment(t, db,
		&models.Equipment{Name: "a", Compliance: models.ComplianceInfo{Status: "compliant"}},
		&models.Equipment{Name: "b", Compliance: models.ComplianceInfo{Status: "non_compliant"}},
		&models.Equipment{Name: "c", Compliance: models.ComplianceInfo{Status: "non_compliant"}},
		&models.Equipment{Name: "d"},
	)

	data, err := agg.Aggregate(context.Background(), models.ReportTypeCompliance, nil)
	require.NoError(t, err)

	c := data.(*ComplianceData)
	assert.Equal(t, 1, c.CompliantCount)
	assert.Equal(t, 25.0, c.ComplianceRate)
	assert.Len(t, c.NonCompliant, 3)
	assert.Equal(t, []string{
		`Review 2 non-compliant items with status "non_compliant"`,
		`Review 1 non-compliant items with status "unknown"`,
	}, c.Recommendations)
}
