package mapping

import "github.com/abelzeko/qreview-importer/internal/entities"

// Unit identifiers of the two unit systems a QReview export can declare
var (
	MetricUnits = entities.UnitSystem{
		DistanceUnitID:  "m",
		AreaUnitID:      "m^2",
		VelocityUnitID:  "m/s",
		DischargeUnitID: "m^3/s",
	}
	ImperialUnits = entities.UnitSystem{
		DistanceUnitID:  "ft",
		AreaUnitID:      "ft^2",
		VelocityUnitID:  "ft/s",
		DischargeUnitID: "ft^3/s",
	}
)

// CelsiusUnitID is used for temperatures in both unit systems
const CelsiusUnitID = "degC"

// UnitsFor returns the unit system declared by the summary
func UnitsFor(summary *entities.MeasurementSummary) entities.UnitSystem {
	if summary.IsMetric() {
		return MetricUnits
	}
	return ImperialUnits
}
