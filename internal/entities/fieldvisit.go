package entities

import (
	"time"
)

// LocationInfo identifies the station a visit is recorded against
type LocationInfo struct {
	Identifier string
	UTCOffset  time.Duration
}

// Zone returns the fixed time zone of the location
func (l LocationInfo) Zone() *time.Location {
	return time.FixedZone("", int(l.UTCOffset/time.Second))
}

// UnitSystem names the units used for distances, areas, velocities and discharges
type UnitSystem struct {
	DistanceUnitID  string
	AreaUnitID      string
	VelocityUnitID  string
	DischargeUnitID string
}

// DischargeMethod is the computation method of a manual gauging section
type DischargeMethod string

const (
	MidSection  DischargeMethod = "MidSection"
	MeanSection DischargeMethod = "MeanSection"
)

// StartPoint is the bank the measurement started from
type StartPoint string

const (
	LeftEdgeOfWater  StartPoint = "LeftEdgeOfWater"
	RightEdgeOfWater StartPoint = "RightEdgeOfWater"
)

// PointVelocityObservationType describes at which depths the velocity was sampled
type PointVelocityObservationType string

const (
	OneAtPointSix                      PointVelocityObservationType = "OneAtPointSix"
	OneAtPointTwoAndPointEight         PointVelocityObservationType = "OneAtPointTwoAndPointEight"
	OneAtPointTwoPointSixAndPointEight PointVelocityObservationType = "OneAtPointTwoPointSixAndPointEight"
)

// UncertaintyType tells whether an activity carries a quantitative uncertainty
type UncertaintyType string

const (
	UncertaintyNone         UncertaintyType = "None"
	UncertaintyQuantitative UncertaintyType = "Quantitative"
)

// FieldVisit is a mapped measurement session ready to be stored
type FieldVisit struct {
	ID           int64
	Key          string // Stable slug built from location and start time
	Location     LocationInfo
	Start        time.Time
	End          time.Time
	SourceName   string
	ImportedAt   time.Time
	Activity     *DischargeActivity
	Readings     []Reading
	Calibrations []Calibration
}

// DischargeActivity is the discharge measurement made during a visit
type DischargeActivity struct {
	Start                    time.Time
	End                      time.Time
	Discharge                float64
	DischargeUnitID          string
	Comments                 string
	Party                    string
	MeasurementID            string
	QuantitativeUncertainty  *float64
	ActiveUncertaintyType    UncertaintyType
	QualityAssuranceComments string
	Grade                    *Grade
	GageHeights              []GageHeightMeasurement
	Section                  *DischargeSection
}

// Grade is either a numeric grade code or a grade display name
type Grade struct {
	Code        *int
	DisplayName string
}

// GageHeightMeasurement is a stage reading taken during the measurement
type GageHeightMeasurement struct {
	Value  float64
	UnitID string
	Time   time.Time
}

// DischargeSection is the manual gauging channel measurement
type DischargeSection struct {
	Discharge                 float64
	DischargeUnitID           string
	Party                     string
	Comments                  string
	DischargeMethod           DischargeMethod
	StartPoint                StartPoint
	DeploymentMethod          string
	AreaUnitID                string
	Area                      *float64
	Width                     *float64
	VelocityUnitID            string
	MeanVelocity              *float64
	NumberOfVerticals         *int
	VelocityObservationMethod PointVelocityObservationType
	MeterCalibration          MeterCalibration
	Verticals                 []VerticalObservation
}

// MeterCalibration describes the instrument used for the measurement
type MeterCalibration struct {
	Manufacturer    string
	Model           string
	SerialNumber    string
	FirmwareVersion string
	SoftwareVersion string
	MeterType       string
	Configuration   string
}

// VerticalObservation is a mapped vertical of a discharge section
type VerticalObservation struct {
	SequenceNumber  int
	TaglinePosition *float64
	MeasurementTime time.Time
	VerticalType    string
	EffectiveDepth  float64
	FlowDirection   string
	Comments        string
	Segment         Segment
	Velocity        VelocityObservation
}

// Segment holds the panel values of a vertical
type Segment struct {
	Area                  float64
	Discharge             float64
	Velocity              float64
	Width                 float64
	TotalDischargePortion float64
}

// VelocityObservation holds the point velocities sampled at a vertical
type VelocityObservation struct {
	Method           PointVelocityObservationType
	MeanVelocity     float64
	DeploymentMethod string
	Observations     []VelocityDepthObservation
}

// VelocityDepthObservation is a single velocity sample at a depth
type VelocityDepthObservation struct {
	Depth               float64
	ObservationInterval *float64 // Seconds
	RevolutionCount     int
	Velocity            float64
}

// Reading is a parameter value observed during the visit
type Reading struct {
	Parameter string
	UnitID    string
	Value     float64
	Time      time.Time
}

// Calibration is a sensor calibration check recorded during the visit
type Calibration struct {
	Parameter string
	UnitID    string
	Value     float64
	Time      time.Time
}

// VisitSummary is the stored, flattened view of a field visit
type VisitSummary struct {
	ID                 int64
	Key                string
	LocationIdentifier string
	Start              time.Time
	End                time.Time
	Discharge          float64
	DischargeUnitID    string
	Party              string
	Grade              string
	VerticalCount      int
	NumberOfVerticals  *int // Declared count of an export without vertical detail
	Meter              MeterCalibration
	GageHeights        []GageHeightMeasurement // Only loaded for a single visit
	SourceName         string
	ImportedAt         time.Time
}
