package domain

import "time"

// RiskLevel is a coarse risk band shared by the scorers.
type RiskLevel string

const (
	RiskMinimal  RiskLevel = "minimal"
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
	RiskExtreme  RiskLevel = "extreme"
)

var riskRank = map[RiskLevel]int{
	RiskMinimal:  0,
	RiskLow:      1,
	RiskModerate: 2,
	RiskHigh:     3,
	RiskExtreme:  4,
}

// Rank orders levels from minimal (0) to extreme (4).
func (l RiskLevel) Rank() int { return riskRank[l] }

// AtLeast reports whether l is as severe as other.
func (l RiskLevel) AtLeast(other RiskLevel) bool { return l.Rank() >= other.Rank() }

// LevelForScore maps a 0–100 score onto the shared level bands.
func LevelForScore(score float64) RiskLevel {
	switch {
	case score >= 80:
		return RiskExtreme
	case score >= 60:
		return RiskHigh
	case score >= 40:
		return RiskModerate
	case score >= 20:
		return RiskLow
	default:
		return RiskMinimal
	}
}

// PredictionRecord is a persisted black-ice prediction.
type PredictionRecord struct {
	ID          string     `json:"id"`
	CreatedAt   time.Time  `json:"created_at"`
	Location    *Point     `json:"location,omitempty"`
	Model       string     `json:"model"`
	RiskLevel   RiskLevel  `json:"risk_level"`
	RiskScore   float64    `json:"risk_score"`
	Probability float64    `json:"probability"`
	Confidence  float64    `json:"confidence"`
	Conditions  Conditions `json:"conditions"`
}

// Alert is raised when a monitored location reaches high risk.
type Alert struct {
	ID         string    `json:"id"`
	LocationID int64     `json:"location_id"`
	Name       string    `json:"name"`
	Location   Point     `json:"location"`
	Level      RiskLevel `json:"level"`
	Score      float64   `json:"score"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

// MonitoredLocation is a place the monitor pipeline re-evaluates every cycle.
type MonitoredLocation struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Location  Point     `json:"location"`
	IsBridge  bool      `json:"is_bridge"`
	CreatedAt time.Time `json:"created_at"`
}

// SavedRoute is a named list of waypoints.
type SavedRoute struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Waypoints []Waypoint `json:"waypoints"`
	CreatedAt time.Time  `json:"created_at"`
}

// RouteSegment is the stretch between two consecutive waypoints.
type RouteSegment struct {
	Index         int       `json:"index"`
	From          Waypoint  `json:"from"`
	To            Waypoint  `json:"to"`
	DistanceMiles float64   `json:"distance_miles"`
	RiskLevel     RiskLevel `json:"risk_level"`
	RiskScore     float64   `json:"risk_score"`
	Probability   float64   `json:"probability"`
	Factors       []string  `json:"factors"`
	Degraded      bool      `json:"degraded"`
}

// RouteAnalysis summarizes the black-ice risk along a route.
type RouteAnalysis struct {
	ID                 string         `json:"id"`
	CreatedAt          time.Time      `json:"created_at"`
	TotalDistanceMiles float64        `json:"total_distance_miles"`
	MaxRiskLevel       RiskLevel      `json:"max_risk_level"`
	AverageRiskScore   float64        `json:"average_risk_score"`
	Segments           []RouteSegment `json:"segments"`
	DangerZones        []RouteSegment `json:"danger_zones"`
	Recommendations    []string       `json:"recommendations"`
}

// SensorReading is one report from a roadside IoT sensor.
type SensorReading struct {
	SensorID     string    `json:"sensor_id"`
	Lat          float64   `json:"lat"`
	Lon          float64   `json:"lon"`
	RoadTempC    float64   `json:"road_temp_c"`
	AirTempC     *float64  `json:"air_temp_c,omitempty"`
	SurfaceState string    `json:"surface_state,omitempty"`
	ObservedAt   time.Time `json:"observed_at"`
}
