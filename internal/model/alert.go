package model

import "time"

// AlertStatus is the acknowledgement state of an alert.
type AlertStatus string

const (
	// AlertNew is the state of a freshly raised alert.
	AlertNew AlertStatus = "new"
	// AlertAcknowledged is set once by an operator.
	AlertAcknowledged AlertStatus = "acknowledged"
)

// AlertKind identifies the condition that raised an alert.
type AlertKind string

const (
	AlertHighThreat    AlertKind = "high_threat"
	AlertMalware       AlertKind = "malware"
	AlertContentChange AlertKind = "content_change"
	AlertScoreIncrease AlertKind = "score_increase"
	AlertIOCReuse      AlertKind = "ioc_reuse"
)

// Alert is raised by the orchestrator for one triggering condition.
// Only the acknowledgement transition mutates it.
type Alert struct {
	ID       string    `json:"id" bson:"_id"`
	URL      string    `json:"url" bson:"url"`
	Reason   string    `json:"reason" bson:"reason"`
	Kind     AlertKind `json:"kind" bson:"kind"`
	Severity Severity  `json:"severity" bson:"severity"`

	ThreatScore   int     `json:"threat_score" bson:"threat_score"`
	PreviousScore *int    `json:"previous_score,omitempty" bson:"previous_score,omitempty"`
	ScoreDelta    int     `json:"score_increase,omitempty" bson:"score_increase,omitempty"`
	Category      string  `json:"category,omitempty" bson:"category,omitempty"`
	Confidence    float64 `json:"confidence,omitempty" bson:"confidence,omitempty"`

	IOCValue   string  `json:"ioc_value,omitempty" bson:"ioc_value,omitempty"`
	IOCType    IOCType `json:"ioc_type,omitempty" bson:"ioc_type,omitempty"`
	ReuseCount int     `json:"reuse_count,omitempty" bson:"reuse_count,omitempty"`

	Details map[string]any `json:"details,omitempty" bson:"details,omitempty"`

	Status         AlertStatus `json:"status" bson:"status"`
	CreatedAt      time.Time   `json:"timestamp" bson:"timestamp"`
	AcknowledgedAt *time.Time  `json:"acknowledged_at,omitempty" bson:"acknowledged_at,omitempty"`
}
