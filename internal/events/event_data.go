package events

// EventData is the interface that all event data types must implement
// This allows for type-safe event data while maintaining flexibility
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// RebalanceRecommendationData contains data for RebalanceRecommendation events
type RebalanceRecommendationData struct {
	PortfolioID int64  `json:"portfolio_id"`
	UserID      string `json:"user_id"`
	Message     string `json:"message"`
	AssetCount  int    `json:"asset_count"`
}

// EventType returns the event type for RebalanceRecommendationData
func (d *RebalanceRecommendationData) EventType() EventType {
	return RebalanceRecommendation
}

// RebalanceExecutedData contains data for RebalanceExecuted events
type RebalanceExecutedData struct {
	PortfolioID  int64  `json:"portfolio_id"`
	RunID        string `json:"run_id"`
	Orders       int    `json:"orders"`
	AllSucceeded bool   `json:"all_succeeded"`
}

// EventType returns the event type for RebalanceExecutedData
func (d *RebalanceExecutedData) EventType() EventType {
	return RebalanceExecuted
}

// RebalanceSkippedData contains data for RebalanceSkipped events
type RebalanceSkippedData struct {
	PortfolioID int64  `json:"portfolio_id"`
	Reason      string `json:"reason"`
}

// EventType returns the event type for RebalanceSkippedData
func (d *RebalanceSkippedData) EventType() EventType {
	return RebalanceSkipped
}

// RebalanceRejectedData contains data for RebalanceRejected events
type RebalanceRejectedData struct {
	PortfolioID  int64   `json:"portfolio_id"`
	ApprovalRate float64 `json:"approval_rate"`
	OverallRisk  float64 `json:"overall_risk"`
}

// EventType returns the event type for RebalanceRejectedData
func (d *RebalanceRejectedData) EventType() EventType {
	return RebalanceRejected
}

// TradeExecutedData contains data for TradeExecuted events
type TradeExecutedData struct {
	PortfolioID int64   `json:"portfolio_id"`
	Symbol      string  `json:"symbol"`
	Amount      float64 `json:"amount"`
	Value       float64 `json:"value"`
	Success     bool    `json:"success"`
	TxReference string  `json:"tx_reference,omitempty"`
}

// EventType returns the event type for TradeExecutedData
func (d *TradeExecutedData) EventType() EventType {
	return TradeExecuted
}

// SignalDegradedData contains data for SignalDegraded events
type SignalDegradedData struct {
	PortfolioID int64  `json:"portfolio_id"`
	Symbol      string `json:"symbol"`
	Source      string `json:"source"` // "sentiment" or "statistics"
	Error       string `json:"error"`
}

// EventType returns the event type for SignalDegradedData
func (d *SignalDegradedData) EventType() EventType {
	return SignalDegraded
}

// CollectionProgressData reports per-asset signal collection progress
type CollectionProgressData struct {
	PortfolioID int64  `json:"portfolio_id"`
	Symbol      string `json:"symbol"`
	Current     int    `json:"current"`
	Total       int    `json:"total"`
}

// EventType returns the event type for CollectionProgressData
func (d *CollectionProgressData) EventType() EventType {
	return CollectionProgress
}

// JobStatusData contains data for job lifecycle events
type JobStatusData struct {
	JobName  string  `json:"job_name"`
	Status   string  `json:"status"` // "started", "completed", "failed"
	Error    string  `json:"error,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// EventType returns the event type for JobStatusData
// Note: The actual event type is determined by the Status field
func (d *JobStatusData) EventType() EventType {
	switch d.Status {
	case "completed":
		return JobCompleted
	case "failed":
		return JobFailed
	default:
		return JobStarted
	}
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}
