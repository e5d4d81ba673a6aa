package events

// EventData is the interface that all event data types must implement
type EventData interface {
	EventType() EventType
}

// SimulationCompletedData is the run counter record for a finished run
type SimulationCompletedData struct {
	RunID       string   `json:"run_id"`
	Method      string   `json:"method"`
	Scenario    string   `json:"scenario"`
	Tickers     []string `json:"tickers"`
	Simulations int      `json:"simulations"`
	Days        int      `json:"days"`
	Seed        uint64   `json:"seed"`
	VaR95       float64  `json:"var_95"`
	CVaR95      float64  `json:"cvar_95"`
	DurationMs  int64    `json:"duration_ms"`
}

// EventType returns the event type for SimulationCompletedData
func (d *SimulationCompletedData) EventType() EventType {
	return SimulationCompleted
}

// SimulationFailedData describes a run that ended in FAILED
type SimulationFailedData struct {
	RunID string `json:"run_id"`
	Stage string `json:"stage"`
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

// EventType returns the event type for SimulationFailedData
func (d *SimulationFailedData) EventType() EventType {
	return SimulationFailed
}

// OptimizationCompletedData summarises an optimizer run
type OptimizationCompletedData struct {
	RunID     string             `json:"run_id,omitempty"`
	Objective string             `json:"objective"`
	Weights   map[string]float64 `json:"weights"`
	Sharpe    float64            `json:"sharpe"`
	Degraded  bool               `json:"degraded"`
}

// EventType returns the event type for OptimizationCompletedData
func (d *OptimizationCompletedData) EventType() EventType {
	return OptimizationCompleted
}

// SweepCompletedData summarises a scheduled scenario sweep
type SweepCompletedData struct {
	Scenarios int      `json:"scenarios"`
	Failed    int      `json:"failed"`
	Tickers   []string `json:"tickers"`
}

// EventType returns the event type for SweepCompletedData
func (d *SweepCompletedData) EventType() EventType {
	return SweepCompleted
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
