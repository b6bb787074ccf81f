package events

// EventType identifies the kind of occurrence an event describes.
type EventType string

const (
	OptimizationCompleted EventType = "OPTIMIZATION_COMPLETED"
	OptimizationDegraded  EventType = "OPTIMIZATION_DEGRADED"
	PricesIngested        EventType = "PRICES_INGESTED"
	UniverseScreened      EventType = "UNIVERSE_SCREENED"
	JobStarted            EventType = "JOB_STARTED"
	JobCompleted          EventType = "JOB_COMPLETED"
	JobFailed             EventType = "JOB_FAILED"
	ResultsPruned         EventType = "RESULTS_PRUNED"
	ErrorOccurred         EventType = "ERROR_OCCURRED"
)

// Types lists every event type the system publishes, in a stable order.
// Stream subscribers use it to attach to the full feed.
func Types() []EventType {
	return []EventType{
		OptimizationCompleted,
		OptimizationDegraded,
		PricesIngested,
		UniverseScreened,
		JobStarted,
		JobCompleted,
		JobFailed,
		ResultsPruned,
		ErrorOccurred,
	}
}

// EventData is the interface all event payloads implement. It ties a payload
// to the event type it announces.
type EventData interface {
	EventType() EventType
}

// OptimizationCompletedData announces a finished optimization run.
type OptimizationCompletedData struct {
	ResultID    string  `json:"result_id"`
	Method      string  `json:"method"`
	Universe    int     `json:"universe"`
	SharpeRatio float64 `json:"sharpe_ratio"`
	Converged   bool    `json:"converged"`
}

func (d *OptimizationCompletedData) EventType() EventType {
	return OptimizationCompleted
}

// OptimizationDegradedData announces a run that fell back to the neutral
// result instead of producing real weights.
type OptimizationDegradedData struct {
	ResultID string `json:"result_id"`
	Method   string `json:"method"`
	Warning  string `json:"warning"`
}

func (d *OptimizationDegradedData) EventType() EventType {
	return OptimizationDegraded
}

// PricesIngestedData announces new daily price rows in the history store.
type PricesIngestedData struct {
	Symbols int `json:"symbols"`
	Rows    int `json:"rows"`
}

func (d *PricesIngestedData) EventType() EventType {
	return PricesIngested
}

// UniverseScreenedData announces a completed screening pass.
type UniverseScreenedData struct {
	Candidates int `json:"candidates"`
	Passed     int `json:"passed"`
}

func (d *UniverseScreenedData) EventType() EventType {
	return UniverseScreened
}

// JobStatusData carries scheduler job lifecycle events. The event type
// follows the Status field.
type JobStatusData struct {
	JobName  string  `json:"job_name"`
	Status   string  `json:"status"`
	Error    string  `json:"error,omitempty"`
	Duration float64 `json:"duration_seconds,omitempty"`
}

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

// ResultsPrunedData announces retention cleanup of stored results.
type ResultsPrunedData struct {
	Deleted int64 `json:"deleted"`
}

func (d *ResultsPrunedData) EventType() EventType {
	return ResultsPruned
}

// ErrorEventData carries an error surfaced outside a request context.
type ErrorEventData struct {
	Error   string         `json:"error"`
	Context map[string]any `json:"context,omitempty"`
}

func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}
