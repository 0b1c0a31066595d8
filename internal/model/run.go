package model

import "time"

// RunStatus tracks a pipeline run through its lifecycle.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusExtracting RunStatus = "extracting"
	RunStatusMerging    RunStatus = "merging"
	RunStatusComplete   RunStatus = "complete"
	RunStatusFailed     RunStatus = "failed"
)

// LayerCounts summarizes how many pages each layer touched, and with what
// outcome. These are the numbers an operator reads first: a high Layer3
// count on a born-digital catalog means something upstream is off.
type LayerCounts struct {
	Layer1Run        int `json:"layer1_run"`
	Layer1Sufficient int `json:"layer1_sufficient"`
	Layer2Attempted  int `json:"layer2_attempted"`
	Layer2Sufficient int `json:"layer2_sufficient"`
	Layer3Invoked    int `json:"layer3_invoked"`
	OverrideClaimed  int `json:"override_claimed"`
}

// RunResult is the metadata returned alongside the final records.
type RunResult struct {
	RunID          string       `json:"run_id"`
	DocumentPath   string       `json:"document_path"`
	Status         RunStatus    `json:"status"`
	Pages          int          `json:"pages"`
	PagesProcessed int          `json:"pages_processed"`
	Counts         LayerCounts  `json:"counts"`
	PageReports    []PageReport `json:"page_reports"`
	Warnings       []string     `json:"warnings,omitempty"`
	// Confidence is the mean aggregate confidence across all final records,
	// zero when no records were produced.
	Confidence float64 `json:"confidence"`
	Records    int     `json:"records"`
	// Duration is the wall-clock run time; JSON carries it as integer
	// milliseconds in DurationMillis. Set both through SetDuration.
	Duration       time.Duration `json:"-"`
	DurationMillis int64         `json:"duration_ms"`
	StartedAt      time.Time     `json:"started_at"`
}

// AddWarning appends a run-level warning.
func (r *RunResult) AddWarning(w string) {
	r.Warnings = append(r.Warnings, w)
}

// SetDuration records the wall-clock duration in both representations.
func (r *RunResult) SetDuration(d time.Duration) {
	r.Duration = d
	r.DurationMillis = d.Milliseconds()
}
