package model

// PageState tracks a page through the escalation state machine.
type PageState string

const (
	PageUnclassified PageState = "unclassified"
	PageLayer1Done   PageState = "layer1-done"
	PageLayer2Done   PageState = "layer2-done"
	PageLayer3Done   PageState = "layer3-done"
	PageWeak         PageState = "weak"
	PageSufficient   PageState = "sufficient"
	PageFailed       PageState = "failed"
)

// YieldSummary is the per-page outcome of one layer attempt. It is the only
// signal the escalation policy sees; the policy never inspects candidates.
type YieldSummary struct {
	Candidates     int     `json:"candidates"`
	MeanConfidence float64 `json:"mean_confidence"`
}

// Summarize computes a yield summary over a candidate batch.
func Summarize(candidates []CandidateRecord) YieldSummary {
	s := YieldSummary{Candidates: len(candidates)}
	if len(candidates) == 0 {
		return s
	}
	var sum float64
	for _, c := range candidates {
		sum += c.Confidence
	}
	s.MeanConfidence = sum / float64(len(candidates))
	return s
}

// PageReport is the per-page slice of run metadata.
type PageReport struct {
	PageIndex int                    `json:"page_index"`
	State     PageState              `json:"state"`
	Degraded  bool                   `json:"degraded,omitempty"`
	Layers    map[Layer]YieldSummary `json:"layers"`
	Warnings  []string               `json:"warnings,omitempty"`
}
