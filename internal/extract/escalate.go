package extract

import "github.com/catalog-group/pricebook-cli/internal/model"

// The escalation policy is a pure decision function over per-page yield.
// Decisions are strictly page-local: one page's escalation never affects
// another's. Layer 3 costs 10-50x more per page than the layers before it,
// so it runs only on genuine failures, never to polish an adequate page.

// Thresholds configures the escalation policy.
type Thresholds struct {
	// MinYield and MinConfidence gate layer 1 sufficiency.
	MinYield      int
	MinConfidence float64
	// FailureYield is the combined layer 1+2 candidate count at or below
	// which a page counts as failed and earns a layer 3 pass.
	FailureYield int
}

// Decision is the policy outcome for one page after one layer.
type Decision int

const (
	// Stop ends extraction for the page; its state is terminal.
	Stop Decision = iota
	// RunNext invokes the next, costlier layer.
	RunNext
)

// Decide advances the page state machine given the cumulative yield across
// the layers run so far. The state transitions are:
//
//	layer1-done → sufficient | weak(run layer 2)
//	layer2-done → sufficient | failed(run layer 3)
//	layer3-done → terminal
func Decide(state model.PageState, cumulative model.YieldSummary, t Thresholds) (Decision, model.PageState) {
	switch state {
	case model.PageLayer1Done:
		if cumulative.Candidates >= t.MinYield && cumulative.MeanConfidence >= t.MinConfidence {
			return Stop, model.PageSufficient
		}
		return RunNext, model.PageWeak

	case model.PageLayer2Done:
		if cumulative.Candidates > t.FailureYield {
			return Stop, model.PageSufficient
		}
		return RunNext, model.PageFailed

	case model.PageLayer3Done:
		return Stop, model.PageLayer3Done

	default:
		return Stop, state
	}
}
