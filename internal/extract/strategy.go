// Package extract implements the escalating extraction layers and the
// page-local escalation policy that sequences them.
package extract

import (
	"context"

	"github.com/catalog-group/pricebook-cli/internal/model"
	"github.com/catalog-group/pricebook-cli/internal/pdfio"
)

// Strategy is one extraction layer. The escalation policy and the pipeline
// depend only on this interface, never on concrete layer types.
type Strategy interface {
	// Layer tags the candidates this strategy emits.
	Layer() model.Layer

	// Attempt extracts candidates from one page. Errors are page-local: the
	// caller converts them to zero yield and a warning, never a run failure.
	Attempt(ctx context.Context, page *pdfio.PageContext) ([]model.CandidateRecord, model.YieldSummary, error)
}
