// Package pipeline orchestrates a full extraction run: page-parallel layer
// escalation behind a bounded worker pool, followed by a single-threaded
// merge barrier.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/catalog-group/pricebook-cli/internal/config"
	"github.com/catalog-group/pricebook-cli/internal/extract"
	"github.com/catalog-group/pricebook-cli/internal/merge"
	"github.com/catalog-group/pricebook-cli/internal/model"
	"github.com/catalog-group/pricebook-cli/internal/ocr"
	"github.com/catalog-group/pricebook-cli/internal/pattern"
	"github.com/catalog-group/pricebook-cli/internal/pdfio"
	"github.com/catalog-group/pricebook-cli/internal/vision"
)

// visionStrategy is layer 3's contract: a strategy plus a readiness probe and
// a session release. The probe runs at most once per pipeline; an unavailable
// model disables layer 3 for the whole run with a single run-level warning.
type visionStrategy interface {
	extract.Strategy
	Ready() error
	Close()
}

// Pipeline runs the escalating extraction over one document at a time. It is
// safe to reuse across documents; the OCR pool and vision session are shared.
type Pipeline struct {
	cfg      *config.Config
	registry *extract.Registry

	layer1 extract.Strategy
	layer2 extract.Strategy
	layer3 visionStrategy

	pool *ocr.Pool

	l3Once      sync.Once
	l3Err       error
	l3Requested atomic.Bool
}

// New wires the three layer strategies from configuration. A failed OCR pool
// disables layer 3 rather than failing construction: the first two layers
// carry most documents on their own.
func New(cfg *config.Config, vocab *pattern.Vocabulary, registry *extract.Registry) (*Pipeline, error) {
	if registry == nil {
		registry = extract.NewRegistry()
	}

	parser := extract.NewRowParser(vocab, cfg.Pipeline.ExplodeFinishPrices)

	p := &Pipeline{
		cfg:      cfg,
		registry: registry,
		layer1:   extract.NewFastExtractor(parser),
		layer2:   extract.NewGridExtractor(parser),
	}

	if cfg.Vision.Enabled {
		pool, err := ocr.NewPool(cfg.OCR.PoolSize, cfg.OCR.Languages)
		if err != nil {
			zap.L().Warn("pipeline: ocr pool unavailable, layer 3 disabled", zap.Error(err))
			p.l3Once.Do(func() { p.l3Err = err })
		} else {
			p.pool = pool
			p.layer3 = extract.NewVisionExtractor(vision.NewDetector(cfg.Vision), pool, parser)
		}
	}

	return p, nil
}

// Close releases the vision session and the shared OCR pool.
func (p *Pipeline) Close() error {
	if p.layer3 != nil {
		p.layer3.Close()
	}
	if p.pool != nil {
		return p.pool.Close()
	}
	return nil
}

// Run extracts the document at path end to end and returns the merged
// records with the run metadata. The metadata is returned even on failure so
// callers can persist a record of what happened.
func (p *Pipeline) Run(ctx context.Context, path string) ([]model.ProductRecord, *model.RunResult, error) {
	result := &model.RunResult{
		RunID:        uuid.NewString(),
		DocumentPath: path,
		Status:       model.RunStatusQueued,
		StartedAt:    time.Now(),
	}

	doc, err := pdfio.Open(path, p.cfg.Loader.RasterDPI)
	if err != nil {
		result.Status = model.RunStatusFailed
		result.SetDuration(time.Since(result.StartedAt))
		return nil, result, err
	}
	defer doc.Close()

	result.Pages = doc.PageCount()
	pages := p.selectPages(doc)

	zap.L().Info("pipeline: run started",
		zap.String("run_id", result.RunID),
		zap.String("document", path),
		zap.Int("pages", result.Pages),
		zap.Int("selected", len(pages)),
	)

	result.Status = model.RunStatusExtracting
	candidates := p.extractPages(ctx, pages, result)

	result.Status = model.RunStatusMerging
	records := merge.Merge(candidates)

	result.Records = len(records)
	result.Confidence = meanConfidence(records)
	result.SetDuration(time.Since(result.StartedAt))

	if ctx.Err() != nil {
		result.Status = model.RunStatusFailed
		result.AddWarning("run canceled before all pages were processed")
		return records, result, eris.Wrap(ctx.Err(), "pipeline: run canceled")
	}
	result.Status = model.RunStatusComplete

	zap.L().Info("pipeline: run complete",
		zap.String("run_id", result.RunID),
		zap.Int("records", result.Records),
		zap.Float64("confidence", result.Confidence),
		zap.Duration("duration", result.Duration),
	)
	return records, result, nil
}

// selectPages applies the configured 1-based inclusive page range; zero
// bounds mean unrestricted.
func (p *Pipeline) selectPages(doc *pdfio.Document) []*pdfio.PageContext {
	n := doc.PageCount()
	first, last := p.cfg.Pipeline.FirstPage, p.cfg.Pipeline.LastPage
	if first < 1 {
		first = 1
	}
	if last < 1 || last > n {
		last = n
	}

	var pages []*pdfio.PageContext
	for i := first - 1; i < last; i++ {
		pages = append(pages, doc.Page(i))
	}
	return pages
}

// pageOutcome is one worker's result for one page. Outcomes live in a
// page-indexed arena so collection order never depends on scheduling.
type pageOutcome struct {
	report          model.PageReport
	candidates      []model.CandidateRecord
	overrideClaimed bool
}

// extractPages runs the per-page state machine across the worker pool and
// collects candidates in page order. Cancellation stops dispatching new
// pages; in-flight pages finish.
func (p *Pipeline) extractPages(ctx context.Context, pages []*pdfio.PageContext, result *model.RunResult) []model.CandidateRecord {
	if len(pages) == 0 {
		return nil
	}

	workers := p.cfg.Pipeline.Workers
	if workers < 1 {
		workers = 1
	}

	outcomes := make([]*pageOutcome, len(pages))
	g := new(errgroup.Group)
	g.SetLimit(workers)

	for i, page := range pages {
		if ctx.Err() != nil {
			break
		}
		i, page := i, page
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			outcomes[i] = p.processPage(ctx, page)
			return nil
		})
	}
	_ = g.Wait()

	var candidates []model.CandidateRecord
	for _, out := range outcomes {
		if out == nil {
			continue
		}
		result.PagesProcessed++
		result.PageReports = append(result.PageReports, out.report)
		tally(&result.Counts, out)
		candidates = append(candidates, out.candidates...)
	}

	if p.l3Requested.Load() && p.l3Err != nil {
		result.AddWarning(fmt.Sprintf("vision model unavailable, layer 3 disabled: %v", p.l3Err))
	}
	return candidates
}

// processPage drives one page through override, layer 1, and the escalation
// policy. Every decision here is page-local.
func (p *Pipeline) processPage(ctx context.Context, page *pdfio.PageContext) *pageOutcome {
	out := &pageOutcome{
		report: model.PageReport{
			PageIndex: page.Index(),
			State:     model.PageUnclassified,
			Layers:    make(map[model.Layer]model.YieldSummary, 3),
		},
	}
	thresholds := extract.Thresholds{
		MinYield:      p.cfg.Pipeline.MinYield,
		MinConfidence: p.cfg.Pipeline.MinConfidence,
		FailureYield:  p.cfg.Pipeline.FailureYield,
	}

	if ov := p.registry.Match(page); ov != nil {
		cands, sum := p.attempt(ctx, ov, page, out)
		out.report.Layers[model.LayerOverride] = sum
		if sum.Candidates > 0 {
			out.candidates = cands
			out.overrideClaimed = true
			out.report.State = model.PageSufficient
			p.finishPage(page, out)
			return out
		}
		out.report.Warnings = append(out.report.Warnings,
			fmt.Sprintf("override %s claimed the page but yielded nothing", ov.Manufacturer()))
	}

	cands, cumulative := p.attempt(ctx, p.layer1, page, out)
	out.candidates = append(out.candidates, cands...)
	out.report.Layers[model.Layer1] = cumulative

	decision, state := extract.Decide(model.PageLayer1Done, cumulative, thresholds)
	out.report.State = state

	if decision == extract.RunNext {
		cands, sum := p.attempt(ctx, p.layer2, page, out)
		out.candidates = append(out.candidates, cands...)
		out.report.Layers[model.Layer2] = sum
		cumulative = combineYield(cumulative, sum)

		decision, state = extract.Decide(model.PageLayer2Done, cumulative, thresholds)
		out.report.State = state
	}

	if decision == extract.RunNext {
		if p.visionReady() {
			cands, sum := p.attempt(ctx, p.layer3, page, out)
			out.candidates = append(out.candidates, cands...)
			out.report.Layers[model.Layer3] = sum
			out.report.State = model.PageLayer3Done
		} else {
			out.report.Warnings = append(out.report.Warnings, "page failed and layer 3 is unavailable")
		}
	}

	p.finishPage(page, out)
	return out
}

// finishPage folds per-page degradation and zero-yield diagnostics into the
// report.
func (p *Pipeline) finishPage(page *pdfio.PageContext, out *pageOutcome) {
	out.report.Degraded = page.Degraded()
	out.report.Warnings = append(out.report.Warnings, page.Warnings()...)
	if len(out.candidates) == 0 && terminal(out.report.State) {
		out.report.Warnings = append(out.report.Warnings, "no candidates at any layer")
	}
}

func terminal(s model.PageState) bool {
	return s == model.PageFailed || s == model.PageLayer3Done || s == model.PageSufficient
}

// attempt runs one layer on one page under the per-layer timeout. Timeouts
// and strategy errors both degrade to a zero yield with a warning so the
// escalation policy sees them as plain failures.
func (p *Pipeline) attempt(ctx context.Context, s extract.Strategy, page *pdfio.PageContext, out *pageOutcome) ([]model.CandidateRecord, model.YieldSummary) {
	timeout := time.Duration(p.cfg.Pipeline.LayerTimeoutSecs) * time.Second
	actx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type attemptResult struct {
		cands []model.CandidateRecord
		sum   model.YieldSummary
		err   error
	}
	ch := make(chan attemptResult, 1)
	go func() {
		cands, sum, err := s.Attempt(actx, page)
		ch <- attemptResult{cands, sum, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			zap.L().Warn("pipeline: layer attempt failed",
				zap.Int("page", page.Index()),
				zap.String("layer", string(s.Layer())),
				zap.Error(r.err),
			)
			out.report.Warnings = append(out.report.Warnings,
				fmt.Sprintf("%s attempt failed", s.Layer()))
			return nil, model.YieldSummary{}
		}
		return r.cands, r.sum

	case <-actx.Done():
		if ctx.Err() == nil {
			err := eris.Wrapf(model.ErrLayerTimeout, "pipeline: %s on page %d after %s",
				s.Layer(), page.Index(), timeout)
			zap.L().Warn("pipeline: layer timed out", zap.Error(err))
			out.report.Warnings = append(out.report.Warnings,
				fmt.Sprintf("%s timed out after %s", s.Layer(), timeout))
		}
		return nil, model.YieldSummary{}
	}
}

// visionReady probes the layer 3 model once per pipeline. Unavailability is
// recorded and surfaced as a single run-level warning by extractPages.
func (p *Pipeline) visionReady() bool {
	p.l3Requested.Store(true)
	p.l3Once.Do(func() {
		if p.layer3 == nil {
			p.l3Err = eris.Wrap(model.ErrModelUnavailable, "pipeline: vision layer not configured")
			return
		}
		p.l3Err = p.layer3.Ready()
	})
	return p.l3Err == nil && p.layer3 != nil
}

func combineYield(a, b model.YieldSummary) model.YieldSummary {
	n := a.Candidates + b.Candidates
	if n == 0 {
		return model.YieldSummary{}
	}
	mean := (a.MeanConfidence*float64(a.Candidates) + b.MeanConfidence*float64(b.Candidates)) / float64(n)
	return model.YieldSummary{Candidates: n, MeanConfidence: mean}
}

func tally(counts *model.LayerCounts, out *pageOutcome) {
	rep := out.report
	if out.overrideClaimed {
		counts.OverrideClaimed++
	}
	if _, ok := rep.Layers[model.Layer1]; ok {
		counts.Layer1Run++
	}
	_, ranL2 := rep.Layers[model.Layer2]
	if !ranL2 && rep.State == model.PageSufficient && !out.overrideClaimed {
		counts.Layer1Sufficient++
	}
	if ranL2 {
		counts.Layer2Attempted++
		if rep.State == model.PageSufficient {
			counts.Layer2Sufficient++
		}
	}
	if _, ok := rep.Layers[model.Layer3]; ok {
		counts.Layer3Invoked++
	}
}

func meanConfidence(records []model.ProductRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	var sum float64
	for _, r := range records {
		sum += r.Confidence
	}
	return sum / float64(len(records))
}
