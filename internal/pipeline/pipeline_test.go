package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalog-group/pricebook-cli/internal/config"
	"github.com/catalog-group/pricebook-cli/internal/extract"
	"github.com/catalog-group/pricebook-cli/internal/merge"
	"github.com/catalog-group/pricebook-cli/internal/model"
	"github.com/catalog-group/pricebook-cli/internal/pdfio"
)

type fakeStrategy struct {
	layer  model.Layer
	yield  func(page *pdfio.PageContext) []model.CandidateRecord
	block  bool
	calls  atomic.Int32
	ready  error
	closed atomic.Bool
}

func (f *fakeStrategy) Layer() model.Layer { return f.layer }

func (f *fakeStrategy) Ready() error { return f.ready }

func (f *fakeStrategy) Close() { f.closed.Store(true) }

func (f *fakeStrategy) Attempt(ctx context.Context, page *pdfio.PageContext) ([]model.CandidateRecord, model.YieldSummary, error) {
	f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return nil, model.YieldSummary{}, ctx.Err()
	}
	var cands []model.CandidateRecord
	if f.yield != nil {
		cands = f.yield(page)
	}
	return cands, model.Summarize(cands), nil
}

type fakeOverride struct {
	fakeStrategy
	name      string
	claimPage int
}

func (f *fakeOverride) Manufacturer() string { return f.name }

func (f *fakeOverride) Claims(p *pdfio.PageContext) bool { return p.Index() == f.claimPage }

func cands(layer model.Layer, page, n int, conf float64) []model.CandidateRecord {
	out := make([]model.CandidateRecord, n)
	for i := range out {
		out[i] = model.CandidateRecord{
			NaturalKey: fmt.Sprintf("P%dR%d", page, i),
			Fields: map[string]model.Field{
				model.FieldPrice: {Value: "10.00", Confidence: 0.9},
			},
			Prices:     []string{"10.00"},
			Layer:      layer,
			PageIndex:  page,
			RowIndex:   i,
			Confidence: conf,
		}
	}
	return out
}

func testConfig() *config.Config {
	return &config.Config{
		Pipeline: config.PipelineConfig{
			Workers:          4,
			MinYield:         3,
			MinConfidence:    0.5,
			FailureYield:     0,
			LayerTimeoutSecs: 30,
		},
	}
}

func testPipeline(cfg *config.Config, l1, l2 *fakeStrategy, l3 visionStrategy) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		registry: extract.NewRegistry(),
		layer1:   l1,
		layer2:   l2,
		layer3:   l3,
	}
}

func pages(n int) []*pdfio.PageContext {
	out := make([]*pdfio.PageContext, n)
	for i := range out {
		out[i] = pdfio.SyntheticPage(i, "", nil, nil, 72)
	}
	return out
}

func TestSufficientPageNeverEscalates(t *testing.T) {
	l1 := &fakeStrategy{layer: model.Layer1, yield: func(p *pdfio.PageContext) []model.CandidateRecord {
		return cands(model.Layer1, p.Index(), 5, 0.9)
	}}
	l2 := &fakeStrategy{layer: model.Layer2}
	l3 := &fakeStrategy{layer: model.Layer3}
	p := testPipeline(testConfig(), l1, l2, l3)

	result := &model.RunResult{}
	got := p.extractPages(context.Background(), pages(1), result)

	assert.Len(t, got, 5)
	assert.Equal(t, int32(0), l2.calls.Load(), "sufficient page must not run layer 2")
	assert.Equal(t, int32(0), l3.calls.Load(), "sufficient page must not run layer 3")
	assert.Equal(t, model.LayerCounts{Layer1Run: 1, Layer1Sufficient: 1}, result.Counts)
	require.Len(t, result.PageReports, 1)
	assert.Equal(t, model.PageSufficient, result.PageReports[0].State)
}

func TestMixedDocumentLayerCounts(t *testing.T) {
	// 22 pages: 18 clean, 2 weak pages recovered by layer 2, 2 scanned pages
	// that only layer 3 can read.
	yield1 := func(p *pdfio.PageContext) []model.CandidateRecord {
		switch {
		case p.Index() < 18:
			return cands(model.Layer1, p.Index(), 5, 0.9)
		case p.Index() < 20:
			return cands(model.Layer1, p.Index(), 1, 0.6)
		default:
			return nil
		}
	}
	yield2 := func(p *pdfio.PageContext) []model.CandidateRecord {
		if p.Index() < 20 {
			return cands(model.Layer2, p.Index(), 4, 0.8)
		}
		return nil
	}
	yield3 := func(p *pdfio.PageContext) []model.CandidateRecord {
		return cands(model.Layer3, p.Index(), 2, 0.7)
	}

	l1 := &fakeStrategy{layer: model.Layer1, yield: yield1}
	l2 := &fakeStrategy{layer: model.Layer2, yield: yield2}
	l3 := &fakeStrategy{layer: model.Layer3, yield: yield3}
	p := testPipeline(testConfig(), l1, l2, l3)

	result := &model.RunResult{}
	p.extractPages(context.Background(), pages(22), result)

	assert.Equal(t, model.LayerCounts{
		Layer1Run:        22,
		Layer1Sufficient: 18,
		Layer2Attempted:  4,
		Layer2Sufficient: 2,
		Layer3Invoked:    2,
	}, result.Counts)
	assert.Equal(t, 22, result.PagesProcessed)
}

func TestDeterministicAcrossWorkerCounts(t *testing.T) {
	yield := func(p *pdfio.PageContext) []model.CandidateRecord {
		return cands(model.Layer1, p.Index(), 3, 0.9)
	}

	var runs [][]model.ProductRecord
	for _, workers := range []int{1, 2, 8} {
		cfg := testConfig()
		cfg.Pipeline.Workers = workers
		l1 := &fakeStrategy{layer: model.Layer1, yield: yield}
		p := testPipeline(cfg, l1, &fakeStrategy{layer: model.Layer2}, nil)

		result := &model.RunResult{}
		records := merge.Merge(p.extractPages(context.Background(), pages(12), result))
		runs = append(runs, records)

		for i, rep := range result.PageReports {
			assert.Equal(t, i, rep.PageIndex, "reports must be in page order")
		}
	}

	assert.Equal(t, runs[0], runs[1])
	assert.Equal(t, runs[0], runs[2])
}

func TestZeroPages(t *testing.T) {
	p := testPipeline(testConfig(), &fakeStrategy{layer: model.Layer1}, &fakeStrategy{layer: model.Layer2}, nil)

	result := &model.RunResult{}
	got := p.extractPages(context.Background(), nil, result)

	assert.Nil(t, got)
	assert.Zero(t, result.Counts)
	assert.Empty(t, result.Warnings)
}

func TestVisionUnavailableWarnsOnce(t *testing.T) {
	l1 := &fakeStrategy{layer: model.Layer1} // zero yield on every page
	l2 := &fakeStrategy{layer: model.Layer2}
	l3 := &fakeStrategy{layer: model.Layer3, ready: eris.Wrap(model.ErrModelUnavailable, "missing model file")}
	p := testPipeline(testConfig(), l1, l2, l3)

	result := &model.RunResult{}
	p.extractPages(context.Background(), pages(4), result)

	assert.Equal(t, int32(0), l3.calls.Load())
	assert.Equal(t, 0, result.Counts.Layer3Invoked)
	require.Len(t, result.Warnings, 1, "exactly one run-level warning")
	assert.Contains(t, result.Warnings[0], "layer 3 disabled")

	for _, rep := range result.PageReports {
		assert.Equal(t, model.PageFailed, rep.State)
	}
}

func TestLayerTimeoutDegradesToZeroYield(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.LayerTimeoutSecs = 1

	l1 := &fakeStrategy{layer: model.Layer1, block: true}
	l2 := &fakeStrategy{layer: model.Layer2, yield: func(p *pdfio.PageContext) []model.CandidateRecord {
		return cands(model.Layer2, p.Index(), 4, 0.8)
	}}
	p := testPipeline(cfg, l1, l2, nil)

	result := &model.RunResult{}
	got := p.extractPages(context.Background(), pages(1), result)

	assert.Len(t, got, 4, "layer 2 recovers after the layer 1 timeout")
	require.Len(t, result.PageReports, 1)
	rep := result.PageReports[0]
	assert.Equal(t, model.PageSufficient, rep.State)
	require.NotEmpty(t, rep.Warnings)
	assert.True(t, strings.Contains(rep.Warnings[0], "timed out"), "got %q", rep.Warnings[0])
}

func TestCanceledContextStopsDispatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l1 := &fakeStrategy{layer: model.Layer1}
	p := testPipeline(testConfig(), l1, &fakeStrategy{layer: model.Layer2}, nil)

	result := &model.RunResult{}
	got := p.extractPages(ctx, pages(8), result)

	assert.Nil(t, got)
	assert.Equal(t, 0, result.PagesProcessed)
	assert.Equal(t, int32(0), l1.calls.Load())
}

func TestClose_ReleasesVisionSession(t *testing.T) {
	l3 := &fakeStrategy{layer: model.Layer3}
	p := testPipeline(testConfig(), &fakeStrategy{layer: model.Layer1}, &fakeStrategy{layer: model.Layer2}, l3)

	require.NoError(t, p.Close())
	assert.True(t, l3.closed.Load())

	// A pipeline without layer 3 closes cleanly too.
	bare := testPipeline(testConfig(), &fakeStrategy{layer: model.Layer1}, &fakeStrategy{layer: model.Layer2}, nil)
	assert.NoError(t, bare.Close())
}

func TestOverrideClaimsPageBeforeLayer1(t *testing.T) {
	ov := &fakeOverride{name: "acme", claimPage: 0}
	ov.layer = model.LayerOverride
	ov.yield = func(p *pdfio.PageContext) []model.CandidateRecord {
		return cands(model.LayerOverride, p.Index(), 2, 0.95)
	}

	l1 := &fakeStrategy{layer: model.Layer1, yield: func(p *pdfio.PageContext) []model.CandidateRecord {
		return cands(model.Layer1, p.Index(), 5, 0.9)
	}}
	p := testPipeline(testConfig(), l1, &fakeStrategy{layer: model.Layer2}, nil)
	p.registry.Register(ov)

	result := &model.RunResult{}
	got := p.extractPages(context.Background(), pages(2), result)

	assert.Equal(t, 1, result.Counts.OverrideClaimed)
	assert.Equal(t, int32(1), l1.calls.Load(), "layer 1 runs only on the unclaimed page")
	assert.Equal(t, int32(1), ov.calls.Load())

	// 2 override candidates from page 0 plus 5 layer 1 candidates from page 1.
	assert.Len(t, got, 7)
}
