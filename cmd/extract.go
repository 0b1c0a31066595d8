package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/catalog-group/pricebook-cli/internal/config"
	"github.com/catalog-group/pricebook-cli/internal/extract"
	"github.com/catalog-group/pricebook-cli/internal/model"
	"github.com/catalog-group/pricebook-cli/internal/pipeline"
	"github.com/catalog-group/pricebook-cli/internal/store"
)

var (
	extractOutput   string
	extractFormat   string
	extractFirst    int
	extractLast     int
	extractWorkers  int
	extractNoVision bool
	extractExplode  bool
	extractSave     bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <price-book.pdf>",
	Short: "Extract product records from a price-book PDF",
	Long: `Runs the full escalating pipeline over one document. Each page gets the
cheapest extraction that works: native text rows first, geometric table
recovery when yield is weak, vision with OCR only when both fail.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&extractOutput, "out", "o", "", "output file (default stdout)")
	extractCmd.Flags().StringVar(&extractFormat, "format", "json", "output format: json or csv")
	extractCmd.Flags().IntVar(&extractFirst, "first-page", 0, "first page to process (1-based)")
	extractCmd.Flags().IntVar(&extractLast, "last-page", 0, "last page to process (1-based)")
	extractCmd.Flags().IntVar(&extractWorkers, "workers", 0, "page workers (default from config)")
	extractCmd.Flags().BoolVar(&extractNoVision, "no-vision", false, "disable the layer 3 vision pass")
	extractCmd.Flags().BoolVar(&extractExplode, "explode-finishes", false, "emit one record per finish when a row prices several")
	extractCmd.Flags().BoolVar(&extractSave, "save", false, "persist the run to the audit database")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if extractFirst > 0 {
		cfg.Pipeline.FirstPage = extractFirst
	}
	if extractLast > 0 {
		cfg.Pipeline.LastPage = extractLast
	}
	if extractWorkers > 0 {
		cfg.Pipeline.Workers = extractWorkers
	}
	if extractNoVision {
		cfg.Vision.Enabled = false
	}
	if extractExplode {
		cfg.Pipeline.ExplodeFinishPrices = true
	}

	vocab, err := config.LoadVocabulary(cfg.Pattern)
	if err != nil {
		return err
	}

	p, err := pipeline.New(cfg, vocab, extract.NewRegistry())
	if err != nil {
		return err
	}
	defer p.Close() //nolint:errcheck

	records, result, err := p.Run(ctx, args[0])

	if extractSave && result != nil {
		if saveErr := saveRun(cmd, result, records); saveErr != nil {
			zap.L().Error("extract: save run", zap.Error(saveErr))
		}
	}
	if err != nil {
		return err
	}

	out := os.Stdout
	if extractOutput != "" {
		f, ferr := os.Create(extractOutput)
		if ferr != nil {
			return eris.Wrapf(ferr, "extract: create %s", extractOutput)
		}
		defer f.Close() //nolint:errcheck
		out = f
	}

	switch extractFormat {
	case "json":
		err = writeJSON(out, records, result)
	case "csv":
		err = writeCSV(out, records)
	default:
		return eris.Errorf("extract: unknown format %q", extractFormat)
	}
	if err != nil {
		return err
	}

	printRunSummary(os.Stderr, result)
	return nil
}

func saveRun(cmd *cobra.Command, result *model.RunResult, records []model.ProductRecord) error {
	if cfg.Store.AuditDB == "" {
		return eris.New("extract: --save requires store.audit_db to be configured")
	}
	st, err := store.NewSQLite(cfg.Store.AuditDB)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck
	if err := st.Migrate(cmd.Context()); err != nil {
		return err
	}
	return st.SaveRun(cmd.Context(), result, records)
}

// extractOutputDoc is the JSON envelope the extract command emits.
type extractOutputDoc struct {
	Run     *model.RunResult      `json:"run"`
	Records []model.ProductRecord `json:"records"`
}

func writeJSON(out io.Writer, records []model.ProductRecord, result *model.RunResult) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(extractOutputDoc{Run: result, Records: records}), "extract: encode json")
}

func writeCSV(out io.Writer, records []model.ProductRecord) error {
	w := csv.NewWriter(out)

	header := []string{"identifier", "surrogate", "page", "confidence", "layers", "prices"}
	fieldKeys := collectFieldKeys(records)
	header = append(header, fieldKeys...)
	if err := w.Write(header); err != nil {
		return eris.Wrap(err, "extract: write csv header")
	}

	for _, r := range records {
		layers := make([]string, len(r.Layers))
		for i, l := range r.Layers {
			layers[i] = string(l)
		}
		row := []string{
			r.NaturalKey,
			fmt.Sprintf("%t", r.Surrogate),
			fmt.Sprintf("%d", r.PageIndex+1),
			fmt.Sprintf("%.3f", r.Confidence),
			strings.Join(layers, "|"),
			strings.Join(r.Prices, "|"),
		}
		for _, k := range fieldKeys {
			row = append(row, r.Fields[k].Value)
		}
		if err := w.Write(row); err != nil {
			return eris.Wrap(err, "extract: write csv row")
		}
	}

	w.Flush()
	return eris.Wrap(w.Error(), "extract: flush csv")
}

// collectFieldKeys returns every field key present across the records, in a
// stable order with the common ones first.
func collectFieldKeys(records []model.ProductRecord) []string {
	preferred := []string{model.FieldDescription, model.FieldPrice, model.FieldFinish, model.FieldSize, model.FieldOptions}
	seen := make(map[string]bool)
	var keys []string

	for _, k := range preferred {
		seen[k] = true
	}
	for _, r := range records {
		for k := range r.Fields {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return append(preferred, keys...)
}

func printRunSummary(out io.Writer, result *model.RunResult) {
	if result == nil {
		return
	}
	fmt.Fprintf(out, "run %s: %d records from %d/%d pages (confidence %.2f) in %s\n",
		result.RunID, result.Records, result.PagesProcessed, result.Pages,
		result.Confidence, result.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "layers: L1 %d/%d sufficient, L2 %d attempted (%d sufficient), L3 %d, overrides %d\n",
		result.Counts.Layer1Sufficient, result.Counts.Layer1Run,
		result.Counts.Layer2Attempted, result.Counts.Layer2Sufficient,
		result.Counts.Layer3Invoked, result.Counts.OverrideClaimed)
	for _, w := range result.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
}
