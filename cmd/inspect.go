package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/catalog-group/pricebook-cli/internal/pdfio"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <price-book.pdf>",
	Short: "Show per-page content stats without extracting",
	Long: `Opens a document and reports what each page carries: embedded text volume
and positioned fragment count. Useful for predicting which extraction layer a
page will land on before spending a full run on it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := pdfio.Open(args[0], cfg.Loader.RasterDPI)
		if err != nil {
			return err
		}
		defer doc.Close() //nolint:errcheck

		formatInspect(os.Stdout, doc)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func formatInspect(out io.Writer, doc *pdfio.Document) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PAGE\tTEXT_LINES\tFRAGMENTS\tLIKELY")
	_, _ = fmt.Fprintln(w, "----\t----------\t---------\t------")

	for i := 0; i < doc.PageCount(); i++ {
		page := doc.Page(i)
		lines := countNonEmptyLines(page.Text())
		frags := len(page.Fragments())

		_, _ = fmt.Fprintf(w, "%d\t%d\t%d\t%s\n", i+1, lines, frags, likelyLayer(lines, frags))
	}
	_ = w.Flush()

	fmt.Fprintf(out, "\n%s: %d pages\n", doc.Path(), doc.PageCount())
}

func countNonEmptyLines(text string) int {
	n := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}

// likelyLayer is a rough triage heuristic, not the escalation policy: pages
// with no text at all almost always need the vision pass.
func likelyLayer(lines, frags int) string {
	switch {
	case frags > 20:
		return "layer1"
	case lines > 5:
		return "layer1/2"
	case lines > 0:
		return "layer2"
	default:
		return "layer3 (scan)"
	}
}
