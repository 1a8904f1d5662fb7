package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spigell/rfp-evaluator/internal/evaluation"
	"github.com/spigell/rfp-evaluator/internal/rfp"
	"github.com/spigell/rfp-evaluator/internal/store"
	"golang.org/x/term"
)

// Format selects how results are written.
type Format string

const (
	TableFormat Format = "table"
	JSONFormat  Format = "json"
	CSVFormat   Format = "csv"
)

const (
	defaultWidth = 80
	// room taken by every column except the summary, borders included
	fixedRunColumns = 90
	minSummaryWidth = 20
)

// ParseFormat accepts the configured output format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case TableFormat, "":
		return TableFormat, nil
	case JSONFormat:
		return JSONFormat, nil
	case CSVFormat:
		return CSVFormat, nil
	default:
		return "", fmt.Errorf("unsupported output format %q", s)
	}
}

type Options struct {
	Format    Format
	UseColors bool
	// Width overrides the detected terminal width.
	Width int
	// Ranked orders results by score instead of input order.
	Ranked bool
}

// TerminalWidth returns the override when set, otherwise the stdout width.
func TerminalWidth(override int) int {
	if override > 0 {
		return override
	}
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return defaultWidth
	}
	return width
}

// Rank orders results by final score, highest first. Ties keep input order.
func Rank(results []rfp.EvaluationResult) []rfp.EvaluationResult {
	ranked := make([]rfp.EvaluationResult, len(results))
	copy(ranked, results)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// RankStored lists scored proposals first by score, then unscored ones newest first.
func RankStored(proposals []store.StoredProposal) []store.StoredProposal {
	ranked := make([]store.StoredProposal, len(proposals))
	copy(ranked, proposals)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		switch {
		case a.Scored() && b.Scored():
			return *a.Score > *b.Score
		case a.Scored() != b.Scored():
			return a.Scored()
		default:
			return a.CreatedAt.After(b.CreatedAt)
		}
	})
	return ranked
}

// WriteRun writes the outcome of an evaluation run.
func WriteRun(w io.Writer, run *evaluation.Run, opts Options) error {
	if run == nil {
		return fmt.Errorf("no evaluation run to report")
	}

	results := run.Results
	if opts.Ranked {
		results = Rank(results)
	}

	switch opts.Format {
	case JSONFormat:
		return writeJSON(w, runDocument{
			RunID:      run.ID.String(),
			RFP:        run.RFPTitle,
			State:      string(run.State),
			Benchmark:  run.Benchmark,
			Results:    results,
			StartedAt:  run.StartedAt.UTC().Format(timeLayout),
			FinishedAt: run.FinishedAt.UTC().Format(timeLayout),
		})
	case CSVFormat:
		return writeRunCSV(w, results)
	default:
		return writeRunTable(w, run, results, opts)
	}
}

const timeLayout = time.RFC3339

type runDocument struct {
	RunID      string                 `json:"runId"`
	RFP        string                 `json:"rfp"`
	State      string                 `json:"state"`
	Benchmark  rfp.Benchmark          `json:"benchmark"`
	Results    []rfp.EvaluationResult `json:"results"`
	StartedAt  string                 `json:"startedAt"`
	FinishedAt string                 `json:"finishedAt"`
}

func writeRunTable(w io.Writer, run *evaluation.Run, results []rfp.EvaluationResult, opts Options) error {
	paint := newPalette(opts.UseColors)
	summaryWidth := TerminalWidth(opts.Width) - fixedRunColumns
	if summaryWidth < minSummaryWidth {
		summaryWidth = minSummaryWidth
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"#", "Vendor", "Price", "Delivery", "Warranty", "Base", "Deductions", "Score", "Recommendation", "Summary"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	data := make([][]string, 0, len(results))
	for i, r := range results {
		data = append(data, []string{
			strconv.Itoa(i + 1),
			r.Vendor.Label(),
			r.Facts.TotalPrice.String(),
			r.Facts.DeliveryDays.String(),
			r.Facts.WarrantyYears.String(),
			strconv.Itoa(r.BaseScore),
			deductionPoints(r.Deductions),
			paint.score(r.Score),
			paint.recommendation(r.Recommendation),
			truncate(r.Summary, summaryWidth),
		})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	fmt.Fprintf(w, "Benchmark: lowest price %s, fastest delivery %s days, longest warranty %s years\n",
		run.Benchmark.LowestPrice, run.Benchmark.FastestDelivery, run.Benchmark.LongestWarranty)
	fmt.Fprintf(w, "Run %s evaluated %d proposals for %q in %s\n",
		run.ID, len(run.Results), run.RFPTitle, run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	return nil
}

func writeRunCSV(w io.Writer, results []rfp.EvaluationResult) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"proposal_id", "vendor", "price", "delivery_days", "warranty_years", "base_score", "deductions", "score", "recommendation", "summary"}); err != nil {
		return err
	}
	for _, r := range results {
		if err := writer.Write([]string{
			strconv.FormatInt(r.ProposalID, 10),
			r.Vendor.Label(),
			r.Facts.TotalPrice.String(),
			r.Facts.DeliveryDays.String(),
			r.Facts.WarrantyYears.String(),
			strconv.Itoa(r.BaseScore),
			deductionPoints(r.Deductions),
			strconv.Itoa(r.Score),
			string(r.Recommendation),
			r.Summary,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteProposals writes the stored proposals of an RFP in ranking order.
func WriteProposals(w io.Writer, proposals []store.StoredProposal, opts Options) error {
	ranked := RankStored(proposals)

	if opts.Format == JSONFormat {
		return writeJSON(w, ranked)
	}

	paint := newPalette(opts.UseColors)
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Rank", "ID", "Vendor", "Received", "Score", "Recommendation", "Evaluated"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	data := make([][]string, 0, len(ranked))
	for i, p := range ranked {
		score, recommendation, evaluated := "-", "-", "-"
		if p.Scored() {
			score = paint.score(*p.Score)
			recommendation = paint.recommendation(p.Recommendation)
		}
		if p.EvaluatedAt != nil {
			evaluated = p.EvaluatedAt.UTC().Format(timeLayout)
		}
		data = append(data, []string{
			strconv.Itoa(i + 1),
			strconv.FormatInt(p.ID, 10),
			p.Vendor.Label(),
			p.CreatedAt.UTC().Format(timeLayout),
			score,
			recommendation,
			evaluated,
		})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// WriteRFPs lists stored RFPs.
func WriteRFPs(w io.Writer, rfps []rfp.RFP, opts Options) error {
	if opts.Format == JSONFormat {
		return writeJSON(w, rfps)
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"ID", "Title", "Status", "Items", "Budget", "Created"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	data := make([][]string, 0, len(rfps))
	for _, r := range rfps {
		data = append(data, []string{
			strconv.FormatInt(r.ID, 10),
			r.Title,
			string(r.Status),
			strconv.Itoa(len(r.Requirements.Items)),
			r.Requirements.Budget.String(),
			r.CreatedAt.UTC().Format(timeLayout),
		})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("error encoding JSON output: %w", err)
	}
	return nil
}

func deductionPoints(deductions []rfp.Deduction) string {
	if len(deductions) == 0 {
		return "0"
	}
	total := 0
	for _, d := range deductions {
		total += d.Points
	}
	return "-" + strconv.Itoa(total)
}

// truncate collapses whitespace and cuts s to limit terminal cells.
func truncate(s string, limit int) string {
	return runewidth.Truncate(strings.Join(strings.Fields(s), " "), limit, "...")
}

type palette struct {
	red, green, yellow func(...any) string
}

func newPalette(useColors bool) palette {
	if !useColors {
		return palette{red: fmt.Sprint, green: fmt.Sprint, yellow: fmt.Sprint}
	}
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	// callers decide; the global NoColor switch follows stdout only
	for _, c := range []*color.Color{red, green, yellow} {
		c.EnableColor()
	}
	return palette{red: red.SprintFunc(), green: green.SprintFunc(), yellow: yellow.SprintFunc()}
}

func (p palette) score(score int) string {
	switch {
	case score >= 75:
		return p.green(score)
	case score >= 50:
		return p.yellow(score)
	default:
		return p.red(score)
	}
}

func (p palette) recommendation(r rfp.Recommendation) string {
	switch r {
	case rfp.Accept:
		return p.green(string(r))
	case rfp.Consider:
		return p.yellow(string(r))
	case rfp.Reject:
		return p.red(string(r))
	default:
		return string(r)
	}
}
