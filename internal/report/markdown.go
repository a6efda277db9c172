package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/bannerscan/internal/model"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// markdownBannerWidth is the widest banner cell in the results table.
const markdownBannerWidth = 60

// markdownRow is the part of a result kept for the document.
// Raw banners are not retained, so memory stays proportional to the
// number of targets rather than the bytes captured.
type markdownRow struct {
	target   string
	protocol string
	kind     model.OutcomeKind
	detail   string
	banner   string
	digest   string
}

// MarkdownWriter outputs a GitHub Flavored Markdown summary document.
// Results are collected as they arrive and the document is written on
// Close: a summary table, a mermaid pie chart of outcomes, a per-protocol
// breakdown and the table of responsive targets.
type MarkdownWriter struct {
	baseWriter
	summary *Summary
	rows    []markdownRow
	now     func() time.Time
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
		summary:    NewSummary(),
		now:        time.Now,
	}
}

// Write records one result for the document.
func (w *MarkdownWriter) Write(result *model.ConnectionResult) error {
	w.summary.Add(result)

	banner := result.BannerView()
	w.rows = append(w.rows, markdownRow{
		target:   result.Target.String(),
		protocol: result.Protocol,
		kind:     result.Outcome.Kind,
		detail:   result.Outcome.Detail(),
		banner:   banner.FirstLine(),
		digest:   banner.Digest(),
	})
	return nil
}

// Close writes the document.
func (w *MarkdownWriter) Close() error {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md)
	w.writeSummary(md)
	w.writeProtocols(md)
	w.writeBanners(md)
	w.writeFailures(md)
	w.writeFooter(md)

	return md.Build()
}

// writeHeader writes the document title and scan information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown) {
	md.H1("Banner Scan Report")
	md.PlainText("")

	started := "-"
	if !w.summary.First.IsZero() {
		started = w.summary.First.UTC().Format("2006-01-02 15:04:05 MST")
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Generated", w.now().UTC().Format("2006-01-02 15:04:05 MST")},
			{"First Task Started", started},
			{"Targets", strconv.Itoa(w.summary.Total)},
			{"Responsive", strconv.Itoa(w.summary.Responsive())},
		},
	})
	md.PlainText("")
}

// writeSummary writes the outcome table, pie chart and alert.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown) {
	md.H2("Outcome Summary")
	md.PlainText("")

	rows := make([][]string, 0, len(model.AllOutcomeKinds())+1)
	for _, kind := range model.AllOutcomeKinds() {
		rows = append(rows, []string{StatusLabel(kind.String()), strconv.Itoa(w.summary.ByKind[kind])})
	}
	rows = append(rows, []string{"**Total**", "**" + strconv.Itoa(w.summary.Total) + "**"})

	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	if w.summary.Total > 0 {
		w.writePieChart(md)
	}

	switch {
	case w.summary.Total == 0:
		md.Note("No targets were scanned.")
	case w.summary.Responsive() == 0:
		md.Warningf("None of the %d target(s) returned a banner.", w.summary.Total)
	case w.summary.ByKind[model.OutcomeProbeDegraded] > 0:
		md.Importantf(
			"%d target(s) sent bytes that did not parse as the expected protocol.",
			w.summary.ByKind[model.OutcomeProbeDegraded],
		)
	default:
		md.Tip("Every responsive target returned a well-formed banner.")
	}
	md.PlainText("")
}

// writePieChart writes a mermaid pie chart of the outcome distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Outcome Distribution"),
		piechart.WithShowData(true),
	)

	for _, kind := range model.AllOutcomeKinds() {
		if n := w.summary.ByKind[kind]; n > 0 {
			chart.LabelAndIntValue(StatusLabel(kind.String()), uint64(n))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeProtocols writes the per-protocol breakdown.
func (w *MarkdownWriter) writeProtocols(md *markdown.Markdown) {
	md.H2("Protocols")
	md.PlainText("")

	names := w.summary.Protocols()
	if len(names) == 0 {
		md.PlainText("No results.")
		md.PlainText("")
		return
	}

	header := []string{"Protocol"}
	for _, kind := range model.AllOutcomeKinds() {
		header = append(header, StatusLabel(kind.String()))
	}

	rows := make([][]string, len(names))
	for i, name := range names {
		row := []string{DisplayName(name)}
		for _, kind := range model.AllOutcomeKinds() {
			row = append(row, strconv.Itoa(w.summary.ByProtocol[name][kind]))
		}
		rows[i] = row
	}

	md.Table(markdown.TableSet{Header: header, Rows: rows})
	md.PlainText("")
}

// writeBanners writes the table of targets that returned bytes.
func (w *MarkdownWriter) writeBanners(md *markdown.Markdown) {
	md.H2("Banners")
	md.PlainText("")

	var rows [][]string
	for _, r := range w.rows {
		if r.kind != model.OutcomeSuccess && r.kind != model.OutcomeProbeDegraded {
			continue
		}
		note := "-"
		if r.detail != "" {
			note = escapeCell(r.detail)
		}
		rows = append(rows, []string{
			"`" + r.target + "`",
			DisplayName(r.protocol),
			StatusLabel(r.kind.String()),
			escapeCell(truncateString(r.banner, markdownBannerWidth)),
			note,
			shortDigest(r.digest),
		})
	}

	if len(rows) == 0 {
		md.PlainText("No banners captured.")
		md.PlainText("")
		return
	}

	md.Table(markdown.TableSet{
		Header: []string{"Target", "Protocol", "Outcome", "Banner", "Note", "SHA3"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFailures lists failed targets grouped by detail, collapsed.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown) {
	byDetail := make(map[string][]string)
	var order []string
	for _, r := range w.rows {
		if r.kind != model.OutcomeConnectFailed && r.kind != model.OutcomeTimedOut {
			continue
		}
		if _, ok := byDetail[r.detail]; !ok {
			order = append(order, r.detail)
		}
		byDetail[r.detail] = append(byDetail[r.detail], r.target)
	}
	if len(order) == 0 {
		return
	}

	md.H2("Unreachable Targets")
	md.PlainText("")
	for _, detail := range order {
		targets := byDetail[detail]
		md.Details(fmt.Sprintf("%s (%d)", detail, len(targets)), strings.Join(targets, "\n"))
	}
	md.PlainText("")
}

// writeFooter writes the document footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [bannerscan](https://github.com/nao1215/bannerscan)*")
}

// escapeCell keeps table cells on one row.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\t", " ")
	return s
}

// shortDigest returns the first 12 hex characters of a digest.
func shortDigest(d string) string {
	if len(d) <= 12 {
		if d == "" {
			return "-"
		}
		return d
	}
	return "`" + d[:12] + "`"
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
