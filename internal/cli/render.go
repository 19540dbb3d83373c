package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ppiankov/biaslens/internal/bayes"
	"github.com/ppiankov/biaslens/internal/corpus"
	"github.com/ppiankov/biaslens/internal/model"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)

	classStyles = map[model.Class]lipgloss.Style{
		model.ClassLeft:   lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
		model.ClassCenter: lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true),
		model.ClassRight:  lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	}
)

// classLabel renders a class in its colour
func classLabel(c model.Class) string {
	style, ok := classStyles[c]
	if !ok {
		return dimStyle.Render(c.String())
	}
	return style.Render(c.String())
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderReport prints a classification report
func renderReport(w io.Writer, report *model.Report, showScale bool) {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", headingStyle.Render(truncate(report.Subject, 70)))
	if report.SourceURL != "" {
		fmt.Fprintf(&b, "%s\n", dimStyle.Render(report.SourceURL))
	}
	fmt.Fprintf(&b, "\nPredicted: %s   %s\n\n", classLabel(report.Predicted),
		dimStyle.Render(fmt.Sprintf("(%d tokens, chain %s)", report.Tokens, report.Chain)))

	shares := report.Scores.Shares()
	for _, c := range report.Scores.Ranked() {
		fmt.Fprintf(&b, "  %-8s %12.4f  %5.1f%%\n", c, report.Scores.Get(c), shares[c])
	}

	if showScale {
		s := report.Scale
		fmt.Fprintf(&b, "\nScale vs %s: centeredness %.4f, term weight %.4f", classLabel(s.Opposing), s.Centeredness, s.TermWeight)
		if s.Degenerate {
			fmt.Fprintf(&b, " %s", warnStyle.Render("(degenerate)"))
		}
		b.WriteString("\n")
	}

	if op := report.LLM; op != nil {
		agreement := okStyle.Render("agrees")
		if !op.Agrees {
			agreement = warnStyle.Render("disagrees")
		}
		fmt.Fprintf(&b, "\nLLM (%s/%s): %s, %s\n", op.Provider, op.Model, classLabel(op.Class), agreement)
		if op.Rationale != "" {
			fmt.Fprintf(&b, "  %s\n", dimStyle.Render(op.Rationale))
		}
	}

	fmt.Fprintln(w, boxStyle.Render(strings.TrimRight(b.String(), "\n")))
}

// renderHits prints re-ranked search results
func renderHits(w io.Writer, hits []model.RankedHit) {
	if len(hits) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No results."))
		return
	}
	for i, h := range hits {
		title := model.SubjectFromDocument(h.Document)
		fmt.Fprintf(w, "%2d. %s %s\n", i+1, classLabel(h.Predicted), headingStyle.Render(truncate(title, 80)))

		meta := []string{fmt.Sprintf("score %.3f (relevance %.3f)", h.Score, h.Relevance), "id " + h.Document.ID}
		if h.Document.Source != "" {
			meta = append(meta, h.Document.Source)
		}
		if h.Document.Bias.Valid() {
			meta = append(meta, "labeled "+h.Document.Bias.String())
		}
		fmt.Fprintf(w, "    %s\n", dimStyle.Render(strings.Join(meta, " · ")))
	}
}

// renderSummary prints per-class document counts
func renderSummary(w io.Writer, title string, sum corpus.Summary) {
	fmt.Fprintln(w, headingStyle.Render(title))
	for _, c := range model.Classes {
		fmt.Fprintf(w, "  %-8s %d\n", classLabel(c), sum.PerClass[c])
	}
	if sum.Unlabeled > 0 {
		fmt.Fprintf(w, "  %-8s %d\n", dimStyle.Render("none"), sum.Unlabeled)
	}
	fmt.Fprintf(w, "  %-8s %d\n", "total", sum.Total)
}

// renderEvaluation prints accuracy, per-class recall and the confusion matrix
func renderEvaluation(w io.Writer, split string, eval *bayes.Evaluation) {
	fmt.Fprintf(w, "%s %s\n", headingStyle.Render("Evaluation on"), split)
	fmt.Fprintf(w, "  accuracy %.4f (%d/%d)\n\n", eval.Accuracy, eval.Correct, eval.Total)

	fmt.Fprintf(w, "  %-8s", "actual")
	for _, c := range model.Classes {
		fmt.Fprintf(w, " %8s", c)
	}
	fmt.Fprintf(w, " %8s\n", "recall")
	for i, actual := range model.Classes {
		fmt.Fprintf(w, "  %-8s", actual)
		for j := range model.Classes {
			fmt.Fprintf(w, " %8d", eval.Confusion[i][j])
		}
		fmt.Fprintf(w, " %8.3f\n", eval.Recall(actual))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
