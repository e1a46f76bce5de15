package command

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/joeycumines/testable/internal/scenario"
	"github.com/muesli/termenv"
)

// Reporter writes scenario reports, styled ("pretty") or as plain lines.
type Reporter struct {
	w     io.Writer
	plain bool

	pass   lipgloss.Style
	fail   lipgloss.Style
	detail lipgloss.Style
	dim    lipgloss.Style
}

// NewReporter creates a reporter. color is auto, always or never; auto
// styles only when w is a terminal.
func NewReporter(w io.Writer, format, color string) *Reporter {
	renderer := lipgloss.NewRenderer(w)
	switch color {
	case "always":
		renderer.SetColorProfile(termenv.ANSI256)
	case "never":
		renderer.SetColorProfile(termenv.Ascii)
	}
	return &Reporter{
		w:      w,
		plain:  format == "plain",
		pass:   renderer.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		fail:   renderer.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		detail: renderer.NewStyle().Foreground(lipgloss.Color("203")).PaddingLeft(6),
		dim:    renderer.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

// Scenario writes one report.
func (r *Reporter) Scenario(rep *scenario.Report) {
	if r.plain {
		r.plainScenario(rep)
		return
	}
	if rep.Passed() {
		_, _ = fmt.Fprintf(r.w, "%s %s %s\n", r.pass.Render("✓"), rep.Name, r.dim.Render(fmt.Sprintf("(%d steps)", len(rep.Steps))))
		return
	}
	_, _ = fmt.Fprintf(r.w, "%s %s %s\n", r.fail.Render("✗"), rep.Name, r.dim.Render(fmt.Sprintf("(%d steps)", len(rep.Steps))))
	for _, step := range rep.Steps {
		if !step.Failed() {
			continue
		}
		_, _ = fmt.Fprintf(r.w, "    step %d: %s\n", step.Index, step.Step)
		for _, e := range step.NewErrors {
			_, _ = fmt.Fprintln(r.w, r.detail.Render(e))
		}
	}
	if rep.Fatal != nil {
		_, _ = fmt.Fprintf(r.w, "    %s %v\n", r.fail.Render("fatal:"), rep.Fatal)
	}
}

func (r *Reporter) plainScenario(rep *scenario.Report) {
	status := "PASS"
	if !rep.Passed() {
		status = "FAIL"
	}
	_, _ = fmt.Fprintf(r.w, "%s %s\n", status, rep.Name)
	if rep.Passed() {
		return
	}
	for _, step := range rep.Steps {
		for _, e := range step.NewErrors {
			_, _ = fmt.Fprintf(r.w, "  step %d %s: %s\n", step.Index, step.Step, e)
		}
	}
	if rep.Fatal != nil {
		_, _ = fmt.Fprintf(r.w, "  fatal: %v\n", rep.Fatal)
	}
}

// Summary writes the totals.
func (r *Reporter) Summary(passed, failed int) {
	line := fmt.Sprintf("%d passed, %d failed", passed, failed)
	if r.plain {
		_, _ = fmt.Fprintln(r.w, line)
		return
	}
	style := r.pass
	if failed > 0 {
		style = r.fail
	}
	_, _ = fmt.Fprintf(r.w, "\n%s\n", style.Render(line))
}
