// Package report renders build results and plans for the terminal.
package report

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/opencontainers/go-digest"
	"go.trai.ch/strata/internal/core/domain"
	"go.trai.ch/strata/internal/ui/output"
	"go.trai.ch/strata/internal/ui/style"
)

const shortDigestLen = 12

type printer struct {
	out *termenv.Output
}

func newPrinter(w io.Writer) printer {
	return printer{out: output.New(w)}
}

func (p printer) paint(s string, c lipgloss.Color) termenv.Style {
	return p.out.String(s).Foreground(p.out.Color(string(c)))
}

// Build writes one line per step of res followed by the final fingerprint.
func Build(w io.Writer, res *domain.BuildResult) {
	p := newPrinter(w)

	_, _ = fmt.Fprintf(p.out, "%s %s\n", p.paint(res.Recipe, style.Accent).Bold(), p.paint("build "+res.ID, style.Muted))

	total := len(res.Steps)
	for _, s := range res.Steps {
		icon, color := statusIcon(s)
		line := fmt.Sprintf("  %s [%d/%d] %s", p.paint(icon, color), s.Index+1, total, s.Instruction)
		if s.Fingerprint != "" {
			line += "  " + p.paint(Short(s.Fingerprint), style.Muted).String()
		}
		if s.Cached {
			line += " " + p.paint("cached", style.Yellow).String()
		}
		_, _ = fmt.Fprintln(p.out, line)
	}

	if res.Final != nil && !res.Final.IsRoot() {
		_, _ = fmt.Fprintf(p.out, "  final %s (%d executed)\n", res.Final.Fingerprint, res.Executions)
	}
}

// Plan writes the fingerprint chain of a recipe and whether each step is cached.
func Plan(w io.Writer, entries []domain.PlanEntry) {
	p := newPrinter(w)
	for _, e := range entries {
		state := p.paint("miss", style.Muted)
		if e.Cached {
			state = p.paint("cached", style.Yellow)
		}
		_, _ = fmt.Fprintf(p.out, "[%d/%d] %s  %s %s\n", e.Index+1, len(entries), e.Instruction, Short(e.Fingerprint), state)
	}
}

// Short abbreviates a fingerprint for display.
func Short(d digest.Digest) string {
	if d.Validate() != nil {
		return d.String()
	}
	enc := d.Encoded()
	if len(enc) > shortDigestLen {
		enc = enc[:shortDigestLen]
	}
	return enc
}

func statusIcon(s domain.StepRecord) (string, lipgloss.Color) {
	switch {
	case s.Status == domain.StepStatusFailed:
		return style.Cross, style.Red
	case s.Status == domain.StepStatusCommitted && s.Cached:
		return style.Tilde, style.Yellow
	case s.Status == domain.StepStatusCommitted:
		return style.Check, style.Green
	default:
		return style.Circle, style.Muted
	}
}
