package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/tracertea/certidao/internal/batch"
	"github.com/tracertea/certidao/internal/registry"
	"github.com/tracertea/certidao/internal/report"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

// Display prints per-identifier progress and the final summary.
type Display struct {
	out      io.Writer
	color    bool
	registry batch.Registry
	start    time.Time
	done     int
}

// NewDisplay writes to out. Colors are enabled only when out is a terminal.
func NewDisplay(out io.Writer, reg batch.Registry) *Display {
	color := false
	if f, ok := out.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Display{out: out, color: color, registry: reg, start: time.Now()}
}

func (d *Display) paint(color, s string) string {
	if !d.color {
		return s
	}
	return color + s + colorReset
}

// Header announces the batch.
func (d *Display) Header(total, skipped int) {
	fmt.Fprintf(d.out, "%s %d CNPJ(s) para processar", d.paint(colorCyan, "==>"), total)
	if skipped > 0 {
		fmt.Fprintf(d.out, " (%d já emitido(s), ignorado(s))", skipped)
	}
	fmt.Fprintln(d.out)
}

// ItemDone implements batch.Observer.
func (d *Display) ItemDone(outcome batch.ItemOutcome) {
	d.done++

	var status string
	switch outcome.Status {
	case batch.StatusSuccess:
		status = d.paint(colorGreen, "OK   ")
	case batch.StatusFailure:
		status = d.paint(colorYellow, "FALHA")
	default:
		status = d.paint(colorRed, "ERRO ")
	}

	label := string(outcome.Identifier)
	if name := registry.Name(d.registry, outcome.Identifier); name != label {
		label += " - " + name
	}
	line := fmt.Sprintf("[%d/%d] %s %s (%s)",
		outcome.Index, outcome.Total, status, label,
		outcome.Duration.Round(100*time.Millisecond))
	if outcome.Err != nil {
		line += " " + d.paint(colorRed, outcome.Err.Error())
	}
	if eta := d.eta(outcome.Total); eta != "" {
		line += " | ETA " + d.paint(colorBlue, eta)
	}
	fmt.Fprintln(d.out, line)
}

func (d *Display) eta(total int) string {
	if d.done == 0 || d.done >= total {
		return ""
	}
	perItem := time.Since(d.start) / time.Duration(d.done)
	return (perItem * time.Duration(total-d.done)).Round(time.Second).String()
}

// Summary prints the final counts.
func (d *Display) Summary(s *report.Summary, reportPath string) {
	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(d.paint(colorCyan, "Resumo da execução") + "\n")
	sb.WriteString(fmt.Sprintf("  Total:     %d\n", s.Total))
	sb.WriteString(fmt.Sprintf("  Sucessos:  %s\n", d.paint(colorGreen, fmt.Sprint(s.SuccessCount))))
	sb.WriteString(fmt.Sprintf("  Falhas:    %s", d.paint(colorRed, fmt.Sprint(s.FailureCount))))
	if s.FaultCount > 0 {
		sb.WriteString(fmt.Sprintf(" (%d erro(s) inesperado(s))", s.FaultCount))
	}
	sb.WriteString("\n")
	if s.Cancelled {
		sb.WriteString("  " + d.paint(colorYellow, "Execução interrompida antes do fim.") + "\n")
	}
	sb.WriteString(fmt.Sprintf("  Tempo:     %s (p50 %dms, p90 %dms)\n", s.ExecutionTime, s.Latency.P50, s.Latency.P90))
	if reportPath != "" {
		sb.WriteString(fmt.Sprintf("  Relatório: %s\n", reportPath))
	}
	fmt.Fprint(d.out, sb.String())
}

var _ batch.Observer = (*Display)(nil)
