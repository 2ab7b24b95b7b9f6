package controller

import (
	"bytes"
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	m "hydra.dev/pkg/hydra/internal/model"
)

var stateColors = map[m.CertificationState]lipgloss.Color{
	m.Certified:     lipgloss.Color("2"),
	m.Violated:      lipgloss.Color("1"),
	m.Indeterminate: lipgloss.Color("3"),
	m.Pending:       lipgloss.Color("8"),
}

// SimpleUI implements UI using cobra Command's output writer.
type SimpleUI struct {
	cmd         *cobra.Command
	color       bool
	diagnostics bool
}

// NewUI creates the console UI. Colors are used only on a terminal.
func NewUI(cmd *cobra.Command, color bool) UI {
	return &SimpleUI{cmd: cmd, color: color}
}

// NewSimpleUI creates a SimpleUI without colors.
func NewSimpleUI(cmd *cobra.Command) *SimpleUI {
	return &SimpleUI{cmd: cmd}
}

// Start initializes the UI.
func (s *SimpleUI) Start(ctx context.Context, options ...StartOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cfg := &StartConfig{}
	for _, opt := range options {
		opt(cfg)
	}

	s.diagnostics = cfg.diagnostics

	return nil
}

// Close finalizes the UI.
func (s *SimpleUI) Close(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		return
	}
}

// DisplayRunInfo announces the batch about to be certified.
func (s *SimpleUI) DisplayRunInfo(ctx context.Context, runID string, modules int, workers int) {
	if err := ctx.Err(); err != nil {
		return
	}

	s.printf("Certifying %d module(s) with %d worker(s) (run %s)\n", modules, workers, runID)
}

// DisplayModuleResult prints a one-line verdict for a module.
func (s *SimpleUI) DisplayModuleResult(ctx context.Context, result m.ModuleResult) {
	if err := ctx.Err(); err != nil {
		return
	}

	s.printf("%-10s %s (%d violation(s), confidence %.2f)\n",
		s.state(result.Certification), result.ModuleID, len(result.Violations), result.Confidence)
}

// DisplayBatchResult prints the module table, the violations and the summary.
func (s *SimpleUI) DisplayBatchResult(ctx context.Context, result m.BatchResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.printf("\n%s", renderModuleTable(result))

	for _, mod := range result.Modules {
		for _, v := range mod.Violations {
			s.printf("%s %s [%s, confidence %.2f] %s: %s\n",
				v.Kind, v.Function, v.Severity, v.Confidence, locationOrUnknown(v.Location), v.Message)
		}
	}

	if s.diagnostics {
		for _, mod := range result.Modules {
			for _, d := range mod.Diagnostics {
				s.printf("diagnostic %s %s %s: %s\n", d.Kind, d.Module, d.Function, d.Message)
			}
		}
	}

	sum := result.Summary
	s.printf("\nCertified %d/%d module(s) (%.1f%%), %d violated, %d indeterminate\n",
		sum.CertifiedModules, sum.TotalModules, sum.CertificationRate*100, sum.ViolatedModules, sum.IndeterminateModules)
	s.printf("Violations: %d total, %d critical, %d below confidence threshold\n",
		sum.TotalViolations, sum.CriticalViolations, sum.LowConfidenceViolations)

	if sum.DecompilerCalls > 0 {
		s.printf("Decompiler: %d call(s), $%.2f spent\n", sum.DecompilerCalls, sum.SpentUSD)
	}

	return nil
}

// DisplayModules lists the modules of a batch without analyzing them.
func (s *SimpleUI) DisplayModules(ctx context.Context, modules []*m.Module) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Module", "Origin", "Functions", "Externally Visible", "Without Body"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
	})

	totalFunctions := 0

	for _, mod := range modules {
		visible, bodyless := 0, 0

		for _, fn := range mod.Functions {
			if fn.ExternallyVisible() {
				visible++
			}

			if !fn.HasBody() {
				bodyless++
			}
		}

		totalFunctions += len(mod.Functions)

		table.Append([]string{
			string(mod.ID),
			string(mod.Origin),
			fmt.Sprintf("%d", len(mod.Functions)),
			fmt.Sprintf("%d", visible),
			fmt.Sprintf("%d", bodyless),
		})
	}

	table.SetFooter([]string{
		fmt.Sprintf("Total Modules %d", len(modules)),
		"",
		fmt.Sprintf("%d", totalFunctions),
		"",
		"",
	})

	table.Render()

	s.printf("%s", tableBuffer.String())

	return nil
}

func renderModuleTable(result m.BatchResult) string {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Module", "State", "Path", "Violations", "Confidence"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_CENTER,
		tablewriter.ALIGN_RIGHT,
	})

	for _, mod := range result.Modules {
		table.Append([]string{
			string(mod.ModuleID),
			string(mod.Certification),
			string(mod.Path),
			fmt.Sprintf("%d", len(mod.Violations)),
			fmt.Sprintf("%.2f", mod.Confidence),
		})
	}

	table.SetFooter([]string{
		fmt.Sprintf("Total Modules %d", result.Summary.TotalModules),
		fmt.Sprintf("%d certified", result.Summary.CertifiedModules),
		"",
		fmt.Sprintf("%d", result.Summary.TotalViolations),
		"",
	})

	table.Render()

	return tableBuffer.String()
}

func (s *SimpleUI) state(state m.CertificationState) string {
	label := string(state)
	if !s.color {
		return label
	}

	return lipgloss.NewStyle().Bold(true).Foreground(stateColors[state]).Render(label)
}

func locationOrUnknown(loc m.Location) string {
	if loc.File == "" && loc.Line == 0 {
		return "unknown location"
	}

	return loc.String()
}

func (s *SimpleUI) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.cmd.OutOrStdout(), format, args...)
}
