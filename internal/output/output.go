// Package output renders command results in the selected output format.
//
// Text is the default, human mode: results are printed inline by the
// ui package and Emit is a no-op. The structured modes (json, yaml,
// table) print exactly one machine-readable document per command, with
// progress chatter suppressed.
package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/gpulab/gpulab/internal/fault"
)

// Format selects how results are rendered.
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatTable Format = "table"
)

// ParseFormat validates an --output flag value.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatText, FormatJSON, FormatYAML, FormatTable:
		return Format(s), nil
	case "":
		return FormatText, nil
	default:
		return "", fault.Validationf("unknown output format %q (want text, json, yaml or table)", s)
	}
}

// Table is the tabular rendering of a result: headers plus rows,
// already stringified by the caller.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Printer writes results in one format.
type Printer struct {
	format Format
	w      io.Writer
}

// NewPrinter builds a Printer for the given format.
func NewPrinter(format Format, w io.Writer) *Printer {
	return &Printer{format: format, w: w}
}

// Format returns the configured format.
func (p *Printer) Format() Format { return p.format }

// Structured reports whether a machine-readable format is selected, in
// which case progress output must stay quiet.
func (p *Printer) Structured() bool { return p.format != FormatText }

// Emit writes data in the configured structured format. data is
// serialized for json/yaml; t supplies the table rendering. In text
// mode Emit does nothing — text results are printed inline as the
// command progresses.
func (p *Printer) Emit(data any, t *Table) error {
	switch p.format {
	case FormatJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		out, err := yaml.Marshal(data)
		if err != nil {
			return err
		}
		_, err = p.w.Write(out)
		return err
	case FormatTable:
		return p.emitTable(t)
	default:
		return nil
	}
}

var (
	tableBorderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	tableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func (p *Printer) emitTable(t *Table) error {
	if t == nil || len(t.Rows) == 0 {
		_, err := fmt.Fprintln(p.w, "(no data)")
		return err
	}
	tbl := lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(tableBorderStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == lgtable.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		}).
		Headers(t.Headers...).
		Rows(t.Rows...)
	_, err := fmt.Fprintln(p.w, tbl.Render())
	return err
}
