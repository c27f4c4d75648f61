package views

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/vetviz-cli/internal/aggregate"
)

// Format selects an output encoding.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

// ParseFormat accepts markdown|md|json|yaml|yml.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("invalid format %q (use markdown, json or yaml)", s)
}

// Write encodes v in the given format.
func (v *Views) Write(w io.Writer, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		_, err := io.WriteString(w, v.Markdown())
		return err
	}
}

// maxListed caps the entries printed per Markdown section.
const maxListed = 15

// Markdown renders a compact report of every view.
func (v *Views) Markdown() string {
	var b strings.Builder
	b.WriteString("[RUN]\n")
	b.WriteString(fmt.Sprintf("Run: %s\n", v.RunID))
	b.WriteString(fmt.Sprintf("Generated: %s\n", v.GeneratedAt.Format("2006-01-02 15:04:05Z07:00")))
	if v.Source != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", v.Source))
	}
	b.WriteString(fmt.Sprintf("Rows: %d (dated %d, undated %d)\n", v.Total, v.Dated, v.Undated))
	b.WriteString(fmt.Sprintf("Species: %s\n", v.Options.Species))

	if a := v.Ages; a != nil {
		b.WriteString("\n[LIFE STAGES]\n")
		b.WriteString(fmt.Sprintf("Column: %s; classified %d, unclassified %d, missing %d",
			safeName(a.Column), a.Report.Classified, a.Report.UnclassifiedRows(), a.Report.Missing))
		if a.Report.PassThrough > 0 {
			b.WriteString(fmt.Sprintf(", other species %d", a.Report.PassThrough))
		}
		b.WriteString("\n")
		for _, s := range a.Report.ByCatalog() {
			b.WriteString(fmt.Sprintf("- %s %s: %d\n", s.Species, s.Stage, s.Count))
		}
		if len(a.Report.Unclassified) > 0 {
			b.WriteString("Unclassified: ")
			for i, u := range a.Report.Unclassified {
				if i == maxListed {
					b.WriteString(fmt.Sprintf(", +%d more", len(a.Report.Unclassified)-maxListed))
					break
				}
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(fmt.Sprintf("%s(%d)", safeVal(u.Token), u.Count))
			}
			b.WriteString("\n")
		}
	}

	if v.Bar != nil {
		b.WriteString("\n[BAR]\n")
		writeFrequency(&b, v.Bar, v.Bar.SortedByCount())
	}
	if h := v.Heatmap; h != nil {
		b.WriteString("\n[HEATMAP]\n")
		b.WriteString(fmt.Sprintf("%s x %s (skipped %d)\n", safeName(h.CrossTab.ColumnA), safeName(h.CrossTab.ColumnB), h.CrossTab.Skipped))
		for i, p := range h.Tiles {
			if i == maxListed {
				b.WriteString(fmt.Sprintf("- ... %d more pairs\n", len(h.Tiles)-maxListed))
				break
			}
			b.WriteString(fmt.Sprintf("- %s / %s: %d\n", safeVal(p.A), safeVal(p.B), p.Count))
		}
	}
	if v.Pie != nil {
		b.WriteString("\n[PIE]\n")
		// Slices keep first-appearance order.
		writeFrequency(&b, v.Pie, v.Pie.Entries)
	}
	if tl := v.Timeline; tl != nil {
		b.WriteString("\n[TIMELINE]\n")
		b.WriteString(fmt.Sprintf("Column: %s; %d months, %d days, excluded %d\n", safeName(tl.Column), len(tl.Bins), len(tl.Daily), tl.Excluded))
		if len(tl.Bins) > 0 {
			b.WriteString("| month | start | end | count |\n| --- | --- | --- | --- |\n")
			for _, bin := range tl.Bins {
				b.WriteString(fmt.Sprintf("| %s | %s | %s | %d |\n",
					bin.Start.Format("2006-01"), bin.Start.Format("2006-01-02"), bin.End.Format("2006-01-02"), bin.Count))
			}
		}
	}
	if g := v.GIS; g != nil {
		b.WriteString("\n[GIS]\n")
		b.WriteString(fmt.Sprintf("Mode: %s", g.Mode))
		if g.State != "" {
			b.WriteString(fmt.Sprintf("; state %s", g.State))
		}
		b.WriteString(fmt.Sprintf("; mapped %d, geocoded %d, unmapped %d\n", g.Hits, g.Geocoded, g.Unmapped))
		if len(g.Misses) > 0 {
			b.WriteString("Unmapped: ")
			for i, m := range g.Misses {
				if i == maxListed {
					b.WriteString(fmt.Sprintf(", +%d more", len(g.Misses)-maxListed))
					break
				}
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(fmt.Sprintf("%s(%d)", safeVal(m.Name), m.Count))
			}
			b.WriteString("\n")
		}
	}

	var notes []string
	if g := v.GIS; g != nil {
		for _, d := range g.Duplicates {
			notes = append(notes, fmt.Sprintf("duplicate lookup key %q at row %d overrides an earlier entry", d.Name, d.Row+1))
		}
	}
	for _, e := range v.Errors {
		notes = append(notes, fmt.Sprintf("%s view skipped: %s", e.View, e.Message))
	}
	if len(notes) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, n := range notes {
			b.WriteString("- ")
			b.WriteString(n)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func writeFrequency(b *strings.Builder, f *aggregate.Frequency, entries []aggregate.Count) {
	b.WriteString(fmt.Sprintf("Column: %s; %d values, %d empty\n", safeName(f.Column), len(f.Entries), f.Nulls))
	for i, e := range entries {
		if i == maxListed {
			b.WriteString(fmt.Sprintf("- ... %d more values\n", len(entries)-maxListed))
			break
		}
		b.WriteString(fmt.Sprintf("- %s: %d\n", safeVal(e.Value), e.Count))
	}
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
