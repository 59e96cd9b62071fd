package report

import (
	"FlowTagger/internal/model"
	"FlowTagger/internal/source"
	"bufio"
	"cmp"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
)

// Section headers of the CSV report.
const (
	TagSectionHeader          = "Tag Counts:"
	PortProtocolSectionHeader = "Port/Protocol Combination Counts:"
)

// TagRow is one line of the tag section.
type TagRow struct {
	Tag   string `json:"tag"`
	Count uint64 `json:"count"`
}

// PortProtocolRow is one line of the port/protocol section.
type PortProtocolRow struct {
	DstPort  uint16 `json:"port"`
	Protocol string `json:"protocol"`
	Count    uint64 `json:"count"`
}

// SortedTags orders tags by descending count, then by name.
func SortedTags(counts model.TagCounts) []TagRow {
	rows := make([]TagRow, 0, len(counts))
	for tag, n := range counts {
		rows = append(rows, TagRow{Tag: tag, Count: n})
	}
	slices.SortFunc(rows, func(a, b TagRow) int {
		return cmp.Or(cmp.Compare(b.Count, a.Count), strings.Compare(a.Tag, b.Tag))
	})
	return rows
}

// SortedPortProtocols orders pairs by port, then by protocol name.
func SortedPortProtocols(counts model.PortProtocolCounts) []PortProtocolRow {
	rows := make([]PortProtocolRow, 0, len(counts))
	for k, n := range counts {
		rows = append(rows, PortProtocolRow{DstPort: k.DstPort, Protocol: k.Protocol, Count: n})
	}
	slices.SortFunc(rows, func(a, b PortProtocolRow) int {
		return cmp.Or(cmp.Compare(a.DstPort, b.DstPort), strings.Compare(a.Protocol, b.Protocol))
	})
	return rows
}

// Render writes the two-section CSV report to w.
func Render(w io.Writer, r *model.Report) error {
	bw := bufio.NewWriter(w)
	cw := csv.NewWriter(bw)

	cw.Write([]string{TagSectionHeader})
	cw.Write([]string{"Tag", "Count"})
	for _, row := range SortedTags(r.TagCounts) {
		cw.Write([]string{row.Tag, strconv.FormatUint(row.Count, 10)})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to write tag counts: %w", err)
	}

	// blank separator line between the sections
	if _, err := bw.WriteString("\n"); err != nil {
		return err
	}

	cw.Write([]string{PortProtocolSectionHeader})
	cw.Write([]string{"Port", "Protocol", "Count"})
	for _, row := range SortedPortProtocols(r.PortProtocolCounts) {
		cw.Write([]string{strconv.Itoa(int(row.DstPort)), row.Protocol, strconv.FormatUint(row.Count, 10)})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to write port/protocol counts: %w", err)
	}
	return bw.Flush()
}

// CSVWriter writes the report to a local path or an S3 object.
// It implements the model.Writer interface.
type CSVWriter struct {
	store    *source.Store
	location string
}

// NewCSVWriter creates a new CSV report writer.
func NewCSVWriter(store *source.Store, location string) *CSVWriter {
	return &CSVWriter{store: store, location: location}
}

// Name returns the writer type.
func (w *CSVWriter) Name() string {
	return "csv"
}

// Location returns where the report is written.
func (w *CSVWriter) Location() string {
	return w.location
}

// Write renders the report and stores it at the configured location.
func (w *CSVWriter) Write(ctx context.Context, r *model.Report) error {
	out, err := w.store.Create(ctx, w.location)
	if err != nil {
		return err
	}
	if err := Render(out, r); err != nil {
		out.Abort()
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to write report '%s': %w", w.location, err)
	}
	return nil
}

// Close is a no-op; each Write opens and closes its own output.
func (w *CSVWriter) Close() error {
	return nil
}
