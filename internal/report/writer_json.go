package report

import (
	"FlowTagger/internal/config"
	"FlowTagger/internal/factory"
	"FlowTagger/internal/model"
	"FlowTagger/internal/source"
	"context"
	"encoding/json"
	"fmt"
	"time"
)

func init() {
	factory.RegisterWriter("json", func(def config.WriterDef, store *source.Store) (model.Writer, error) {
		return NewJSONWriter(store, def.JSON.Path), nil
	})
}

// SummaryData is the JSON form of a report.
type SummaryData struct {
	RunID              string            `json:"run_id"`
	Timestamp          string            `json:"timestamp"`
	LookupSource       string            `json:"lookup_source"`
	FlowSource         string            `json:"flow_source"`
	TagCounts          []TagRow          `json:"tag_counts"`
	PortProtocolCounts []PortProtocolRow `json:"port_protocol_counts"`
	Stats              model.RunStats    `json:"stats"`
}

// JSONWriter writes a summary.json style document for a report to a local path
// or an S3 object.
type JSONWriter struct {
	store    *source.Store
	location string
}

// NewJSONWriter creates a new JSON summary writer.
func NewJSONWriter(store *source.Store, location string) model.Writer {
	return &JSONWriter{store: store, location: location}
}

// Name returns the writer type.
func (w *JSONWriter) Name() string {
	return "json"
}

// Summarize converts a report into its JSON form.
func Summarize(r *model.Report) SummaryData {
	return SummaryData{
		RunID:              r.RunID,
		Timestamp:          r.GeneratedAt.UTC().Format(time.RFC3339),
		LookupSource:       r.LookupSource,
		FlowSource:         r.FlowSource,
		TagCounts:          SortedTags(r.TagCounts),
		PortProtocolCounts: SortedPortProtocols(r.PortProtocolCounts),
		Stats:              r.Stats,
	}
}

// Write encodes the summary to the configured location. Nothing is published if
// encoding fails.
func (w *JSONWriter) Write(ctx context.Context, r *model.Report) error {
	out, err := w.store.Create(ctx, w.location)
	if err != nil {
		return fmt.Errorf("failed to create summary: %w", err)
	}

	jsonEncoder := json.NewEncoder(out)
	jsonEncoder.SetIndent("", "  ")
	if err := jsonEncoder.Encode(Summarize(r)); err != nil {
		out.Abort()
		return fmt.Errorf("failed to encode summary to json: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to write summary '%s': %w", w.location, err)
	}
	return nil
}

// Close is a no-op.
func (w *JSONWriter) Close() error {
	return nil
}
