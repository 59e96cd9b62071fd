package report

import (
	"FlowTagger/internal/config"
	"FlowTagger/internal/factory"
	"FlowTagger/internal/model"
	"FlowTagger/internal/source"
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"k8s.io/klog/v2"
)

func init() {
	factory.RegisterWriter("nats", func(def config.WriterDef, _ *source.Store) (model.Writer, error) {
		return NewNATSWriter(def.NATS)
	})
}

// NATSWriter publishes each report to a NATS subject as a protobuf Struct.
type NATSWriter struct {
	nc      *nats.Conn
	subject string
}

// NewNATSWriter connects to NATS.
func NewNATSWriter(cfg config.NATSConfig) (model.Writer, error) {
	nc, err := nats.Connect(cfg.URL, nats.Name("flowtagger"))
	if err != nil {
		return nil, err
	}
	klog.Infof("Connected to NATS server at %s", cfg.URL)
	return &NATSWriter{nc: nc, subject: cfg.Subject}, nil
}

// Name returns the writer type.
func (w *NATSWriter) Name() string {
	return "nats"
}

// Write serializes the report and publishes it, waiting for the server to acknowledge the flush.
func (w *NATSWriter) Write(ctx context.Context, r *model.Report) error {
	data, err := EncodeProto(r)
	if err != nil {
		return err
	}

	msg := nats.NewMsg(w.subject)
	msg.Header.Set("Flowtagger-Run-Id", r.RunID)
	msg.Data = data
	if err := w.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish report: %w", err)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
	}
	return w.nc.FlushWithContext(ctx)
}

// Close drains and closes the NATS connection.
func (w *NATSWriter) Close() error {
	return w.nc.Drain()
}

// ReportStruct converts a report into a protobuf Struct.
func ReportStruct(r *model.Report) (*structpb.Struct, error) {
	tags := make([]any, 0, len(r.TagCounts))
	for _, row := range SortedTags(r.TagCounts) {
		tags = append(tags, map[string]any{"tag": row.Tag, "count": row.Count})
	}
	pairs := make([]any, 0, len(r.PortProtocolCounts))
	for _, row := range SortedPortProtocols(r.PortProtocolCounts) {
		pairs = append(pairs, map[string]any{
			"port":     uint32(row.DstPort),
			"protocol": row.Protocol,
			"count":    row.Count,
		})
	}
	return structpb.NewStruct(map[string]any{
		"run_id":               r.RunID,
		"timestamp":            r.GeneratedAt.UTC().Format(time.RFC3339),
		"lookup_source":        r.LookupSource,
		"flow_source":          r.FlowSource,
		"tag_counts":           tags,
		"port_protocol_counts": pairs,
		"stats": map[string]any{
			"records_parsed": r.Stats.RecordsParsed,
			"lines_skipped":  r.Stats.LinesSkipped,
			"untagged":       r.Stats.Untagged,
		},
	})
}

// EncodeProto returns the wire form of ReportStruct.
func EncodeProto(r *model.Report) ([]byte, error) {
	st, err := ReportStruct(r)
	if err != nil {
		return nil, fmt.Errorf("failed to build report struct: %w", err)
	}
	data, err := proto.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return data, nil
}
