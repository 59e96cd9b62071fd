package manager

import (
	"FlowTagger/internal/config"
	"FlowTagger/internal/engine/aggregator"
	"FlowTagger/internal/engine/protocol"
	"FlowTagger/internal/engine/tagger"
	"FlowTagger/internal/factory"
	"FlowTagger/internal/lookup"
	"FlowTagger/internal/metrics"
	"FlowTagger/internal/model"
	"FlowTagger/internal/report" // also registers the optional report sinks
	"FlowTagger/internal/source"
	"FlowTagger/pkg/flowlog"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"
)

// State is a stage of a run.
type State int

const (
	StateInit State = iota
	StateLoadLookup
	StateParseAndAggregate
	StateWriteReport
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateLoadLookup:
		return "LoadLookup"
	case StateParseAndAggregate:
		return "ParseAndAggregate"
	case StateWriteReport:
		return "WriteReport"
	case StateDone:
		return "Done"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Manager runs the tagging pipeline once per call to Run.
type Manager struct {
	cfg      *config.Config
	store    *source.Store
	report   *report.CSVWriter
	sinks    []model.Writer
	sinksSet bool
	metrics  *metrics.Handler
	state    State
	now      func() time.Time
}

// Option customizes a Manager.
type Option func(*Manager)

// WithStore replaces the store used for inputs and the CSV report.
func WithStore(store *source.Store) Option {
	return func(m *Manager) { m.store = store }
}

// WithSinks replaces the sinks built from the configuration.
func WithSinks(sinks ...model.Writer) Option {
	return func(m *Manager) {
		m.sinks = sinks
		m.sinksSet = true
	}
}

// WithClock sets the clock used to stamp reports.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a new Manager.
func NewManager(cfg *config.Config, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	m := &Manager{
		cfg:   cfg,
		state: StateInit,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.store == nil {
		m.store = source.New(cfg.AWS)
	}
	if !m.sinksSet {
		sinks, err := factory.Create(cfg.Sinks, m.store)
		if err != nil {
			return nil, err
		}
		m.sinks = sinks
	}
	m.report = report.NewCSVWriter(m.store, cfg.Output.Report)
	return m, nil
}

// State returns the stage the manager is in.
func (m *Manager) State() State {
	return m.state
}

func (m *Manager) setState(s State) {
	klog.Infof("Pipeline state: %s -> %s", m.state, s)
	m.state = s
}

// Run executes one pass: load the lookup table, tag and count every flow record,
// then write the report. Per-line problems are logged and counted; any error
// returned is fatal for the run.
//
// The metrics textfile, when configured, is written after every run, failed or not.
func (m *Manager) Run(ctx context.Context) (*model.Report, error) {
	started := m.now()
	// fresh counters for every run
	m.metrics = metrics.New()

	r, err := m.run(ctx)
	m.metrics.ObserveRun(started, m.now(), err == nil)
	m.writeMetrics()
	if err != nil {
		m.setState(StateFailed)
		return nil, err
	}
	m.setState(StateDone)
	return r, nil
}

func (m *Manager) writeMetrics() {
	path := m.cfg.Output.MetricsFile
	if path == "" {
		return
	}
	if err := m.metrics.WriteTextfile(path); err != nil {
		klog.Errorf("Failed to write metrics file '%s': %v", path, err)
	}
}

func (m *Manager) run(ctx context.Context) (*model.Report, error) {
	m.setState(StateLoadLookup)
	index, lookupStats, err := m.loadLookup(ctx)
	if err != nil {
		return nil, err
	}
	flows, err := m.store.Open(ctx, m.cfg.Input.FlowLogs)
	if err != nil {
		return nil, fmt.Errorf("failed to open flow logs: %w", err)
	}
	defer flows.Close()

	m.setState(StateParseAndAggregate)
	agg := aggregator.New()
	readerStats, err := m.parseAndAggregate(ctx, flows, tagger.New(index), agg)
	if err != nil {
		return nil, err
	}

	tags, pairs := agg.Snapshot()
	r := &model.Report{
		RunID:              uuid.NewString(),
		GeneratedAt:        m.now(),
		LookupSource:       m.cfg.Input.Lookup,
		FlowSource:         m.cfg.Input.FlowLogs,
		TagCounts:          tags,
		PortProtocolCounts: pairs,
		Stats: model.RunStats{
			LookupRowsLoaded:     lookupStats.Loaded,
			LookupRowsSkipped:    lookupStats.Skipped,
			LookupRowsOverridden: lookupStats.Overridden,
			LinesRead:            readerStats.LinesRead,
			BlankLines:           readerStats.BlankLines,
			LinesSkipped:         readerStats.LinesSkipped,
			RecordsParsed:        readerStats.RecordsParsed,
			Untagged:             agg.Untagged(),
			UnknownProtocol:      agg.UnknownProtocol(),
		},
	}
	klog.Infof("Processed %d records (%d lines read, %d skipped, %d untagged)",
		r.Stats.RecordsParsed, r.Stats.LinesRead, r.Stats.LinesSkipped, r.Stats.Untagged)

	m.setState(StateWriteReport)
	if err := m.writeReport(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (m *Manager) loadLookup(ctx context.Context) (*lookup.Index, lookup.Stats, error) {
	rc, err := m.store.Open(ctx, m.cfg.Input.Lookup)
	if err != nil {
		return nil, lookup.Stats{}, fmt.Errorf("failed to open lookup table: %w", err)
	}
	defer rc.Close()

	index, stats, err := lookup.Load(rc)
	if err != nil {
		return nil, stats, err
	}
	m.metrics.AddLookupRows("loaded", stats.Loaded)
	m.metrics.AddLookupRows("skipped", stats.Skipped)
	m.metrics.AddLookupRows("overridden", stats.Overridden)
	klog.Infof("Loaded %d lookup entries from '%s' (%d rows skipped, %d overridden)",
		index.Len(), m.cfg.Input.Lookup, stats.Skipped, stats.Overridden)
	return index, stats, nil
}

func (m *Manager) parseAndAggregate(ctx context.Context, r io.Reader, resolver *tagger.Resolver, agg *aggregator.Aggregator) (flowlog.Stats, error) {
	reader := flowlog.NewReader(r)
	reader.OnSkip(func(lineNo int, err error) {
		m.metrics.IncLines("skipped")
		m.metrics.IncLinesSkipped(skipReason(err))
	})

	for rec := range reader.Records() {
		if err := ctx.Err(); err != nil {
			return reader.Stats(), err
		}
		res := resolver.Resolve(rec)
		if !res.Matched {
			klog.V(2).Infof("No tag found for port %d, protocol %s", rec.DstPort, res.Protocol)
		}
		agg.Add(rec, res)
		m.metrics.IncLines("parsed")
		m.metrics.IncRecordsTagged(res.Tag)
	}
	if err := reader.Err(); err != nil {
		return reader.Stats(), fmt.Errorf("failed to read flow logs: %w", err)
	}

	stats := reader.Stats()
	if stats.BlankLines > 0 {
		m.metrics.AddLines("blank", stats.BlankLines)
	}
	if stats.LinesSkipped > 0 {
		klog.Warningf("Skipped %d malformed flow log lines", stats.LinesSkipped)
	}
	return stats, nil
}

// writeReport writes the CSV report, then every sink. The CSV report is required;
// sink failures are only fatal when the configuration asks for it.
func (m *Manager) writeReport(ctx context.Context, r *model.Report) error {
	if err := m.report.Write(ctx, r); err != nil {
		return err
	}
	klog.Infof("Results written to %s", m.report.Location())

	var errs []error
	for _, sink := range m.sinks {
		if err := sink.Write(ctx, r); err != nil {
			klog.Errorf("Error writing report to sink '%s': %v", sink.Name(), err)
			m.metrics.IncSinkErrors(sink.Name())
			errs = append(errs, fmt.Errorf("sink '%s': %w", sink.Name(), err))
		}
	}
	if m.cfg.Sinks.FailOnError {
		return errors.Join(errs...)
	}
	return nil
}

// Metrics returns the counters of the last run.
func (m *Manager) Metrics() *metrics.Handler {
	return m.metrics
}

// Close releases the sinks.
func (m *Manager) Close() error {
	var errs []error
	for _, sink := range m.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sink '%s': %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, protocol.ErrFieldCount):
		return "field_count"
	case errors.Is(err, protocol.ErrInvalidField):
		return "invalid_field"
	case errors.Is(err, protocol.ErrLineTooLong):
		return "line_too_long"
	default:
		return "other"
	}
}
