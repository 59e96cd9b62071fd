package flowlog

import (
	"FlowTagger/internal/engine/protocol"
	"FlowTagger/internal/model"
	"bufio"
	"bytes"
	"fmt"
	"io"
	"iter"
	"strings"

	"k8s.io/klog/v2"
)

const maxLineSize = 1 << 20

// Stats counts what the reader has seen so far.
type Stats struct {
	LinesRead     int
	BlankLines    int
	LinesSkipped  int
	RecordsParsed int
}

// SkipFunc is called for every line dropped by the reader.
type SkipFunc func(lineNo int, err error)

// lineSplitter splits lines like bufio.ScanLines, but drops lines that do not fit
// in the scanner buffer instead of failing the scan. A dropped line yields an empty
// token with tooLong set.
type lineSplitter struct {
	max        int
	discarding bool
	tooLong    bool
}

func (s *lineSplitter) split(data []byte, atEOF bool) (int, []byte, error) {
	i := bytes.IndexByte(data, '\n')
	if s.discarding {
		switch {
		case i >= 0:
			s.discarding = false
			s.tooLong = true
			return i + 1, []byte{}, nil
		case atEOF:
			s.discarding = false
			s.tooLong = true
			return len(data), []byte{}, nil
		default:
			return len(data), nil, nil
		}
	}
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i < 0 && !atEOF && len(data) >= s.max {
		s.discarding = true
		return len(data), nil, nil
	}
	return bufio.ScanLines(data, atEOF)
}

// Reader reads flow-log records from a text stream, one record per line.
type Reader struct {
	scanner  *bufio.Scanner
	splitter *lineSplitter
	stats    Stats
	onSkip   SkipFunc
	err      error
	used     bool
}

// NewReader creates a new flow-log reader over r.
func NewReader(r io.Reader) *Reader {
	splitter := &lineSplitter{max: maxLineSize}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	scanner.Split(splitter.split)
	return &Reader{scanner: scanner, splitter: splitter}
}

// OnSkip registers a callback for dropped lines, in addition to the warning log.
func (r *Reader) OnSkip(fn SkipFunc) {
	r.onSkip = fn
}

// Records returns the parsed records as a single-pass sequence. Malformed and
// oversized lines are logged and skipped, blank lines are skipped silently. The
// sequence can only be ranged over once; read errors are available from Err afterwards.
func (r *Reader) Records() iter.Seq[*model.FlowRecord] {
	return func(yield func(*model.FlowRecord) bool) {
		if r.used {
			return
		}
		r.used = true

		lineNo := 0
		for r.scanner.Scan() {
			lineNo++
			r.stats.LinesRead++
			if r.splitter.tooLong {
				r.splitter.tooLong = false
				r.skip(lineNo, fmt.Errorf("%w: more than %d bytes", protocol.ErrLineTooLong, maxLineSize))
				continue
			}
			line := r.scanner.Text()
			if strings.TrimSpace(line) == "" {
				r.stats.BlankLines++
				continue
			}

			rec, err := protocol.ParseLine(line)
			if err != nil {
				r.skip(lineNo, err)
				continue
			}
			r.stats.RecordsParsed++
			klog.V(2).Infof("Processing line %d: %s", lineNo, strings.TrimSpace(line))

			if !yield(rec) {
				return
			}
		}
		r.err = r.scanner.Err()
	}
}

func (r *Reader) skip(lineNo int, err error) {
	r.stats.LinesSkipped++
	klog.Warningf("Skipping flow log line %d: %v", lineNo, err)
	if r.onSkip != nil {
		r.onSkip(lineNo, err)
	}
}

// Err returns the first read error encountered, if any.
func (r *Reader) Err() error {
	return r.err
}

// Stats returns a copy of the reader's counters.
func (r *Reader) Stats() Stats {
	return r.stats
}
