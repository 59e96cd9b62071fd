package lookup

import (
	"FlowTagger/internal/model"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"k8s.io/klog/v2"
)

// ErrInvalidRow is returned for lookup rows that fail validation.
var ErrInvalidRow = errors.New("invalid lookup row")

// byteOrderMark is written at the start of CSV files by some spreadsheet tools.
const byteOrderMark = "\ufeff"

// Stats describes how the rows of a lookup table were handled.
type Stats struct {
	Rows       int
	Loaded     int
	Skipped    int
	Overridden int
}

// Build indexes already validated entries. When two entries share a key the
// later one wins.
func Build(entries []model.LookupEntry) *Index {
	ix, _ := build(entries)
	return ix
}

func build(entries []model.LookupEntry) (*Index, int) {
	ix := &Index{tags: make(map[model.LookupKey]string, len(entries))}
	overridden := 0
	for _, e := range entries {
		e.Protocol = strings.ToLower(e.Protocol)
		key := e.Key()
		if prev, ok := ix.tags[key]; ok {
			overridden++
			if prev != e.Tag {
				klog.Warningf("Lookup entry %d/%s redefined: tag '%s' replaces '%s'", key.DstPort, key.Protocol, e.Tag, prev)
			}
		}
		ix.tags[key] = e.Tag
	}
	return ix, overridden
}

// ParseRow validates one raw lookup row of the form dstport, protocol, tag.
func ParseRow(row []string) (model.LookupEntry, error) {
	if len(row) != 3 {
		return model.LookupEntry{}, fmt.Errorf("%w: expected 3 columns, got %d", ErrInvalidRow, len(row))
	}
	portField := strings.TrimSpace(row[0])
	port, err := strconv.ParseUint(portField, 10, 16)
	if err != nil {
		return model.LookupEntry{}, fmt.Errorf("%w: dstport %q is not a port number", ErrInvalidRow, portField)
	}
	protocol := strings.ToLower(strings.TrimSpace(row[1]))
	if protocol == "" {
		return model.LookupEntry{}, fmt.Errorf("%w: empty protocol", ErrInvalidRow)
	}
	tag := strings.TrimSpace(row[2])
	if tag == "" {
		return model.LookupEntry{}, fmt.Errorf("%w: empty tag", ErrInvalidRow)
	}
	return model.LookupEntry{DstPort: uint16(port), Protocol: protocol, Tag: tag}, nil
}

// Load reads a CSV lookup table with the columns dstport, protocol, tag. The header
// row is optional. Invalid rows are logged and skipped; only an unreadable stream is
// an error.
func Load(r io.Reader) (*Index, Stats, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	var stats Stats
	var entries []model.LookupEntry
	first := true
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				stats.Rows++
				stats.Skipped++
				klog.Warningf("Skipping lookup row: %v", err)
				continue
			}
			return nil, stats, fmt.Errorf("failed to read lookup table: %w", err)
		}
		if isBlank(row) {
			continue
		}
		if first {
			first = false
			row[0] = strings.TrimPrefix(row[0], byteOrderMark)
			if isHeader(row) {
				continue
			}
		}

		stats.Rows++
		line, _ := reader.FieldPos(0)
		entry, err := ParseRow(row)
		if err != nil {
			stats.Skipped++
			klog.Warningf("Skipping lookup row at line %d: %v", line, err)
			continue
		}
		entries = append(entries, entry)
	}

	ix, overridden := build(entries)
	stats.Loaded = len(entries)
	stats.Overridden = overridden
	return ix, stats, nil
}

func isHeader(row []string) bool {
	return strings.EqualFold(strings.TrimSpace(row[0]), "dstport")
}

func isBlank(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
