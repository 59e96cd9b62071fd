package model

import (
	"fmt"
	"time"
)

// UntaggedTag is the reserved tag for records with no lookup match.
const UntaggedTag = "Untagged"

// LookupEntry is a single validated row of the lookup table.
type LookupEntry struct {
	DstPort  uint16
	Protocol string // lowercase
	Tag      string
}

// LookupKey identifies a lookup entry.
type LookupKey struct {
	DstPort  uint16
	Protocol string
}

// Key returns the index key for the entry.
func (e LookupEntry) Key() LookupKey {
	return LookupKey{DstPort: e.DstPort, Protocol: e.Protocol}
}

// FlowRecord holds the fields of one flow-log line. Only DstPort and Protocol are
// interpreted; the remaining fields are carried as they appear in the log.
type FlowRecord struct {
	Version     string
	AccountID   string
	InterfaceID string
	SrcAddr     string
	DstAddr     string
	SrcPort     string
	DstPort     uint16
	Protocol    int
	Packets     string
	Bytes       string
	Start       string
	End         string
	Action      string
	LogStatus   string
}

// Resolution is the outcome of tagging one record.
type Resolution struct {
	Tag      string
	Protocol string // canonical protocol name used for the lookup
	Matched  bool
}

// PortProtocol is the key of the port/protocol combination counts.
type PortProtocol struct {
	DstPort  uint16
	Protocol string
}

func (pp PortProtocol) String() string {
	return fmt.Sprintf("%d/%s", pp.DstPort, pp.Protocol)
}

// TagCounts maps a tag to the number of records that resolved to it.
type TagCounts map[string]uint64

// PortProtocolCounts maps a (port, protocol) pair to the number of records seen for it.
type PortProtocolCounts map[PortProtocol]uint64

// Total returns the sum of all counts.
func (c TagCounts) Total() uint64 {
	var n uint64
	for _, v := range c {
		n += v
	}
	return n
}

// Total returns the sum of all counts.
func (c PortProtocolCounts) Total() uint64 {
	var n uint64
	for _, v := range c {
		n += v
	}
	return n
}

// RunStats holds the diagnostic counters of a run. They are never part of the count tables.
type RunStats struct {
	LookupRowsLoaded     int `json:"lookup_rows_loaded"`
	LookupRowsSkipped    int `json:"lookup_rows_skipped"`
	LookupRowsOverridden int `json:"lookup_rows_overridden"`

	LinesRead     int `json:"lines_read"`
	BlankLines    int `json:"blank_lines"`
	LinesSkipped  int `json:"lines_skipped"`
	RecordsParsed int `json:"records_parsed"`

	Untagged        uint64 `json:"untagged"`
	UnknownProtocol uint64 `json:"unknown_protocol"`
}

// Report is the finalized result of a run, handed to every writer.
type Report struct {
	RunID              string
	GeneratedAt        time.Time
	LookupSource       string
	FlowSource         string
	TagCounts          TagCounts
	PortProtocolCounts PortProtocolCounts
	Stats              RunStats
}
