package aggregator

import (
	"FlowTagger/internal/engine/protocol"
	"FlowTagger/internal/model"
	"maps"
)

// Aggregator keeps the two frequency tables of a run: records per tag and records per
// (destination port, protocol) pair. It belongs to a single run and is not safe for
// concurrent use.
type Aggregator struct {
	tags            model.TagCounts
	portProtocols   model.PortProtocolCounts
	total           uint64
	untagged        uint64
	unknownProtocol uint64
}

// New creates an empty aggregator.
func New() *Aggregator {
	return &Aggregator{
		tags:          make(model.TagCounts),
		portProtocols: make(model.PortProtocolCounts),
	}
}

// Add counts one tagged record in both tables.
func (a *Aggregator) Add(rec *model.FlowRecord, res model.Resolution) {
	a.tags[res.Tag]++
	a.portProtocols[model.PortProtocol{DstPort: rec.DstPort, Protocol: res.Protocol}]++
	a.total++
	if !res.Matched {
		a.untagged++
	}
	if res.Protocol == protocol.Unknown {
		a.unknownProtocol++
	}
}

// Total returns the number of records added since creation or the last Reset.
func (a *Aggregator) Total() uint64 {
	return a.total
}

// Untagged returns the number of records that had no lookup match.
func (a *Aggregator) Untagged() uint64 {
	return a.untagged
}

// UnknownProtocol returns the number of records whose protocol number is not in the name table.
func (a *Aggregator) UnknownProtocol() uint64 {
	return a.unknownProtocol
}

// Snapshot returns copies of both tables.
func (a *Aggregator) Snapshot() (model.TagCounts, model.PortProtocolCounts) {
	return maps.Clone(a.tags), maps.Clone(a.portProtocols)
}

// Reset clears all counts.
func (a *Aggregator) Reset() {
	a.tags = make(model.TagCounts)
	a.portProtocols = make(model.PortProtocolCounts)
	a.total = 0
	a.untagged = 0
	a.unknownProtocol = 0
}
