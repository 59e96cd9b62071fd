package tagger

import (
	"FlowTagger/internal/engine/protocol"
	"FlowTagger/internal/lookup"
	"FlowTagger/internal/model"
)

// Resolver assigns a tag to each flow record using a lookup index.
type Resolver struct {
	index *lookup.Index
}

// New creates a resolver backed by index.
func New(index *lookup.Index) *Resolver {
	return &Resolver{index: index}
}

// Resolve returns the tag of a record. Every record gets exactly one tag;
// records without a lookup entry get model.UntaggedTag.
func (r *Resolver) Resolve(rec *model.FlowRecord) model.Resolution {
	name := protocol.Name(rec.Protocol)
	if tag, ok := r.index.Lookup(rec.DstPort, name); ok && tag != "" {
		return model.Resolution{Tag: tag, Protocol: name, Matched: true}
	}
	return model.Resolution{Tag: model.UntaggedTag, Protocol: name}
}
