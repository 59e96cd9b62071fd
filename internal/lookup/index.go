package lookup

import (
	"FlowTagger/internal/model"
	"cmp"
	"slices"
	"strings"
)

// Index maps (destination port, protocol name) pairs to tags.
// It is read-only once built.
type Index struct {
	tags map[model.LookupKey]string
}

// Lookup returns the tag for a port and protocol. The protocol is matched case-insensitively.
// A miss is reported through ok and is not an error.
func (ix *Index) Lookup(port uint16, protocol string) (tag string, ok bool) {
	if ix == nil {
		return "", false
	}
	tag, ok = ix.tags[model.LookupKey{DstPort: port, Protocol: strings.ToLower(protocol)}]
	return tag, ok
}

// Len returns the number of distinct keys in the index.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.tags)
}

// Entries returns the indexed entries ordered by port and protocol.
func (ix *Index) Entries() []model.LookupEntry {
	entries := make([]model.LookupEntry, 0, ix.Len())
	if ix == nil {
		return entries
	}
	for k, tag := range ix.tags {
		entries = append(entries, model.LookupEntry{DstPort: k.DstPort, Protocol: k.Protocol, Tag: tag})
	}
	slices.SortFunc(entries, func(a, b model.LookupEntry) int {
		return cmp.Or(cmp.Compare(a.DstPort, b.DstPort), strings.Compare(a.Protocol, b.Protocol))
	})
	return entries
}
