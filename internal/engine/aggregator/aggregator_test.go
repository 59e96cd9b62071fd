package aggregator

import (
	"FlowTagger/internal/engine/tagger"
	"FlowTagger/internal/lookup"
	"FlowTagger/internal/model"
	"testing"
)

func TestAggregator_Add(t *testing.T) {
	agg := New()
	resolver := tagger.New(lookup.Build([]model.LookupEntry{{DstPort: 80, Protocol: "tcp", Tag: "web"}}))

	records := []*model.FlowRecord{
		{DstPort: 80, Protocol: 6},
		{DstPort: 80, Protocol: 6},
		{DstPort: 9999, Protocol: 17},
		{DstPort: 80, Protocol: 17},
		{DstPort: 7, Protocol: 250},
	}
	for _, rec := range records {
		agg.Add(rec, resolver.Resolve(rec))
	}

	tags, pairs := agg.Snapshot()
	if tags["web"] != 2 || tags[model.UntaggedTag] != 3 || len(tags) != 2 {
		t.Errorf("Unexpected tag counts: %v", tags)
	}
	expectedPairs := model.PortProtocolCounts{
		{DstPort: 80, Protocol: "tcp"}:    2,
		{DstPort: 9999, Protocol: "udp"}:  1,
		{DstPort: 80, Protocol: "udp"}:    1,
		{DstPort: 7, Protocol: "unknown"}: 1,
	}
	if len(pairs) != len(expectedPairs) {
		t.Fatalf("Expected %d port/protocol pairs, got %d: %v", len(expectedPairs), len(pairs), pairs)
	}
	for k, v := range expectedPairs {
		if pairs[k] != v {
			t.Errorf("Expected %s=%d, got %d", k, v, pairs[k])
		}
	}

	n := uint64(len(records))
	if agg.Total() != n || tags.Total() != n || pairs.Total() != n {
		t.Errorf("Every table must sum to %d records: total=%d tags=%d pairs=%d", n, agg.Total(), tags.Total(), pairs.Total())
	}
	if agg.Untagged() != 3 {
		t.Errorf("Expected 3 untagged records, got %d", agg.Untagged())
	}
	if agg.UnknownProtocol() != 1 {
		t.Errorf("Expected 1 unknown protocol record, got %d", agg.UnknownProtocol())
	}
}

func TestAggregator_SnapshotIsIndependent(t *testing.T) {
	agg := New()
	rec := &model.FlowRecord{DstPort: 22, Protocol: 6}
	res := model.Resolution{Tag: "ssh", Protocol: "tcp", Matched: true}
	agg.Add(rec, res)

	tags, pairs := agg.Snapshot()
	agg.Add(rec, res)

	if tags["ssh"] != 1 || pairs[model.PortProtocol{DstPort: 22, Protocol: "tcp"}] != 1 {
		t.Errorf("Snapshot changed after a later Add: %v %v", tags, pairs)
	}
}

func TestAggregator_Reset(t *testing.T) {
	agg := New()
	agg.Add(&model.FlowRecord{DstPort: 22, Protocol: 6}, model.Resolution{Tag: model.UntaggedTag, Protocol: "tcp"})
	agg.Reset()

	tags, pairs := agg.Snapshot()
	if len(tags) != 0 || len(pairs) != 0 || agg.Total() != 0 || agg.Untagged() != 0 {
		t.Errorf("Expected empty aggregator after Reset, got tags=%v pairs=%v total=%d", tags, pairs, agg.Total())
	}
}
