package factory

import (
	"FlowTagger/internal/config"
	"FlowTagger/internal/model"
	"FlowTagger/internal/source"
	"context"
	"errors"
	"testing"
)

type stubWriter struct {
	name   string
	closed bool
}

func (s *stubWriter) Write(context.Context, *model.Report) error { return nil }
func (s *stubWriter) Name() string                               { return s.name }
func (s *stubWriter) Close() error {
	s.closed = true
	return nil
}

func TestCreate(t *testing.T) {
	var created []*stubWriter
	store := source.New(config.AWSConfig{})
	var stores []*source.Store
	RegisterWriter("stub", func(def config.WriterDef, s *source.Store) (model.Writer, error) {
		stores = append(stores, s)
		w := &stubWriter{name: "stub"}
		created = append(created, w)
		return w, nil
	})
	RegisterWriter("broken", func(config.WriterDef, *source.Store) (model.Writer, error) {
		return nil, errors.New("cannot connect")
	})
	t.Cleanup(func() {
		delete(registry, "stub")
		delete(registry, "broken")
	})

	writers, err := Create(config.SinksConfig{Writers: []config.WriterDef{
		{Type: "stub", Enabled: true},
		{Type: "stub", Enabled: false},
		{Type: "broken", Enabled: false},
	}}, store)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if len(writers) != 1 {
		t.Fatalf("Expected 1 writer, got %d", len(writers))
	}
	if len(stores) != 1 || stores[0] != store {
		t.Errorf("Expected the store to be passed to the factory")
	}

	created = nil
	_, err = Create(config.SinksConfig{Writers: []config.WriterDef{
		{Type: "stub", Enabled: true},
		{Type: "broken", Enabled: true},
	}}, store)
	if err == nil {
		t.Fatal("Expected an error from the broken writer")
	}
	if len(created) != 1 || !created[0].closed {
		t.Errorf("Expected the already created writer to be closed")
	}

	if _, err := Create(config.SinksConfig{Writers: []config.WriterDef{{Type: "missing", Enabled: true}}}, store); err == nil {
		t.Error("Expected an error for an unknown writer type")
	}
}

func TestRegisterWriter_Duplicate(t *testing.T) {
	RegisterWriter("dup", func(config.WriterDef, *source.Store) (model.Writer, error) { return nil, nil })
	t.Cleanup(func() { delete(registry, "dup") })

	defer func() {
		if recover() == nil {
			t.Error("Expected a panic on duplicate registration")
		}
	}()
	RegisterWriter("dup", func(config.WriterDef, *source.Store) (model.Writer, error) { return nil, nil })
}
