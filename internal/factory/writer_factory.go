package factory

import (
	"FlowTagger/internal/config"
	"FlowTagger/internal/model"
	"FlowTagger/internal/source"
	"fmt"
	"sort"

	"k8s.io/klog/v2"
)

// WriterFactory creates a report sink from its configuration. Sinks that write
// files use store for local and s3:// locations.
type WriterFactory func(def config.WriterDef, store *source.Store) (model.Writer, error)

// registry holds the mapping of writer types to their factory functions.
var registry = make(map[string]WriterFactory)

// RegisterWriter registers a new writer type with its factory function.
func RegisterWriter(name string, factory WriterFactory) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("writer type '%s' already registered", name))
	}
	registry[name] = factory
}

// Registered returns the names of all registered writer types.
func Registered() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create builds every enabled sink of the configuration. If one fails, the
// sinks already created are closed.
func Create(cfg config.SinksConfig, store *source.Store) ([]model.Writer, error) {
	var writers []model.Writer

	for _, def := range cfg.Writers {
		if !def.Enabled {
			continue
		}
		klog.Infof("Creating report sink of type '%s'", def.Type)

		factory, ok := registry[def.Type]
		if !ok {
			closeAll(writers)
			return nil, fmt.Errorf("unknown writer type: '%s'", def.Type)
		}

		writer, err := factory(def, store)
		if err != nil {
			closeAll(writers)
			return nil, fmt.Errorf("error creating writer type '%s': %w", def.Type, err)
		}
		writers = append(writers, writer)
	}

	return writers, nil
}

func closeAll(writers []model.Writer) {
	for _, w := range writers {
		if err := w.Close(); err != nil {
			klog.Warningf("Failed to close writer '%s': %v", w.Name(), err)
		}
	}
}
