package model

import "context"

// Writer defines a generic interface for emitting a finished report.
type Writer interface {
	// Write persists or publishes the report.
	Write(ctx context.Context, report *Report) error

	// Name returns the writer type, used in logs.
	Name() string

	// Close releases any connection held by the writer.
	Close() error
}
