package persistence

import (
	"errors"
	"fmt"

	"github.com/talgya/toolsim/internal/engine"
)

// Sink receives finished runs.
type Sink interface {
	Write(res *engine.Result) error
	Close() error
}

// Multi fans a run out to several sinks.
type Multi []Sink

// Write implements Sink. Every sink is tried; the errors are joined.
func (m Multi) Write(res *engine.Result) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close implements Sink.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Options selects the sinks opened by OpenSinks.
type Options struct {
	Dir      string
	CSV      bool
	Compress bool
	SQLite   string // Database path; empty disables
}

// OpenSinks opens the sinks named by opts. The result may be empty.
func OpenSinks(opts Options) (Multi, error) {
	var sinks Multi
	if opts.CSV {
		w, err := NewCSVWriter(opts.Dir, opts.Compress)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, w)
	}
	if opts.SQLite != "" {
		db, err := Open(opts.SQLite)
		if err != nil {
			_ = sinks.Close()
			return nil, fmt.Errorf("open sqlite sink: %w", err)
		}
		sinks = append(sinks, db)
	}
	return sinks, nil
}
