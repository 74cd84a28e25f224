// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chaos

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Options tunes encoding and decoding behavior. The zero Options is
// not valid — use DefaultOptions and override individual fields, or
// Option functions with the encode/decode entry points.
type Options struct {
	// Workers is the size of the worker pool used by the parallel
	// encoder and decoder. Zero or negative means "pick automatically"
	// (runtime.NumCPU(), floored at 4).
	Workers int `yaml:"workers"`

	// CustomSizes maps a custom value type id to its fixed payload
	// size in bytes. The decoders need this to know how many bytes a
	// custom value occupies on the wire; the encoder writes each
	// payload as given and does not consult it.
	CustomSizes map[byte]int `yaml:"custom_sizes"`

	// Logger receives structured progress/diagnostic events (entity
	// count and encoded size, from the encoders). Defaults to a
	// discarding logger, matching this codebase's pool and store types.
	Logger *slog.Logger `yaml:"-"`
}

// DefaultOptions returns the baseline Options: automatic worker count,
// no registered custom types, logging discarded.
func DefaultOptions() Options {
	return Options{
		Workers:     0,
		CustomSizes: make(map[byte]int),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// resolvedWorkers returns the effective worker count: NumCPU with a
// floor of 4 when Workers is unset, matching this codebase's own pool
// sizing convention.
func (o Options) resolvedWorkers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	if n := runtime.NumCPU(); n > 4 {
		return n
	}
	return 4
}

// Option mutates an Options value. Encode/decode entry points accept a
// variadic list of Options so callers only need to specify what they
// want to change from the default.
type Option func(*Options)

// WithWorkers overrides the worker pool size for a parallel
// encode/decode call.
func WithWorkers(n int) Option {
	return func(o *Options) { o.Workers = n }
}

// WithCustomSize registers the fixed payload size for a custom value
// type id.
func WithCustomSize(id byte, size int) Option {
	return func(o *Options) {
		if o.CustomSizes == nil {
			o.CustomSizes = make(map[byte]int)
		}
		o.CustomSizes[id] = size
	}
}

// WithLogger overrides the logger used for encode/decode diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

// applyOptions folds a list of Option functions onto DefaultOptions.
func applyOptions(opts []Option) Options {
	o := DefaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// LoadOptionsFile reads Options from a YAML file. A missing
// custom_sizes section is treated as no custom types registered
// rather than an error.
func LoadOptionsFile(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("chaos: reading options file %s: %w", path, err)
	}
	o := DefaultOptions()
	if err := yaml.Unmarshal(data, &o); err != nil {
		return Options{}, fmt.Errorf("chaos: parsing options file %s: %w", path, err)
	}
	if o.CustomSizes == nil {
		o.CustomSizes = make(map[byte]int)
	}
	return o, nil
}
