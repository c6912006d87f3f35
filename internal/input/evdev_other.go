//go:build !linux

package input

import "context"

// EvdevSource is unavailable outside Linux; Start always fails.
type EvdevSource struct {
	opts EvdevOptions
}

// NewEvdevSource returns a source whose Start reports ErrNotSupported.
func NewEvdevSource(opts EvdevOptions) *EvdevSource {
	opts.setDefaults()
	return &EvdevSource{opts: opts}
}

func (s *EvdevSource) Start(context.Context) (<-chan RawEvent, error) {
	return nil, ErrNotSupported
}

func (s *EvdevSource) Errors() <-chan error { return nil }

func (s *EvdevSource) Close() error { return nil }
