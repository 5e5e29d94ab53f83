package gojahttp

import (
	"errors"
	"net/http"

	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/joeycumines/logiface"
)

// moduleOptions holds configuration for a [Module] instance.
type moduleOptions struct {
	loop   *eventloop.EventLoop
	client *http.Client
	logger *logiface.Logger[logiface.Event]
}

// Option configures a [Module] instance. Options are applied during module
// construction.
type Option interface {
	applyOption(*moduleOptions) error
}

// optionFunc implements [Option] via a closure.
type optionFunc struct {
	fn func(*moduleOptions) error
}

func (o *optionFunc) applyOption(opts *moduleOptions) error {
	return o.fn(opts)
}

// WithLoop configures the event loop used to marshal asynchronous request
// callbacks onto the host's callback context. This option is required;
// passing nil returns an error during module construction.
func WithLoop(loop *eventloop.EventLoop) Option {
	return &optionFunc{fn: func(opts *moduleOptions) error {
		if loop == nil {
			return errors.New("gojahttp: loop must not be nil")
		}
		opts.loop = loop
		return nil
	}}
}

// WithClient configures the [http.Client] used for all requests, both
// synchronous and asynchronous. Optional; a zero-value client is used by
// default. Timeouts, redirect policy, TLS, and connection pooling are all
// the client's concern; this module imposes none of its own.
func WithClient(client *http.Client) Option {
	return &optionFunc{fn: func(opts *moduleOptions) error {
		if client == nil {
			return errors.New("gojahttp: client must not be nil")
		}
		opts.client = client
		return nil
	}}
}

// WithLogger configures the logger used to report callback invocation
// failures and request lifecycle events. Optional; a nil logger disables
// logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionFunc{fn: func(opts *moduleOptions) error {
		opts.logger = logger
		return nil
	}}
}

// resolveOptions applies the given options to a default [moduleOptions]
// and validates that all required fields are set.
func resolveOptions(opts []Option) (*moduleOptions, error) {
	cfg := &moduleOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyOption(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.loop == nil {
		return nil, errors.New("gojahttp: loop is required (use WithLoop)")
	}
	if cfg.client == nil {
		cfg.client = &http.Client{}
	}
	return cfg, nil
}
