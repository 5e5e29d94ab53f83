package gojahttp

import (
	"net/http"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/joeycumines/logiface"
)

// Module provides HTTP request support for a [goja.Runtime]. Each Module
// instance is bound to a single runtime and uses a [eventloop.EventLoop]
// to marshal asynchronous callbacks onto the host's callback context, an
// [http.Client] as the underlying network stack, and a [Manager] to own
// the lifecycle of in-flight asynchronous requests.
type Module struct {
	runtime *goja.Runtime
	loop    *eventloop.EventLoop
	client  *http.Client
	logger  *logiface.Logger[logiface.Event]
	manager *Manager
}

// New creates a new [Module] bound to the given [goja.Runtime].
//
// New panics if runtime is nil, as this is a programming error (invariant
// violation). It returns an error if option validation fails or if required
// options are missing.
//
// The event loop must be provided via [WithLoop]; [WithClient] and
// [WithLogger] are optional.
func New(runtime *goja.Runtime, opts ...Option) (*Module, error) {
	if runtime == nil {
		panic("gojahttp: runtime must not be nil")
	}

	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	m := &Module{
		runtime: runtime,
		loop:    cfg.loop,
		client:  cfg.client,
		logger:  cfg.logger,
	}
	m.manager = NewManager(
		newHTTPTransport(cfg.client),
		loopDispatcher{loop: cfg.loop},
		cfg.logger,
	)
	return m, nil
}

// Runtime returns the [goja.Runtime] this module is bound to.
func (m *Module) Runtime() *goja.Runtime {
	return m.runtime
}

// Manager returns the lifecycle manager owning this module's asynchronous
// requests.
func (m *Module) Manager() *Manager {
	return m.manager
}

// Close tears down every in-flight asynchronous request without invoking
// callbacks and prevents further submissions. The embedding environment
// must call Close on shutdown; it is idempotent.
func (m *Module) Close() error {
	return m.manager.Close()
}

// SetupExports wires the module's JS API onto the given exports object.
// This is equivalent to the setup performed by [Require] but allows
// external consumers to configure exports without the require() mechanism.
func (m *Module) SetupExports(exports *goja.Object) {
	m.setupExports(exports)
}

// setupExports wires the module's JS API onto the given exports object.
//
// Exports:
//   - request / get / post - blocking requests returning {status, body, headers}
//   - asyncRequest / asyncGet / asyncPost - callback-based requests
//   - urlParts - URL decomposition
//   - cancelAll - teardown of all pending asynchronous requests
func (m *Module) setupExports(exports *goja.Object) {
	_ = exports.Set("request", m.runtime.ToValue(m.jsRequest))
	_ = exports.Set("get", m.runtime.ToValue(m.jsGet))
	_ = exports.Set("post", m.runtime.ToValue(m.jsPost))
	_ = exports.Set("asyncRequest", m.runtime.ToValue(m.jsAsyncRequest))
	_ = exports.Set("asyncGet", m.runtime.ToValue(m.jsAsyncGet))
	_ = exports.Set("asyncPost", m.runtime.ToValue(m.jsAsyncPost))
	_ = exports.Set("urlParts", m.runtime.ToValue(m.jsURLParts))
	_ = exports.Set("cancelAll", m.runtime.ToValue(m.jsCancelAll))
}

// loopDispatcher marshals callback invocations onto the goja_nodejs event
// loop, the only context permitted to touch the runtime.
type loopDispatcher struct {
	loop *eventloop.EventLoop
}

func (d loopDispatcher) Dispatch(fn func()) {
	d.loop.RunOnLoop(func(*goja.Runtime) { fn() })
}
