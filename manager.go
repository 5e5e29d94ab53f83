package gojahttp

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/logiface"
)

// StatusTransportError is the sentinel status passed to failure callbacks
// when a request never produced an HTTP response. It is negative so it can
// never collide with a real HTTP status code.
const StatusTransportError = -1

// ErrManagerClosed is returned by [Manager.Submit] after [Manager.Close].
var ErrManagerClosed = errors.New("gojahttp: manager closed")

// Callback receives the terminal outcome of an asynchronous request.
// Exactly one of the two methods is invoked, at most once, always from the
// host's designated callback context. A returned error means the host
// callback itself failed during invocation; the manager logs it and
// continues cleanup; it is never re-raised.
type Callback interface {
	// Success delivers a completed HTTP exchange: status code, UTF-8
	// decoded body, and a flattened header mapping.
	Success(status int, body string, headers map[string]string) error

	// Failure delivers a transport-level failure: [StatusTransportError]
	// and a human-readable message naming the failing URL where available.
	Failure(status int, message string) error
}

// Dispatcher marshals callback invocations onto the host's designated
// callback context. Implementations must execute functions serially with
// respect to all other host-side script execution; the manager never holds
// its registry lock across a Dispatch call.
type Dispatcher interface {
	Dispatch(fn func())
}

// DispatcherFunc implements [Dispatcher] via a closure.
type DispatcherFunc func(fn func())

func (f DispatcherFunc) Dispatch(fn func()) { f(fn) }

// EventSink receives transport events for in-flight requests, tagged with
// the request id they belong to. Events for a single id must be delivered
// serially; events for different ids may be concurrent. Every method
// tolerates ids that are no longer registered, so duplicate terminal events
// and teardown races resolve to no-ops.
type EventSink interface {
	// ResponseReceived signals that an HTTP response header has been
	// observed. It may fire more than once per request (e.g.
	// multipart/x-mixed-replace); each occurrence discards previously
	// buffered body data.
	ResponseReceived(id uint64, status int, header http.Header)

	// DataReceived appends a body chunk to the request's buffer.
	DataReceived(id uint64, chunk []byte)

	// Completed signals terminal success.
	Completed(id uint64)

	// Failed signals a terminal transport failure.
	Failed(id uint64, err error)
}

// Transport starts one asynchronous HTTP exchange, reporting progress to
// the sink as events tagged with the request id. Start must not block the
// caller; the exchange is aborted by cancelling the request's context.
type Transport interface {
	Start(id uint64, req *http.Request, sink EventSink)
}

// pendingRequest is one asynchronous request in flight. While registered,
// its mutable fields are guarded by the owning [Manager]'s lock. Once
// removed from the registry exactly one goroutine owns the entry and no
// further synchronization is required.
type pendingRequest struct {
	id       uint64
	url      string
	callback Callback // nil once released
	buf      bytes.Buffer
	status   int
	header   http.Header
	cancel   context.CancelFunc // aborts the underlying transport exchange
}

// release empties the callback slot and returns whatever it held. Invoking
// release on an already-released slot returns nil.
func (e *pendingRequest) release() Callback {
	cb := e.callback
	e.callback = nil
	return cb
}

// Manager owns the registry of in-flight asynchronous HTTP requests. It
// accepts submissions from the host, receives events from the transport's
// worker goroutines, and guarantees that every registered request gets
// exactly one terminal callback, or none at all if it was torn down first.
//
// All registry mutation happens under a single mutex; callback invocation is
// marshaled through the [Dispatcher] with the lock released, so callbacks
// may freely submit or cancel requests.
type Manager struct {
	transport Transport
	dispatch  Dispatcher
	logger    *logiface.Logger[logiface.Event]

	mu      sync.Mutex
	pending map[uint64]*pendingRequest
	closed  bool

	nextID atomic.Uint64
}

// NewManager creates a Manager delivering callbacks through dispatch and
// issuing requests through transport. NewManager panics if either is nil,
// as this is a programming error. A nil logger disables logging.
func NewManager(transport Transport, dispatch Dispatcher, logger *logiface.Logger[logiface.Event]) *Manager {
	if transport == nil {
		panic("gojahttp: transport must not be nil")
	}
	if dispatch == nil {
		panic("gojahttp: dispatcher must not be nil")
	}
	return &Manager{
		transport: transport,
		dispatch:  dispatch,
		logger:    logger,
		pending:   make(map[uint64]*pendingRequest),
	}
}

// Submit validates spec, registers a new pending request with cb as its
// one-shot callback, and starts the underlying asynchronous exchange. The
// returned id identifies the request for the lifetime of its registry
// entry. The callback is never invoked before Submit returns.
func (m *Manager) Submit(spec RequestSpec, cb Callback) (uint64, error) {
	if cb == nil {
		return 0, errors.New("gojahttp: callback must not be nil")
	}

	ctx, cancel := context.WithCancel(context.Background())
	req, err := buildRequest(ctx, spec)
	if err != nil {
		cancel()
		return 0, err
	}

	id := m.nextID.Add(1)
	entry := &pendingRequest{
		id:       id,
		url:      spec.URL,
		callback: cb,
		cancel:   cancel,
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		cancel()
		return 0, ErrManagerClosed
	}
	m.pending[id] = entry
	m.mu.Unlock()

	m.transport.Start(id, req, m)

	m.logger.Debug().
		Uint64("id", id).
		Str("method", req.Method).
		Str("url", spec.URL).
		Log("async request submitted")

	return id, nil
}

// ResponseReceived implements [EventSink]. A repeated response header
// (multipart/x-mixed-replace) discards any previously buffered body; only
// the most recent response is authoritative for the final callback.
func (m *Manager) ResponseReceived(id uint64, status int, header http.Header) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.pending[id]
	if !ok {
		return
	}
	e.buf.Reset()
	e.status = status
	e.header = header
}

// DataReceived implements [EventSink].
func (m *Manager) DataReceived(id uint64, chunk []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.pending[id]; ok {
		e.buf.Write(chunk)
	}
}

// take removes and returns the registry entry for id, or nil if it is not
// registered. Removal is the single authoritative terminal signal: whoever
// takes the entry owns its terminal transition, and any later event for the
// same id finds nothing to do.
func (m *Manager) take(id uint64) *pendingRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.pending[id]
	if !ok {
		return nil
	}
	delete(m.pending, id)
	return e
}

// Completed implements [EventSink]: terminal success. The entry is removed,
// its connection handle cancelled, and the callback invoked exactly once
// with (status, body, headers) on the host's callback context.
func (m *Manager) Completed(id uint64) {
	e := m.take(id)
	if e == nil {
		return
	}
	e.cancel()

	cb := e.release()
	if cb == nil {
		return
	}

	status := e.status
	body := marshalBody(e.buf.Bytes())
	headers := flattenHeader(e.header)

	m.dispatch.Dispatch(func() {
		if err := cb.Success(status, body, headers); err != nil {
			m.logger.Err().
				Err(err).
				Uint64("id", id).
				Str("url", e.url).
				Log("success callback raised")
		}
	})
}

// Failed implements [EventSink]: terminal transport failure. Cleanup is
// identical to Completed; the callback is invoked exactly once with
// ([StatusTransportError], message).
func (m *Manager) Failed(id uint64, cause error) {
	e := m.take(id)
	if e == nil {
		return
	}
	e.cancel()

	cb := e.release()
	if cb == nil {
		return
	}

	message := transportErrorMessage(e.url, cause)

	m.dispatch.Dispatch(func() {
		if err := cb.Failure(StatusTransportError, message); err != nil {
			m.logger.Err().
				Err(err).
				Uint64("id", id).
				Str("url", e.url).
				Log("failure callback raised")
		}
	})

	m.logger.Debug().
		Err(cause).
		Uint64("id", id).
		Str("url", e.url).
		Log("async request failed")
}

// CancelAll tears down every pending request: the underlying exchanges are
// cancelled, callback references released, and the registry emptied. No
// callbacks are invoked. It operates on a snapshot taken under the lock, so
// a completion event racing the teardown either wins the entry (and
// notifies) or finds it gone (and does nothing), never both. Safe with
// zero entries and safe to call repeatedly. Returns the number of requests
// torn down.
func (m *Manager) CancelAll() int {
	m.mu.Lock()
	snapshot := make([]*pendingRequest, 0, len(m.pending))
	for _, e := range m.pending {
		snapshot = append(snapshot, e)
	}
	clear(m.pending)
	m.mu.Unlock()

	for _, e := range snapshot {
		e.cancel()
		e.release()
	}

	if len(snapshot) != 0 {
		m.logger.Debug().
			Int("count", len(snapshot)).
			Log("pending requests cancelled")
	}

	return len(snapshot)
}

// Close marks the manager closed and tears down all pending requests.
// Subsequent Submit calls fail with [ErrManagerClosed]. Close is the
// explicit teardown hook the embedding environment must call on shutdown;
// it is idempotent.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.CancelAll()
	return nil
}

// Len reports the number of requests currently in flight.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// transportErrorMessage combines the transport's description with the
// failing URL, unless the description already names it (net/http errors
// usually do).
func transportErrorMessage(url string, cause error) string {
	desc := "connection error"
	if cause != nil {
		desc = cause.Error()
	}
	if url != "" && !strings.Contains(desc, url) {
		return desc + " (" + url + ")"
	}
	return desc
}
