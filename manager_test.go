package gojahttp

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inertTransport accepts exchanges without producing any events; tests
// drive the manager's event sink directly.
type inertTransport struct {
	mu      sync.Mutex
	started []uint64
}

func (t *inertTransport) Start(id uint64, req *http.Request, sink EventSink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.started = append(t.started, id)
}

// directDispatcher invokes callbacks inline, standing in for the event
// loop in tests that drive events from the test goroutine.
var directDispatcher = DispatcherFunc(func(fn func()) { fn() })

type successRecord struct {
	status  int
	body    string
	headers map[string]string
}

type failureRecord struct {
	status  int
	message string
}

// recordingCallback records terminal notifications and optionally fails
// the invocation itself.
type recordingCallback struct {
	mu        sync.Mutex
	successes []successRecord
	failures  []failureRecord
	invokeErr error
}

func (c *recordingCallback) Success(status int, body string, headers map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.successes = append(c.successes, successRecord{status, body, headers})
	return c.invokeErr
}

func (c *recordingCallback) Failure(status int, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = append(c.failures, failureRecord{status, message})
	return c.invokeErr
}

func (c *recordingCallback) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.successes), len(c.failures)
}

func newTestManager(t *testing.T) (*Manager, *inertTransport) {
	t.Helper()
	transport := &inertTransport{}
	return NewManager(transport, directDispatcher, nil), transport
}

func submitTestRequest(t *testing.T, m *Manager, cb Callback) uint64 {
	t.Helper()
	id, err := m.Submit(RequestSpec{URL: "http://example.com/x", Method: "GET"}, cb)
	require.NoError(t, err)
	return id
}

func TestManagerCompleteInvokesCallbackExactlyOnce(t *testing.T) {
	m, transport := newTestManager(t)
	cb := &recordingCallback{}

	id := submitTestRequest(t, m, cb)
	require.Equal(t, []uint64{id}, transport.started)
	require.Equal(t, 1, m.Len())

	m.ResponseReceived(id, 200, http.Header{"Content-Type": {"text/plain"}})
	m.DataReceived(id, []byte("hello "))
	m.DataReceived(id, []byte("world"))
	m.Completed(id)

	require.Equal(t, 0, m.Len())
	require.Len(t, cb.successes, 1)
	assert.Equal(t, 200, cb.successes[0].status)
	assert.Equal(t, "hello world", cb.successes[0].body)
	assert.Equal(t, map[string]string{"Content-Type": "text/plain"}, cb.successes[0].headers)
	assert.Empty(t, cb.failures)

	// A late duplicate terminal event is a no-op.
	m.Completed(id)
	m.Failed(id, errors.New("late"))
	successes, failures := cb.counts()
	assert.Equal(t, 1, successes)
	assert.Equal(t, 0, failures)
}

func TestManagerMultipartReResponseDiscardsEarlierBody(t *testing.T) {
	m, _ := newTestManager(t)
	cb := &recordingCallback{}

	id := submitTestRequest(t, m, cb)

	h1 := http.Header{"X-Part": {"1"}}
	h2 := http.Header{"X-Part": {"2"}}
	m.ResponseReceived(id, 200, h1)
	m.DataReceived(id, []byte("partial"))
	m.ResponseReceived(id, 200, h2)
	m.DataReceived(id, []byte("final"))
	m.Completed(id)

	require.Len(t, cb.successes, 1)
	assert.Equal(t, "final", cb.successes[0].body)
	assert.Equal(t, map[string]string{"X-Part": "2"}, cb.successes[0].headers)
}

func TestManagerFailedInvokesFailureWithSentinelStatus(t *testing.T) {
	m, _ := newTestManager(t)
	cb := &recordingCallback{}

	id := submitTestRequest(t, m, cb)
	m.Failed(id, errors.New("dial tcp: connection refused"))

	require.Len(t, cb.failures, 1)
	assert.Equal(t, StatusTransportError, cb.failures[0].status)
	assert.Contains(t, cb.failures[0].message, "connection refused")
	assert.Contains(t, cb.failures[0].message, "http://example.com/x")
	assert.Empty(t, cb.successes)
	assert.Equal(t, 0, m.Len())

	// Terminal events after failure find nothing.
	m.Completed(id)
	successes, failures := cb.counts()
	assert.Equal(t, 0, successes)
	assert.Equal(t, 1, failures)
}

func TestManagerEventsForUnknownIDAreNoOps(t *testing.T) {
	m, _ := newTestManager(t)

	m.ResponseReceived(42, 200, nil)
	m.DataReceived(42, []byte("x"))
	m.Completed(42)
	m.Failed(42, errors.New("nope"))

	assert.Equal(t, 0, m.Len())
}

func TestManagerCancelAll(t *testing.T) {
	m, _ := newTestManager(t)

	assert.Equal(t, 0, m.CancelAll())

	callbacks := make([]*recordingCallback, 3)
	ids := make([]uint64, 3)
	for i := range callbacks {
		callbacks[i] = &recordingCallback{}
		ids[i] = submitTestRequest(t, m, callbacks[i])
	}
	require.Equal(t, 3, m.Len())

	assert.Equal(t, 3, m.CancelAll())
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 0, m.CancelAll())

	for i, cb := range callbacks {
		successes, failures := cb.counts()
		assert.Zero(t, successes)
		assert.Zero(t, failures)

		// Events arriving after teardown are cleanup-only no-ops.
		m.ResponseReceived(ids[i], 200, nil)
		m.Completed(ids[i])
		successes, failures = cb.counts()
		assert.Zero(t, successes)
		assert.Zero(t, failures)
	}
}

func TestManagerCloseRejectsSubmit(t *testing.T) {
	m, _ := newTestManager(t)
	cb := &recordingCallback{}

	submitTestRequest(t, m, cb)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	_, err := m.Submit(RequestSpec{URL: "http://example.com/", Method: "GET"}, cb)
	require.ErrorIs(t, err, ErrManagerClosed)
	assert.Equal(t, 0, m.Len())
}

func TestManagerSubmitValidation(t *testing.T) {
	m, transport := newTestManager(t)
	cb := &recordingCallback{}

	_, err := m.Submit(RequestSpec{URL: "http://example.com/", Method: "GET"}, nil)
	require.Error(t, err)

	_, err = m.Submit(RequestSpec{Method: "GET"}, cb)
	require.Error(t, err)

	_, err = m.Submit(RequestSpec{URL: "http://example.com/"}, cb)
	require.Error(t, err)

	assert.Empty(t, transport.started)
	assert.Equal(t, 0, m.Len())
}

func TestManagerSubmitDoesNotInvokeBeforeDispatch(t *testing.T) {
	// A transport that completes synchronously inside Start must still not
	// reach the callback until the dispatcher runs the queued invocation.
	var queued []func()
	queueDispatcher := DispatcherFunc(func(fn func()) { queued = append(queued, fn) })

	m := NewManager(
		transportFunc(func(id uint64, req *http.Request, sink EventSink) {
			sink.ResponseReceived(id, 204, nil)
			sink.Completed(id)
		}),
		queueDispatcher,
		nil,
	)

	cb := &recordingCallback{}
	_, err := m.Submit(RequestSpec{URL: "http://example.com/", Method: "GET"}, cb)
	require.NoError(t, err)

	successes, failures := cb.counts()
	require.Zero(t, successes)
	require.Zero(t, failures)
	require.Len(t, queued, 1)

	queued[0]()
	successes, _ = cb.counts()
	assert.Equal(t, 1, successes)
}

// transportFunc implements Transport via a closure.
type transportFunc func(id uint64, req *http.Request, sink EventSink)

func (f transportFunc) Start(id uint64, req *http.Request, sink EventSink) { f(id, req, sink) }

func TestManagerCallbackInvocationErrorIsLoggedNotRaised(t *testing.T) {
	var mu sync.Mutex
	var lines []string
	writer := logiface.WriterFunc[*stumpy.Event](func(e *stumpy.Event) error {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, string(e.Bytes()))
		return nil
	})
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithTimeField(``)),
		stumpy.L.WithWriter(writer),
	).Logger()

	transport := &inertTransport{}
	m := NewManager(transport, directDispatcher, logger)

	cb := &recordingCallback{invokeErr: errors.New("script raised")}
	id := submitTestRequest(t, m, cb)

	m.ResponseReceived(id, 200, nil)
	m.Completed(id)

	require.Len(t, cb.successes, 1)
	assert.Equal(t, 0, m.Len())

	mu.Lock()
	defer mu.Unlock()
	var found bool
	for _, line := range lines {
		if strings.Contains(line, "success callback raised") && strings.Contains(line, "script raised") {
			found = true
		}
	}
	assert.True(t, found, "expected invocation failure to be logged, got %v", lines)
}

func TestManagerTeardownRacesCompletion(t *testing.T) {
	for i := 0; i < 100; i++ {
		m, _ := newTestManager(t)
		cb := &recordingCallback{}
		id := submitTestRequest(t, m, cb)
		m.ResponseReceived(id, 200, nil)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.Completed(id)
		}()
		go func() {
			defer wg.Done()
			m.CancelAll()
		}()
		wg.Wait()

		successes, failures := cb.counts()
		assert.LessOrEqual(t, successes, 1)
		assert.Zero(t, failures)
		assert.Equal(t, 0, m.Len())
	}
}

func TestManagerConcurrentRequestsAreIndependent(t *testing.T) {
	m, _ := newTestManager(t)

	const n = 32
	callbacks := make([]*recordingCallback, n)
	ids := make([]uint64, n)
	for i := range callbacks {
		callbacks[i] = &recordingCallback{}
		ids[i] = submitTestRequest(t, m, callbacks[i])
	}

	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := ids[i]
			m.ResponseReceived(id, 200, nil)
			m.DataReceived(id, []byte(strconv.Itoa(i)))
			if i%2 == 0 {
				m.Completed(id)
			} else {
				m.Failed(id, errors.New("boom"))
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 0, m.Len())
	for i, cb := range callbacks {
		successes, failures := cb.counts()
		if i%2 == 0 {
			assert.Equal(t, 1, successes)
			assert.Equal(t, 0, failures)
			assert.Equal(t, strconv.Itoa(i), cb.successes[0].body)
		} else {
			assert.Equal(t, 0, successes)
			assert.Equal(t, 1, failures)
		}
	}
}
