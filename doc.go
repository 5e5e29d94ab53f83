// Package gojahttp provides a JavaScript HTTP client module for the goja
// runtime. It lets scripts issue HTTP requests, synchronously or
// asynchronously, and receive structured results back through callbacks,
// without the script environment managing sockets, goroutines, or
// connection objects.
//
// # Overview
//
// The module exposes its functionality through the [goja_nodejs/require]
// module system, making it available to JavaScript code via:
//
//	const http = require('http');
//
// Synchronous calls block the calling context and return a result object.
// Asynchronous calls register the request with a lifecycle [Manager] and
// return immediately; the callback fires later, exactly once, on the event
// loop goroutine.
//
// # JavaScript API
//
// The require('http') export object provides:
//
//	http.request(url, method, body?, headers?)   - blocking request
//	http.get(url, headers?)                      - blocking GET
//	http.post(url, body?, headers?)              - blocking POST
//	http.asyncRequest(url, method, body?, headers?, callback, options?)
//	http.asyncGet(url, headers?, callback)
//	http.asyncPost(url, body?, headers?, callback)
//	http.urlParts(urlOrHandle)                   - URL decomposition
//	http.cancelAll()                             - teardown of pending requests
//
// # Synchronous Requests
//
// Blocking calls return {status, body, headers}:
//
//	const resp = http.get('https://example.com/');
//	resp.status;   // 200
//	resp.body;     // response body, decoded as UTF-8
//	resp.headers;  // header name → value mapping
//
// A transport failure (DNS, connection, TLS, timeout) throws; an HTTP error
// status does not. This lets callers tell "the request ran to an HTTP
// status" apart from "the request never reached the server".
//
// # Asynchronous Requests
//
// Asynchronous calls take a callback and return a numeric request id:
//
//	http.asyncGet('https://example.com/', null, function (status, body, headers) {
//	    if (status < 0) {
//	        // failure: body is a human-readable message, headers is absent
//	        return;
//	    }
//	    // success: three arguments, as with the synchronous result
//	});
//
// The callback is invoked with three arguments (status, body, headers) on
// success, or two arguments (status, message) on failure, where the failure
// status is always [StatusTransportError] (negative). Callers inspect the
// status sign or the argument count to distinguish the two. Every accepted
// request produces exactly one callback invocation, unless it is torn down
// by cancelAll() first, in which case it produces none.
//
// asyncRequest accepts an optional options object:
//
//	http.asyncRequest(url, 'GET', null, null, cb, {
//	    cachePolicy: 'ignoreLocalCache',   // or protocolCachePolicy,
//	                                       // returnCacheOrLoad, returnCacheDontLoad
//	    networkServiceType: 'background',  // or default, VoIP, video, voice
//	});
//
// Unrecognized tags leave the underlying transport at its default.
//
// # Headers
//
// Caller-supplied header mappings must have string values; entries with
// non-string values are ignored. The fields Authorization, Connection,
// Host, WWW-Authenticate, and Content-Length are managed by the transport
// layer and are stripped from caller mappings.
//
// # URL Decomposition
//
// urlParts accepts a URL string (or an object carrying a resolved URL via
// a string href property) and returns its components:
//
//	const parts = http.urlParts('http://user:pw@host.example.com:8080/a/b.txt?k=v#frag');
//	parts.host;        // 'host.example.com'
//	parts.port;        // 8080
//	parts.path;        // '/a/b.txt'
//	parts.queryItems;  // [{name: 'k', value: 'v'}]
//
// Query items preserve the order of the original query string and
// distinguish an absent value ('key') from an empty one ('key='): absent
// values leave the item's value property unset. A '+' in the query is
// treated as an encoded space before percent-decoding.
//
// # Teardown
//
// cancelAll(), or [Module.Close] from Go, cancels every in-flight
// asynchronous request, releases its callback without invoking it, and
// empties the registry. The embedding environment must call Close on
// shutdown; relying on garbage collection to cancel requests is not
// supported.
//
// # Encoding
//
// Request bodies are passed through as raw bytes, in whatever encoding the
// caller produced. Response bodies are always decoded as UTF-8, replacing
// invalid sequences rather than failing. The asymmetry is deliberate and
// mirrors the module's observable contract.
//
// # Architecture
//
// The module uses net/http as its transport layer. Each asynchronous
// request runs its blocking I/O on its own goroutine; transport events
// (response header, data chunk, completion, error) flow into the [Manager],
// which owns the registry of in-flight requests. The manager removes the
// registry entry as the single authoritative terminal action, then marshals
// the callback invocation onto the event loop via
// [eventloop.EventLoop.RunOnLoop]; callbacks never run on transport
// goroutines, and the registry lock is never held while script code
// executes. Callback exceptions are logged (see [WithLogger]) and never
// propagate into the transport layer.
//
// # Usage
//
//	registry := require.NewRegistry()
//	loop := eventloop.NewEventLoop(eventloop.WithRegistry(registry))
//
//	registry.RegisterNativeModule("http", gojahttp.Require(
//	    gojahttp.WithLoop(loop),
//	))
//
//	loop.Run(func(rt *goja.Runtime) {
//	    _, _ = rt.RunString(`
//	        const http = require('http');
//	        http.asyncGet('https://example.com/', null, function (status, body) {});
//	    `)
//	})
//
// [goja_nodejs/require]: github.com/dop251/goja_nodejs/require
// [eventloop.EventLoop.RunOnLoop]: github.com/dop251/goja_nodejs/eventloop
package gojahttp
