package gojahttp

import (
	"context"
	"errors"
	"net/http"

	"github.com/dop251/goja"
)

// jsCallback adapts a goja function to the manager's [Callback] interface.
// Its methods run on the event loop goroutine (the manager dispatches all
// invocations through the loop), so touching the runtime is safe. A thrown
// JS exception surfaces as the returned error.
type jsCallback struct {
	m  *Module
	fn goja.Callable
}

func (c *jsCallback) Success(status int, body string, headers map[string]string) error {
	rt := c.m.runtime
	_, err := c.fn(goja.Undefined(), rt.ToValue(status), rt.ToValue(body), rt.ToValue(headers))
	return err
}

func (c *jsCallback) Failure(status int, message string) error {
	rt := c.m.runtime
	_, err := c.fn(goja.Undefined(), rt.ToValue(status), rt.ToValue(message))
	return err
}

// jsRequest implements http.request(url, method, body?, headers?). It
// blocks the calling context until the exchange reaches a terminal
// outcome, then returns {status, body, headers}. Transport failures throw;
// HTTP error statuses do not.
func (m *Module) jsRequest(call goja.FunctionCall) goja.Value {
	spec := RequestSpec{
		URL:     m.argString(call.Argument(0), "url"),
		Method:  m.argString(call.Argument(1), "method"),
		Body:    m.parseBody(call.Argument(2)),
		Headers: m.parseHeaders(call.Argument(3)),
	}
	return m.doSync(spec)
}

// jsGet implements http.get(url, headers?).
func (m *Module) jsGet(call goja.FunctionCall) goja.Value {
	spec := RequestSpec{
		URL:     m.argString(call.Argument(0), "url"),
		Method:  http.MethodGet,
		Headers: m.parseHeaders(call.Argument(1)),
	}
	return m.doSync(spec)
}

// jsPost implements http.post(url, body?, headers?).
func (m *Module) jsPost(call goja.FunctionCall) goja.Value {
	spec := RequestSpec{
		URL:     m.argString(call.Argument(0), "url"),
		Method:  http.MethodPost,
		Body:    m.parseBody(call.Argument(1)),
		Headers: m.parseHeaders(call.Argument(2)),
	}
	return m.doSync(spec)
}

func (m *Module) doSync(spec RequestSpec) goja.Value {
	resp, err := Do(context.Background(), m.client, spec)
	if err != nil {
		var transportErr *TransportError
		if errors.As(err, &transportErr) {
			panic(m.runtime.NewGoError(err))
		}
		panic(m.runtime.NewTypeError(err.Error()))
	}
	return m.responseValue(resp)
}

func (m *Module) responseValue(resp *Response) goja.Value {
	obj := m.runtime.NewObject()
	_ = obj.Set("status", resp.Status)
	_ = obj.Set("body", resp.Body)
	_ = obj.Set("headers", m.runtime.ToValue(resp.Headers))
	return obj
}

// jsAsyncRequest implements
// http.asyncRequest(url, method, body?, headers?, callback, options?),
// returning the numeric id of the registered request. The callback receives
// (status, body, headers) on success or (status, message) on failure, where
// the failure status is always negative.
func (m *Module) jsAsyncRequest(call goja.FunctionCall) goja.Value {
	spec := RequestSpec{
		URL:     m.argString(call.Argument(0), "url"),
		Method:  m.argString(call.Argument(1), "method"),
		Body:    m.parseBody(call.Argument(2)),
		Headers: m.parseHeaders(call.Argument(3)),
	}
	fn := m.argCallable(call.Argument(4))
	m.applyRequestOptions(call.Argument(5), &spec)
	return m.submit(spec, fn)
}

// jsAsyncGet implements http.asyncGet(url, headers?, callback).
func (m *Module) jsAsyncGet(call goja.FunctionCall) goja.Value {
	spec := RequestSpec{
		URL:     m.argString(call.Argument(0), "url"),
		Method:  http.MethodGet,
		Headers: m.parseHeaders(call.Argument(1)),
	}
	return m.submit(spec, m.argCallable(call.Argument(2)))
}

// jsAsyncPost implements http.asyncPost(url, body?, headers?, callback).
func (m *Module) jsAsyncPost(call goja.FunctionCall) goja.Value {
	spec := RequestSpec{
		URL:     m.argString(call.Argument(0), "url"),
		Method:  http.MethodPost,
		Body:    m.parseBody(call.Argument(1)),
		Headers: m.parseHeaders(call.Argument(2)),
	}
	return m.submit(spec, m.argCallable(call.Argument(3)))
}

func (m *Module) submit(spec RequestSpec, fn goja.Callable) goja.Value {
	id, err := m.manager.Submit(spec, &jsCallback{m: m, fn: fn})
	if err != nil {
		panic(m.runtime.NewTypeError(err.Error()))
	}
	return m.runtime.ToValue(id)
}

// jsCancelAll implements http.cancelAll(), tearing down every pending
// asynchronous request without invoking callbacks. Returns the number of
// requests cancelled.
func (m *Module) jsCancelAll(goja.FunctionCall) goja.Value {
	return m.runtime.ToValue(m.manager.CancelAll())
}

// jsURLParts implements http.urlParts(urlOrHandle), accepting a URL string
// or an object that already carries a resolved URL via a string href
// property.
func (m *Module) jsURLParts(call goja.FunctionCall) goja.Value {
	parts, err := ParseURLParts(m.urlPartsInput(call.Argument(0)))
	if err != nil {
		panic(m.runtime.NewTypeError(err.Error()))
	}
	return m.urlPartsValue(parts)
}

func (m *Module) urlPartsInput(v goja.Value) string {
	if v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
		if s, ok := v.Export().(string); ok {
			return s
		}
		if obj, ok := v.(*goja.Object); ok {
			if href := obj.Get("href"); href != nil {
				if s, ok := href.Export().(string); ok {
					return s
				}
			}
		}
	}
	panic(m.runtime.NewTypeError("url must be a string or URL-like object"))
}

// urlPartsValue renders URLParts as the JS mapping. Absent components are
// omitted rather than set to empty values, so scripts can distinguish "no
// fragment" from an empty one by key presence.
func (m *Module) urlPartsValue(p *URLParts) goja.Value {
	rt := m.runtime
	obj := rt.NewObject()

	_ = obj.Set("absoluteString", p.AbsoluteString)
	_ = obj.Set("absoluteURL", p.AbsoluteURL)
	if p.BaseURL != "" {
		_ = obj.Set("baseURL", p.BaseURL)
	}
	_ = obj.Set("fileSystemRepresentation", p.FileSystemRepresentation)
	if p.Fragment != "" {
		_ = obj.Set("fragment", p.Fragment)
	}
	if p.Host != "" {
		_ = obj.Set("host", p.Host)
	}
	_ = obj.Set("isFileURL", p.IsFileURL)
	if p.LastPathComponent != "" {
		_ = obj.Set("lastPathComponent", p.LastPathComponent)
	}
	if p.ParameterString != "" {
		_ = obj.Set("parameterString", p.ParameterString)
	}
	if p.Password != "" {
		_ = obj.Set("password", p.Password)
	}
	_ = obj.Set("path", p.Path)
	if p.PathComponents != nil {
		_ = obj.Set("pathComponents", rt.ToValue(p.PathComponents))
	}
	if p.PathExtension != "" {
		_ = obj.Set("pathExtension", p.PathExtension)
	}
	if p.Port != 0 {
		_ = obj.Set("port", p.Port)
	}
	if p.QueryItems != nil {
		_ = obj.Set("query", p.Query)
		items := make([]interface{}, len(p.QueryItems))
		for i, item := range p.QueryItems {
			o := rt.NewObject()
			_ = o.Set("name", item.Name)
			if item.Value != nil {
				_ = o.Set("value", *item.Value)
			}
			items[i] = o
		}
		_ = obj.Set("queryItems", rt.NewArray(items...))
	}
	_ = obj.Set("relativePath", p.RelativePath)
	_ = obj.Set("relativeString", p.RelativeString)
	_ = obj.Set("resourceSpecifier", p.ResourceSpecifier)
	if p.Scheme != "" {
		_ = obj.Set("scheme", p.Scheme)
	}
	_ = obj.Set("standardizedURL", p.StandardizedURL)
	if p.User != "" {
		_ = obj.Set("user", p.User)
	}

	return obj
}

// ----------------------- argument parsing -----------------------

func (m *Module) argString(v goja.Value, name string) string {
	if v != nil {
		if s, ok := v.Export().(string); ok && s != "" {
			return s
		}
	}
	panic(m.runtime.NewTypeError("%s must be a non-empty string", name))
}

func (m *Module) argCallable(v goja.Value) goja.Callable {
	fn, ok := goja.AssertFunction(v)
	if !ok {
		panic(m.runtime.NewTypeError("callback must be a function"))
	}
	return fn
}

// parseBody accepts a string or ArrayBuffer body argument. Absent, null,
// and undefined all mean no body. String bytes are sent verbatim; no
// transcoding happens on the request path.
func (m *Module) parseBody(v goja.Value) []byte {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	switch t := v.Export().(type) {
	case string:
		return []byte(t)
	case goja.ArrayBuffer:
		b := t.Bytes()
		out := make([]byte, len(b))
		copy(out, b)
		return out
	}
	panic(m.runtime.NewTypeError("body must be a string or ArrayBuffer"))
}

// parseHeaders converts a JS object into a string→string header mapping.
// Entries whose values are not strings are ignored, per the boundary
// contract.
func (m *Module) parseHeaders(v goja.Value) map[string]string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		panic(m.runtime.NewTypeError("headers must be an object"))
	}
	headers := make(map[string]string)
	for _, key := range obj.Keys() {
		v := obj.Get(key)
		if v == nil {
			continue
		}
		if s, ok := v.Export().(string); ok {
			headers[key] = s
		}
	}
	return headers
}

// applyRequestOptions extracts cachePolicy and networkServiceType tags
// from the options argument. Unrecognized tags leave the corresponding
// field at its default.
func (m *Module) applyRequestOptions(v goja.Value, spec *RequestSpec) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		panic(m.runtime.NewTypeError("options must be an object"))
	}
	if v := obj.Get("cachePolicy"); v != nil {
		if tag, ok := v.Export().(string); ok {
			spec.CachePolicy = ParseCachePolicy(tag)
		}
	}
	if v := obj.Get("networkServiceType"); v != nil {
		if tag, ok := v.Export().(string); ok {
			spec.ServiceType = ParseNetworkServiceType(tag)
		}
	}
}
