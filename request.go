package gojahttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/textproto"
)

// RequestSpec describes one outbound HTTP request in structured form, as
// accepted by both the synchronous executor and [Manager.Submit].
//
// Body, when non-nil, is sent verbatim: the bytes are whatever encoding the
// caller's environment produced, and no transcoding is applied on the
// request path. Response bodies, by contrast, are always decoded as UTF-8
// (see [Response]).
type RequestSpec struct {
	URL         string
	Method      string
	Body        []byte            // optional; nil means no body
	Headers     map[string]string // optional; managed fields are stripped
	CachePolicy CachePolicy
	ServiceType NetworkServiceType
}

// CachePolicy selects how caches participate in a request, expressed on the
// wire via the Cache-Control request header.
type CachePolicy uint8

const (
	// CachePolicyProtocol defers to the protocol's default caching.
	CachePolicyProtocol CachePolicy = iota
	// CachePolicyIgnoreLocalCache forces revalidation (Cache-Control: no-cache).
	CachePolicyIgnoreLocalCache
	// CachePolicyReturnCacheOrLoad answers from cache when possible,
	// loading otherwise. This is ordinary cache behavior, so no header is
	// emitted.
	CachePolicyReturnCacheOrLoad
	// CachePolicyReturnCacheDontLoad answers from cache only
	// (Cache-Control: only-if-cached).
	CachePolicyReturnCacheDontLoad
)

// ParseCachePolicy maps a cache policy tag to its [CachePolicy].
// Unrecognized tags (and the explicit "protocolCachePolicy" tag) leave the
// policy at its default.
func ParseCachePolicy(tag string) CachePolicy {
	switch tag {
	case "ignoreLocalCache":
		return CachePolicyIgnoreLocalCache
	case "returnCacheOrLoad":
		return CachePolicyReturnCacheOrLoad
	case "returnCacheDontLoad":
		return CachePolicyReturnCacheDontLoad
	}
	return CachePolicyProtocol
}

// NetworkServiceType is a quality-of-service hint for the request. net/http
// exposes no per-request QoS field, so the value is recorded on the
// [RequestSpec] but has no wire-level effect; unrecognized tags map to the
// default.
type NetworkServiceType uint8

const (
	NetworkServiceTypeDefault NetworkServiceType = iota
	NetworkServiceTypeVoIP
	NetworkServiceTypeVideo
	NetworkServiceTypeBackground
	NetworkServiceTypeVoice
)

// ParseNetworkServiceType maps a service type tag to its
// [NetworkServiceType]. Unrecognized tags map to the default.
func ParseNetworkServiceType(tag string) NetworkServiceType {
	switch tag {
	case "VoIP":
		return NetworkServiceTypeVoIP
	case "video":
		return NetworkServiceTypeVideo
	case "background":
		return NetworkServiceTypeBackground
	case "voice":
		return NetworkServiceTypeVoice
	}
	return NetworkServiceTypeDefault
}

// managedHeaderFields are owned by the transport layer and stripped from
// caller-supplied header mappings when a request is reconstructed from
// structured form. Keys are in canonical MIME header form.
var managedHeaderFields = map[string]struct{}{
	"Authorization":    {},
	"Connection":       {},
	"Host":             {},
	"Www-Authenticate": {},
	"Content-Length":   {},
}

func isManagedHeaderField(name string) bool {
	_, ok := managedHeaderFields[textproto.CanonicalMIMEHeaderKey(name)]
	return ok
}

// buildRequest constructs the outbound *http.Request for spec, validating
// required inputs, applying caller headers minus the managed fields, and
// expressing the cache policy. Content-Length is derived from the body.
func buildRequest(ctx context.Context, spec RequestSpec) (*http.Request, error) {
	if spec.URL == "" {
		return nil, errors.New("gojahttp: url must not be empty")
	}
	if spec.Method == "" {
		return nil, errors.New("gojahttp: method must not be empty")
	}

	var body io.Reader
	if spec.Body != nil {
		body = bytes.NewReader(spec.Body)
	}

	req, err := http.NewRequestWithContext(ctx, spec.Method, spec.URL, body)
	if err != nil {
		return nil, fmt.Errorf("gojahttp: invalid request: %w", err)
	}

	for name, value := range spec.Headers {
		if isManagedHeaderField(name) {
			continue
		}
		req.Header.Set(name, value)
	}

	switch spec.CachePolicy {
	case CachePolicyIgnoreLocalCache:
		req.Header.Set("Cache-Control", "no-cache")
	case CachePolicyReturnCacheDontLoad:
		req.Header.Set("Cache-Control", "only-if-cached")
	}

	return req, nil
}

// TransportError reports a request that failed before producing any HTTP
// response: DNS, connection, TLS, or timeout failures. It is distinct from
// HTTP error statuses, which are returned as ordinary responses; callers
// can rely on this to tell "request ran to an HTTP status" apart from
// "request never reached the server".
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return transportErrorMessage(e.URL, e.Err)
}

// Unwrap returns the underlying cause for use with [errors.Is] and
// [errors.As].
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Do issues one blocking HTTP request described by spec and returns the
// marshaled result. Validation failures return a plain error before any
// network activity; transport failures return a *[TransportError]. A nil
// client uses a zero-value [http.Client].
func Do(ctx context.Context, client *http.Client, spec RequestSpec) (*Response, error) {
	req, err := buildRequest(ctx, spec)
	if err != nil {
		return nil, err
	}
	if client == nil {
		client = &http.Client{}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &TransportError{URL: spec.URL, Err: err}
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{URL: spec.URL, Err: err}
	}

	return &Response{
		Status:  resp.StatusCode,
		Body:    marshalBody(b),
		Headers: flattenHeader(resp.Header),
	}, nil
}
