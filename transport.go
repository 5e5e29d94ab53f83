package gojahttp

import (
	"io"
	"net/http"
)

// readChunkSize bounds individual body reads in the default transport.
const readChunkSize = 32 * 1024

// httpTransport is the default [Transport]. Each exchange runs in its own
// goroutine: the blocking Do call, then chunked body reads, all translated
// into sink events. Cancelling the request context aborts the exchange.
type httpTransport struct {
	client *http.Client
}

func newHTTPTransport(client *http.Client) *httpTransport {
	if client == nil {
		client = &http.Client{}
	}
	return &httpTransport{client: client}
}

func (t *httpTransport) Start(id uint64, req *http.Request, sink EventSink) {
	go func() {
		resp, err := t.client.Do(req)
		if err != nil {
			sink.Failed(id, err)
			return
		}
		defer resp.Body.Close()

		sink.ResponseReceived(id, resp.StatusCode, resp.Header)

		buf := make([]byte, readChunkSize)
		for {
			n, err := resp.Body.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				sink.DataReceived(id, chunk)
			}
			switch {
			case err == io.EOF:
				sink.Completed(id)
				return
			case err != nil:
				sink.Failed(id, err)
				return
			}
		}
	}()
}
