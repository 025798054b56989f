package inject

import (
	"bytes"
	"net/http"
)

// responseBuffer holds the downstream response so the head can be rewritten before
// anything reaches the client.
type responseBuffer struct {
	buffer  *bytes.Buffer
	headers http.Header
	status  int
}

func newResponseBuffer() *responseBuffer {
	return &responseBuffer{
		buffer:  new(bytes.Buffer),
		headers: make(http.Header),
	}
}

func (rb *responseBuffer) Header() http.Header {
	return rb.headers
}

func (rb *responseBuffer) Write(data []byte) (int, error) {
	if rb.status == 0 {
		rb.WriteHeader(http.StatusOK)
	}
	return rb.buffer.Write(data)
}

func (rb *responseBuffer) WriteHeader(statusCode int) {
	if rb.status == 0 {
		rb.status = statusCode
	}
}

// Status defaults to 200 like net/http does for handlers that never call WriteHeader.
func (rb *responseBuffer) Status() int {
	if rb.status == 0 {
		return http.StatusOK
	}
	return rb.status
}

func (rb *responseBuffer) Bytes() []byte {
	return rb.buffer.Bytes()
}
