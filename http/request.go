package http

import (
	"context"
	"fmt"
	"strings"
)

const headerSeparator = ": "

type Header struct {
	Key   string
	Value string
}

// Request is a parsed request. It is not modified after ParseRequest returns;
// WithContext hands out a copy instead.
type Request struct {
	Method  Method
	URI     string
	HTTPVer string
	Headers []Header
	Body    string

	ctx context.Context
}

// ParseRequest turns one read buffer into a Request. Lines end in "\n" with an
// optional "\r". The request line needs a known verb and exactly three
// whitespace separated tokens, header lines need a ": " separator, and whatever
// follows the first blank line is the body with its line breaks removed.
// No Request is returned on error.
func ParseRequest(buf []byte) (*Request, error) {
	lines := strings.Split(string(buf), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}

	parts := strings.Fields(lines[0])
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: empty request line", ErrMalformedRequestLine)
	}

	method, err := ParseMethod(parts[0])
	if err != nil {
		return nil, err
	}

	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: %q", ErrMalformedRequestLine, lines[0])
	}

	req := Request{
		Method:  method,
		URI:     parts[1],
		HTTPVer: parts[2],
		Headers: make([]Header, 0, 8),
	}

	rest := lines[1:]
	for len(rest) > 0 {
		line := rest[0]
		rest = rest[1:]
		if line == "" {
			break // end of headers
		}

		key, value, found := strings.Cut(line, headerSeparator)
		if !found {
			return nil, fmt.Errorf("%w: %q", ErrMalformedHeader, line)
		}
		req.Headers = append(req.Headers, Header{Key: key, Value: value})
	}

	req.Body = strings.Join(rest, "")

	return &req, nil
}

// HeaderValue returns the value of the first header whose key matches name,
// ignoring case.
func (req *Request) HeaderValue(name string) (string, bool) {
	for _, header := range req.Headers {
		if strings.EqualFold(header.Key, name) {
			return header.Value, true
		}
	}
	return "", false
}

// HeaderValues returns every value for name in arrival order.
func (req *Request) HeaderValues(name string) []string {
	var values []string
	for _, header := range req.Headers {
		if strings.EqualFold(header.Key, name) {
			values = append(values, header.Value)
		}
	}
	return values
}

// Context returns the request context, or context.Background when none is set.
func (req *Request) Context() context.Context {
	if req.ctx != nil {
		return req.ctx
	}
	return context.Background()
}

// WithContext returns a shallow copy of req carrying ctx.
func (req *Request) WithContext(ctx context.Context) *Request {
	if ctx == nil {
		panic("nil context")
	}

	r2 := *req
	r2.ctx = ctx
	return &r2
}
