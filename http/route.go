package http

import (
	"github.com/freekieb7/websrv/filesystem"
)

// Handler produces the status and body for a request. A non-nil error is a
// handler failure and is answered with 500.
type Handler interface {
	ServeRequest(req *Request) (StatusCode, string, error)
}

type HandlerFunc func(req *Request) (StatusCode, string, error)

func (f HandlerFunc) ServeRequest(req *Request) (StatusCode, string, error) {
	return f(req)
}

type Route struct {
	Method  Method
	Path    string
	Handler Handler
}

// NotFoundHandler answers unmatched requests with an empty 404.
var NotFoundHandler Handler = HandlerFunc(func(req *Request) (StatusCode, string, error) {
	return StatusNotFound, "", nil
})

// ContentHandler serves the file name from store with a fixed status. The file
// is read on every request.
func ContentHandler(store filesystem.Filesystem, name string, status StatusCode) Handler {
	return HandlerFunc(func(req *Request) (StatusCode, string, error) {
		content, err := filesystem.ReadString(store, name)
		if err != nil {
			return 0, "", err
		}
		return status, content, nil
	})
}

// TextHandler always answers with status and body.
func TextHandler(status StatusCode, body string) Handler {
	return HandlerFunc(func(req *Request) (StatusCode, string, error) {
		return status, body, nil
	})
}
