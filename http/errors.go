package http

import "errors"

// errors for parsing
var (
	ErrMalformedRequestLine = errors.New("http: malformed request line")
	ErrUnrecognizedMethod   = errors.New("http: unrecognized method")
	ErrMalformedHeader      = errors.New("http: malformed header")
)

// errors for routing and handlers
var (
	ErrDuplicateRoute = errors.New("http: duplicate route")
	ErrInvalidRoute   = errors.New("http: invalid route")
	ErrHandlerPanic   = errors.New("http: handler panicked")
	ErrUnknownStatus  = errors.New("http: unknown status code")
)

// errors for the worker pool and server
var (
	ErrInvalidPoolSize = errors.New("http: worker pool size must be at least 1")
	ErrPoolClosed      = errors.New("http: worker pool is closed")
	ErrServerClosed    = errors.New("http: server closed")
)
