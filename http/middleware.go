package http

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

type Middleware func(next Handler) Handler

// RecoverMiddleware turns a panicking handler into an ErrHandlerPanic error so
// the worker running the connection survives and the client gets a 500.
func RecoverMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next Handler) Handler {
		return HandlerFunc(func(req *Request) (status StatusCode, body string, err error) {
			defer func() {
				if recovered := recover(); recovered != nil {
					logger.ErrorContext(req.Context(), "handler panicked",
						"uri", req.URI,
						"panic", recovered,
						"stack", string(debug.Stack()),
					)

					status, body, err = 0, "", fmt.Errorf("%w: %v", ErrHandlerPanic, recovered)
				}
			}()

			return next.ServeRequest(req)
		})
	}
}
