package http

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultReadBufferSize  = 4096 // 4kB
	DefaultWriteBufferSize = 4096 // 4kB
	DefaultWorkers         = 4

	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// Server accepts connections and serves exactly one request on each of them
// with a fixed pool of workers.
type Server struct {
	Name    string
	Router  Router
	Workers int
	// ReadBufferSize bounds the single read taken from each connection.
	// Anything beyond it is not seen by the parser.
	ReadBufferSize int

	Logger         *slog.Logger
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	// Propagator extracts trace context from request headers. Nil means the
	// global propagator.
	Propagator propagation.TextMapPropagator

	initOnce   sync.Once
	initErr    error
	routes     Router
	inst       *instruments
	bufferPool sync.Pool

	mu       sync.Mutex
	listener net.Listener
	pool     *WorkerPool
	done     chan struct{}
	pending  map[net.Conn]struct{}
	closed   atomic.Bool
}

func NewServer(name string, router Router) *Server {
	return &Server{
		Name:           name,
		Router:         router,
		Workers:        DefaultWorkers,
		ReadBufferSize: DefaultReadBufferSize,
	}
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// init freezes the route table and builds the telemetry instruments. It runs
// once; later changes to s.Router are not seen.
func (s *Server) init() error {
	s.initOnce.Do(func() {
		if s.ReadBufferSize <= 0 {
			s.ReadBufferSize = DefaultReadBufferSize
		}

		if err := s.Router.Validate(); err != nil {
			s.initErr = err
			return
		}

		recoverer := RecoverMiddleware(s.logger())
		s.routes = s.Router.clone()
		for i := range s.routes.Routes {
			s.routes.Routes[i].Handler = recoverer(s.routes.Routes[i].Handler)
		}
		if s.routes.NotFound == nil {
			s.routes.NotFound = NotFoundHandler
		}
		s.routes.NotFound = recoverer(s.routes.NotFound)

		s.inst, s.initErr = newInstruments(s.TracerProvider, s.MeterProvider, s.Propagator)

		size := s.ReadBufferSize
		s.bufferPool.New = func() any {
			buf := make([]byte, size)
			return &buf
		}
	})

	return s.initErr
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}

	return s.Serve(listener)
}

// Serve accepts connections on listener and hands each one to the worker pool.
// The route table is validated and the pool started before the first accept.
// Serve returns ErrServerClosed after Shutdown; by then the pool has stopped
// and connections that never reached a worker are closed.
func (s *Server) Serve(listener net.Listener) error {
	if err := s.init(); err != nil {
		listener.Close()
		return err
	}

	pool, err := NewWorkerPool(s.Workers,
		WithPoolLogger(s.logger()),
		WithPoolMetrics(s.inst.busyWorkers, s.inst.queuedJobs),
	)
	if err != nil {
		listener.Close()
		return err
	}

	s.mu.Lock()
	if s.closed.Load() || s.listener != nil {
		s.mu.Unlock()
		pool.Shutdown()
		listener.Close()
		return ErrServerClosed
	}
	s.listener = listener
	s.pool = pool
	s.done = make(chan struct{})
	s.pending = make(map[net.Conn]struct{})
	done := s.done
	s.mu.Unlock()

	defer close(done)
	defer s.closePending()
	defer pool.Shutdown()

	s.logger().Info("listening", "server", s.Name, "addr", listener.Addr().String(), "workers", pool.Size())

	var delay time.Duration
	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.closed.Load() || errors.Is(err, net.ErrClosed) {
				return ErrServerClosed
			}

			delay = acceptDelay(delay)
			s.logger().Error("failed to accept connection", "error", err, "retry_in", delay)
			time.Sleep(delay)
			continue
		}
		delay = 0

		s.trackPending(conn, true)
		err = pool.Submit(func() {
			s.trackPending(conn, false)
			s.ServeConn(conn)
		})
		if err != nil {
			s.trackPending(conn, false)
			conn.Close()
			return err
		}
	}
}

// Shutdown stops accepting, lets running connections finish and waits for
// Serve to return or ctx to end.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closed.Store(true)

	s.mu.Lock()
	listener, done := s.listener, s.done
	s.mu.Unlock()

	if listener == nil {
		return nil
	}

	if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) trackPending(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if add {
		s.pending[conn] = struct{}{}
	} else {
		delete(s.pending, conn)
	}
}

func (s *Server) closePending() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) > 0 {
		s.logger().Info("closing connections that never reached a worker", "connections", len(s.pending))
	}
	for conn := range s.pending {
		conn.Close()
		delete(s.pending, conn)
	}
}

// acceptDelay returns the pause after a failed accept: minAcceptDelay first,
// then double the previous pause, up to maxAcceptDelay.
func acceptDelay(prev time.Duration) time.Duration {
	if prev == 0 {
		return minAcceptDelay
	}
	return min(prev*2, maxAcceptDelay)
}

// ServeConn serves one request on conn and closes it. The request must arrive
// in a single read; a request that fails to parse gets no response at all.
func (s *Server) ServeConn(conn net.Conn) {
	defer conn.Close()

	start := time.Now()
	logger := s.logger().With("conn.id", uuid.New().String())

	if err := s.init(); err != nil {
		logger.Error("server not usable", "error", err)
		return
	}

	bufPtr := s.bufferPool.Get().(*[]byte)
	defer s.bufferPool.Put(bufPtr)
	buf := *bufPtr

	n, err := conn.Read(buf)
	if n == 0 {
		logger.Debug("connection closed before request", "remote_addr", addrString(conn.RemoteAddr()), "error", err)
		return
	}

	req, err := ParseRequest(buf[:n])
	if err != nil {
		s.inst.parseFailures.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("error.type", parseErrorType(err))))
		logger.Debug("dropping malformed request", "remote_addr", addrString(conn.RemoteAddr()), "error", err)
		return
	}

	carrier := headerCarrier(slices.Clip(req.Headers))
	ctx := s.inst.propagator.Extract(context.Background(), &carrier)
	ctx, span := s.inst.tracer.Start(ctx, req.Method.String()+" "+req.URI,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method.String()),
			attribute.String("url.path", req.URI),
			attribute.String("network.protocol.version", req.HTTPVer),
			attribute.String("client.address", addrString(conn.RemoteAddr())),
		),
	)
	defer span.End()
	req = req.WithContext(ctx)

	status, body, matched, err := s.routes.Dispatch(req)
	if err != nil {
		logger.ErrorContext(ctx, "handler failed", "uri", req.URI, "error", err)
		span.RecordError(err)
		status, body = StatusInternalServerError, StatusInternalServerError.Reason()
	}

	span.SetAttributes(
		attribute.Int("http.response.status_code", int(status)),
		attribute.Bool("websrv.route.matched", matched),
	)
	if status >= StatusInternalServerError {
		span.SetStatus(codes.Error, status.Text())
	}

	res := Response{Protocol: Protocol, Status: status, Body: body}
	bw := bufio.NewWriterSize(conn, DefaultWriteBufferSize)
	if err := res.Write(bw); err != nil {
		span.RecordError(err)
		logger.DebugContext(ctx, "writing response failed", "error", err)
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("http.request.method", req.Method.String()),
		attribute.Int("http.response.status_code", int(status)),
		attribute.Bool("websrv.route.matched", matched),
	)
	s.inst.requests.Add(ctx, 1, attrs)
	s.inst.duration.Record(ctx, time.Since(start).Seconds(), attrs)

	logger.InfoContext(ctx, "request",
		"local_addr", addrString(conn.LocalAddr()),
		"remote_addr", addrString(conn.RemoteAddr()),
		"uri", req.URI,
		"status", status.Text(),
	)
}

func addrString(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	return addr.String()
}

func parseErrorType(err error) string {
	switch {
	case errors.Is(err, ErrUnrecognizedMethod):
		return "unrecognized_method"
	case errors.Is(err, ErrMalformedHeader):
		return "malformed_header"
	case errors.Is(err, ErrMalformedRequestLine):
		return "malformed_request_line"
	default:
		return "other"
	}
}
