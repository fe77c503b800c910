package http

import (
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/freekieb7/websrv/http"

// instruments holds the tracer and meters shared by the server and its pool.
type instruments struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator

	requests      metric.Int64Counter
	parseFailures metric.Int64Counter
	duration      metric.Float64Histogram
	busyWorkers   metric.Int64UpDownCounter
	queuedJobs    metric.Int64UpDownCounter
}

func newInstruments(tp trace.TracerProvider, mp metric.MeterProvider, propagator propagation.TextMapPropagator) (*instruments, error) {
	if propagator == nil {
		propagator = otel.GetTextMapPropagator()
	}
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	meter := mp.Meter(instrumentationName)
	inst := &instruments{
		tracer:     tp.Tracer(instrumentationName),
		propagator: propagator,
	}

	var err error
	inst.requests, err = meter.Int64Counter("websrv.server.requests",
		metric.WithDescription("Requests answered, by method and status"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}

	inst.parseFailures, err = meter.Int64Counter("websrv.server.parse_failures",
		metric.WithDescription("Connections dropped because the request could not be parsed"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return nil, err
	}

	inst.duration, err = meter.Float64Histogram("websrv.server.request.duration",
		metric.WithDescription("Time from first byte read to response flushed"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	inst.busyWorkers, err = meter.Int64UpDownCounter("websrv.pool.busy_workers",
		metric.WithDescription("Workers currently executing a job"),
		metric.WithUnit("{worker}"))
	if err != nil {
		return nil, err
	}

	inst.queuedJobs, err = meter.Int64UpDownCounter("websrv.pool.queued_jobs",
		metric.WithDescription("Jobs waiting for a worker"),
		metric.WithUnit("{job}"))
	if err != nil {
		return nil, err
	}

	return inst, nil
}

// headerCarrier exposes request headers to a propagator. Only Get and Keys
// read the request; Set appends to the carrier's own slice.
type headerCarrier []Header

func (carrier *headerCarrier) Get(key string) string {
	for _, header := range *carrier {
		if strings.EqualFold(header.Key, key) {
			return header.Value
		}
	}
	return ""
}

func (carrier *headerCarrier) Set(key string, value string) {
	*carrier = append(*carrier, Header{Key: key, Value: value})
}

func (carrier *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(*carrier))
	for _, header := range *carrier {
		keys = append(keys, header.Key)
	}
	return keys
}
