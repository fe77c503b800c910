package telemetry

import (
	"context"
	"testing"

	"github.com/freekieb7/websrv/test"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func TestSetupWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{ServiceName: "websrv-test"})
	if !test.AssertNoError(t, err) {
		t.FailNow()
	}

	fields := otel.GetTextMapPropagator().Fields()
	test.AssertTrue(t, contains(fields, "traceparent"), "trace context propagator not installed")
	test.AssertTrue(t, contains(fields, "baggage"), "baggage propagator not installed")

	test.AssertNoError(t, shutdown(context.Background()))
}

func TestNewResource(t *testing.T) {
	t.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment=test")
	t.Setenv("OTEL_SERVICE_NAME", "")

	res, err := NewResource(context.Background(), "websrv-test")
	if !test.AssertNoError(t, err) {
		t.FailNow()
	}

	name, found := res.Set().Value(semconv.ServiceNameKey)
	test.AssertTrue(t, found, "service.name missing")
	test.AssertEqual(t, "websrv-test", name.AsString())

	env, found := res.Set().Value("deployment.environment")
	test.AssertTrue(t, found, "attributes from the environment missing")
	test.AssertEqual(t, "test", env.AsString())
}

func TestPropagatorRoundTrip(t *testing.T) {
	carrier := propagation.MapCarrier{
		"traceparent": "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
	}

	ctx := NewPropagator().Extract(context.Background(), carrier)
	out := propagation.MapCarrier{}
	NewPropagator().Inject(ctx, out)

	test.AssertEqual(t, carrier["traceparent"], out["traceparent"])
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		insecure bool
		hostport string
		tls      bool
	}{
		{"127.0.0.1:4317", true, "127.0.0.1:4317", false},
		{"collector:4317", false, "collector:4317", true},
		{"http://127.0.0.1:4317", false, "127.0.0.1:4317", false},
		{"https://collector.example.com", true, "collector.example.com:4317", true},
		{"http://[::1]:14317/", false, "[::1]:14317", false},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			hostport, insecure, err := ParseEndpoint(tt.endpoint, tt.insecure)
			if !test.AssertNoError(t, err) {
				return
			}
			test.AssertEqual(t, tt.hostport, hostport)
			test.AssertEqual(t, !tt.tls, insecure)
		})
	}
}

func TestParseEndpointRejectsInvalid(t *testing.T) {
	for _, endpoint := range []string{"ftp://collector:4317", "http://", "http://%zz"} {
		_, _, err := ParseEndpoint(endpoint, true)
		test.AssertTrue(t, err != nil, "expected an error for "+endpoint)
	}
}

func TestSetupRejectsInvalidEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{ServiceName: "websrv-test", Endpoint: "ftp://collector:4317"})
	test.AssertTrue(t, err != nil, "expected an error")
	test.AssertNoError(t, shutdown(context.Background()))
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
