// Package config loads the server settings from defaults, the environment and
// command-line flags, in that order of precedence.
package config

import (
	"flag"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/freekieb7/websrv/validation"
)

const (
	DefaultAddr           = "127.0.0.1:7878"
	DefaultWorkers        = 4
	DefaultReadBufferSize = 4096
	DefaultTemplateDir    = "templates"
	DefaultServiceName    = "websrv"
)

type Config struct {
	Addr           string
	Workers        int
	ReadBufferSize int
	TemplateDir    string
	ServiceName    string
	// OTLPEndpoint enables OTLP export over gRPC when set, either as
	// "127.0.0.1:4317" or as a URL such as "http://127.0.0.1:4317".
	OTLPEndpoint string
	LogLevel     slog.Level
}

func Default() Config {
	return Config{
		Addr:           DefaultAddr,
		Workers:        DefaultWorkers,
		ReadBufferSize: DefaultReadBufferSize,
		TemplateDir:    DefaultTemplateDir,
		ServiceName:    DefaultServiceName,
		LogLevel:       slog.LevelInfo,
	}
}

// Load builds a Config from getenv and args. args excludes the program name.
func Load(args []string, getenv func(string) string) (Config, error) {
	cfg := Default()
	if err := cfg.applyEnv(getenv); err != nil {
		return cfg, err
	}

	fs := flag.NewFlagSet("websrv", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "bind address (host:port)")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "number of worker goroutines")
	fs.IntVar(&cfg.ReadBufferSize, "read-buffer-size", cfg.ReadBufferSize, "bytes read from each connection")
	fs.StringVar(&cfg.TemplateDir, "templates", cfg.TemplateDir, "directory holding the html templates")
	fs.StringVar(&cfg.ServiceName, "service-name", cfg.ServiceName, "service name reported to telemetry")
	fs.StringVar(&cfg.OTLPEndpoint, "otlp-endpoint", cfg.OTLPEndpoint, "OTLP gRPC endpoint; empty disables export")
	fs.TextVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

func (cfg *Config) applyEnv(getenv func(string) string) error {
	if getenv == nil {
		return nil
	}

	if v := getenv("WEBSRV_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := getenv("WEBSRV_TEMPLATE_DIR"); v != "" {
		cfg.TemplateDir = v
	}
	if v := getenv("OTEL_SERVICE_NAME"); v != "" {
		cfg.ServiceName = v
	}
	if v := getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.OTLPEndpoint = v
	}

	for key, target := range map[string]*int{
		"WEBSRV_WORKERS":          &cfg.Workers,
		"WEBSRV_READ_BUFFER_SIZE": &cfg.ReadBufferSize,
	} {
		v := getenv(key)
		if v == "" {
			continue
		}

		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		*target = n
	}

	if v := getenv("WEBSRV_LOG_LEVEL"); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("config: WEBSRV_LOG_LEVEL: %w", err)
		}
	}

	return nil
}

// Validate checks the settings the server cannot start without. A worker
// count below one is rejected here, before anything listens.
func (cfg Config) Validate() error {
	violations := validation.ValidateMap(map[string]any{
		"addr":             cfg.Addr,
		"workers":          cfg.Workers,
		"read_buffer_size": cfg.ReadBufferSize,
		"template_dir":     cfg.TemplateDir,
		"service_name":     cfg.ServiceName,
	}, map[string][]string{
		"addr":             {"required", "hostport"},
		"workers":          {"min:1"},
		"read_buffer_size": {"min:64", "max:1048576"},
		"template_dir":     {"required"},
		"service_name":     {"required"},
	})

	if err := violations.Err(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	return nil
}
