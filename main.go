package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/freekieb7/websrv/config"
	"github.com/freekieb7/websrv/filesystem"
	"github.com/freekieb7/websrv/http"
	"github.com/freekieb7/websrv/telemetry"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const name = "github.com/freekieb7/websrv"

func main() {
	if err := run(context.Background()); err != nil {
		log.Fatalln(err)
	}
}

func run(ctx context.Context) (err error) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		return err
	}

	otelShutdown, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: cfg.ServiceName,
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    true,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = errors.Join(err, otelShutdown(shutdownCtx))
	}()

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	templates := filesystem.NewLocalFileSystem(cfg.TemplateDir)
	if err := checkTemplates(templates, pages...); err != nil {
		return err
	}

	server := http.NewServer(cfg.ServiceName, routes(templates))
	server.Workers = cfg.Workers
	server.ReadBufferSize = cfg.ReadBufferSize
	server.Logger = logger

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.ListenAndServe(ctx, cfg.Addr)
	}()

	select {
	case err := <-serverErrCh:
		return err
	case <-ctx.Done():
		stop()
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := <-serverErrCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newLogger(cfg config.Config) *slog.Logger {
	if cfg.OTLPEndpoint != "" {
		return otelslog.NewLogger(name)
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
}

// pages are the templates the routes serve.
var pages = []string{http.NotFoundPage, "hello.html", "403.html"}

// checkTemplates fails when any of names is missing from templates.
func checkTemplates(templates filesystem.Filesystem, names ...string) error {
	var errs []error
	for _, name := range names {
		exists, err := templates.FileExists(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !exists {
			errs = append(errs, fmt.Errorf("%w: %s", filesystem.ErrFileNotFound, name))
		}
	}

	return errors.Join(errs...)
}

func routes(templates filesystem.Filesystem) http.Router {
	router := http.NewContentRouter(templates)

	router.Handle(http.MethodGet, "/hello", http.ContentHandler(templates, "hello.html", http.StatusOK))
	router.GET("/hello_go", helloGo)
	router.Handle(http.MethodGet, "/forbidden", http.ContentHandler(templates, "403.html", http.StatusForbidden))
	router.Handle(http.MethodGet, "/ping", http.TextHandler(http.StatusOK, "pong"))

	return router
}

func helloGo(req *http.Request) (http.StatusCode, string, error) {
	body, err := json.Marshal(struct {
		Message string      `json:"message"`
		Method  http.Method `json:"method"`
		URI     string      `json:"uri"`
		HTTPVer string      `json:"http_ver"`
	}{
		Message: "Hello from go!",
		Method:  req.Method,
		URI:     req.URI,
		HTTPVer: req.HTTPVer,
	})
	if err != nil {
		return 0, "", err
	}

	return http.StatusCreated, string(body), nil
}
