package http

import (
	"fmt"
	"slices"
	"strings"

	"github.com/freekieb7/websrv/filesystem"
)

// NotFoundPage is the file NewContentRouter serves for unmatched requests.
const NotFoundPage = "404.html"

// Router is an ordered route table. Routes are consulted in registration order
// and the first path and method match wins. A Router must not be changed once
// it has been handed to a Server.
type Router struct {
	Routes   []Route
	NotFound Handler
}

// NewRouter returns an empty table whose NotFound answers with an empty 404.
// Set NotFound, or use NewContentRouter, to serve a not-found page.
func NewRouter() Router {
	return Router{
		Routes:   make([]Route, 0),
		NotFound: NotFoundHandler,
	}
}

// NewContentRouter returns an empty table whose NotFound serves NotFoundPage
// from store with StatusNotFound.
func NewContentRouter(store filesystem.Filesystem) Router {
	router := NewRouter()
	router.NotFound = ContentHandler(store, NotFoundPage, StatusNotFound)
	return router
}

func (router *Router) GET(path string, handler HandlerFunc, middleware ...Middleware) {
	router.Handle(MethodGet, path, handler, middleware...)
}

func (router *Router) POST(path string, handler HandlerFunc, middleware ...Middleware) {
	router.Handle(MethodPost, path, handler, middleware...)
}

func (router *Router) PUT(path string, handler HandlerFunc, middleware ...Middleware) {
	router.Handle(MethodPut, path, handler, middleware...)
}

func (router *Router) PATCH(path string, handler HandlerFunc, middleware ...Middleware) {
	router.Handle(MethodPatch, path, handler, middleware...)
}

func (router *Router) DELETE(path string, handler HandlerFunc, middleware ...Middleware) {
	router.Handle(MethodDelete, path, handler, middleware...)
}

func (router *Router) Any(methods []Method, path string, handler Handler, middleware ...Middleware) {
	for _, method := range methods {
		router.Handle(method, path, handler, middleware...)
	}
}

// Handle appends a route. Middleware is applied in order, so the last one is
// the outermost.
func (router *Router) Handle(method Method, path string, handler Handler, middleware ...Middleware) {
	for _, middleware := range middleware {
		handler = middleware(handler)
	}

	router.Routes = append(router.Routes, Route{
		Method:  method,
		Path:    path,
		Handler: handler,
	})
}

// Group registers the routes added by groupFunc under prefix, wrapped in
// middlewareList.
func (router *Router) Group(prefix string, groupFunc func(group *Router), middlewareList ...Middleware) {
	group := NewRouter()

	groupFunc(&group)

	for _, route := range group.Routes {
		route.Path = prefix + route.Path
		for _, middleware := range middlewareList {
			route.Handler = middleware(route.Handler)
		}

		router.Routes = append(router.Routes, route)
	}
}

// Validate rejects routes with an unknown method, a path not starting with
// "/", a nil handler, or a path and method pair registered twice.
func (router *Router) Validate() error {
	type routeKey struct {
		method Method
		path   string
	}

	seen := make(map[routeKey]int, len(router.Routes))
	for i, route := range router.Routes {
		if !route.Method.Valid() {
			return fmt.Errorf("%w: route %d has method %s", ErrInvalidRoute, i, route.Method)
		}
		if !strings.HasPrefix(route.Path, "/") {
			return fmt.Errorf("%w: route %d has path %q", ErrInvalidRoute, i, route.Path)
		}
		if route.Handler == nil {
			return fmt.Errorf("%w: route %d (%s %s) has no handler", ErrInvalidRoute, i, route.Method, route.Path)
		}

		key := routeKey{method: route.Method, path: route.Path}
		if first, found := seen[key]; found {
			return fmt.Errorf("%w: %s %s registered as route %d and %d", ErrDuplicateRoute, route.Method, route.Path, first, i)
		}
		seen[key] = i
	}

	return nil
}

// Lookup returns the first route bound to method and path.
func (router *Router) Lookup(method Method, path string) (Route, bool) {
	for _, route := range router.Routes {
		if route.Path == path && route.Method == method {
			return route, true
		}
	}

	return Route{}, false
}

// Dispatch runs the matching handler, or the NotFound handler when nothing
// matches. matched reports which of the two ran.
func (router *Router) Dispatch(req *Request) (status StatusCode, body string, matched bool, err error) {
	handler := router.NotFound
	if handler == nil {
		handler = NotFoundHandler
	}

	if route, found := router.Lookup(req.Method, req.URI); found {
		handler = route.Handler
		matched = true
	}

	status, body, err = handler.ServeRequest(req)
	if err == nil && !status.Valid() {
		err = fmt.Errorf("%w: %d", ErrUnknownStatus, uint16(status))
	}

	return status, body, matched, err
}

// clone returns a router with its own copy of the table.
func (router *Router) clone() Router {
	return Router{
		Routes:   slices.Clone(router.Routes),
		NotFound: router.NotFound,
	}
}
