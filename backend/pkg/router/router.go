package router

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"

	"walk-sensor/backend/pkg/utils"
)

type ParameterIn string

const (
	ParameterInPath   ParameterIn = "path"
	ParameterInQuery  ParameterIn = "query"
	ParameterInHeader ParameterIn = "header"
)

// ParameterSpec documents a request parameter.
type ParameterSpec struct {
	In          ParameterIn
	Description string
	Required    bool
}

// RouteSpec describes an HTTP operation.
type RouteSpec struct {
	OperationID string
	Summary     string
	Description string
	Group       string
	Parameters  map[string]ParameterSpec
	Handler     http.HandlerFunc

	method   string
	fullPath string
}

// RouteInfo is the public view of a registered route.
type RouteInfo struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	OperationID string `json:"operationID"`
	Summary     string `json:"summary"`
	Group       string `json:"group"`
}

type registry struct {
	operationIDs map[string]struct{}
	routes       []RouteInfo
}

// RouteBuilder registers documented routes on a chi router.
type RouteBuilder struct {
	l        *slog.Logger
	router   chi.Router
	prefix   string
	registry *registry
}

func NewRouteBuilder(l *slog.Logger) *RouteBuilder {
	return &RouteBuilder{
		l:        l.With(slog.String("component", "route-builder")),
		router:   chi.NewRouter(),
		registry: &registry{operationIDs: map[string]struct{}{}},
	}
}

// Router returns the underlying chi router.
func (rb *RouteBuilder) Router() chi.Router {
	return rb.router
}

// Routes returns all registered routes in registration order.
func (rb *RouteBuilder) Routes() []RouteInfo {
	return slices.Clone(rb.registry.routes)
}

// Use appends middlewares to the current router group.
func (rb *RouteBuilder) Use(middlewares ...func(http.Handler) http.Handler) {
	rb.router.Use(middlewares...)
}

// Route creates a sub-router mounted at pattern.
func (rb *RouteBuilder) Route(pattern string, fn func(rb *RouteBuilder)) {
	rb.router.Route(pattern, func(r chi.Router) {
		fn(&RouteBuilder{
			l:        rb.l,
			router:   r,
			prefix:   joinPath(rb.prefix, pattern),
			registry: rb.registry,
		})
	})
}

func (rb *RouteBuilder) Get(pattern string, spec RouteSpec) error {
	return rb.register(http.MethodGet, pattern, spec)
}

func (rb *RouteBuilder) MustGet(pattern string, spec RouteSpec) {
	rb.mustRegister(http.MethodGet, pattern, spec)
}

func (rb *RouteBuilder) Post(pattern string, spec RouteSpec) error {
	return rb.register(http.MethodPost, pattern, spec)
}

func (rb *RouteBuilder) MustPost(pattern string, spec RouteSpec) {
	rb.mustRegister(http.MethodPost, pattern, spec)
}

func (rb *RouteBuilder) mustRegister(method, pattern string, spec RouteSpec) {
	if err := rb.register(method, pattern, spec); err != nil {
		rb.l.Error("Failed to register route", slog.String("method", method), slog.String("path", pattern), utils.ErrAttr(err))
		os.Exit(1)
	}
}

func (rb *RouteBuilder) register(method, pattern string, spec RouteSpec) error {
	spec.method = method
	spec.fullPath = joinPath(rb.prefix, pattern)

	if err := validateRouteSpec(spec); err != nil {
		return fmt.Errorf("invalid route spec for %s %s: %w", method, spec.fullPath, err)
	}

	if _, exists := rb.registry.operationIDs[spec.OperationID]; exists {
		return fmt.Errorf("duplicate operationID: %s", spec.OperationID)
	}

	if err := validateParameters(spec); err != nil {
		return err
	}

	rb.router.Method(method, pattern, spec.Handler)

	rb.registry.operationIDs[spec.OperationID] = struct{}{}
	rb.registry.routes = append(rb.registry.routes, RouteInfo{
		Method:      method,
		Path:        spec.fullPath,
		OperationID: spec.OperationID,
		Summary:     spec.Summary,
		Group:       spec.Group,
	})

	rb.l.Debug("Registered route", slog.String("method", method), slog.String("path", spec.fullPath), slog.String("operationID", spec.OperationID))

	return nil
}

func joinPath(prefix, pattern string) string {
	joined := path.Join("/", prefix, pattern)
	if strings.HasSuffix(pattern, "/") && joined != "/" {
		joined += "/"
	}

	return joined
}
