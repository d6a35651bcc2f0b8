// Package api serves the content sources over HTTP for the rendering layer.
package api

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/adeilh/carefeed/httpx"
	"github.com/adeilh/carefeed/logging"
	"github.com/adeilh/carefeed/metrics"
	"github.com/adeilh/carefeed/sheet"
	"github.com/adeilh/carefeed/source"
)

// Prefix of every versioned route.
const Prefix = "/api/v1"

// sourceContextKey holds the source resolved from the :name route parameter.
const sourceContextKey = "carefeed.source"

// Handler holds the dependencies of the routes.
type Handler struct {
	catalog *source.Catalog
	metrics *metrics.Collector
	logger  *zap.Logger
}

// Option customizes a Handler.
type Option func(*Handler)

func WithMetrics(c *metrics.Collector) Option {
	return func(h *Handler) { h.metrics = c }
}

func WithLogger(logger *zap.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// New builds a Handler over catalog.
func New(catalog *source.Catalog, opts ...Option) *Handler {
	h := &Handler{catalog: catalog, logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	h.logger = logging.Component(h.logger, "api")
	return h
}

// NewServer returns an httpx.Server with the routes registered. Requests
// naming an unknown source are rejected before any handler runs.
func NewServer(h *Handler, opts ...httpx.ServerOption) *httpx.Server {
	opts = append([]httpx.ServerOption{httpx.WithValidators(h.resolveSource)}, opts...)
	s := httpx.NewServer(opts...)
	s.RegisterRoutes(h.Register)
	return s
}

// Register mounts the routes on e.
func (h *Handler) Register(e *httpx.Echo) {
	e.GET("/healthz", h.health)
	if h.metrics != nil {
		e.GET("/metrics", httpx.WrapHandler(h.metrics.Handler()))
	}

	g := e.Group(Prefix)
	g.GET("/sources", h.listSources)
	g.GET("/sources/:name", h.getSource)
	g.GET("/faq/groups", h.faqGroups)
	g.GET("/cache", h.listCache)
	g.GET("/cache/:name/age", h.cacheAge)
	g.DELETE("/cache/:name", h.clearSource)
	g.DELETE("/cache", h.clearAll)
}

// SourceInfo describes one registered source.
type SourceInfo struct {
	Name   string `json:"name"`
	Key    string `json:"key"`
	Policy string `json:"policy"`
}

// SourceResponse is the body of GET /sources/:name.
type SourceResponse struct {
	Source   string        `json:"source"`
	Origin   source.Origin `json:"origin"`
	Count    int           `json:"count"`
	StoredAt *time.Time    `json:"storedAt,omitempty"`
	// Warning carries the fetch failure behind a stale or empty answer.
	Warning string `json:"warning,omitempty"`
	Items   any    `json:"items"`
}

// GroupsResponse is the body of GET /faq/groups.
type GroupsResponse struct {
	Origin   source.Origin         `json:"origin"`
	StoredAt *time.Time            `json:"storedAt,omitempty"`
	Warning  string                `json:"warning,omitempty"`
	Groups   []sheet.CategoryGroup `json:"groups"`
}

// AgeResponse is the body of GET /cache/:name/age.
type AgeResponse struct {
	Source   string `json:"source"`
	Key      string `json:"key"`
	AgeHours int    `json:"ageHours"`
}

// FailureResponse is returned with 502 when a source failed and had no cache.
type FailureResponse struct {
	Source string `json:"source"`
	Kind   string `json:"kind"`
	Error  string `json:"error"`
}

func (h *Handler) health(c httpx.Context) error {
	return c.JSON(httpx.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) listSources(c httpx.Context) error {
	names := h.catalog.Names()
	out := make([]SourceInfo, 0, len(names))
	for _, name := range names {
		src, err := h.catalog.Lookup(name)
		if err != nil {
			continue
		}
		out = append(out, SourceInfo{Name: name, Key: src.Key(), Policy: src.Policy().String()})
	}
	return c.JSON(httpx.StatusOK, out)
}

func (h *Handler) getSource(c httpx.Context) error {
	src, err := h.lookup(c)
	if err != nil {
		return err
	}
	refresh, err := refreshParam(c)
	if err != nil {
		return err
	}
	snap, err := src.Snapshot(c.Request().Context(), refresh)
	if err != nil {
		return h.failure(c, src.Name(), err)
	}
	return c.JSON(httpx.StatusOK, SourceResponse{
		Source:   snap.Source,
		Origin:   snap.Origin,
		Count:    snap.Count,
		StoredAt: optionalTime(snap.StoredAt),
		Warning:  warning(snap.Err),
		Items:    snap.Items,
	})
}

func (h *Handler) faqGroups(c httpx.Context) error {
	refresh, err := refreshParam(c)
	if err != nil {
		return err
	}
	groups, res, err := h.catalog.FAQGroups(c.Request().Context(), refresh)
	if err != nil {
		return h.failure(c, source.FAQ, err)
	}
	return c.JSON(httpx.StatusOK, GroupsResponse{
		Origin:   res.Origin,
		StoredAt: optionalTime(res.StoredAt),
		Warning:  warning(res.Err),
		Groups:   groups,
	})
}

func (h *Handler) listCache(c httpx.Context) error {
	return c.JSON(httpx.StatusOK, map[string][]string{"keys": h.catalog.Store().Keys(c.Request().Context())})
}

func (h *Handler) cacheAge(c httpx.Context) error {
	src, err := h.lookup(c)
	if err != nil {
		return err
	}
	hours, ok := h.catalog.Store().Age(c.Request().Context(), src.Key())
	if !ok {
		return httpx.HTTPError(httpx.StatusNotFound, "no fresh cache entry for "+src.Name())
	}
	return c.JSON(httpx.StatusOK, AgeResponse{Source: src.Name(), Key: src.Key(), AgeHours: hours})
}

func (h *Handler) clearSource(c httpx.Context) error {
	src, err := h.lookup(c)
	if err != nil {
		return err
	}
	h.catalog.Store().Clear(c.Request().Context(), src.Key())
	h.logger.Info("cache cleared", zap.String("source", src.Name()))
	return c.NoContent(httpx.StatusNoContent)
}

func (h *Handler) clearAll(c httpx.Context) error {
	h.catalog.Store().ClearAll(c.Request().Context())
	h.logger.Info("cache cleared", zap.String("source", "*"))
	return c.NoContent(httpx.StatusNoContent)
}

// resolveSource validates the :name parameter of a matched route and keeps
// the source on the context.
func (h *Handler) resolveSource(c httpx.Context) error {
	name := c.Param("name")
	if name == "" {
		return nil
	}
	src, err := h.lookupName(name)
	if err != nil {
		return err
	}
	c.Set(sourceContextKey, src)
	return nil
}

func (h *Handler) lookup(c httpx.Context) (source.Source, error) {
	if src, ok := c.Get(sourceContextKey).(source.Source); ok {
		return src, nil
	}
	return h.lookupName(c.Param("name"))
}

func (h *Handler) lookupName(name string) (source.Source, error) {
	src, err := h.catalog.Lookup(name)
	if err != nil {
		return nil, httpx.HTTPError(httpx.StatusNotFound,
			fmt.Sprintf("%v: %q (known: %s)", err, name, strings.Join(h.catalog.Names(), ", ")))
	}
	return src, nil
}

func (h *Handler) failure(c httpx.Context, name string, err error) error {
	resp := FailureResponse{Source: name, Kind: "unknown", Error: err.Error()}
	var fe *source.FetchError
	if errors.As(err, &fe) {
		resp.Kind = fe.Kind.Error()
	}
	h.logger.Warn("source unavailable", zap.String("source", name), zap.Error(err))
	return c.JSON(httpx.StatusBadGateway, resp)
}

func refreshParam(c httpx.Context) (bool, error) {
	raw := c.QueryParam("refresh")
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, httpx.HTTPError(httpx.StatusBadRequest, "refresh must be a boolean")
	}
	return v, nil
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func warning(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
