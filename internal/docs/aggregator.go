package docs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/vyrodovalexey/bizgw/internal/backend"
	"github.com/vyrodovalexey/bizgw/internal/cache"
	"github.com/vyrodovalexey/bizgw/internal/observability"
	"github.com/vyrodovalexey/bizgw/internal/util"
)

// Defaults for document fetches.
const (
	DefaultPath    = "/swagger/v1/swagger.json"
	DefaultTimeout = 10 * time.Second

	aggregateTitle   = "Business Administration API"
	aggregateVersion = "v1"
	aggregateKey     = "all"
)

// Service status values reported under x-gateway-services.
const (
	StatusIncluded = "included"
	StatusSkipped  = "skipped"
)

// ServiceStatus reports how one service contributed to an aggregate.
type ServiceStatus struct {
	Name   string `json:"name"`
	Prefix string `json:"prefix"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Aggregator fetches and rewrites backend API documents.
type Aggregator struct {
	services []Service
	clusters *backend.Registry
	clients  map[string]*resty.Client
	path     string
	timeout  time.Duration
	cache    cache.Cache
	logger   observability.Logger
	metrics  *observability.Metrics
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithServices replaces DefaultServices.
func WithServices(services []Service) Option {
	return func(a *Aggregator) {
		a.services = append([]Service(nil), services...)
	}
}

// WithPath overrides DefaultPath.
func WithPath(path string) Option {
	return func(a *Aggregator) {
		if path != "" {
			a.path = path
		}
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithCache enables caching of rewritten documents. A nil cache disables it.
func WithCache(c cache.Cache) Option {
	return func(a *Aggregator) {
		a.cache = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

// WithMetrics enables fetch and cache metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(a *Aggregator) {
		a.metrics = m
	}
}

// New creates an Aggregator reading documents from clusters. Services
// whose cluster is not configured are kept and always reported skipped.
func New(clusters *backend.Registry, opts ...Option) *Aggregator {
	a := &Aggregator{
		services: DefaultServices(),
		clusters: clusters,
		clients:  make(map[string]*resty.Client),
		path:     DefaultPath,
		timeout:  DefaultTimeout,
		logger:   observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With(observability.String("component", "docs"))

	for _, svc := range a.services {
		if _, ok := a.clients[svc.Cluster]; ok {
			continue
		}
		cl, ok := clusters.Get(svc.Cluster)
		if !ok {
			a.logger.Warn("no cluster for documented service",
				observability.String("service", svc.Name),
				observability.String("cluster", svc.Cluster),
			)
			continue
		}
		a.clients[svc.Cluster] = resty.New().
			SetTransport(cl.Transport()).
			SetTimeout(a.timeout).
			SetHeader("Accept", "application/json")
	}
	return a
}

// Services returns the registry in publication order.
func (a *Aggregator) Services() []Service {
	return append([]Service(nil), a.services...)
}

// FetchServiceDoc returns one service's document with gateway-relative
// paths. Unknown names yield ErrServiceNotFound; unreachable or
// unparsable backends a *FetchError matching ErrFetchFailed.
func (a *Aggregator) FetchServiceDoc(ctx context.Context, name string) (Document, error) {
	svc, ok := lookup(a.services, name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, name)
	}

	key := "service:" + strings.ToLower(svc.Name)
	if doc, ok := a.cached(ctx, key); ok {
		return doc, nil
	}

	raw, err := a.fetch(ctx, svc)
	if err != nil {
		return nil, err
	}
	doc := rewriteForGateway(raw, svc)
	a.store(ctx, key, doc)
	return doc, nil
}

// Aggregate fetches every service concurrently and merges the reachable
// ones in registry order. It never fails because of a single service.
func (a *Aggregator) Aggregate(ctx context.Context) Document {
	if doc, ok := a.cached(ctx, aggregateKey); ok {
		return doc
	}

	docs := make([]Document, len(a.services))
	errs := make([]error, len(a.services))
	var wg sync.WaitGroup
	for i, svc := range a.services {
		wg.Add(1)
		go func() {
			defer wg.Done()
			raw, err := a.fetch(ctx, svc)
			if err != nil {
				errs[i] = err
				return
			}
			docs[i] = rewriteForGateway(raw, svc)
		}()
	}
	wg.Wait()

	paths := map[string]any{}
	schemas := map[string]any{}
	statuses := make([]ServiceStatus, 0, len(a.services))
	var tags []any
	complete := true

	for i, svc := range a.services {
		st := ServiceStatus{Name: svc.Name, Prefix: svc.Prefix, Status: StatusIncluded}
		if errs[i] != nil {
			st.Status = StatusSkipped
			st.Error = errs[i].Error()
			statuses = append(statuses, st)
			complete = false
			continue
		}
		doc := docs[i]
		for k, v := range doc.Paths() {
			paths[k] = qualifyRefs(v, svc.Name)
		}
		for k, v := range doc.Schemas() {
			schemas[QualifiedSchemaName(svc.Name, k)] = qualifyRefs(v, svc.Name)
		}
		if t, ok := doc["tags"].([]any); ok {
			tags = append(tags, t...)
		}
		statuses = append(statuses, st)
	}

	out := Document{
		"openapi": "3.0.1",
		"info": map[string]any{
			"title":   aggregateTitle + titleSuffix,
			"version": aggregateVersion,
		},
		"paths": paths,
		"components": map[string]any{
			"schemas": schemas,
			"securitySchemes": map[string]any{
				"Bearer": map[string]any{
					"type":         "http",
					"scheme":       "bearer",
					"bearerFormat": "JWT",
				},
			},
		},
		"security":           []any{map[string]any{"Bearer": []any{}}},
		"x-gateway-services": statuses,
	}
	if len(tags) > 0 {
		out["tags"] = tags
	}

	// A partial catalog is not cached, so a recovering service shows up
	// on the next call.
	if complete {
		a.store(ctx, aggregateKey, out)
	}
	return out
}

// ClearCache drops every cached document.
func (a *Aggregator) ClearCache(ctx context.Context) error {
	if a.cache == nil {
		return nil
	}
	return a.cache.Clear(ctx)
}

func (a *Aggregator) fetch(ctx context.Context, svc Service) (Document, error) {
	doc, err := a.fetchRaw(ctx, svc)
	if a.metrics != nil {
		a.metrics.RecordDocsFetch(svc.Name, err == nil)
	}
	if err != nil {
		a.logger.WithContext(ctx).Warn("skipping service document",
			observability.String("service", svc.Name),
			observability.Error(err),
		)
	}
	return doc, err
}

func (a *Aggregator) fetchRaw(ctx context.Context, svc Service) (Document, error) {
	client, ok := a.clients[svc.Cluster]
	if !ok {
		return nil, &FetchError{Service: svc.Name, Cause: backend.ErrUnknownCluster}
	}
	cl, _ := a.clusters.Get(svc.Cluster)
	url := cl.Next().String() + a.path

	req := client.R().SetContext(ctx)
	if id := observability.RequestIDFromContext(ctx); id != "" {
		req.SetHeader(util.HeaderRequestID, id)
	}
	observability.InjectTraceHeaders(ctx, req.Header)

	resp, err := req.Get(url)
	if err != nil {
		return nil, &FetchError{Service: svc.Name, URL: url, Cause: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &FetchError{Service: svc.Name, URL: url, StatusCode: resp.StatusCode(), Cause: util.NewServerError(resp.StatusCode())}
	}

	doc, err := decode(resp.Body())
	if err != nil {
		return nil, &FetchError{Service: svc.Name, URL: url, Cause: err}
	}
	return doc, nil
}

func decode(b []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	if !doc.valid() {
		return nil, fmt.Errorf("%w: missing openapi or swagger version", ErrInvalidDocument)
	}
	return doc, nil
}

func (a *Aggregator) cached(ctx context.Context, key string) (Document, bool) {
	if a.cache == nil {
		return nil, false
	}
	b, err := a.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			a.logger.Warn("docs cache read failed", observability.String("key", key), observability.Error(err))
		}
		a.recordCache(false)
		return nil, false
	}
	doc, err := decodeCached(b)
	if err != nil {
		a.recordCache(false)
		return nil, false
	}
	a.recordCache(true)
	return doc, true
}

func decodeCached(b []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (a *Aggregator) store(ctx context.Context, key string, doc Document) {
	if a.cache == nil {
		return
	}
	b, err := json.Marshal(doc)
	if err != nil {
		a.logger.Warn("docs cache encode failed", observability.String("key", key), observability.Error(err))
		return
	}
	if err := a.cache.Set(ctx, key, b, 0); err != nil {
		a.logger.Warn("docs cache write failed", observability.String("key", key), observability.Error(err))
	}
}

func (a *Aggregator) recordCache(hit bool) {
	if a.metrics != nil {
		a.metrics.RecordDocsCache(hit)
	}
}
