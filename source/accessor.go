package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/adeilh/carefeed/cache"
	"github.com/adeilh/carefeed/logging"
	"github.com/adeilh/carefeed/metrics"
)

// Policy decides what an accessor does when the fetch failed and no cached
// copy exists.
type Policy int

const (
	// Propagate returns the *FetchError so the caller can offer a retry.
	Propagate Policy = iota
	// DegradeToEmpty returns an empty result and no error.
	DegradeToEmpty
)

func (p Policy) String() string {
	if p == DegradeToEmpty {
		return "degrade"
	}
	return "propagate"
}

// Origin says where the items of a Result came from.
type Origin string

const (
	OriginCache   Origin = "cache"
	OriginNetwork Origin = "network"
	OriginStale   Origin = "stale"
	OriginEmpty   Origin = "empty"
)

// Result is the outcome of Accessor.Fetch.
type Result[T any] struct {
	Items  []T
	Origin Origin
	// StoredAt is set when Origin is OriginStale.
	StoredAt time.Time
	// Err holds the fetch failure behind a stale or empty result.
	Err error
}

// Config binds an accessor to one content source. Fetch performs the network
// call; Transform filters and orders its output. Transform errors are
// reported as ErrFormat.
type Config[R, T any] struct {
	Name      string
	Key       string
	Fetch     func(ctx context.Context) (R, error)
	Transform func(R) ([]T, error)
	Policy    Policy
}

// Accessor implements cache-or-fetch for one source. Concurrent callers that
// miss the cache share a single in-flight fetch.
type Accessor[R, T any] struct {
	cfg     Config[R, T]
	store   *cache.Store
	flight  singleflight.Group
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
	metrics *metrics.Collector
}

// New validates cfg and builds an accessor over store.
func New[R, T any](store *cache.Store, cfg Config[R, T], opts ...Option) (*Accessor[R, T], error) {
	switch {
	case store == nil:
		return nil, errors.New("source: cache store is required")
	case cfg.Name == "" || cfg.Key == "":
		return nil, errors.New("source: name and key are required")
	case cfg.Fetch == nil || cfg.Transform == nil:
		return nil, fmt.Errorf("source %s: fetch and transform are required", cfg.Name)
	}
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	a := &Accessor[R, T]{
		cfg:     cfg,
		store:   store,
		logger:  logging.Component(o.logger, "source").With(zap.String("source", cfg.Name)),
		metrics: o.metrics,
	}
	a.breaker = newBreaker(cfg.Name, o.breaker, a.logger, o.metrics)
	return a, nil
}

func (a *Accessor[R, T]) Name() string   { return a.cfg.Name }
func (a *Accessor[R, T]) Key() string    { return a.cfg.Key }
func (a *Accessor[R, T]) Policy() Policy { return a.cfg.Policy }

// Fetch returns the source's items. Unless forceRefresh is set a fresh cache
// entry is returned without touching the network. When the network fetch
// fails the stale cache entry is served; failing that the accessor's Policy
// applies.
func (a *Accessor[R, T]) Fetch(ctx context.Context, forceRefresh bool) (Result[T], error) {
	if !forceRefresh {
		if items, ok := cache.Load[[]T](ctx, a.store, a.cfg.Key); ok {
			a.metrics.Result(a.cfg.Name, metrics.OutcomeCache)
			return Result[T]{Items: items, Origin: OriginCache}, nil
		}
	}

	items, err := a.refresh(ctx)
	if err == nil {
		a.metrics.Result(a.cfg.Name, metrics.OutcomeNetwork)
		return Result[T]{Items: items, Origin: OriginNetwork}, nil
	}

	if items, st, ok := cache.LoadStale[[]T](ctx, a.store, a.cfg.Key); ok {
		a.logger.Warn("serving stale cache after fetch failure",
			zap.Duration("age", st.Age), zap.Bool("evicted", st.Evicted), zap.Error(err))
		a.metrics.Result(a.cfg.Name, metrics.OutcomeStale)
		return Result[T]{Items: items, Origin: OriginStale, StoredAt: st.StoredAt, Err: err}, nil
	}

	if a.cfg.Policy == DegradeToEmpty {
		a.logger.Warn("fetch failed with no cache, returning empty result", zap.Error(err))
		a.metrics.Result(a.cfg.Name, metrics.OutcomeEmpty)
		return Result[T]{Items: []T{}, Origin: OriginEmpty, Err: err}, nil
	}
	a.logger.Error("fetch failed with no cache", zap.Error(err))
	a.metrics.Result(a.cfg.Name, metrics.OutcomeFailed)
	return Result[T]{}, err
}

// refresh joins or starts the shared fetch for this source. The shared work
// is detached from the caller's cancellation so one impatient caller does not
// fail the others; a cancelled caller stops waiting and gets ctx.Err().
func (a *Accessor[R, T]) refresh(ctx context.Context) ([]T, error) {
	shared := context.WithoutCancel(ctx)
	ch := a.flight.DoChan(a.cfg.Key, func() (any, error) {
		return a.fetchAndPersist(shared)
	})
	select {
	case <-ctx.Done():
		return nil, classify(a.cfg.Name, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]T), nil
	}
}

func (a *Accessor[R, T]) fetchAndPersist(ctx context.Context) ([]T, error) {
	start := time.Now()
	out, err := a.breaker.Execute(func() (any, error) {
		raw, err := a.cfg.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		items, err := a.cfg.Transform(raw)
		if err != nil {
			return nil, formatError(err)
		}
		return items, nil
	})
	a.metrics.Fetch(a.cfg.Name, time.Since(start), err)
	if err != nil {
		return nil, classify(a.cfg.Name, err)
	}

	items := out.([]T)
	if items == nil {
		items = []T{}
	}
	a.store.Set(ctx, a.cfg.Key, items)
	a.logger.Debug("fetched and cached", zap.Int("items", len(items)), zap.Duration("took", time.Since(start)))
	return items, nil
}
