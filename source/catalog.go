package source

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/adeilh/carefeed/cache"
	"github.com/adeilh/carefeed/content"
	"github.com/adeilh/carefeed/httpx"
	"github.com/adeilh/carefeed/sheet"
)

// Source names.
const (
	FAQ     = "faq"
	Tips    = "tips"
	Videos  = "videos"
	Ratings = "ratings"
	Share   = "share"
)

// KeyFor returns the cache key of a source name.
func KeyFor(name string) string { return name + "_cache" }

// Endpoints locates the remote spreadsheets.
type Endpoints struct {
	// FAQURL serves the delimited-text export.
	FAQURL string
	// BaseURL serves the JSON envelope actions.
	BaseURL string
	// Actions maps source name to its ?action= value. Missing entries use the
	// source name.
	Actions map[string]string
}

func (e Endpoints) action(name string) string {
	if a, ok := e.Actions[name]; ok && a != "" {
		return a
	}
	return name
}

// Snapshot is a Result with its items left untyped, for callers that handle
// every source alike.
type Snapshot struct {
	Source   string    `json:"source"`
	Origin   Origin    `json:"origin"`
	Count    int       `json:"count"`
	StoredAt time.Time `json:"storedAt,omitzero"`
	Items    any       `json:"items"`
	Err      error     `json:"-"`
}

// Source is the type-erased view of an Accessor.
type Source interface {
	Name() string
	Key() string
	Policy() Policy
	Snapshot(ctx context.Context, forceRefresh bool) (Snapshot, error)
}

// Snapshot calls Fetch and erases the item type.
func (a *Accessor[R, T]) Snapshot(ctx context.Context, forceRefresh bool) (Snapshot, error) {
	res, err := a.Fetch(ctx, forceRefresh)
	if err != nil {
		return Snapshot{Source: a.cfg.Name}, err
	}
	return Snapshot{
		Source:   a.cfg.Name,
		Origin:   res.Origin,
		Count:    len(res.Items),
		StoredAt: res.StoredAt,
		Items:    res.Items,
		Err:      res.Err,
	}, nil
}

// Catalog holds one accessor per content source over a shared store and
// client.
type Catalog struct {
	FAQ     *Accessor[[]byte, sheet.Row]
	Tips    *Accessor[[]byte, content.Tip]
	Videos  *Accessor[[]byte, content.Video]
	Ratings *Accessor[[]byte, content.Rating]
	Share   *Accessor[[]byte, content.ShareLink]

	store  *cache.Store
	byName map[string]Source
}

// NewCatalog wires the five accessors. The FAQ and video lists propagate
// terminal failures so the caller can offer a retry; tips, ratings and share
// links are optional decorations and degrade to an empty list.
func NewCatalog(store *cache.Store, client *httpx.Client, ep Endpoints, opts ...Option) (*Catalog, error) {
	if client == nil {
		return nil, errors.New("source: http client is required")
	}
	if ep.FAQURL == "" || ep.BaseURL == "" {
		return nil, errors.New("source: faq url and base url are required")
	}

	c := &Catalog{store: store}
	var err error
	if c.FAQ, err = New(store, Config[[]byte, sheet.Row]{
		Name:      FAQ,
		Key:       KeyFor(FAQ),
		Fetch:     BodyFetcher(client, ep.FAQURL),
		Transform: ParseSheet,
		Policy:    Propagate,
	}, opts...); err != nil {
		return nil, err
	}
	if c.Tips, err = New(store, Config[[]byte, content.Tip]{
		Name:      Tips,
		Key:       KeyFor(Tips),
		Fetch:     ActionFetcher(client, ep.BaseURL, ep.action(Tips)),
		Transform: Envelope(content.Tips),
		Policy:    DegradeToEmpty,
	}, opts...); err != nil {
		return nil, err
	}
	if c.Videos, err = New(store, Config[[]byte, content.Video]{
		Name:      Videos,
		Key:       KeyFor(Videos),
		Fetch:     ActionFetcher(client, ep.BaseURL, ep.action(Videos)),
		Transform: Envelope(content.Videos),
		Policy:    Propagate,
	}, opts...); err != nil {
		return nil, err
	}
	if c.Ratings, err = New(store, Config[[]byte, content.Rating]{
		Name:      Ratings,
		Key:       KeyFor(Ratings),
		Fetch:     ActionFetcher(client, ep.BaseURL, ep.action(Ratings)),
		Transform: Envelope(content.Ratings),
		Policy:    DegradeToEmpty,
	}, opts...); err != nil {
		return nil, err
	}
	if c.Share, err = New(store, Config[[]byte, content.ShareLink]{
		Name:      Share,
		Key:       KeyFor(Share),
		Fetch:     ActionFetcher(client, ep.BaseURL, ep.action(Share)),
		Transform: Envelope(content.ShareLinks),
		Policy:    DegradeToEmpty,
	}, opts...); err != nil {
		return nil, err
	}

	c.byName = map[string]Source{
		FAQ:     c.FAQ,
		Tips:    c.Tips,
		Videos:  c.Videos,
		Ratings: c.Ratings,
		Share:   c.Share,
	}
	return c, nil
}

// Names lists the registered sources in alphabetical order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.byName))
	for n := range c.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the source called name.
func (c *Catalog) Lookup(name string) (Source, error) {
	s, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}
	return s, nil
}

// Store returns the cache shared by every source.
func (c *Catalog) Store() *cache.Store { return c.store }

// FAQGroups fetches the FAQ and groups it by category.
func (c *Catalog) FAQGroups(ctx context.Context, forceRefresh bool) ([]sheet.CategoryGroup, Result[sheet.Row], error) {
	res, err := c.FAQ.Fetch(ctx, forceRefresh)
	if err != nil {
		return nil, res, err
	}
	return sheet.GroupByCategory(res.Items), res, nil
}
