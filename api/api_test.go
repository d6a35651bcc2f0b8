package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/adeilh/carefeed/cache"
	"github.com/adeilh/carefeed/httpx"
	"github.com/adeilh/carefeed/metrics"
	"github.com/adeilh/carefeed/source"
)

const faqCSV = "id,categoria,ordem,pergunta,resposta,ativo,criado,atualizado\n" +
	"1,Geral,1,O que é?,Um app,TRUE,2024-01-01,2024-01-02\n" +
	"2,Conta,2,Como entro?,Com e-mail,TRUE,2024-01-01,2024-01-02\n"

type upstream struct {
	mu     sync.Mutex
	broken bool
}

func (u *upstream) setBroken(v bool) {
	u.mu.Lock()
	u.broken = v
	u.mu.Unlock()
}

func (u *upstream) isBroken() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.broken
}

func (u *upstream) server() *httpx.Server {
	s := httpx.NewServer(httpx.WithMiddlewares(httpx.RecoverMiddleware()))
	s.RegisterRoutes(func(e *httpx.Echo) {
		e.GET("/faq.csv", func(c httpx.Context) error {
			if u.isBroken() {
				return c.String(httpx.StatusInternalError, "down")
			}
			return c.Blob(httpx.StatusOK, "text/csv", []byte(faqCSV))
		})
		e.GET("/exec", func(c httpx.Context) error {
			if u.isBroken() {
				return c.String(httpx.StatusInternalError, "down")
			}
			if c.QueryParam("action") == source.Videos {
				return c.Blob(httpx.StatusOK, "application/json",
					[]byte(`{"status":200,"data":[{"id":1,"titulo":"Alongamento","data":"2024-02-01","ativo":"sim"}]}`))
			}
			return c.Blob(httpx.StatusOK, "application/json", []byte(`{"status":200,"data":[]}`))
		})
	})
	return s
}

type env struct {
	up      *upstream
	baseURL string
	store  *cache.Store
	client *httpx.Client
}

func newEnv(t *testing.T) *env {
	t.Helper()
	up := &upstream{}
	upTS := httpx.Serve(up.server())
	t.Cleanup(upTS.Close)

	collector := metrics.NewCollector("carefeed_test")
	store := cache.NewStore(cache.NewMemoryBackend(), cache.WithObserver(collector))
	catalog, err := source.NewCatalog(store,
		httpx.NewClient(httpx.WithBaseURL(upTS.BaseURL()), httpx.WithClientTimeout(2*time.Second)),
		source.Endpoints{FAQURL: "/faq.csv", BaseURL: "/exec"},
		source.WithMetrics(collector),
	)
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}

	srv := NewServer(New(catalog, WithMetrics(collector)), httpx.WithMiddlewares(httpx.RecoverMiddleware()))
	ts := httpx.Serve(srv)
	t.Cleanup(ts.Close)

	return &env{up: up, baseURL: ts.BaseURL(), store: store, client: httpx.NewClient(httpx.WithBaseURL(ts.BaseURL()))}
}

func (e *env) delete(t *testing.T, path string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodDelete, e.baseURL+path, nil)
	if err != nil {
		t.Fatalf("build DELETE %s: %v", path, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func statusOf(err error) int {
	var se *httpx.StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

func TestGetSourceThenCache(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	var first SourceResponse
	if _, err := e.client.Get(ctx, Prefix+"/sources/videos", &first); err != nil {
		t.Fatalf("GET videos error = %v", err)
	}
	if first.Origin != source.OriginNetwork || first.Count != 1 {
		t.Fatalf("first response = %+v", first)
	}

	var second SourceResponse
	if _, err := e.client.Get(ctx, Prefix+"/sources/videos", &second); err != nil {
		t.Fatalf("GET videos error = %v", err)
	}
	if second.Origin != source.OriginCache {
		t.Fatalf("second origin = %s, want cache", second.Origin)
	}
}

func TestGetSourceUnknownIs404(t *testing.T) {
	e := newEnv(t)
	_, err := e.client.GetBytes(context.Background(), Prefix+"/sources/weather")
	if statusOf(err) != httpx.StatusNotFound {
		t.Fatalf("error = %v, want 404", err)
	}
}

func TestUnknownSourceRejectedOnEveryNamedRoute(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.store.Set(ctx, "weather", []string{"sunny"})

	code, body := e.delete(t, Prefix+"/cache/weather")
	if code != httpx.StatusNotFound {
		t.Fatalf("DELETE unknown = %d %s, want 404", code, body)
	}
	if !strings.Contains(body, "known: faq, ratings, share, tips, videos") {
		t.Fatalf("404 body does not list known sources: %s", body)
	}
	if _, ok := cache.Load[[]string](ctx, e.store, "weather"); !ok {
		t.Fatalf("unrelated cache key removed by a rejected request")
	}

	_, err := e.client.GetBytes(ctx, Prefix+"/cache/weather/age")
	var se *httpx.StatusError
	if !errors.As(err, &se) || se.Code != httpx.StatusNotFound || !strings.Contains(se.Body, "known:") {
		t.Fatalf("GET unknown age error = %v, want 404 listing known sources", err)
	}
}

func TestGetSourceBadRefreshIs400(t *testing.T) {
	e := newEnv(t)
	_, err := e.client.GetBytes(context.Background(), Prefix+"/sources/tips",
		httpx.WithQuery(map[string]string{"refresh": "maybe"}))
	if statusOf(err) != httpx.StatusBadRequest {
		t.Fatalf("error = %v, want 400", err)
	}
}

func TestTerminalFailureIs502(t *testing.T) {
	e := newEnv(t)
	e.up.setBroken(true)

	_, err := e.client.GetBytes(context.Background(), Prefix+"/sources/faq")
	var se *httpx.StatusError
	if !errors.As(err, &se) || se.Code != httpx.StatusBadGateway {
		t.Fatalf("error = %v, want 502", err)
	}
	if !strings.Contains(se.Body, `"kind":"unexpected http status"`) {
		t.Fatalf("body = %s", se.Body)
	}
}

func TestDegradedSourceIsEmpty200(t *testing.T) {
	e := newEnv(t)
	e.up.setBroken(true)

	var resp SourceResponse
	if _, err := e.client.Get(context.Background(), Prefix+"/sources/share", &resp); err != nil {
		t.Fatalf("GET share error = %v", err)
	}
	if resp.Origin != source.OriginEmpty || resp.Count != 0 || resp.Warning == "" {
		t.Fatalf("response = %+v", resp)
	}
}

func TestStaleAnswerCarriesWarning(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	if _, err := e.client.GetBytes(ctx, Prefix+"/sources/videos"); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	e.up.setBroken(true)

	var resp SourceResponse
	if _, err := e.client.Get(ctx, Prefix+"/sources/videos", &resp, httpx.WithQuery(map[string]string{"refresh": "true"})); err != nil {
		t.Fatalf("GET videos error = %v", err)
	}
	if resp.Origin != source.OriginStale || resp.StoredAt == nil || resp.Warning == "" {
		t.Fatalf("response = %+v", resp)
	}
}

func TestFAQGroupsRoute(t *testing.T) {
	e := newEnv(t)

	var resp GroupsResponse
	if _, err := e.client.Get(context.Background(), Prefix+"/faq/groups", &resp); err != nil {
		t.Fatalf("GET groups error = %v", err)
	}
	if len(resp.Groups) != 2 || resp.Groups[0].Label != "Geral" {
		t.Fatalf("groups = %+v", resp.Groups)
	}
}

func TestCacheRoutes(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	if _, err := e.client.GetBytes(ctx, Prefix+"/cache/tips/age"); statusOf(err) != httpx.StatusNotFound {
		t.Fatalf("age before fetch error = %v, want 404", err)
	}
	if _, err := e.client.GetBytes(ctx, Prefix+"/sources/tips"); err != nil {
		t.Fatalf("GET tips: %v", err)
	}

	var age AgeResponse
	if _, err := e.client.Get(ctx, Prefix+"/cache/tips/age", &age); err != nil {
		t.Fatalf("GET age error = %v", err)
	}
	if age.Key != "tips_cache" || age.AgeHours != 0 {
		t.Fatalf("age = %+v", age)
	}

	var keys struct {
		Keys []string `json:"keys"`
	}
	if _, err := e.client.Get(ctx, Prefix+"/cache", &keys); err != nil {
		t.Fatalf("GET cache error = %v", err)
	}
	if len(keys.Keys) != 1 || keys.Keys[0] != "tips_cache" {
		t.Fatalf("keys = %v", keys.Keys)
	}

	if code, body := e.delete(t, Prefix+"/cache/tips"); code != httpx.StatusNoContent {
		t.Fatalf("DELETE tips = %d %s", code, body)
	}
	if _, ok := e.store.Age(ctx, "tips_cache"); ok {
		t.Fatalf("tips_cache survived DELETE")
	}

	if _, err := e.client.GetBytes(ctx, Prefix+"/sources/faq"); err != nil {
		t.Fatalf("GET faq: %v", err)
	}
	if code, body := e.delete(t, Prefix+"/cache"); code != httpx.StatusNoContent {
		t.Fatalf("DELETE cache = %d %s", code, body)
	}
	if got := e.store.Keys(ctx); len(got) != 0 {
		t.Fatalf("keys after clear all = %v", got)
	}
}

func TestListSourcesShowsPolicies(t *testing.T) {
	e := newEnv(t)

	var infos []SourceInfo
	if _, err := e.client.Get(context.Background(), Prefix+"/sources", &infos); err != nil {
		t.Fatalf("GET sources error = %v", err)
	}
	policies := map[string]string{}
	for _, info := range infos {
		policies[info.Name] = info.Policy
	}
	if policies[source.FAQ] != "propagate" || policies[source.Tips] != "degrade" {
		t.Fatalf("policies = %v", policies)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	if _, err := e.client.GetBytes(ctx, "/healthz"); err != nil {
		t.Fatalf("GET healthz error = %v", err)
	}
	if _, err := e.client.GetBytes(ctx, Prefix+"/sources/videos"); err != nil {
		t.Fatalf("GET videos: %v", err)
	}
	body, err := e.client.GetBytes(ctx, "/metrics")
	if err != nil {
		t.Fatalf("GET metrics error = %v", err)
	}
	if !strings.Contains(string(body), `carefeed_test_source_results_total{outcome="network",source="videos"} 1`) {
		t.Fatalf("metrics missing videos result:\n%s", body)
	}
}
