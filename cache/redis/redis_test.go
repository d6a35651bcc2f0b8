package redis

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/adeilh/carefeed/cache"
	testredis "github.com/adeilh/carefeed/internal/testutil/rediscontainer"
)

// fakeServer answers the handful of commands the backend issues.
type fakeServer struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeServer() *fakeServer { return &fakeServer{data: make(map[string]string)} }

func (f *fakeServer) dial(context.Context, Options) (net.Conn, error) {
	client, server := net.Pipe()
	go f.serve(server)
	return client, nil
}

func (f *fakeServer) serve(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		req, err := decodeReply(r)
		if err != nil {
			return
		}
		parts, _ := req.([]any)
		args := make([]string, len(parts))
		for i, p := range parts {
			b, _ := p.([]byte)
			args[i] = string(b)
		}
		if _, err := conn.Write([]byte(f.handle(args))); err != nil {
			return
		}
	}
}

func (f *fakeServer) handle(args []string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch strings.ToUpper(args[0]) {
	case "PING":
		return "+PONG\r\n"
	case "GET":
		v, ok := f.data[args[1]]
		if !ok {
			return "$-1\r\n"
		}
		return fmt.Sprintf("$%d\r\n%s\r\n", len(v), v)
	case "SET":
		f.data[args[1]] = args[2]
		return "+OK\r\n"
	case "DEL":
		if _, ok := f.data[args[1]]; !ok {
			return ":0\r\n"
		}
		delete(f.data, args[1])
		return ":1\r\n"
	case "SCAN":
		prefix := strings.TrimSuffix(strings.ReplaceAll(args[3], `\`, ""), "*")
		var keys []string
		for k := range f.data {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		var sb strings.Builder
		sb.WriteString("*2\r\n$1\r\n0\r\n")
		fmt.Fprintf(&sb, "*%d\r\n", len(keys))
		for _, k := range keys {
			fmt.Fprintf(&sb, "$%d\r\n%s\r\n", len(k), k)
		}
		return sb.String()
	default:
		return "-ERR unknown command\r\n"
	}
}

func newFakeBackend() *Backend {
	b := New(Options{ReadTimeout: time.Second, WriteTimeout: time.Second})
	b.WithDial(newFakeServer().dial)
	return b
}

func TestBackendAgainstFakeServer(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	defer b.Close()

	if err := b.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if _, err := b.Get(ctx, "missing"); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
	}
	if err := b.Set(ctx, "@p_videos_cache", []byte(`{"payload":[1]}`)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := b.Set(ctx, "@p_faq_cache", []byte("x")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := b.Set(ctx, "other", []byte("y")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := b.Get(ctx, "@p_videos_cache")
	if err != nil || string(got) != `{"payload":[1]}` {
		t.Fatalf("Get() = %q, %v", got, err)
	}

	keys, err := b.Keys(ctx, "@p_")
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if want := []string{"@p_faq_cache", "@p_videos_cache"}; !reflect.DeepEqual(keys, want) {
		t.Fatalf("Keys() = %v, want %v", keys, want)
	}

	if err := b.Delete(ctx, "@p_faq_cache"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := b.Delete(ctx, "@p_faq_cache"); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestBackendServesCacheStore(t *testing.T) {
	ctx := context.Background()
	store := cache.NewStore(newFakeBackend())

	store.Set(ctx, "share_cache", []string{"whatsapp"})
	got, ok := cache.Load[[]string](ctx, store, "share_cache")
	if !ok || len(got) != 1 || got[0] != "whatsapp" {
		t.Fatalf("Load() = %v, %v", got, ok)
	}
}

func TestBackendHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := newFakeBackend().Set(ctx, "k", []byte("v")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDecodeReplyServerError(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("-WRONGTYPE bad\r\n"))
	if _, err := decodeReply(r); !errors.Is(err, ErrServer) {
		t.Fatalf("decodeReply() error = %v, want ErrServer", err)
	}
}

func TestEscapeGlob(t *testing.T) {
	if got := escapeGlob("@a*b?[c]"); got != `@a\*b\?\[c\]` {
		t.Fatalf("escapeGlob() = %q", got)
	}
}

func TestBackendIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	if err := testredis.Setup(); err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = testredis.Teardown() })

	b := New(Options{Addr: testredis.Addr()})
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	prefix := fmt.Sprintf("carefeed:test:%d:", time.Now().UnixNano())
	for i := 0; i < 3; i++ {
		if err := b.Set(ctx, fmt.Sprintf("%s%d", prefix, i), []byte("v")); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}
	keys, err := b.Keys(ctx, prefix)
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if len(keys) != 3 {
		t.Fatalf("Keys() returned %d keys, want 3", len(keys))
	}
	for _, k := range keys {
		if err := b.Delete(ctx, k); err != nil {
			t.Fatalf("Delete(%s) error = %v", k, err)
		}
	}
}
