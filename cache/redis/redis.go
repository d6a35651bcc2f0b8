package redis

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/adeilh/carefeed/cache"
)

// Backend implements cache.Backend over the Redis RESP protocol. Entries are
// stored without a server-side expiry; TTL is enforced by cache.Store so
// expired entries stay readable for stale fallbacks.
type Backend struct {
	opts   Options
	dialFn dialFunc
	pool   chan *clientConn
}

type dialFunc func(context.Context, Options) (net.Conn, error)

var _ cache.Backend = (*Backend)(nil)

// New builds a Redis-backed cache backend. Connections are opened lazily.
func New(opts Options) *Backend {
	cfg := opts.withDefaults()
	return &Backend{opts: cfg, dialFn: defaultDial, pool: make(chan *clientConn, cfg.PoolSize)}
}

// WithDial overrides the dialer (useful for tests).
func (b *Backend) WithDial(fn dialFunc) {
	if fn != nil {
		b.dialFn = fn
	}
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := b.roundTrip(ctx, "GET", key)
	if err != nil {
		return nil, err
	}
	switch v := resp.(type) {
	case nil:
		return nil, cache.ErrNotFound
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("redis: unexpected GET reply %T", resp)
	}
}

func (b *Backend) Set(ctx context.Context, key string, value []byte) error {
	resp, err := b.roundTrip(ctx, "SET", key, string(value))
	if err != nil {
		return err
	}
	if msg, ok := resp.(string); ok && strings.EqualFold(msg, "OK") {
		return nil
	}
	return fmt.Errorf("redis: SET failed: %v", resp)
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	resp, err := b.roundTrip(ctx, "DEL", key)
	if err != nil {
		return err
	}
	n, ok := resp.(int64)
	if !ok {
		return fmt.Errorf("redis: DEL failed: %v", resp)
	}
	if n == 0 {
		return cache.ErrNotFound
	}
	return nil
}

// Keys walks the keyspace with SCAN so large databases are not blocked.
func (b *Backend) Keys(ctx context.Context, prefix string) ([]string, error) {
	pattern := escapeGlob(prefix) + "*"
	count := strconv.Itoa(b.opts.ScanCount)
	cursor := "0"
	var keys []string
	for {
		resp, err := b.roundTrip(ctx, "SCAN", cursor, "MATCH", pattern, "COUNT", count)
		if err != nil {
			return nil, err
		}
		next, batch, err := parseScan(resp)
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		if next == "0" {
			return keys, nil
		}
		cursor = next
	}
}

// Ping checks connectivity.
func (b *Backend) Ping(ctx context.Context) error {
	resp, err := b.roundTrip(ctx, "PING")
	if err != nil {
		return err
	}
	if msg, ok := resp.(string); ok && strings.EqualFold(msg, "PONG") {
		return nil
	}
	return fmt.Errorf("redis: unexpected PING reply %v", resp)
}

// Close drops every pooled connection.
func (b *Backend) Close() error {
	for {
		select {
		case conn := <-b.pool:
			_ = conn.Close()
		default:
			return nil
		}
	}
}

func (b *Backend) roundTrip(ctx context.Context, parts ...string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var resp any
	err := b.withConn(ctx, func(conn *clientConn) error {
		if err := b.send(conn, parts...); err != nil {
			return err
		}
		r, err := b.read(conn)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	return resp, err
}

func parseScan(resp any) (string, []string, error) {
	arr, ok := resp.([]any)
	if !ok || len(arr) != 2 {
		return "", nil, fmt.Errorf("redis: malformed SCAN reply %v", resp)
	}
	cursor, ok := arr[0].([]byte)
	if !ok {
		return "", nil, fmt.Errorf("redis: malformed SCAN cursor %v", arr[0])
	}
	items, ok := arr[1].([]any)
	if !ok {
		return "", nil, fmt.Errorf("redis: malformed SCAN keys %v", arr[1])
	}
	keys := make([]string, 0, len(items))
	for _, item := range items {
		if k, ok := item.([]byte); ok {
			keys = append(keys, string(k))
		}
	}
	return string(cursor), keys, nil
}

func escapeGlob(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

type clientConn struct {
	net.Conn
	reader *bufio.Reader
}

func (b *Backend) withConn(ctx context.Context, fn func(*clientConn) error) error {
	conn, err := b.acquire(ctx)
	if err != nil {
		return err
	}
	broken := false
	defer func() { b.release(conn, broken) }()
	if err := fn(conn); err != nil {
		var netErr net.Error
		if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) || errors.As(err, &netErr) {
			broken = true
		}
		return err
	}
	return nil
}

func (b *Backend) acquire(ctx context.Context) (*clientConn, error) {
	select {
	case conn := <-b.pool:
		return conn, nil
	default:
	}
	nc, err := b.dialFn(ctx, b.opts)
	if err != nil {
		return nil, err
	}
	conn := &clientConn{Conn: nc, reader: bufio.NewReader(nc)}
	if err := b.handshake(conn); err != nil {
		_ = nc.Close()
		return nil, err
	}
	return conn, nil
}

func (b *Backend) release(conn *clientConn, broken bool) {
	if broken {
		_ = conn.Close()
		return
	}
	select {
	case b.pool <- conn:
	default:
		_ = conn.Close()
	}
}

func (b *Backend) handshake(conn *clientConn) error {
	if b.opts.Password != "" {
		if err := b.expectOK(conn, "AUTH", b.opts.Password); err != nil {
			return err
		}
	}
	if b.opts.DB > 0 {
		if err := b.expectOK(conn, "SELECT", strconv.Itoa(b.opts.DB)); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) expectOK(conn *clientConn, parts ...string) error {
	if err := b.send(conn, parts...); err != nil {
		return err
	}
	resp, err := b.read(conn)
	if err != nil {
		return err
	}
	if msg, ok := resp.(string); ok && strings.EqualFold(msg, "OK") {
		return nil
	}
	return fmt.Errorf("redis: %s: expected OK, got %v", parts[0], resp)
}

func (b *Backend) send(conn *clientConn, parts ...string) error {
	if err := applyDeadline(conn.SetWriteDeadline, b.opts.WriteTimeout); err != nil {
		return err
	}
	_, err := conn.Write(encodeCommand(parts...))
	return err
}

func (b *Backend) read(conn *clientConn) (any, error) {
	if err := applyDeadline(conn.SetReadDeadline, b.opts.ReadTimeout); err != nil {
		return nil, err
	}
	return decodeReply(conn.reader)
}

func defaultDial(ctx context.Context, opts Options) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: opts.DialTimeout}
	return dialer.DialContext(ctx, "tcp", opts.Addr)
}
