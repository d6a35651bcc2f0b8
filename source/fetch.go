package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/adeilh/carefeed/content"
	"github.com/adeilh/carefeed/httpx"
	"github.com/adeilh/carefeed/sheet"
)

// ActionParam is the query parameter that selects a JSON endpoint.
const ActionParam = "action"

// BodyFetcher downloads url and returns the raw body. An empty body is a
// format error.
func BodyFetcher(client *httpx.Client, url string) func(context.Context) ([]byte, error) {
	return func(ctx context.Context) ([]byte, error) {
		body, err := client.GetBytes(ctx, url)
		if err != nil {
			return nil, err
		}
		if len(bytes.TrimSpace(body)) == 0 {
			return nil, fmt.Errorf("%w: empty body from %s", ErrFormat, url)
		}
		return body, nil
	}
}

// ActionFetcher requests base?action=<action>.
func ActionFetcher(client *httpx.Client, base, action string) func(context.Context) ([]byte, error) {
	return func(ctx context.Context) ([]byte, error) {
		body, err := client.GetBytes(ctx, base, httpx.WithQuery(map[string]string{ActionParam: action}))
		if err != nil {
			return nil, err
		}
		return body, nil
	}
}

var errHTMLBody = errors.New("got an html page instead of delimited text")

// ParseSheet turns a delimited-text export into active FAQ rows. A body that
// looks like an HTML page (a login wall or error page served with 200) is
// rejected.
func ParseSheet(body []byte) ([]sheet.Row, error) {
	head := bytes.ToLower(bytes.TrimSpace(body))
	if bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.HasPrefix(head, []byte("<html")) {
		return nil, formatError(errHTMLBody)
	}
	rows, _ := sheet.ParseRows(string(body))
	if rows == nil {
		rows = []sheet.Row{}
	}
	return rows, nil
}

// Envelope decodes a {status, data} body into T and applies keep.
func Envelope[T any](keep func([]T) []T) func([]byte) ([]T, error) {
	return func(body []byte) ([]T, error) {
		items, err := content.DecodeEnvelope[T](body)
		if err != nil {
			return nil, formatError(err)
		}
		return keep(items), nil
	}
}
