// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package httpsource implements source.Client against a bot-API style JSON
// endpoint. Expected endpoints under the base URL:
//
//	GET /me                                             session check
//	GET /channels/{channel}/messages?offset=N&limit=N   newest-first page
//	GET {media reference}                               media payload
//
// Rate limiting is signaled with status 429 and a Retry-After header; the
// client surfaces it as a typed source.RateLimitError instead of retrying.
package httpsource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/zeebo/errs"

	"github.com/chanlake/chanlake/pkg/source"
)

// Error is the default httpsource error class
var Error = errs.Class("httpsource error")

const pageSize = 100

// Config holds the source endpoint settings.
type Config struct {
	BaseURL string        `json:"base_url"`
	Token   string        `json:"token"`
	Timeout time.Duration `json:"timeout"`
}

// Client talks to the HTTP message source.
type Client struct {
	config Config
	http   *http.Client
}

// New creates a client for the configured endpoint.
func New(config Config) *Client {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		config: config,
		http:   &http.Client{Timeout: timeout},
	}
}

// Connect verifies the session against the /me endpoint. A 401 or 403 is
// an authentication failure, which is fatal for the extraction run.
func (client *Client) Connect(ctx context.Context) error {
	resp, err := client.get(ctx, client.config.BaseURL+"/me")
	if err != nil {
		return Error.Wrap(err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return source.ErrAuth.New("status %d", resp.StatusCode)
	default:
		return Error.New("unexpected status %d", resp.StatusCode)
	}
}

// Close implements source.Client.
func (client *Client) Close() error { return nil }

// Messages implements source.Client.
func (client *Client) Messages(ctx context.Context, channel string, limit int) source.Iterator {
	return &iterator{client: client, channel: channel, limit: limit}
}

// Download implements source.Client by streaming the media reference to
// path.
func (client *Client) Download(ctx context.Context, msg source.Message, path string) error {
	if msg.MediaRef == "" {
		return Error.New("message %d has no media reference", msg.ID)
	}
	resp, err := client.get(ctx, client.resolve(msg.MediaRef))
	if err != nil {
		return Error.Wrap(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if err := client.checkStatus(resp); err != nil {
		return err
	}

	fh, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return Error.Wrap(err)
	}
	_, copyErr := io.Copy(fh, resp.Body)
	return Error.Wrap(errs.Combine(copyErr, fh.Close()))
}

func (client *Client) get(ctx context.Context, rawurl string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, rawurl, nil)
	if err != nil {
		return nil, err
	}
	req = req.WithContext(ctx)
	if client.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+client.config.Token)
	}
	return client.http.Do(req)
}

func (client *Client) resolve(ref string) string {
	if parsed, err := url.Parse(ref); err == nil && parsed.IsAbs() {
		return ref
	}
	return client.config.BaseURL + ref
}

func (client *Client) checkStatus(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return source.ErrNotFound.New("status %d", resp.StatusCode)
	case http.StatusUnauthorized, http.StatusForbidden:
		return source.ErrAuth.New("status %d", resp.StatusCode)
	case http.StatusTooManyRequests:
		return &source.RateLimitError{RetryAfter: retryAfter(resp)}
	default:
		return Error.New("unexpected status %d", resp.StatusCode)
	}
}

func retryAfter(resp *http.Response) time.Duration {
	seconds, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || seconds <= 0 {
		seconds = 60
	}
	return time.Duration(seconds) * time.Second
}

// wireMessage is the source wire shape. It exists only inside this package;
// toMessage is the single place it is adapted to the internal value type.
type wireMessage struct {
	ID       int64  `json:"id"`
	Date     string `json:"date"`
	Text     string `json:"text"`
	Views    *int64 `json:"views"`
	Forwards *int64 `json:"forwards"`
	Media    *struct {
		Kind     string `json:"kind"`
		MimeType string `json:"mime_type"`
		URL      string `json:"url"`
	} `json:"media"`
}

func toMessage(raw json.RawMessage, wire wireMessage, channel string) source.Message {
	msg := source.Message{
		ID:       wire.ID,
		Channel:  channel,
		Text:     wire.Text,
		Views:    wire.Views,
		Forwards: wire.Forwards,
		Raw:      raw,
	}
	if parsed, err := time.Parse(time.RFC3339, wire.Date); err == nil {
		msg.Date = &parsed
	}
	if wire.Media != nil {
		switch wire.Media.Kind {
		case "photo":
			msg.Media = source.MediaPhoto
		case "document":
			msg.Media = source.MediaDocument
		}
		msg.MimeType = wire.Media.MimeType
		msg.MediaRef = wire.Media.URL
	}
	return msg
}

type iterator struct {
	client  *Client
	channel string
	limit   int

	page    []json.RawMessage
	index   int
	offset  int
	served  int
	drained bool
}

// Next implements source.Iterator.
func (it *iterator) Next(ctx context.Context) (source.Message, error) {
	if it.served >= it.limit {
		return source.Message{}, io.EOF
	}
	if it.index >= len(it.page) {
		if it.drained {
			return source.Message{}, io.EOF
		}
		if err := it.fetch(ctx); err != nil {
			return source.Message{}, err
		}
		if len(it.page) == 0 {
			return source.Message{}, io.EOF
		}
	}

	raw := it.page[it.index]
	it.index++
	it.served++

	var wire wireMessage
	if err := json.Unmarshal(raw, &wire); err != nil {
		return source.Message{}, Error.Wrap(err)
	}
	return toMessage(raw, wire, it.channel), nil
}

func (it *iterator) fetch(ctx context.Context) error {
	size := pageSize
	if remaining := it.limit - it.served; remaining < size {
		size = remaining
	}

	rawurl := fmt.Sprintf("%s/channels/%s/messages?offset=%d&limit=%d",
		it.client.config.BaseURL, url.PathEscape(it.channel), it.offset, size)

	resp, err := it.client.get(ctx, rawurl)
	if err != nil {
		return Error.Wrap(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if err := it.client.checkStatus(resp); err != nil {
		return err
	}

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return Error.Wrap(err)
	}

	var page []json.RawMessage
	if err := json.Unmarshal(body, &page); err != nil {
		return Error.Wrap(err)
	}

	it.page, it.index = page, 0
	it.offset += len(page)
	if len(page) < size {
		it.drained = true
	}
	return nil
}
