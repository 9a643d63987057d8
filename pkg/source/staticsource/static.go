// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package staticsource implements an offline, deterministic message source.
// It backs dry runs of the extraction pipeline and the engine tests, so the
// whole staging path can be validated without source credentials.
package staticsource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"sync"
	"time"

	"github.com/chanlake/chanlake/pkg/source"
)

// Client is an in-memory source.Client.
type Client struct {
	mu        sync.Mutex
	channels  map[string][]source.Message
	media     []byte
	downloads int

	// ConnectErr, when set, is returned from Connect.
	ConnectErr error
	// StreamErr, when set for a channel, terminates that channel's stream
	// after the configured messages were served.
	StreamErr map[string]error
}

// New creates a static client serving the given channels.
func New(channels map[string][]source.Message) *Client {
	return &Client{
		channels:  channels,
		media:     []byte("\xff\xd8\xff\xe0static-media\xff\xd9"),
		StreamErr: map[string]error{},
	}
}

// Sample builds a deterministic sample dataset for the named channels: two
// messages per channel dated today, the first carrying a photo.
func Sample(channels []string, now time.Time) *Client {
	data := make(map[string][]source.Message, len(channels))
	for _, channel := range channels {
		date := now
		views := int64(100)
		forwards := int64(5)
		raw, _ := json.Marshal(map[string]interface{}{"sample": true, "channel": channel})
		data[channel] = []source.Message{
			{
				ID: 2, Channel: channel, Date: &date,
				Text:  fmt.Sprintf("sample message from %s", channel),
				Views: &views, Forwards: &forwards,
				Media: source.MediaPhoto, Raw: raw,
			},
			{
				ID: 1, Channel: channel, Date: &date,
				Text: "", Raw: raw,
			},
		}
	}
	return New(data)
}

// Connect implements source.Client.
func (client *Client) Connect(ctx context.Context) error { return client.ConnectErr }

// Close implements source.Client.
func (client *Client) Close() error { return nil }

// Messages implements source.Client.
func (client *Client) Messages(ctx context.Context, channel string, limit int) source.Iterator {
	client.mu.Lock()
	defer client.mu.Unlock()

	messages, ok := client.channels[channel]
	if !ok {
		return &iterator{err: source.ErrNotFound.New("%q", channel)}
	}
	if limit < len(messages) {
		messages = messages[:limit]
	}
	return &iterator{messages: messages, finalErr: client.StreamErr[channel]}
}

// Download implements source.Client by writing a fixed payload.
func (client *Client) Download(ctx context.Context, msg source.Message, path string) error {
	client.mu.Lock()
	client.downloads++
	client.mu.Unlock()
	return ioutil.WriteFile(path, client.media, 0600)
}

// Downloads returns how many media downloads were performed.
func (client *Client) Downloads() int {
	client.mu.Lock()
	defer client.mu.Unlock()
	return client.downloads
}

type iterator struct {
	messages []source.Message
	index    int
	err      error
	finalErr error
}

// Next implements source.Iterator.
func (it *iterator) Next(ctx context.Context) (source.Message, error) {
	if it.err != nil {
		return source.Message{}, it.err
	}
	if err := ctx.Err(); err != nil {
		return source.Message{}, err
	}
	if it.index >= len(it.messages) {
		if it.finalErr != nil {
			return source.Message{}, it.finalErr
		}
		return source.Message{}, io.EOF
	}
	msg := it.messages[it.index]
	it.index++
	return msg, nil
}
