// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package source defines the boundary to the paginated message source. All
// source-specific shape lives behind the Client interface and the narrow
// Message value type; the rest of the system never sees the source SDK.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/zeebo/errs"
)

var (
	// ErrAuth means the session could not be authenticated. It is fatal for
	// the whole extraction run.
	ErrAuth = errs.Class("source authentication error")
	// ErrNotFound means the requested channel does not exist.
	ErrNotFound = errs.Class("channel not found")
	// Error is the default source error class
	Error = errs.Class("source error")
)

// MediaKind describes the kind of media attached to a message.
type MediaKind int

const (
	// MediaNone means the message carries no media.
	MediaNone MediaKind = iota
	// MediaPhoto is an inline photo.
	MediaPhoto
	// MediaDocument is an attached document; only image mime types are
	// eligible for download.
	MediaDocument
)

// Message is the source-agnostic view of a single channel message.
type Message struct {
	ID       int64
	Channel  string
	Date     *time.Time
	Text     string
	Views    *int64
	Forwards *int64
	Media    MediaKind
	MimeType string
	MediaRef string
	Raw      json.RawMessage
}

// Iterator pages lazily through the messages of one channel. The sequence
// is finite and not restartable mid-stream.
type Iterator interface {
	// Next returns the next message. It returns io.EOF when the stream is
	// drained, or a source error (rate limit, not found) that terminates
	// the stream.
	Next(ctx context.Context) (Message, error)
}

// Client is a session with the paginated message source.
type Client interface {
	// Connect establishes the session. Authentication failures are
	// reported with the ErrAuth class.
	Connect(ctx context.Context) error
	// Messages starts iterating the newest messages of a channel, up to
	// limit.
	Messages(ctx context.Context, channel string, limit int) Iterator
	// Download fetches the media attached to a message into path.
	Download(ctx context.Context, msg Message, path string) error
	// Close terminates the session.
	Close() error
}

// RateLimitError is returned when the source asks the caller to back off.
// The engine records it and ends the channel stream; retrying after
// RetryAfter is left to the external scheduler.
type RateLimitError struct {
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("source rate limited: retry after %s", e.RetryAfter)
}

// RateLimited reports whether err is a rate limit signal and extracts the
// requested backoff.
func RateLimited(err error) (time.Duration, bool) {
	for err != nil {
		if limited, ok := err.(*RateLimitError); ok {
			return limited.RetryAfter, true
		}
		cause, ok := err.(interface{ Cause() error })
		if !ok {
			break
		}
		err = cause.Cause()
	}
	return 0, false
}

// Done reports whether err marks the normal end of an iterator.
func Done(err error) bool { return err == io.EOF }
