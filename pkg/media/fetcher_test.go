// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package media_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/chanlake/chanlake/internal/testcontext"
	"github.com/chanlake/chanlake/pkg/media"
	"github.com/chanlake/chanlake/pkg/source"
	"github.com/chanlake/chanlake/pkg/source/staticsource"
)

func TestFetchPhoto(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	client := staticsource.New(nil)
	fetcher := media.NewFetcher(zaptest.NewLogger(t), ctx.Dir("images"), client)

	msg := source.Message{ID: 42, Channel: "channel_a", Media: source.MediaPhoto}
	path, err := fetcher.Fetch(ctx, msg)
	require.NoError(t, err)
	require.NotEmpty(t, path)
	require.Equal(t, 1, client.Downloads())

	_, err = os.Stat(fetcher.Path(msg))
	require.NoError(t, err)
}

func TestFetchIdempotent(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	client := staticsource.New(nil)
	fetcher := media.NewFetcher(zaptest.NewLogger(t), ctx.Dir("images"), client)

	msg := source.Message{ID: 42, Channel: "channel_a", Media: source.MediaPhoto}

	first, err := fetcher.Fetch(ctx, msg)
	require.NoError(t, err)
	second, err := fetcher.Fetch(ctx, msg)
	require.NoError(t, err)

	require.Equal(t, first, second)
	// the second fetch must not touch the network
	require.Equal(t, 1, client.Downloads())
}

func TestFetchSkipsNonImages(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	client := staticsource.New(nil)
	fetcher := media.NewFetcher(zaptest.NewLogger(t), ctx.Dir("images"), client)

	for _, msg := range []source.Message{
		{ID: 1, Channel: "a", Media: source.MediaNone},
		{ID: 2, Channel: "a", Media: source.MediaDocument, MimeType: "application/pdf"},
	} {
		path, err := fetcher.Fetch(ctx, msg)
		require.NoError(t, err)
		require.Empty(t, path)
	}
	require.Zero(t, client.Downloads())

	// image documents are downloadable
	path, err := fetcher.Fetch(ctx, source.Message{ID: 3, Channel: "a", Media: source.MediaDocument, MimeType: "image/png"})
	require.NoError(t, err)
	require.NotEmpty(t, path)
	require.Equal(t, 1, client.Downloads())
}

func TestFetchSanitizesChannel(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	client := staticsource.New(nil)
	fetcher := media.NewFetcher(zaptest.NewLogger(t), ctx.Dir("images"), client)

	msg := source.Message{ID: 7, Channel: "bad/name", Media: source.MediaPhoto}
	path, err := fetcher.Fetch(ctx, msg)
	require.NoError(t, err)
	require.Contains(t, path, "bad_name")
}
