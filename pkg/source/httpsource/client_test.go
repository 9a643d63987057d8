// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package httpsource_test

import (
	"context"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chanlake/chanlake/internal/testcontext"
	"github.com/chanlake/chanlake/pkg/source"
	"github.com/chanlake/chanlake/pkg/source/httpsource"
)

func TestConnect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/me", r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := httpsource.New(httpsource.Config{BaseURL: server.URL, Token: "secret"})
	require.NoError(t, client.Connect(context.Background()))

	unauthorized := httpsource.New(httpsource.Config{BaseURL: server.URL, Token: "wrong"})
	err := unauthorized.Connect(context.Background())
	require.Error(t, err)
	require.True(t, source.ErrAuth.Has(err))
}

func TestMessagesPagination(t *testing.T) {
	messages := make([]string, 0, 5)
	for id := 5; id >= 1; id-- {
		messages = append(messages, fmt.Sprintf(
			`{"id": %d, "date": "2026-08-23T09:00:0%dZ", "text": "message %d"}`, id, id, id))
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/channels/channel_a/messages", r.URL.Path)
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		fmt.Fprint(w, "[")
		for i := offset; i < len(messages) && i < offset+limit; i++ {
			if i > offset {
				fmt.Fprint(w, ",")
			}
			fmt.Fprint(w, messages[i])
		}
		fmt.Fprint(w, "]")
	}))
	defer server.Close()

	client := httpsource.New(httpsource.Config{BaseURL: server.URL})

	it := client.Messages(context.Background(), "channel_a", 3)
	var ids []int64
	for {
		msg, err := it.Next(context.Background())
		if source.Done(err) {
			break
		}
		require.NoError(t, err)
		require.Equal(t, "channel_a", msg.Channel)
		require.NotNil(t, msg.Date)
		require.NotEmpty(t, msg.Raw)
		ids = append(ids, msg.ID)
	}

	// newest first, capped at the requested limit
	require.Equal(t, []int64{5, 4, 3}, ids)
}

func TestMessagesDrained(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id": 1, "date": "2026-08-23T09:00:00Z", "text": "only"}]`)
	}))
	defer server.Close()

	client := httpsource.New(httpsource.Config{BaseURL: server.URL})

	it := client.Messages(context.Background(), "channel_a", 50)
	msg, err := it.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), msg.ID)

	_, err = it.Next(context.Background())
	require.True(t, source.Done(err))
}

func TestMessagesRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := httpsource.New(httpsource.Config{BaseURL: server.URL})

	it := client.Messages(context.Background(), "channel_a", 50)
	_, err := it.Next(context.Background())
	require.Error(t, err)

	wait, ok := source.RateLimited(err)
	require.True(t, ok)
	require.Equal(t, 7*time.Second, wait)
}

func TestMessagesNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := httpsource.New(httpsource.Config{BaseURL: server.URL})

	it := client.Messages(context.Background(), "no_such_channel", 50)
	_, err := it.Next(context.Background())
	require.Error(t, err)
	require.True(t, source.ErrNotFound.Has(err))
}

func TestDownload(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	payload := []byte("media payload")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/media/42", r.URL.Path)
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	client := httpsource.New(httpsource.Config{BaseURL: server.URL})

	path := filepath.Join(ctx.Dir("images"), "42.jpg")
	msg := source.Message{ID: 42, Media: source.MediaPhoto, MediaRef: "/media/42"}
	require.NoError(t, client.Download(ctx, msg, path))

	data, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, payload, data)

	// a message without a media reference cannot be downloaded
	require.Error(t, client.Download(ctx, source.Message{ID: 1}, path))
}
