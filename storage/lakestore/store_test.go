// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package lakestore

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/chanlake/chanlake/internal/testcontext"
	"github.com/chanlake/chanlake/pkg/partition"
)

func TestPartitionRoundtrip(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	store := New(zaptest.NewLogger(t), ctx.Dir("lake"))
	key := partition.Key{Date: "2026-08-23", Channel: "channel_a"}

	date := time.Date(2026, 8, 23, 9, 30, 0, 0, time.UTC)
	views := int64(100)
	messages := map[int64]Message{
		2: {ID: 2, Channel: "channel_a", Date: &date, Text: "hello", Views: &views, HasMedia: true},
		1: {ID: 1, Channel: "channel_a", Date: &date, Text: ""},
	}

	require.NoError(t, store.WritePartition(ctx, key, messages))

	read, err := store.ReadPartition(ctx, key)
	require.NoError(t, err)
	if diff := cmp.Diff(messages, read); diff != "" {
		t.Fatalf("partition changed across write/read: %s", diff)
	}

	// no stray temp files after a successful commit
	entries, err := ioutil.ReadDir(filepath.Dir(store.Path(key)))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestReadMissingPartition(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	store := New(zaptest.NewLogger(t), ctx.Dir("lake"))
	read, err := store.ReadPartition(ctx, partition.Key{Date: "2026-01-01", Channel: "nope"})
	require.NoError(t, err)
	require.Empty(t, read)
}

func TestReadMalformedPartition(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	store := New(zaptest.NewLogger(t), ctx.Dir("lake"))
	key := partition.Key{Date: "2026-01-01", Channel: "broken"}

	require.NoError(t, os.MkdirAll(filepath.Dir(store.Path(key)), 0700))
	require.NoError(t, ioutil.WriteFile(store.Path(key), []byte(`{"not":"an array"`), 0600))

	read, err := store.ReadPartition(ctx, key)
	require.NoError(t, err)
	require.Empty(t, read)
}

func TestWritePartitionIdempotent(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	store := New(zaptest.NewLogger(t), ctx.Dir("lake"))
	key := partition.Key{Date: "2026-08-23", Channel: "channel_a"}

	messages := map[int64]Message{
		3: {ID: 3, Channel: "channel_a", Text: "c"},
		1: {ID: 1, Channel: "channel_a", Text: "a"},
		2: {ID: 2, Channel: "channel_a", Text: "b"},
	}
	require.NoError(t, store.WritePartition(ctx, key, messages))
	first, err := ioutil.ReadFile(store.Path(key))
	require.NoError(t, err)

	require.NoError(t, store.WritePartition(ctx, key, messages))
	second, err := ioutil.ReadFile(store.Path(key))
	require.NoError(t, err)

	// same content yields a byte-identical document
	require.Equal(t, first, second)
}

func TestConcurrentReadersSeeCompleteContent(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	store := New(zaptest.NewLogger(t), ctx.Dir("lake"))
	key := partition.Key{Date: "2026-08-23", Channel: "channel_a"}

	small := map[int64]Message{
		1: {ID: 1, Channel: "channel_a", Text: "first"},
	}
	large := Merge(small, map[int64]Message{
		2: {ID: 2, Channel: "channel_a", Text: "second"},
	})
	require.NoError(t, store.WritePartition(ctx, key, small))

	// a torn read would decode as malformed and come back empty
	for i := 0; i < 4; i++ {
		ctx.Go(func() error {
			for j := 0; j < 100; j++ {
				read, err := store.ReadPartition(ctx, key)
				if err != nil {
					return err
				}
				if len(read) != 1 && len(read) != 2 {
					return Error.New("observed partial partition with %d messages", len(read))
				}
			}
			return nil
		})
	}

	for j := 0; j < 50; j++ {
		require.NoError(t, store.WritePartition(ctx, key, large))
		require.NoError(t, store.WritePartition(ctx, key, small))
	}
}

func TestCrashedWriteKeepsPriorContent(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	store := New(zaptest.NewLogger(t), ctx.Dir("lake"))
	key := partition.Key{Date: "2026-08-23", Channel: "channel_a"}

	messages := map[int64]Message{
		1: {ID: 1, Channel: "channel_a", Text: "committed"},
	}
	require.NoError(t, store.WritePartition(ctx, key, messages))

	// a crash between temp write and rename leaves a truncated sibling;
	// the target partition stays fully readable
	stray := store.Path(key) + ".tmp12345"
	require.NoError(t, ioutil.WriteFile(stray, []byte(`[{"message_id": 2,`), 0600))

	read, err := store.ReadPartition(ctx, key)
	require.NoError(t, err)
	require.Equal(t, messages, read)

	// the next write still commits over the target
	messages[2] = Message{ID: 2, Channel: "channel_a", Text: "next"}
	require.NoError(t, store.WritePartition(ctx, key, messages))
	read, err = store.ReadPartition(ctx, key)
	require.NoError(t, err)
	require.Len(t, read, 2)
}

func TestListPartitions(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	store := New(zaptest.NewLogger(t), ctx.Dir("lake"))

	for _, key := range []partition.Key{
		{Date: "2026-08-23", Channel: "zeta"},
		{Date: "2026-08-22", Channel: "alpha"},
		{Date: "2026-08-23", Channel: "alpha"},
	} {
		require.NoError(t, store.WritePartition(ctx, key, map[int64]Message{
			1: {ID: 1, Channel: key.Channel},
		}))
	}

	paths, err := store.ListPartitions(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{
		store.Path(partition.Key{Date: "2026-08-22", Channel: "alpha"}),
		store.Path(partition.Key{Date: "2026-08-23", Channel: "alpha"}),
		store.Path(partition.Key{Date: "2026-08-23", Channel: "zeta"}),
	}, paths)
}

func TestListPartitionsMissingRoot(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	store := New(zaptest.NewLogger(t), filepath.Join(ctx.Dir(), "does", "not", "exist"))
	paths, err := store.ListPartitions(ctx)
	require.NoError(t, err)
	require.Empty(t, paths)
}
