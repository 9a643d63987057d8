// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package lakestore

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestMerge(t *testing.T) {
	views := int64(10)
	moreViews := int64(42)

	existing := map[int64]Message{
		1: {ID: 1, Channel: "a", Text: "one"},
		2: {ID: 2, Channel: "a", Text: "two", Views: &views},
	}
	incoming := map[int64]Message{
		2: {ID: 2, Channel: "a", Text: "two", Views: &moreViews},
		3: {ID: 3, Channel: "a", Text: "three"},
	}

	merged := Merge(existing, incoming)
	require.Len(t, merged, 3)

	expected := map[int64]Message{
		1: existing[1],
		2: incoming[2],
		3: incoming[3],
	}
	if diff := cmp.Diff(expected, merged); diff != "" {
		t.Fatalf("unexpected merge result: %s", diff)
	}

	// inputs stay untouched
	require.Equal(t, &views, existing[2].Views)
	require.Len(t, existing, 2)
	require.Len(t, incoming, 2)
}

func TestMergeEmpty(t *testing.T) {
	require.Empty(t, Merge(nil, nil))

	only := map[int64]Message{7: {ID: 7, Channel: "a"}}
	require.Equal(t, only, Merge(only, nil))
	require.Equal(t, only, Merge(nil, only))
}
