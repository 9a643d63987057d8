// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package lakestore

// Merge returns the union of an existing partition and a newly streamed
// batch. On key conflict the incoming message wins entirely, so re-running
// extraction over already-seen messages is a no-op for message content and
// only refreshes the engagement counters. Neither input map is modified.
func Merge(existing, incoming map[int64]Message) map[int64]Message {
	merged := make(map[int64]Message, len(existing)+len(incoming))
	for id, msg := range existing {
		merged[id] = msg
	}
	for id, msg := range incoming {
		merged[id] = msg
	}
	return merged
}
