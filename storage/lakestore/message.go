// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package lakestore

import (
	"encoding/json"
	"sort"
	"time"
)

// Message is a single staged channel message. Messages are immutable once
// observed, except for the engagement counters which may change between
// re-scrapes of the same message.
type Message struct {
	ID        int64           `json:"message_id"`
	Channel   string          `json:"channel_name"`
	Date      *time.Time      `json:"message_date"`
	Text      string          `json:"message_text"`
	Views     *int64          `json:"views"`
	Forwards  *int64          `json:"forwards"`
	HasMedia  bool            `json:"has_media"`
	ImagePath *string         `json:"image_path"`
	Raw       json.RawMessage `json:"_raw,omitempty"`
}

// sorted returns partition messages as a slice ordered by message id,
// which keeps partition files reproducible across runs.
func sorted(messages map[int64]Message) []Message {
	list := make([]Message, 0, len(messages))
	for _, msg := range messages {
		list = append(list, msg)
	}
	sort.Slice(list, func(i, k int) bool { return list[i].ID < list[k].ID })
	return list
}
