// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package partition maps message timestamps and channel identities to
// staging lake partitions.
package partition

import (
	"path/filepath"
	"strings"
	"time"
)

// DateFormat is the layout used for partition dates.
const DateFormat = "2006-01-02"

// Key identifies a single staging partition. One partition holds all
// messages observed for a channel on a given date.
type Key struct {
	Date    string // YYYY-MM-DD
	Channel string // sanitized channel name
}

// Path returns the partition file path relative to the lake root.
func (key Key) Path() string {
	return filepath.Join(key.Date, key.Channel+".json")
}

// String implements the Stringer interface.
func (key Key) String() string {
	return key.Date + "/" + key.Channel
}

// Resolve computes the partition key for a message. The partition is a pure
// function of the message timestamp and channel, so a message can never move
// between partitions across re-scrapes. A message without a timestamp is
// assigned to the current date.
func Resolve(timestamp *time.Time, channel string, now func() time.Time) Key {
	date := now()
	if timestamp != nil {
		date = *timestamp
	}
	return Key{
		Date:    date.Format(DateFormat),
		Channel: SanitizeChannel(channel),
	}
}

// SanitizeChannel strips filesystem-illegal characters from a channel name
// and trims surrounding whitespace. The mapping is deterministic; it is the
// caller's responsibility to configure channels that do not collide after
// sanitization.
func SanitizeChannel(channel string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			return '_'
		}
		return r
	}, channel)
	return strings.TrimSpace(sanitized)
}
