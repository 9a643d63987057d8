// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package detect

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	for _, tt := range []struct {
		name       string
		detections []Detection
		category   string
		confidence float64
	}{
		{"empty", nil, CategoryOther, 0},
		{"person and product", []Detection{
			{Class: "person", Confidence: 0.9},
			{Class: "bottle", Confidence: 0.7},
		}, CategoryPromotional, 0.9},
		{"product only", []Detection{
			{Class: "bottle", Confidence: 0.8},
			{Class: "cup", Confidence: 0.6},
		}, CategoryProductDisplay, 0.8},
		{"person only", []Detection{
			{Class: "person", Confidence: 0.5},
		}, CategoryLifestyle, 0.5},
		{"neither", []Detection{
			{Class: "dog", Confidence: 0.95},
			{Class: "car", Confidence: 0.4},
		}, CategoryOther, 0.95},
	} {
		category, confidence := Classify(tt.detections)
		require.Equal(t, tt.category, category, tt.name)
		require.Equal(t, tt.confidence, confidence, tt.name)
	}
}

func TestPrimary(t *testing.T) {
	require.Equal(t, "none", primary(nil))
	require.Equal(t, "bottle", primary([]Detection{
		{Class: "person", Confidence: 0.3},
		{Class: "bottle", Confidence: 0.8},
		{Class: "cup", Confidence: 0.5},
	}))
}

func TestMessageInfo(t *testing.T) {
	for _, tt := range []struct {
		path      string
		messageID int64
		channel   string
		ok        bool
	}{
		{"data/raw/images/channel_a/42.jpg", 42, "channel_a", true},
		{"images/my_channel/7.png", 7, "my_channel", true},
		{"images/channel_a/notanumber.jpg", 0, "", false},
		{"42.jpg", 0, "", false},
	} {
		messageID, channel, ok := messageInfo(tt.path)
		require.Equal(t, tt.ok, ok, tt.path)
		require.Equal(t, tt.messageID, messageID, tt.path)
		require.Equal(t, tt.channel, channel, tt.path)
	}
}
