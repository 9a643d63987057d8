// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package process

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v2"

	"github.com/chanlake/chanlake/internal/testcontext"
)

func TestSaveConfig(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	outfile := filepath.Join(ctx.Dir("config"), "chanlake.yaml")
	require.NoError(t, SaveConfig(outfile, map[string]interface{}{
		"scrape.channels":   "channel_a,channel_b",
		"data.messages_dir": "data/raw/messages",
	}))

	data, err := ioutil.ReadFile(outfile)
	require.NoError(t, err)

	var settings map[string]interface{}
	require.NoError(t, yaml.Unmarshal(data, &settings))
	require.NotEmpty(t, settings)

	// no stray temp files after the atomic write
	entries, err := ioutil.ReadDir(filepath.Dir(outfile))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
