// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package runlog_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/chanlake/chanlake/internal/testcontext"
	"github.com/chanlake/chanlake/pkg/runlog"
	"github.com/chanlake/chanlake/pkg/scraper"
)

func TestAppendAndList(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	ledger, err := runlog.New(zaptest.NewLogger(t), filepath.Join(ctx.Dir("data"), "runlog.db"))
	require.NoError(t, err)
	defer ctx.Check(ledger.Close)

	first := &scraper.RunSummary{
		TotalChannels: 2,
		TotalMessages: 10,
		StartTime:     time.Date(2026, 8, 22, 9, 0, 0, 0, time.UTC),
	}
	second := &scraper.RunSummary{
		TotalChannels: 2,
		TotalMessages: 14,
		TotalImages:   3,
		StartTime:     time.Date(2026, 8, 23, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, ledger.Append(first))
	require.NoError(t, ledger.Append(second))

	summaries, err := ledger.List()
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	// newest first
	require.Equal(t, 14, summaries[0].TotalMessages)
	require.Equal(t, 3, summaries[0].TotalImages)
	require.Equal(t, 10, summaries[1].TotalMessages)
}

func TestListOrdersSubsecondStarts(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	ledger, err := runlog.New(zaptest.NewLogger(t), filepath.Join(ctx.Dir("data"), "runlog.db"))
	require.NoError(t, err)
	defer ctx.Check(ledger.Close)

	// a whole-second start and a fractional start within the same second
	// must still list newest first
	onSecond := &scraper.RunSummary{
		TotalMessages: 1,
		StartTime:     time.Date(2026, 8, 23, 9, 0, 0, 0, time.UTC),
	}
	halfSecondLater := &scraper.RunSummary{
		TotalMessages: 2,
		StartTime:     time.Date(2026, 8, 23, 9, 0, 0, 500000000, time.UTC),
	}
	require.NoError(t, ledger.Append(onSecond))
	require.NoError(t, ledger.Append(halfSecondLater))

	summaries, err := ledger.List()
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	require.Equal(t, 2, summaries[0].TotalMessages)
	require.Equal(t, 1, summaries[1].TotalMessages)
}

func TestAppendOverwritesSameRun(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	ledger, err := runlog.New(zaptest.NewLogger(t), filepath.Join(ctx.Dir("data"), "runlog.db"))
	require.NoError(t, err)
	defer ctx.Check(ledger.Close)

	summary := &scraper.RunSummary{
		TotalMessages: 5,
		StartTime:     time.Date(2026, 8, 23, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, ledger.Append(summary))

	summary.TotalMessages = 6
	require.NoError(t, ledger.Append(summary))

	summaries, err := ledger.List()
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.Equal(t, 6, summaries[0].TotalMessages)
}

func TestReopen(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	path := filepath.Join(ctx.Dir("data"), "runlog.db")

	ledger, err := runlog.New(zaptest.NewLogger(t), path)
	require.NoError(t, err)
	require.NoError(t, ledger.Append(&scraper.RunSummary{
		TotalMessages: 7,
		StartTime:     time.Date(2026, 8, 23, 9, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, ledger.Close())

	reopened, err := runlog.New(zaptest.NewLogger(t), path)
	require.NoError(t, err)
	defer ctx.Check(reopened.Close)

	summaries, err := reopened.List()
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.Equal(t, 7, summaries[0].TotalMessages)
}
