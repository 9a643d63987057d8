// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package testcontext bundles what pipeline tests keep needing: a
// context, a scratch directory that is deleted on cleanup, and a group
// for background goroutines whose errors fail the test.
package testcontext

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"golang.org/x/sync/errgroup"
)

// Context is a context.Context for tests. The scratch directory is
// created lazily on first use and removed by Cleanup.
type Context struct {
	context.Context
	group *errgroup.Group
	test  testing.TB

	once    sync.Once
	scratch string
}

// New creates a test context.
func New(test testing.TB) *Context {
	group, ctx := errgroup.WithContext(context.Background())
	return &Context{
		Context: ctx,
		group:   group,
		test:    test,
	}
}

// Go runs fn in a background goroutine. Its error is reported when
// Cleanup waits for the group.
func (ctx *Context) Go(fn func() error) {
	ctx.test.Helper()
	ctx.group.Go(fn)
}

// Check calls fn and fails the test on error.
func (ctx *Context) Check(fn func() error) {
	ctx.test.Helper()
	if err := fn(); err != nil {
		ctx.test.Fatal(err)
	}
}

// Dir returns a subdirectory inside the scratch directory, creating it
// when necessary.
func (ctx *Context) Dir(subs ...string) string {
	ctx.test.Helper()

	ctx.once.Do(func() {
		var err error
		ctx.scratch, err = ioutil.TempDir("", ctx.test.Name())
		if err != nil {
			ctx.test.Fatal(err)
		}
	})

	dir := filepath.Join(append([]string{ctx.scratch}, subs...)...)
	if err := os.MkdirAll(dir, 0700); err != nil {
		ctx.test.Fatal(err)
	}
	return dir
}

// File returns a file path inside the scratch directory, creating the
// parent directories.
func (ctx *Context) File(subs ...string) string {
	ctx.test.Helper()

	if len(subs) == 0 {
		ctx.test.Fatal("expected at least one path element")
	}

	dir := ctx.Dir(subs[:len(subs)-1]...)
	return filepath.Join(dir, subs[len(subs)-1])
}

// Cleanup waits for background goroutines, fails the test on their
// errors and removes the scratch directory.
func (ctx *Context) Cleanup() {
	ctx.test.Helper()

	defer func() {
		if ctx.scratch != "" {
			if err := os.RemoveAll(ctx.scratch); err != nil {
				ctx.test.Fatal(err)
			}
		}
	}()
	if err := ctx.group.Wait(); err != nil {
		ctx.test.Fatal(err)
	}
}
