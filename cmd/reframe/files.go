package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

var jobsFlag = &cli.IntFlag{
	Name:    "jobs",
	Aliases: []string{"j"},
	Value:   4,
	Usage:   "Files processed concurrently",
}

// fileResult is one output line. Fields of the embedded value are inlined.
type fileResult struct {
	File  string `json:"file"`
	Error string `json:"error,omitempty"`
}

// forEachFile runs fn over every argument with at most --jobs in flight and
// writes one JSON line per file in argument order. A failed file is reported
// on its line and makes the command exit 1 once all files are done.
func forEachFile(c *cli.Context, fn func(ctx context.Context, path string) (interface{}, error)) error {
	if c.NArg() == 0 {
		return cli.Exit("at least one file is required", 2)
	}
	paths := c.Args().Slice()
	results := make([]interface{}, len(paths))
	failed := make([]bool, len(paths))

	g, ctx := errgroup.WithContext(c.Context)
	g.SetLimit(max(c.Int("jobs"), 1))
	for i, path := range paths {
		g.Go(func() error {
			out, err := fn(ctx, path)
			if err != nil {
				failed[i] = true
				results[i] = fileResult{File: path, Error: err.Error()}
				return nil
			}
			results[i] = out
			return nil
		})
	}
	// fn reports per-file failures through results
	_ = g.Wait()

	enc := json.NewEncoder(c.App.Writer)
	anyFailed := false
	for i, res := range results {
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("writing result: %w", err)
		}
		anyFailed = anyFailed || failed[i]
	}
	if anyFailed {
		return cli.Exit("", 1)
	}
	return nil
}

// openSource opens path for random access and derives an index cache key
// that changes whenever the file does.
func openSource(path string) (*os.File, int64, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, "", err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	key := fmt.Sprintf("%s:%d:%d", abs, info.Size(), info.ModTime().UnixNano())
	return f, info.Size(), key, nil
}
