package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/zsiec/reframe/internal/reframe"
	"github.com/zsiec/reframe/internal/reframe/types"
	"github.com/zsiec/reframe/internal/report"
)

var (
	fpsFlag = &cli.StringFlag{
		Name:  "fps",
		Usage: "Frame rate for untimed streams, e.g. 30000/1001",
	}
	codecFlag = &cli.StringFlag{
		Name:  "codec",
		Usage: "Codec of a raw VP8/VP9/VP10 stream",
	}
)

var errDurationUnknown = errors.New("duration unknown: indexing is disabled or the stream is not recognized")

type demuxResult struct {
	File string `json:"file"`
	report.Summary
	Unlisted int `json:"unlisted,omitempty"`
}

type durationResult struct {
	File        string  `json:"file"`
	Seconds     float64 `json:"seconds"`
	Duration    uint64  `json:"duration"`
	Timescale   uint32  `json:"timescale"`
	Approximate bool    `json:"approximate,omitempty"`
	Bitrate     uint64  `json:"bitrate,omitempty"`
	Entries     int     `json:"entries"`
}

func demuxCommand() *cli.Command {
	return &cli.Command{
		Name:      "demux",
		Usage:     "Reframe files and list their configurations and coded units",
		ArgsUsage: "<file>...",
		Flags: []cli.Flag{
			fpsFlag,
			codecFlag,
			&cli.Float64Flag{
				Name:  "start",
				Usage: "Start time in seconds, resolved through the index",
			},
			&cli.IntFlag{
				Name:  "max-units",
				Usage: "List at most this many units per file (0 lists all)",
			},
			jobsFlag,
		},
		Action: demuxAction,
	}
}

func durationCommand() *cli.Command {
	return &cli.Command{
		Name:      "duration",
		Usage:     "Index files and report their duration",
		ArgsUsage: "<file>...",
		Flags:     []cli.Flag{fpsFlag, codecFlag, jobsFlag},
		Action:    durationAction,
	}
}

// fileRunner holds what every file of one command invocation shares.
type fileRunner struct {
	opts  reframe.Options
	codec types.CodecType
	log   *logrus.Logger
}

func newFileRunner(c *cli.Context) (*fileRunner, func(), error) {
	cfg, log, err := setup(c)
	if err != nil {
		return nil, nil, err
	}
	client := connectIndexCache(c.Context, cfg, log)
	cleanup := func() {
		if client != nil {
			_ = client.Close()
		}
	}

	opts, err := sessionOptions(c, cfg, log, indexStore(client, cfg, log))
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	r := &fileRunner{opts: opts, log: log}
	if name := c.String("codec"); name != "" {
		r.codec = types.ParseCodecType(name)
		if !r.codec.IsVPx() {
			cleanup()
			return nil, nil, cli.Exit(fmt.Sprintf("--codec must name a VPx codec, got %q", name), 2)
		}
	}
	return r, cleanup, nil
}

// session opens path and configures a session over it. The returned file is
// the session's source and is closed by the returned func.
func (r *fileRunner) session(path string, sink reframe.Sink) (*reframe.Session, *os.File, int64, func(), error) {
	f, size, key, err := openSource(path)
	if err != nil {
		return nil, nil, 0, nil, err
	}
	s := reframe.New(sink, r.opts)
	closeAll := func() {
		s.Close()
		f.Close()
	}
	if err := s.Configure(reframe.InputDescriptor{
		Codec:      r.codec,
		Source:     f,
		SourceSize: size,
		CacheKey:   key,
	}); err != nil {
		closeAll()
		return nil, nil, 0, nil, err
	}
	r.log.WithFields(logrus.Fields{
		"file":       path,
		"session_id": s.ID(),
		"size":       size,
	}).Debug("Session opened")
	return s, f, size, closeAll, nil
}

func demuxAction(c *cli.Context) error {
	runner, cleanup, err := newFileRunner(c)
	if err != nil {
		return err
	}
	defer cleanup()

	start := c.Float64("start")
	if start < 0 {
		return cli.Exit("--start cannot be negative", 2)
	}
	maxUnits := c.Int("max-units")

	return forEachFile(c, func(ctx context.Context, path string) (interface{}, error) {
		sink := &report.Collector{MaxUnits: maxUnits}
		s, f, size, closeAll, err := runner.session(path, sink)
		if err != nil {
			return nil, err
		}
		defer closeAll()

		driveErr := reframe.Drive(ctx, s, f, size, start)
		if driveErr != nil && s.Emitted() == 0 {
			return nil, driveErr
		}
		res := demuxResult{File: path, Summary: sink.Summary(s), Unlisted: sink.Dropped}
		if driveErr != nil {
			// partial output is kept
			res.Summary.Error = driveErr.Error()
		}
		return res, nil
	})
}

func durationAction(c *cli.Context) error {
	runner, cleanup, err := newFileRunner(c)
	if err != nil {
		return err
	}
	defer cleanup()

	return forEachFile(c, func(ctx context.Context, path string) (interface{}, error) {
		s, _, _, closeAll, err := runner.session(path, nil)
		if err != nil {
			return nil, err
		}
		defer closeAll()

		idx, ok := s.Duration(ctx)
		if !ok {
			if err := s.Err(); err != nil {
				return nil, err
			}
			return nil, errDurationUnknown
		}
		return durationResult{
			File:        path,
			Seconds:     idx.Seconds(),
			Duration:    idx.Duration,
			Timescale:   idx.Timescale,
			Approximate: idx.Approximate,
			Bitrate:     idx.Bitrate,
			Entries:     len(idx.Entries),
		}, nil
	})
}
