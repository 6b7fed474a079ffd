package main

import (
	"context"
	"errors"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/zsiec/reframe/internal/reframe"
)

type probeResult struct {
	File       string `json:"file"`
	Confidence string `json:"confidence"`
	Syntax     string `json:"syntax"`
	MIME       string `json:"mime,omitempty"`
}

func probeCommand() *cli.Command {
	return &cli.Command{
		Name:      "probe",
		Usage:     "Report whether files hold a supported stream",
		ArgsUsage: "<file>...",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "bytes",
				Value: 64 << 10,
				Usage: "Bytes read from the head of each file",
			},
			jobsFlag,
		},
		Action: probeAction,
	}
}

func probeAction(c *cli.Context) error {
	limit := c.Int("bytes")
	if limit <= 0 {
		return cli.Exit("--bytes must be positive", 2)
	}
	return forEachFile(c, func(_ context.Context, path string) (interface{}, error) {
		f, _, _, err := openSource(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		head := make([]byte, limit)
		n, err := io.ReadFull(f, head)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			return nil, err
		}

		res := reframe.Probe(head[:n])
		return probeResult{
			File:       path,
			Confidence: res.Confidence.String(),
			Syntax:     res.Syntax.String(),
			MIME:       res.MIME,
		}, nil
	})
}
