package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/zsiec/reframe/internal/logger"
	"github.com/zsiec/reframe/internal/reframe"
	"github.com/zsiec/reframe/internal/reframe/rtpsource"
	"github.com/zsiec/reframe/internal/report"
)

// maxDatagram bounds one RTP packet read.
const maxDatagram = 1 << 16

func rtpCommand() *cli.Command {
	return &cli.Command{
		Name:  "rtp",
		Usage: "Receive AV1 over RTP and print the reframed units as JSON lines",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Value: ":5004",
				Usage: "UDP address to receive RTP on",
			},
			&cli.UintFlag{
				Name:  "clock-rate",
				Value: 90000,
				Usage: "RTP clock rate of the stream",
			},
			&cli.IntFlag{
				Name:  "count",
				Usage: "Stop after this many units (0 runs until interrupted)",
			},
		},
		Action: rtpAction,
	}
}

func rtpAction(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	opts, err := sessionOptions(c, cfg, log, nil)
	if err != nil {
		return err
	}

	conn, err := net.ListenPacket("udp", c.String("listen"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("listen: %v", err), 1)
	}
	defer conn.Close()
	log.WithField("addr", conn.LocalAddr().String()).Info("Receiving RTP")

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := &rtpReceiver{
		conn:  conn,
		depkt: rtpsource.New(uint32(c.Uint("clock-rate")), logger.NewLogrusAdapter(logger.WithComponent(log, "rtp"))),
		sink:  &lineSink{enc: json.NewEncoder(c.App.Writer)},
		log:   log,
		count: c.Int("count"),
	}
	return r.run(ctx, opts)
}

// lineSink writes every configuration and unit as one JSON line.
type lineSink struct {
	enc   *json.Encoder
	units int
}

func (s *lineSink) OnConfig(c reframe.ConfigChange) error {
	return s.enc.Encode(struct {
		Config report.Config `json:"config"`
	}{report.NewConfig(c)})
}

func (s *lineSink) OnUnit(u reframe.CodedUnit) error {
	s.units++
	return s.enc.Encode(struct {
		Unit report.Unit `json:"unit"`
	}{report.NewUnit(u)})
}

type rtpReceiver struct {
	conn  net.PacketConn
	depkt *rtpsource.Depacketizer
	sink  *lineSink
	log   *logrus.Logger
	count int
	// pollInterval bounds how long a read blocks before ctx is checked.
	pollInterval time.Duration
}

func (r *rtpReceiver) run(ctx context.Context, opts reframe.Options) error {
	s := reframe.New(r.sink, opts)
	defer s.Close()
	if err := s.Configure(reframe.InputDescriptor{Framed: true, HostTimescale: r.depkt.ClockRate()}); err != nil {
		return err
	}
	if _, err := s.Play(ctx, 0); err != nil {
		return err
	}

	poll := r.pollInterval
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	buf := make([]byte, maxDatagram)
	for ctx.Err() == nil && !r.done() {
		if err := r.conn.SetReadDeadline(time.Now().Add(poll)); err != nil {
			return err
		}
		n, _, err := r.conn.ReadFrom(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("rtp read: %w", err)
		}

		frags, err := r.depkt.PushRaw(buf[:n])
		if err != nil {
			r.log.WithError(err).Debug("Dropping RTP packet")
			continue
		}
		if err := r.feed(ctx, s, frags); err != nil {
			return err
		}
	}

	// end-of-stream processing runs even after cancellation
	if err := r.feed(context.WithoutCancel(ctx), s, r.depkt.Flush()); err != nil {
		return err
	}
	if err := s.EndOfStream(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	r.log.WithFields(logrus.Fields{
		"units":        r.sink.units,
		"dropped_obus": r.depkt.Dropped(),
	}).Info("RTP receive finished")
	return nil
}

func (r *rtpReceiver) feed(ctx context.Context, s *reframe.Session, frags []reframe.Fragment) error {
	for _, f := range frags {
		if r.done() {
			return nil
		}
		if err := s.Feed(ctx, f); err != nil {
			return err
		}
	}
	return nil
}

func (r *rtpReceiver) done() bool {
	return r.count > 0 && r.sink.units >= r.count
}
