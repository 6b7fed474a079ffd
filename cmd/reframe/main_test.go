package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/zsiec/reframe/internal/reframe"
	"github.com/zsiec/reframe/internal/reframe/rtpsource"
	"github.com/zsiec/reframe/internal/reframe/security"
	"github.com/zsiec/reframe/internal/reframe/testutil"
)

func run(t *testing.T, args ...string) ([]map[string]interface{}, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard

	err := app.Run(append([]string{"reframe", "--log-level", "error"}, args...))

	var lines []map[string]interface{}
	sc := bufio.NewScanner(&out)
	sc.Buffer(make([]byte, 0, 1<<20), 1<<24)
	for sc.Scan() {
		var line map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &line), sc.Text())
		lines = append(lines, line)
	}
	return lines, err
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func obuStream(units int) []byte {
	seq := testutil.SequenceHeader(640, 360)
	var data []byte
	for i := 0; i < units; i++ {
		if i%3 == 0 {
			data = append(data, testutil.TemporalUnit(seq, testutil.FrameOBU(true, 20))...)
		} else {
			data = append(data, testutil.TemporalUnit(testutil.FrameOBU(false, 20))...)
		}
	}
	return data
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if ec, ok := err.(cli.ExitCoder); ok {
		return ec.ExitCode()
	}
	return -1
}

func TestProbeCommand(t *testing.T) {
	obu := writeFile(t, "clip.obu", obuStream(4))
	zeros := writeFile(t, "zeros.bin", make([]byte, 128))

	lines, err := run(t, "probe", obu, zeros)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	assert.Equal(t, obu, lines[0]["file"])
	assert.Equal(t, "supported", lines[0]["confidence"])
	assert.Equal(t, "obu", lines[0]["syntax"])
	assert.Equal(t, "not_supported", lines[1]["confidence"])
}

func TestProbeCommandMissingFile(t *testing.T) {
	lines, err := run(t, "probe", filepath.Join(t.TempDir(), "missing"))
	assert.Equal(t, 1, exitCode(err))
	require.Len(t, lines, 1)
	assert.NotEmpty(t, lines[0]["error"])
}

func TestProbeCommandNeedsFiles(t *testing.T) {
	_, err := run(t, "probe")
	assert.Equal(t, 2, exitCode(err))
}

func TestDemuxCommand(t *testing.T) {
	a := writeFile(t, "a.obu", obuStream(7))
	b := writeFile(t, "b.obu", obuStream(4))

	lines, err := run(t, "demux", "--fps", "1", "--jobs", "2", a, b)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	assert.Equal(t, a, lines[0]["file"])
	assert.Equal(t, "obu", lines[0]["syntax"])
	assert.Len(t, lines[0]["units"], 7)
	assert.Len(t, lines[1]["units"], 4)
	assert.Len(t, lines[0]["configs"], 1)
}

func TestDemuxCommandSeekAndLimit(t *testing.T) {
	path := writeFile(t, "a.obu", obuStream(7))

	lines, err := run(t, "demux", "--fps", "1/1", "--start", "4.5", "--max-units", "2", path)
	require.NoError(t, err)
	require.Len(t, lines, 1)

	units := lines[0]["units"].([]interface{})
	require.Len(t, units, 2)
	first := units[0].(map[string]interface{})
	assert.EqualValues(t, 3, first["pts"])
	assert.Equal(t, true, first["sync"])
	assert.EqualValues(t, 2, lines[0]["unlisted"])
}

func TestDemuxCommandUnsupported(t *testing.T) {
	path := writeFile(t, "zeros.bin", make([]byte, 128))

	lines, err := run(t, "demux", path)
	assert.Equal(t, 1, exitCode(err))
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0]["error"], "unsupported")
}

func TestDemuxCommandFlags(t *testing.T) {
	path := writeFile(t, "a.obu", obuStream(1))

	_, err := run(t, "demux", "--codec", "av1", path)
	assert.Equal(t, 2, exitCode(err), "codec names raw VPx only")

	_, err = run(t, "demux", "--fps", "fast", path)
	assert.Equal(t, 2, exitCode(err))

	_, err = run(t, "demux", "--start", "-1", path)
	assert.Equal(t, 2, exitCode(err))
}

func TestDurationCommand(t *testing.T) {
	path := writeFile(t, "a.obu", obuStream(7))

	lines, err := run(t, "duration", "--fps", "1", path)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.InDelta(t, 7.0, lines[0]["seconds"], 1e-9)
	assert.EqualValues(t, 1, lines[0]["timescale"])
}

func TestVersionFlag(t *testing.T) {
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	require.NoError(t, app.Run([]string{"reframe", "--version"}))
	assert.Contains(t, out.String(), "reframe")
}

func rtpPacket(seq uint16, ts uint32, payload []byte) []byte {
	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    96,
			SequenceNumber: seq,
			Timestamp:      ts,
			Marker:         true,
		},
		Payload: payload,
	}
	raw, _ := pkt.Marshal()
	return raw
}

func TestRTPReceiver(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()

	seqHdr := testutil.OBUNoSize(testutil.OBUSequenceHeader, testutil.SequenceHeaderPayload(640, 360, nil))
	key := testutil.OBUNoSize(testutil.OBUFrame, testutil.FrameOBU(true, 16)[2:])
	inter := testutil.OBUNoSize(testutil.OBUFrame, testutil.FrameOBU(false, 16)[2:])

	first := append([]byte{0x20}, security.AppendLEB128(nil, uint64(len(seqHdr)))...)
	first = append(first, seqHdr...)
	first = append(first, key...)
	second := append([]byte{0x10}, inter...)

	var out bytes.Buffer
	log, _ := test.NewNullLogger()
	r := &rtpReceiver{
		conn:         conn,
		depkt:        rtpsource.New(0, nil),
		sink:         &lineSink{enc: json.NewEncoder(&out)},
		log:          log,
		count:        2,
		pollInterval: 20 * time.Millisecond,
	}

	sender, err := net.Dial("udp", conn.LocalAddr().String())
	require.NoError(t, err)
	defer sender.Close()
	_, err = sender.Write(rtpPacket(1, 0, first))
	require.NoError(t, err)
	_, err = sender.Write(rtpPacket(2, 3000, second))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.run(ctx, reframe.DefaultOptions()))

	var lines []map[string]map[string]interface{}
	dec := json.NewDecoder(&out)
	for dec.More() {
		var line map[string]map[string]interface{}
		require.NoError(t, dec.Decode(&line))
		lines = append(lines, line)
	}
	require.Len(t, lines, 3)
	assert.EqualValues(t, 640, lines[0]["config"]["width"])
	assert.EqualValues(t, 0, lines[1]["unit"]["pts"])
	assert.Equal(t, true, lines[1]["unit"]["sync"])
	assert.EqualValues(t, 3000, lines[2]["unit"]["pts"])
	assert.EqualValues(t, 90000, lines[2]["unit"]["timescale"])
}
