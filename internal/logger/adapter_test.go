package logger

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogrusAdapterLevels(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	l := NewLogrusAdapter(logrus.NewEntry(log))

	l.Debug("d")
	l.Info("i")
	l.Warn("w")
	l.Error("e")
	l.Log(logrus.InfoLevel, "log")
	l.Debugf("%s", "df")
	l.Infof("%d units", 3)
	l.Warnf("%s", "wf")
	l.Errorf("%s", "ef")

	want := []struct {
		level logrus.Level
		msg   string
	}{
		{logrus.DebugLevel, "d"},
		{logrus.InfoLevel, "i"},
		{logrus.WarnLevel, "w"},
		{logrus.ErrorLevel, "e"},
		{logrus.InfoLevel, "log"},
		{logrus.DebugLevel, "df"},
		{logrus.InfoLevel, "3 units"},
		{logrus.WarnLevel, "wf"},
		{logrus.ErrorLevel, "ef"},
	}
	entries := hook.AllEntries()
	require.Len(t, entries, len(want))
	for i, w := range want {
		assert.Equal(t, w.level, entries[i].Level, w.msg)
		assert.Equal(t, w.msg, entries[i].Message)
	}
}

func TestLogrusAdapterFields(t *testing.T) {
	log, hook := test.NewNullLogger()
	base := NewLogrusAdapter(logrus.NewEntry(log))

	child := base.WithField("session_id", "s1").WithFields(map[string]interface{}{"syntax": "obu"})
	child.WithError(errors.New("truncated")).Warn("bad unit")
	base.Info("plain")

	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "s1", entries[0].Data["session_id"])
	assert.Equal(t, "obu", entries[0].Data["syntax"])
	assert.EqualError(t, entries[0].Data[logrus.ErrorKey].(error), "truncated")
	assert.Empty(t, entries[1].Data, "parent is unaffected by children")
}

func TestLogrusAdapterNilEntry(t *testing.T) {
	l := NewLogrusAdapter(nil)
	require.NotNil(t, l)
	assert.Same(t, logrus.StandardLogger(), l.(*LogrusAdapter).Entry().Logger)
}

func TestNullLogger(t *testing.T) {
	l := NewNullLogger()
	assert.NotPanics(t, func() {
		l.WithField("a", 1).WithFields(nil).WithError(errors.New("x")).Error("ignored")
		l.Debug()
		l.Info()
		l.Warn()
		l.Log(logrus.PanicLevel, "not a panic")
		l.Debugf("")
		l.Infof("")
		l.Warnf("")
		l.Errorf("")
	})
	assert.Equal(t, l, l.WithField("a", 1))
}
