package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/reframe/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LoggingConfig
		level   logrus.Level
		json    bool
		wantErr string
	}{
		{
			name:  "json to stdout",
			cfg:   config.LoggingConfig{Level: "debug", Format: "json", Output: "stdout"},
			level: logrus.DebugLevel,
			json:  true,
		},
		{
			name:  "text to stderr",
			cfg:   config.LoggingConfig{Level: "warn", Format: "text", Output: "stderr"},
			level: logrus.WarnLevel,
		},
		{
			name:    "bad level",
			cfg:     config.LoggingConfig{Level: "loud", Format: "json", Output: "stdout"},
			wantErr: "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(&tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.level, log.GetLevel())
			_, isJSON := log.Formatter.(*logrus.JSONFormatter)
			assert.Equal(t, tt.json, isJSON)
		})
	}
}

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "reframe.log")
	log, err := New(&config.LoggingConfig{
		Level:      "info",
		Format:     "json",
		Output:     path,
		MaxSize:    1,
		MaxBackups: 1,
		MaxAge:     1,
	})
	require.NoError(t, err)

	log.Info("written to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestNewStampsServiceFields(t *testing.T) {
	log, err := New(&config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"})
	require.NoError(t, err)
	var buf bytes.Buffer
	log.SetOutput(&buf)

	log.WithField("component", "demux").Info("hello")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["message"])
	assert.Equal(t, "reframe", line["service"])
	assert.NotEmpty(t, line["version"])
	assert.Equal(t, "demux", line["component"])
	assert.Contains(t, line, "timestamp")
}

func TestStaticFieldsDoNotOverride(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.AddHook(staticFields{"service": "reframe"})

	log.WithField("service", "other").Info("x")
	log.Info("y")

	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "other", entries[0].Data["service"])
	assert.Equal(t, "reframe", entries[1].Data["service"])
}

func TestWithComponent(t *testing.T) {
	log, hook := test.NewNullLogger()
	WithComponent(log, "index").Warn("slow")

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "index", hook.LastEntry().Data["component"])
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}
