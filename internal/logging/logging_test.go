package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joeycumines/testable/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	} {
		got, err := ParseLevel(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	s, err := Resolve(nil, "", "")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, s.Level)
	assert.Equal(t, "text", s.Format)
	assert.Empty(t, s.File)
	assert.Equal(t, 10, s.MaxSizeMB)
	assert.Equal(t, 5, s.MaxFiles)

	cfg := config.NewConfig()
	cfg.SetGlobalOption("log.level", "warn")
	cfg.SetGlobalOption("log.format", "json")
	cfg.SetGlobalOption("log.file", "/tmp/from-config.log")
	s, err = Resolve(cfg, "debug", "")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, s.Level, "flag wins")
	assert.Equal(t, "json", s.Format)
	assert.Equal(t, "/tmp/from-config.log", s.File)

	cfg.SetGlobalOption("log.format", "xml")
	_, err = Resolve(cfg, "", "")
	assert.Error(t, err)
}

func TestNew_Fallback(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(Settings{Level: slog.LevelWarn, Format: "json"}, &buf)
	require.NoError(t, err)
	defer closer.Close()

	logger.Info("[Test] hidden")
	logger.Warn("[Test] shown", "key", "value")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &record))
	assert.Equal(t, "[Test] shown", record["msg"])
	assert.Equal(t, "value", record["key"])
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "testable.log")
	logger, closer, err := New(Settings{Level: slog.LevelInfo, File: path, MaxSizeMB: 1}, nil)
	require.NoError(t, err)
	logger.Info("[Test] to file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.log")
	r, err := OpenRotating(path, 1, 2)
	require.NoError(t, err)
	defer r.Close()
	r.limit = 10

	for _, s := range []string{"aaaaaaaa\n", "bbbbbbbb\n", "cccccccc\n", "dddddddd\n"} {
		_, err := r.Write([]byte(s))
		require.NoError(t, err)
	}

	read := func(p string) string {
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		return string(data)
	}
	assert.Equal(t, "dddddddd\n", read(path))
	assert.Equal(t, "cccccccc\n", read(path+".1"))
	assert.Equal(t, "bbbbbbbb\n", read(path+".2"))
	_, err = os.Stat(path + ".3")
	assert.True(t, os.IsNotExist(err))
}

func TestRotatingFile_NoBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.log")
	r, err := OpenRotating(path, 0, -1)
	require.NoError(t, err)
	defer r.Close()
	r.limit = 4

	_, err = r.Write([]byte("one\n"))
	require.NoError(t, err)
	_, err = r.Write([]byte("two\n"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two\n", string(data))
	_, err = os.Stat(path + ".1")
	assert.True(t, os.IsNotExist(err))
}
