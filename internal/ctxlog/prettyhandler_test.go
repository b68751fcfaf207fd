// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package ctxlog

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(buf *bytes.Buffer, level slog.Level, opts ...Option) *slog.Logger {
	opts = append(opts, WithDestinationWriter(buf))

	return slog.New(NewPrettyHandler(&slog.HandlerOptions{Level: level}, opts...))
}

func TestPrettyHandler_Line(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := newTestLogger(buf, slog.LevelDebug)

	logger.Info("process started", "pid", 42)

	out := buf.String()
	assert.True(t, strings.HasSuffix(out, "\n"), "one line per record")
	assert.Equal(t, 1, strings.Count(out, "\n"))
	assert.Contains(t, out, "INFO:")
	assert.Contains(t, out, "process started")
	assert.Contains(t, out, `"pid"`)
	assert.Contains(t, out, "42")
	assert.Regexp(t, `^\[\d{2}:\d{2}:\d{2}\.\d{3}\] `, out)
}

func TestPrettyHandler_Level(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := newTestLogger(buf, slog.LevelWarn)

	logger.Debug("hidden")
	logger.Info("hidden")
	assert.Empty(t, buf.String())

	logger.Warn("shown")
	assert.Contains(t, buf.String(), "WARN:")
}

func TestPrettyHandler_EmptyAttrs(t *testing.T) {
	buf := &bytes.Buffer{}
	newTestLogger(buf, slog.LevelInfo).Info("no attrs")
	assert.NotContains(t, buf.String(), "{")

	buf.Reset()
	newTestLogger(buf, slog.LevelInfo, WithOutputEmptyAttrs()).Info("no attrs")
	assert.Contains(t, buf.String(), "{")
}

func TestPrettyHandler_WithAttrsAndGroup(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := newTestLogger(buf, slog.LevelInfo).With("job", 3).WithGroup("proc")

	logger.Info("reaped", "exitCode", 1)

	out := buf.String()
	assert.Contains(t, out, `"job"`)
	assert.Contains(t, out, `"proc"`)
	assert.Contains(t, out, `"exitCode"`)
}

func TestPrettyHandler_ReplaceAttrDropsTime(t *testing.T) {
	buf := &bytes.Buffer{}
	h := NewPrettyHandler(&slog.HandlerOptions{
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}

			return a
		},
	}, WithDestinationWriter(buf))

	slog.New(h).Warn("no time")
	assert.True(t, strings.HasPrefix(buf.String(), "WARN:"))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("boom")
}

func TestPrettyHandler_WriteError(t *testing.T) {
	h := NewPrettyHandler(nil, WithDestinationWriter(failingWriter{}))
	r := slog.NewRecord(testTime, slog.LevelWarn, "msg", 0)

	err := h.Handle(context.Background(), r)
	require.ErrorIs(t, err, ErrIoWrite)
}

func TestPrettyHandler_Concurrent(t *testing.T) {
	buf := &safeBuffer{}
	logger := slog.New(NewPrettyHandler(nil, WithDestinationWriter(buf)))

	var wg sync.WaitGroup

	for i := range 20 {
		wg.Add(1)

		go func() {
			defer wg.Done()
			logger.Warn("concurrent", "i", i)
		}()
	}

	wg.Wait()
	assert.Equal(t, 20, strings.Count(buf.String(), "\n"))
}

type safeBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *safeBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.b.Write(p)
}

func (s *safeBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.b.String()
}

var testTime = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
