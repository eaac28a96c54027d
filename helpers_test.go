package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeRelay fails the first failures[to] attempts for a recipient, or every
// attempt when the count is negative.
type fakeRelay struct {
	mu       sync.Mutex
	failures map[string]int
	attempts map[string]int
	sent     []Message
}

func newFakeRelay(failures map[string]int) *fakeRelay {
	if failures == nil {
		failures = map[string]int{}
	}
	return &fakeRelay{failures: failures, attempts: map[string]int{}}
}

func (f *fakeRelay) Send(_ context.Context, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.attempts[msg.To]++
	n := f.failures[msg.To]
	if n < 0 || f.attempts[msg.To] <= n {
		return fmt.Errorf("550 mailbox unavailable (attempt %d)", f.attempts[msg.To])
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeRelay) Health(context.Context) error {
	return nil
}

type sleepRecorder struct {
	calls []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return ctx.Err()
}

func writeFile(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BatchSize = 2
	cfg.BatchInterval = 2 * time.Second
	cfg.RetryDelay = time.Second
	cfg.FromAddress = "news@example.com"
	cfg.SMTP.Host = "127.0.0.1"
	cfg.SMTP.Port = 2525
	return cfg
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
