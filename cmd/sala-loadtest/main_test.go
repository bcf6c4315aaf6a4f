package main

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestLoadtestAbsorbsExpiries(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	var out bytes.Buffer
	res, err := loadtest(t.Context(), options{
		concurrency: 8,
		ops:         400,
		expireEvery: 10 * time.Millisecond,
		latency:     time.Millisecond,
	}, &out)
	if err != nil {
		t.Fatalf("loadtest: %v", err)
	}
	// A replay can still lose the race against the next expiry, but every
	// cycle must have been started by a 401.
	if res.cycles > res.unauthorized {
		t.Fatalf("cycles %d exceed 401 answers %d", res.cycles, res.unauthorized)
	}
	if res.stats.ops != 400 {
		t.Fatalf("expected 400 samples, got %d", res.stats.ops)
	}
	if uint64(res.refreshCalls) != res.cycles {
		t.Fatalf("refresh calls %d differ from cycles %d", res.refreshCalls, res.cycles)
	}
	if !strings.Contains(out.String(), "miniredis") {
		t.Fatalf("expected miniredis notice, got %q", out.String())
	}
}

func TestRunRejectsBadFlags(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(t.Context(), []string{"-ops", "0"}, &stdout, &stderr); code != 2 {
		t.Fatalf("expected 2, got %d", code)
	}
}

func TestPercentile(t *testing.T) {
	s := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if got := percentile(s, 50); got != 5 {
		t.Fatalf("p50 = %d", got)
	}
	if got := percentile(s, 100); got != 10 {
		t.Fatalf("p100 = %d", got)
	}
	if got := percentile(nil, 99); got != 0 {
		t.Fatalf("empty = %d", got)
	}
}
