package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestRunLoadSmoke(t *testing.T) {
	if testing.Short() {
		t.Skip("load smoke test skipped in short mode")
	}
	opts := options{
		Clients:     6,
		Messages:    4,
		Interval:    time.Millisecond,
		Groups:      2,
		Concurrency: 3,
		Channel:     "load",
	}

	var out bytes.Buffer
	if err := runLoad(context.Background(), opts, &out); err != nil {
		t.Fatalf("runLoad: %v", err)
	}
	report := out.String()
	if !strings.Contains(report, "using miniredis") || !strings.Contains(report, "---- results ----") {
		t.Fatalf("unexpected report:\n%s", report)
	}
	if strings.Contains(report, "bus_received=0") {
		t.Fatalf("bridge received nothing:\n%s", report)
	}
}

func TestPercentile(t *testing.T) {
	samples := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	tests := []struct {
		p    int
		want time.Duration
	}{
		{0, 1},
		{50, 5},
		{99, 9},
		{100, 10},
	}
	for _, tc := range tests {
		if got := percentile(samples, tc.p); got != tc.want {
			t.Fatalf("percentile(%d) = %d, want %d", tc.p, got, tc.want)
		}
	}
	if percentile(nil, 50) != 0 {
		t.Fatalf("percentile of empty samples should be zero")
	}
}

func TestComputeStatsEmpty(t *testing.T) {
	s := computeStats(time.Second, nil, 3)
	if s.ops != 0 || s.failures != 3 {
		t.Fatalf("unexpected stats %+v", s)
	}
}
