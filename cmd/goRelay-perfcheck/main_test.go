package main

import (
	"bytes"
	"strings"
	"testing"
)

const sampleOutput = `goos: linux
goarch: amd64
pkg: github.com/MrEthical07/goRelay
BenchmarkBroadcast/sessions=10-8         	  500000	      2100 ns/op	     112 B/op	       2 allocs/op
BenchmarkBroadcast/sessions=1000-8       	    5000	    210000 ns/op	     112 B/op	       2 allocs/op
BenchmarkBroadcast/sessions=1000-8       	    5000	    230000 ns/op	     112 B/op	       2 allocs/op
BenchmarkBroadcastNoSubscribers-8        	   20000	     50000 ns/op	       0 B/op	       0 allocs/op
BenchmarkHandleMessageChannels-8         	  300000	      4000 ns/op	    1400 B/op	      30 allocs/op
BenchmarkRefreshToken-8                  	  100000	     12000 ns/op	    5000 B/op	      80 allocs/op
BenchmarkMatchesAll-8                    	50000000	        25 ns/op	       0 B/op	       0 allocs/op
PASS
`

func mustParse(t *testing.T, s string) sampleSet {
	t.Helper()
	set, err := parseBenchmarks(strings.NewReader(s))
	if err != nil {
		t.Fatalf("parseBenchmarks: %v", err)
	}
	return set
}

func TestParseBenchmarks(t *testing.T) {
	set := mustParse(t, sampleOutput)
	got := set["BenchmarkBroadcast/sessions=1000"]["ns/op"]
	if len(got) != 2 || got[0] != 210000 || got[1] != 230000 {
		t.Fatalf("unexpected samples %v", got)
	}
	if _, ok := set["BenchmarkBroadcast/sessions=10"]; ok {
		t.Fatalf("untracked benchmark parsed")
	}
	if median(got) != 220000 {
		t.Fatalf("unexpected median %v", median(got))
	}
}

func TestCompareDetectsRegression(t *testing.T) {
	base := mustParse(t, sampleOutput)
	slower := mustParse(t, strings.ReplaceAll(sampleOutput, "12000 ns/op", "24000 ns/op"))

	var out bytes.Buffer
	if failures := compare(&out, base, base, 0.30); len(failures) != 0 {
		t.Fatalf("identical runs failed: %v", failures)
	}

	failures := compare(&out, base, slower, 0.30)
	if len(failures) != 1 || !strings.Contains(failures[0], "BenchmarkRefreshToken ns/op") {
		t.Fatalf("unexpected failures %v", failures)
	}
}

func TestCompareZeroAllocBaseline(t *testing.T) {
	base := mustParse(t, sampleOutput)
	allocating := mustParse(t, sampleOutput)
	allocating["BenchmarkMatchesAll"]["allocs/op"] = []float64{1}

	var out bytes.Buffer
	failures := compare(&out, base, allocating, 0.30)
	if len(failures) != 1 || !strings.Contains(failures[0], "BenchmarkMatchesAll allocs/op") {
		t.Fatalf("unexpected failures %v", failures)
	}
}

func TestCompareMissingSamples(t *testing.T) {
	base := mustParse(t, sampleOutput)
	var out bytes.Buffer
	if failures := compare(&out, base, sampleSet{}, 0.30); len(failures) == 0 {
		t.Fatalf("expected missing sample failures")
	}
}

func TestNormalizeBenchmarkName(t *testing.T) {
	tests := map[string]string{
		"BenchmarkRefreshToken-8":             "BenchmarkRefreshToken",
		"BenchmarkBroadcast/sessions=1000-16": "BenchmarkBroadcast/sessions=1000",
		"BenchmarkMatchesAll":                 "BenchmarkMatchesAll",
	}
	for in, want := range tests {
		if got := normalizeBenchmarkName(in); got != want {
			t.Fatalf("normalizeBenchmarkName(%q) = %q, want %q", in, got, want)
		}
	}
}
