package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pushmodel-dev/pushmodel/pkg/pushtest"
	"github.com/pushmodel-dev/pushmodel/pkg/server"
)

func TestParseBytes(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"512", 512, false},
		{"1kb", 1000, false},
		{"2GiB", 2 * gib, false},
		{"1.5 MiB", 1572864, false},
		{"", 0, true},
		{"MiB", 0, true},
		{"3 parsecs", 0, true},
	}
	for _, tt := range tests {
		got, err := parseBytes(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseBytes(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseBytes(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestBenchFlags(t *testing.T) {
	f := benchFlags{profile: "fast", clients: -1, rps: -1, list: -1, payloadBytes: -1, maxProcs: -1, duration: "2s"}
	cfg, err := f.config()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Clients != 50 || cfg.Duration != 2*time.Second || cfg.JSONOutput != "-" {
		t.Errorf("config = %+v", cfg)
	}
	if cfg.CallTimeout != 5*time.Second {
		t.Errorf("CallTimeout = %v, want 5s", cfg.CallTimeout)
	}

	for _, bad := range []benchFlags{
		{profile: "huge", clients: -1, rps: -1, list: -1, payloadBytes: -1, maxProcs: -1},
		{profile: "fast", clients: 0, rps: -1, list: -1, payloadBytes: -1, maxProcs: -1},
		{profile: "fast", clients: -1, rps: -1, list: 0, payloadBytes: -1, maxProcs: -1},
		{profile: "fast", clients: -1, rps: -1, list: -1, payloadBytes: -1, maxProcs: -1, memLimit: "lots"},
	} {
		if _, err := bad.config(); err == nil {
			t.Errorf("config(%+v) should fail", bad)
		}
	}
}

func TestMakeToken(t *testing.T) {
	a := makeToken(1, 1, 24)
	b := makeToken(1, 2, 24)
	if len(a) != 24 || a == b {
		t.Errorf("tokens %q and %q", a, b)
	}
}

func TestLoadModelEchoesToken(t *testing.T) {
	srv := server.New(loadModel(4), nil)
	srv.SetLogger(silentLogger())
	ts := httptest.NewServer(srv)
	defer func() {
		srv.Shutdown(context.Background())
		ts.Close()
	}()

	c := pushtest.Connect(t, ts)
	c.Send(pushtest.Req(1, "SUB", "/echo"))
	c.Expect(pushtest.Res(1, nil))
	c.Expect(pushtest.Pub(pushtest.Replace("/echo", map[string]any{"token": ""})))

	c.Send(pushtest.Req(2, "input", "tok"))
	c.Expect(pushtest.Res(2, nil))
	c.Expect(pushtest.Pub(pushtest.Replace("/echo/token", "tok")))
}

func TestRunBench(t *testing.T) {
	if testing.Short() {
		t.Skip("load run")
	}
	cfg := benchConfig{
		Profile:      "test",
		Clients:      3,
		Duration:     500 * time.Millisecond,
		RPS:          20,
		ListSize:     5,
		PayloadBytes: 16,
		JSONOutput:   "-",
		CallTimeout:  2 * time.Second,
	}
	report := runBench(context.Background(), cfg)

	if report.Throughput.CallsTotal == 0 {
		t.Fatal("no calls completed")
	}
	if report.Errors.TotalErrors != 0 {
		t.Errorf("errors = %+v", report.Errors)
	}
	if report.Protocol.PatchOps["replace"] == 0 {
		t.Errorf("patch ops = %v, want replace patches", report.Protocol.PatchOps)
	}

	var summary, out bytes.Buffer
	writeSummary(&summary, report)
	if !strings.Contains(summary.String(), "Total calls:") {
		t.Errorf("summary = %q", summary.String())
	}
	if err := writeJSON("-", &out, report); err != nil || !strings.Contains(out.String(), `"calls_total"`) {
		t.Errorf("writeJSON = %v, %q", err, out.String())
	}
}
