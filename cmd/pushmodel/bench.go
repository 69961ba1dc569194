package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http/httptest"
	"os"
	"runtime"
	"runtime/debug"
	"runtime/metrics"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/pushmodel-dev/pushmodel/internal/errors"
	"github.com/pushmodel-dev/pushmodel/pkg/model"
	"github.com/pushmodel-dev/pushmodel/pkg/observe"
	"github.com/pushmodel-dev/pushmodel/pkg/protocol"
	"github.com/pushmodel-dev/pushmodel/pkg/rpc"
	"github.com/pushmodel-dev/pushmodel/pkg/server"
)

const gib = int64(1024 * 1024 * 1024)

type profile struct {
	Name          string
	Clients       int
	Duration      time.Duration
	RPS           float64
	ListSize      int
	PayloadBytes  int
	MaxProcs      int
	MemLimitBytes int64
}

var profiles = map[string]profile{
	"fast": {
		Name:         "fast",
		Clients:      50,
		Duration:     10 * time.Second,
		RPS:          2,
		ListSize:     20,
		PayloadBytes: 24,
	},
	"standard": {
		Name:         "standard",
		Clients:      200,
		Duration:     30 * time.Second,
		RPS:          5,
		ListSize:     50,
		PayloadBytes: 24,
	},
	"stress": {
		Name:          "stress",
		Clients:       500,
		Duration:      60 * time.Second,
		RPS:           10,
		ListSize:      100,
		PayloadBytes:  24,
		MaxProcs:      4,
		MemLimitBytes: 2 * gib,
	},
}

type benchConfig struct {
	Profile       string
	Clients       int
	Duration      time.Duration
	RPS           float64
	ListSize      int
	PayloadBytes  int
	MaxProcs      int
	MemLimitBytes int64
	JSONOutput    string
	CallTimeout   time.Duration
}

type benchCounters struct {
	callsSent     atomic.Uint64
	callsComplete atomic.Uint64
	callBytes     atomic.Uint64
	pubBytes      atomic.Uint64
	pubFrames     atomic.Uint64
	patchesTotal  atomic.Uint64
}

type benchErrors struct {
	dialFailures   atomic.Uint64
	writeFailures  atomic.Uint64
	decodeFailures atomic.Uint64
	errorResponses atomic.Uint64
	tokenMissing   atomic.Uint64
	totalErrors    atomic.Uint64
}

// patchOpCounts counts received patches by op.
type patchOpCounts struct {
	mu     sync.Mutex
	counts map[string]uint64
}

func (p *patchOpCounts) add(op string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.counts == nil {
		p.counts = make(map[string]uint64)
	}
	p.counts[op]++
}

func (p *patchOpCounts) snapshot() map[string]uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]uint64, len(p.counts))
	for op, n := range p.counts {
		out[op] = n
	}
	return out
}

// benchFlags are the raw command line values. Negative numbers and empty
// strings keep the profile's value.
type benchFlags struct {
	profile      string
	clients      int
	duration     string
	rps          float64
	list         int
	payloadBytes int
	maxProcs     int
	memLimit     string
	json         string
}

func benchCmd() *cobra.Command {
	f := benchFlags{clients: -1, rps: -1, list: -1, payloadBytes: -1, maxProcs: -1}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run a load benchmark against an in-process server",
		Long: `Start an in-process server and drive it with concurrent WebSocket
clients. Every client subscribes to the shared model, calls "input" with a
unique token at a fixed rate, and measures the time until the PUB carrying
its token arrives.

Examples:
  pushmodel bench --profile fast
  pushmodel bench --clients 1000 --duration 1m --json report.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.config()
			if err != nil {
				return err
			}
			report := runBench(cmd.Context(), cfg)
			writeSummary(cmd.ErrOrStderr(), report)
			return writeJSON(cfg.JSONOutput, cmd.OutOrStdout(), report)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.profile, "profile", "standard", "Profile: fast|standard|stress")
	fl.IntVar(&f.clients, "clients", f.clients, "Number of concurrent WebSocket clients")
	fl.StringVar(&f.duration, "duration", "", "Benchmark duration, e.g. 30s")
	fl.Float64Var(&f.rps, "rps", f.rps, "Target calls/sec per client")
	fl.IntVar(&f.list, "list", f.list, "Length of the shared items list")
	fl.IntVar(&f.payloadBytes, "payload-bytes", f.payloadBytes, "Bytes of token payload per call")
	fl.IntVar(&f.maxProcs, "max-procs", f.maxProcs, "GOMAXPROCS cap (0 to leave unchanged)")
	fl.StringVar(&f.memLimit, "mem-limit", "", "GOMEMLIMIT (e.g. 2GiB)")
	fl.StringVar(&f.json, "json", "-", "JSON output path ('-' for stdout)")

	return cmd
}

func (f benchFlags) config() (benchConfig, error) {
	invalid := func(format string, args ...any) error {
		return errors.Newf(errors.CategoryCLI, format, args...)
	}

	name := strings.ToLower(strings.TrimSpace(f.profile))
	if name == "" {
		name = "standard"
	}
	base, ok := profiles[name]
	if !ok {
		return benchConfig{}, invalid("unknown profile %q", name)
	}

	cfg := benchConfig{
		Profile:       base.Name,
		Clients:       base.Clients,
		Duration:      base.Duration,
		RPS:           base.RPS,
		ListSize:      base.ListSize,
		PayloadBytes:  base.PayloadBytes,
		MaxProcs:      base.MaxProcs,
		MemLimitBytes: base.MemLimitBytes,
		JSONOutput:    strings.TrimSpace(f.json),
	}

	if f.clients != -1 {
		cfg.Clients = f.clients
	}
	if f.duration != "" {
		d, err := time.ParseDuration(f.duration)
		if err != nil {
			return benchConfig{}, invalid("invalid --duration: %v", err)
		}
		cfg.Duration = d
	}
	if f.rps != -1 {
		cfg.RPS = f.rps
	}
	if f.list != -1 {
		cfg.ListSize = f.list
	}
	if f.payloadBytes != -1 {
		cfg.PayloadBytes = f.payloadBytes
	}
	if f.maxProcs != -1 {
		cfg.MaxProcs = f.maxProcs
	}
	if f.memLimit != "" {
		limit, err := parseBytes(f.memLimit)
		if err != nil {
			return benchConfig{}, invalid("invalid --mem-limit: %v", err)
		}
		cfg.MemLimitBytes = limit
	}
	if cfg.JSONOutput == "" {
		cfg.JSONOutput = "-"
	}

	switch {
	case cfg.Clients <= 0:
		return benchConfig{}, invalid("--clients must be > 0")
	case cfg.Duration <= 0:
		return benchConfig{}, invalid("--duration must be > 0")
	case cfg.RPS <= 0:
		return benchConfig{}, invalid("--rps must be > 0")
	case cfg.ListSize <= 0:
		return benchConfig{}, invalid("--list must be > 0")
	case cfg.PayloadBytes <= 0:
		return benchConfig{}, invalid("--payload-bytes must be > 0")
	case cfg.MaxProcs < 0:
		return benchConfig{}, invalid("--max-procs must be >= 0")
	case cfg.MemLimitBytes < 0:
		return benchConfig{}, invalid("--mem-limit must be >= 0")
	}

	cfg.CallTimeout = callTimeout(cfg.RPS)
	return cfg, nil
}

func callTimeout(rps float64) time.Duration {
	if rps <= 0 {
		return 0
	}
	timeout := time.Duration(float64(time.Second)/rps) * 10
	return max(timeout, 2*time.Second)
}

func parseBytes(input string) (int64, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return 0, stderrors.New("empty size")
	}

	i := strings.IndexFunc(s, func(r rune) bool { return (r < '0' || r > '9') && r != '.' })
	if i == -1 {
		i = len(s)
	}
	if i == 0 {
		return 0, fmt.Errorf("invalid size %q", input)
	}

	value, err := strconv.ParseFloat(s[:i], 64)
	if err != nil {
		return 0, err
	}

	var multiplier float64
	switch suffix := strings.ToLower(strings.TrimSpace(s[i:])); suffix {
	case "", "b":
		multiplier = 1
	case "kb":
		multiplier = 1e3
	case "mb":
		multiplier = 1e6
	case "gb":
		multiplier = 1e9
	case "kib":
		multiplier = 1 << 10
	case "mib":
		multiplier = 1 << 20
	case "gib":
		multiplier = 1 << 30
	default:
		return 0, fmt.Errorf("unknown size suffix %q", suffix)
	}

	return int64(value*multiplier + 0.5), nil
}

// loadModel is a shared model whose "input" method writes the token to
// /echo/token and to one slot of /items.
func loadModel(listSize int) *model.Model {
	items := make([]any, listSize)
	for i := range items {
		items[i] = fmt.Sprintf("Item %d", i)
	}
	root := observe.NewObject()
	root.Set("echo", map[string]any{"token": ""})
	root.Set("items", observe.NewArray(items...))

	var m *model.Model
	reg := rpc.NewRegistry()
	reg.Register("input", rpc.Func1(func(token string) (any, error) {
		m.Root().Object("echo").Set("token", token)
		list := m.Root().Array("items")
		list.Set(int(fnv1a32(token)%uint32(list.Len())), token)
		return nil, nil
	}))
	m = model.New(root, reg)
	return m
}

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func runBench(ctx context.Context, cfg benchConfig) benchReport {
	if cfg.MaxProcs > 0 {
		prev := runtime.GOMAXPROCS(cfg.MaxProcs)
		defer runtime.GOMAXPROCS(prev)
	}
	if cfg.MemLimitBytes > 0 {
		prev := debug.SetMemoryLimit(cfg.MemLimitBytes)
		defer debug.SetMemoryLimit(prev)
	}

	sc := server.DefaultServerConfig()
	sc.ConnConfig.MaxOutboundQueue = 1 << 14
	srv := server.New(loadModel(cfg.ListSize), sc)
	srv.SetLogger(silentLogger())
	ts := httptest.NewServer(srv)
	defer func() {
		srv.Conns().Shutdown(context.Background())
		ts.Close()
	}()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/"

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	samplesCh := make(chan time.Duration, max(cfg.Clients*4, 1024))
	var samples []time.Duration
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for rtt := range samplesCh {
			samples = append(samples, rtt)
		}
	}()

	var (
		counters benchCounters
		errCount benchErrors
		patchOps patchOpCounts
	)

	var before runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	beforeMetrics := readRuntimeMetrics()

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(cfg.Clients)
	for i := 0; i < cfg.Clients; i++ {
		go func(clientID int) {
			defer wg.Done()
			if err := runClient(ctx, wsURL, clientID, cfg, &counters, &errCount, &patchOps, samplesCh); err != nil {
				errCount.totalErrors.Add(1)
			}
		}(i)
	}
	wg.Wait()
	close(samplesCh)
	<-collectorDone
	elapsed := time.Since(start)

	var after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&after)
	afterMetrics := readRuntimeMetrics()

	slices.Sort(samples)
	return buildReport(cfg, elapsed, samples, &counters, &errCount, &patchOps,
		before, after, beforeMetrics, afterMetrics, srv.Metrics())
}

// inbound is either a response or a PUB notification.
type inbound struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
	Error  *protocol.Error   `json:"error"`
}

func runClient(
	ctx context.Context,
	wsURL string,
	clientID int,
	cfg benchConfig,
	counters *benchCounters,
	errCount *benchErrors,
	patchOps *patchOpCounts,
	samples chan<- time.Duration,
) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		errCount.dialFailures.Add(1)
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	for i, pointer := range []string{"/echo", "/items"} {
		sub, _ := protocol.NewRequest(i, "SUB", pointer)
		data, _ := json.Marshal(sub)
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			errCount.writeFailures.Add(1)
			return fmt.Errorf("subscribe: %w", err)
		}
	}

	period := time.Duration(float64(time.Second) / cfg.RPS)
	var seq uint64

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		seq++
		token := makeToken(clientID, seq, cfg.PayloadBytes)
		start := time.Now()

		req, _ := protocol.NewRequest(seq, "input", token)
		data, _ := json.Marshal(req)
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			errCount.writeFailures.Add(1)
			return fmt.Errorf("call write: %w", err)
		}
		counters.callsSent.Add(1)
		counters.callBytes.Add(uint64(len(data)))

		conn.SetReadDeadline(time.Now().Add(cfg.CallTimeout))
		callCtx, cancel := context.WithTimeout(ctx, cfg.CallTimeout)
		err := waitForToken(callCtx, conn, token, counters, errCount, patchOps)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if stderrors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
				errCount.tokenMissing.Add(1)
				return fmt.Errorf("token not observed in patches")
			}
			return fmt.Errorf("wait for token: %w", err)
		}

		counters.callsComplete.Add(1)
		samples <- time.Since(start)

		if sleep := period - time.Since(start); sleep > 0 {
			timer := time.NewTimer(sleep)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}
	}
}

func waitForToken(
	ctx context.Context,
	conn *websocket.Conn,
	token string,
	counters *benchCounters,
	errCount *benchErrors,
	patchOps *patchOpCounts,
) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var in inbound
		if err := json.Unmarshal(msg, &in); err != nil {
			errCount.decodeFailures.Add(1)
			return err
		}

		switch {
		case in.Error != nil:
			errCount.errorResponses.Add(1)
			return in.Error

		case in.Method == protocol.MethodPublish && len(in.Params) == 1:
			counters.pubFrames.Add(1)
			counters.pubBytes.Add(uint64(len(msg)))
			var patches []observe.Patch
			if err := json.Unmarshal(in.Params[0], &patches); err != nil {
				errCount.decodeFailures.Add(1)
				return err
			}
			found := false
			for _, p := range patches {
				patchOps.add(p.Op)
				counters.patchesTotal.Add(1)
				if p.Path == "/echo/token" && p.Value == token {
					found = true
				}
			}
			if found {
				return nil
			}
		}
	}
}

func makeToken(clientID int, seq uint64, payloadBytes int) string {
	if payloadBytes <= 0 {
		return ""
	}
	seed := (uint64(clientID) << 32) ^ seq
	base := strconv.FormatUint(seed, 36)
	if len(base) >= payloadBytes {
		return base[len(base)-payloadBytes:]
	}
	return base + strings.Repeat("x", payloadBytes-len(base))
}

func isTimeout(err error) bool {
	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

func fnv1a32(s string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	var h uint32 = offset32
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime32
	}
	return h
}

type runtimeMetricsSnapshot struct {
	cpuTotalSeconds   float64
	cpuGCSeconds      float64
	heapAllocsObjects uint64
}

func readRuntimeMetrics() runtimeMetricsSnapshot {
	samples := []metrics.Sample{
		{Name: "/cpu/classes/total:cpu-seconds"},
		{Name: "/cpu/classes/gc/total:cpu-seconds"},
		{Name: "/gc/heap/allocs:objects"},
	}
	metrics.Read(samples)

	var out runtimeMetricsSnapshot
	for _, s := range samples {
		if s.Value.Kind() == metrics.KindBad {
			continue
		}
		switch s.Name {
		case "/cpu/classes/total:cpu-seconds":
			out.cpuTotalSeconds = s.Value.Float64()
		case "/cpu/classes/gc/total:cpu-seconds":
			out.cpuGCSeconds = s.Value.Float64()
		case "/gc/heap/allocs:objects":
			out.heapAllocsObjects = s.Value.Uint64()
		}
	}
	return out
}

func cpuFraction(after, before runtimeMetricsSnapshot) float64 {
	total := after.cpuTotalSeconds - before.cpuTotalSeconds
	gc := after.cpuGCSeconds - before.cpuGCSeconds
	if total <= 0 || gc < 0 {
		return 0
	}
	return gc / total
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(float64(len(sorted))*p)) - 1
	return sorted[min(max(idx, 0), len(sorted)-1)]
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

type benchReport struct {
	Version    string         `json:"version"`
	Run        runInfo        `json:"run"`
	Workload   workloadInfo   `json:"workload"`
	LatencyMS  latencyInfo    `json:"latency_ms"`
	Throughput throughputInfo `json:"throughput"`
	GC         gcInfo         `json:"gc"`
	Protocol   protocolInfo   `json:"protocol"`
	Server     serverInfo     `json:"server"`
	Errors     errorInfo      `json:"errors"`
}

type runInfo struct {
	Timestamp string `json:"timestamp"`
	Go        string `json:"go"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	CPUCount  int    `json:"cpu_count"`
	Version   string `json:"version"`
}

type workloadInfo struct {
	Profile       string  `json:"profile"`
	Clients       int     `json:"clients"`
	DurationMS    int64   `json:"duration_ms"`
	RPSPerClient  float64 `json:"rps_per_client"`
	ListSize      int     `json:"list_size"`
	PayloadBytes  int     `json:"payload_bytes"`
	MaxProcs      int     `json:"max_procs"`
	MemLimitBytes int64   `json:"mem_limit_bytes"`
	CallTimeoutMS int64   `json:"call_timeout_ms"`
}

type latencyInfo struct {
	Min float64 `json:"min"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
	Max float64 `json:"max"`
}

type throughputInfo struct {
	CallsTotal        uint64  `json:"calls_total"`
	CallsPerSec       float64 `json:"calls_per_sec"`
	CallsPerSecClient float64 `json:"calls_per_sec_per_client"`
}

type gcInfo struct {
	AllocMB       float64 `json:"alloc_mb"`
	HeapLiveMB    float64 `json:"heap_live_mb"`
	NumGC         uint32  `json:"num_gc"`
	PauseTotalMS  float64 `json:"pause_total_ms"`
	GCCPUFraction float64 `json:"gc_cpu_fraction"`
	AllocsObjects uint64  `json:"allocs_objects"`
}

type protocolInfo struct {
	CallBytesTotal uint64            `json:"call_bytes_total"`
	PubBytesTotal  uint64            `json:"pub_bytes_total"`
	PubFrames      uint64            `json:"pub_frames_total"`
	PatchesTotal   uint64            `json:"patches_total"`
	AvgCallBytes   float64           `json:"avg_call_bytes"`
	PatchesPerCall float64           `json:"patches_per_call"`
	PatchOps       map[string]uint64 `json:"patch_ops"`
}

type serverInfo struct {
	PeakConnections int   `json:"peak_connections"`
	PatchesSent     int64 `json:"patches_sent"`
	FramesDropped   int64 `json:"frames_dropped"`
	WriteErrors     int64 `json:"write_errors"`
}

type errorInfo struct {
	TotalErrors    uint64 `json:"total_errors"`
	DialFailures   uint64 `json:"dial_failures"`
	WriteFailures  uint64 `json:"write_failures"`
	DecodeFailures uint64 `json:"decode_failures"`
	ErrorResponses uint64 `json:"error_responses"`
	TokenMissing   uint64 `json:"token_missing"`
}

func ratio(n, d uint64) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

func buildReport(
	cfg benchConfig,
	elapsed time.Duration,
	latencies []time.Duration,
	counters *benchCounters,
	errCount *benchErrors,
	patchOps *patchOpCounts,
	before, after runtime.MemStats,
	beforeMetrics, afterMetrics runtimeMetricsSnapshot,
	sm *server.ServerMetrics,
) benchReport {
	callsTotal := counters.callsComplete.Load()
	callsPerSec := float64(callsTotal) / math.Max(0.001, elapsed.Seconds())

	var latency latencyInfo
	if len(latencies) > 0 {
		latency = latencyInfo{
			Min: ms(latencies[0]),
			P50: ms(percentile(latencies, 0.50)),
			P95: ms(percentile(latencies, 0.95)),
			P99: ms(percentile(latencies, 0.99)),
			Max: ms(latencies[len(latencies)-1]),
		}
	}

	return benchReport{
		Version: "1",
		Run: runInfo{
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Go:        runtime.Version(),
			OS:        runtime.GOOS,
			Arch:      runtime.GOARCH,
			CPUCount:  runtime.NumCPU(),
			Version:   version,
		},
		Workload: workloadInfo{
			Profile:       cfg.Profile,
			Clients:       cfg.Clients,
			DurationMS:    cfg.Duration.Milliseconds(),
			RPSPerClient:  cfg.RPS,
			ListSize:      cfg.ListSize,
			PayloadBytes:  cfg.PayloadBytes,
			MaxProcs:      cfg.MaxProcs,
			MemLimitBytes: cfg.MemLimitBytes,
			CallTimeoutMS: cfg.CallTimeout.Milliseconds(),
		},
		LatencyMS: latency,
		Throughput: throughputInfo{
			CallsTotal:        callsTotal,
			CallsPerSec:       callsPerSec,
			CallsPerSecClient: callsPerSec / float64(cfg.Clients),
		},
		GC: gcInfo{
			AllocMB:       float64(after.TotalAlloc-before.TotalAlloc) / (1024 * 1024),
			HeapLiveMB:    float64(after.HeapAlloc) / (1024 * 1024),
			NumGC:         after.NumGC - before.NumGC,
			PauseTotalMS:  ms(time.Duration(after.PauseTotalNs - before.PauseTotalNs)),
			GCCPUFraction: cpuFraction(afterMetrics, beforeMetrics),
			AllocsObjects: afterMetrics.heapAllocsObjects - beforeMetrics.heapAllocsObjects,
		},
		Protocol: protocolInfo{
			CallBytesTotal: counters.callBytes.Load(),
			PubBytesTotal:  counters.pubBytes.Load(),
			PubFrames:      counters.pubFrames.Load(),
			PatchesTotal:   counters.patchesTotal.Load(),
			AvgCallBytes:   ratio(counters.callBytes.Load(), counters.callsSent.Load()),
			PatchesPerCall: ratio(counters.patchesTotal.Load(), callsTotal),
			PatchOps:       patchOps.snapshot(),
		},
		Server: serverInfo{
			PeakConnections: int(sm.PeakConnections),
			PatchesSent:     sm.PatchesSent,
			FramesDropped:   sm.FramesDropped,
			WriteErrors:     sm.WriteErrors,
		},
		Errors: errorInfo{
			TotalErrors:    errCount.totalErrors.Load(),
			DialFailures:   errCount.dialFailures.Load(),
			WriteFailures:  errCount.writeFailures.Load(),
			DecodeFailures: errCount.decodeFailures.Load(),
			ErrorResponses: errCount.errorResponses.Load(),
			TokenMissing:   errCount.tokenMissing.Load(),
		},
	}
}

func writeSummary(w io.Writer, report benchReport) {
	fmt.Fprintln(w, "=== pushmodel load benchmark ===")
	fmt.Fprintf(w, "Profile: %s\n", report.Workload.Profile)
	fmt.Fprintf(w, "Clients: %d\n", report.Workload.Clients)
	fmt.Fprintf(w, "Duration: %s\n", time.Duration(report.Workload.DurationMS)*time.Millisecond)
	fmt.Fprintf(w, "Target per-client rate: %.2f calls/s\n", report.Workload.RPSPerClient)
	fmt.Fprintf(w, "List size: %d\n", report.Workload.ListSize)
	if report.Workload.MaxProcs > 0 {
		fmt.Fprintf(w, "GOMAXPROCS cap: %d\n", report.Workload.MaxProcs)
	}
	if report.Workload.MemLimitBytes > 0 {
		fmt.Fprintf(w, "GOMEMLIMIT cap: %.2f GiB\n", float64(report.Workload.MemLimitBytes)/float64(gib))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Total calls: %d\n", report.Throughput.CallsTotal)
	fmt.Fprintf(w, "Throughput: %.1f calls/s (%.2f per client)\n", report.Throughput.CallsPerSec, report.Throughput.CallsPerSecClient)
	fmt.Fprintf(w, "Errors: %d\n", report.Errors.TotalErrors)
	fmt.Fprintf(w, "Dropped frames: %d\n", report.Server.FramesDropped)
	fmt.Fprintln(w)

	if report.LatencyMS.Max == 0 {
		fmt.Fprintln(w, "No latency samples recorded.")
	} else {
		fmt.Fprintln(w, "RTT (call -> PUB carrying the token):")
		fmt.Fprintf(w, "  min: %.2f ms\n", report.LatencyMS.Min)
		fmt.Fprintf(w, "  p50: %.2f ms\n", report.LatencyMS.P50)
		fmt.Fprintf(w, "  p95: %.2f ms\n", report.LatencyMS.P95)
		fmt.Fprintf(w, "  p99: %.2f ms\n", report.LatencyMS.P99)
		fmt.Fprintf(w, "  max: %.2f ms\n", report.LatencyMS.Max)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Go runtime / GC (process-wide):")
	fmt.Fprintf(w, "  alloc:     %.2f MB\n", report.GC.AllocMB)
	fmt.Fprintf(w, "  heap_live: %.2f MB\n", report.GC.HeapLiveMB)
	fmt.Fprintf(w, "  num_gc:    %d\n", report.GC.NumGC)
	fmt.Fprintf(w, "  gc_pause:  %.2f ms (total)\n", report.GC.PauseTotalMS)
	fmt.Fprintf(w, "  gc_cpu:    %.2f%%\n", report.GC.GCCPUFraction*100)
}

func writeJSON(path string, stdout io.Writer, report benchReport) error {
	out := stdout
	if path != "-" {
		file, err := os.Create(path)
		if err != nil {
			return err
		}
		defer file.Close()
		out = file
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
