package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ChuchoCoder/MarketDataExcelUpdater/internal/adapters"
	"github.com/ChuchoCoder/MarketDataExcelUpdater/internal/config"
	"github.com/ChuchoCoder/MarketDataExcelUpdater/internal/dispatch"
	"github.com/ChuchoCoder/MarketDataExcelUpdater/internal/marketdata"
	"github.com/ChuchoCoder/MarketDataExcelUpdater/internal/observ"
	"github.com/ChuchoCoder/MarketDataExcelUpdater/internal/sched"
	"github.com/ChuchoCoder/MarketDataExcelUpdater/internal/sheet"
)

const (
	exitOK     = 0
	exitFatal  = 1
	exitConfig = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	var cfgPath, producerKind, sinkKind, replayFile, metricsAddr string
	var replayPaced bool
	var duration time.Duration
	flag.StringVar(&cfgPath, "config", "config.yaml", "config path")
	flag.StringVar(&producerKind, "producer", "demo", "quote source: demo | replay | remote")
	flag.StringVar(&sinkKind, "sink", "xlsx", "sink: xlsx | stdout | memory")
	flag.StringVar(&replayFile, "replay-file", "", "JSON-lines tick fixture for -producer=replay")
	flag.BoolVar(&replayPaced, "replay-paced", false, "pace replay by recorded event-time deltas")
	flag.DurationVar(&duration, "duration", 0, "stop after duration (0 = run until signal)")
	flag.StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics on this address (e.g. 127.0.0.1:8090)")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return exitConfig
	}
	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfig
	}

	observ.Log("startup", map[string]any{
		"producer":        producerKind,
		"sink":            sinkKind,
		"symbols":         len(cfg.Symbols),
		"flush_interval":  cfg.FlushInterval.String(),
		"stale_threshold": cfg.StaleThreshold.String(),
	})

	sink, err := buildSink(sinkKind, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfig
	}
	producer, err := buildProducer(producerKind, replayFile, replayPaced, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfig
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	openCtx, cancelOpen := context.WithTimeout(ctx, 30*time.Second)
	err = sink.Open(openCtx)
	cancelOpen()
	if err != nil {
		observ.Logf("error", "sink_open_failed", map[string]any{"error": err.Error()})
		return exitFatal
	}

	registry := marketdata.NewRegistry()
	retention := marketdata.NewRetentionStore(cfg.MaxTicksPerSymbol, cfg.RetentionWindow)
	freshness := marketdata.NewFreshnessTracker()
	buffer := sheet.NewCoalescingBuffer()
	policy := sheet.NewBatchPolicy(cfg.BatchHighWatermark, cfg.BatchMaxAge, cfg.PrioritySymbols)
	dispatcher := dispatch.New(registry, retention, freshness, buffer, policy, cfg.StaleThreshold, nil)

	gate := sched.NewBackoffGate(cfg.BackoffBase, cfg.BackoffMax)
	scheduler := sched.New(buffer, policy, gate, sink, cfg.FlushInterval, nil)

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observ.Handler())
		mux.Handle("/health", observ.Health())
		observ.Log("metrics_listen", map[string]any{"addr": metricsAddr})
		go func() { _ = http.ListenAndServe(metricsAddr, mux) }()
	}

	// The scheduler outlives the signal context: it is cancelled only after
	// the producer stops, so the final flush sees every delivered tick.
	schedCtx, schedCancel := context.WithCancel(context.Background())
	defer schedCancel()
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		scheduler.Run(schedCtx)
	}()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)
		ticker := time.NewTicker(cfg.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				dispatcher.SweepFreshness(now)
				dispatcher.QueueHeartbeat(now)
			}
		}
	}()

	emit := func(symbol string, q marketdata.Quote, seq int64) error {
		_, err := dispatcher.Process(symbol, q, seq)
		return err
	}
	if err := producer.Start(ctx, emit); err != nil {
		observ.Logf("error", "producer_start_failed", map[string]any{"error": err.Error()})
		schedCancel()
		<-schedDone
		return exitFatal
	}

	<-ctx.Done()

	if err := producer.Stop(); err != nil {
		observ.Logf("warn", "producer_stop_failed", map[string]any{"error": err.Error()})
	}
	<-heartbeatDone
	schedCancel()
	<-schedDone

	closeCtx, cancelClose := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelClose()
	if err := sink.Flush(closeCtx); err != nil {
		observ.Logf("warn", "sink_flush_failed", map[string]any{"error": err.Error()})
	}
	if err := sink.Close(closeCtx); err != nil {
		observ.Logf("warn", "sink_close_failed", map[string]any{"error": err.Error()})
	}

	ticks, gaps := dispatcher.Counters()
	observ.Log("shutdown", map[string]any{
		"ticks_total": ticks, "gaps_total": gaps, "snapshot": observ.Snapshot(),
	})
	return exitOK
}

func buildSink(kind string, cfg config.Root) (adapters.Sink, error) {
	switch kind {
	case "xlsx":
		return adapters.NewXlsxSink(cfg.WorkbookPath), nil
	case "stdout":
		return adapters.NewStdoutSink(), nil
	case "memory":
		return adapters.NewRecorderSink(), nil
	default:
		return nil, fmt.Errorf("config: unknown sink %q", kind)
	}
}

func buildProducer(kind, replayFile string, replayPaced bool, cfg config.Root) (adapters.Producer, error) {
	switch kind {
	case "demo":
		return adapters.NewDemoProducer(cfg.Symbols, cfg.TicksPerSecond, time.Now().UnixNano()), nil
	case "replay":
		if replayFile == "" {
			return nil, fmt.Errorf("config: -producer=replay requires -replay-file")
		}
		return adapters.NewReplayProducer(replayFile, replayPaced), nil
	case "remote":
		if cfg.FeedURL == "" {
			return nil, fmt.Errorf("config: -producer=remote requires feed_url")
		}
		return adapters.NewRemoteFeed(adapters.RemoteFeedConfig{URL: cfg.FeedURL}), nil
	default:
		return nil, fmt.Errorf("config: unknown producer %q", kind)
	}
}

// applyEnvOverrides layers MDXL_* environment variables over the file.
func applyEnvOverrides(cfg *config.Root) {
	if v := os.Getenv("MDXL_STALE_THRESHOLD"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.StaleThreshold = d
		}
	}
	if v := os.Getenv("MDXL_BATCH_HIGH_WATERMARK"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BatchHighWatermark = n
		}
	}
	if v := os.Getenv("MDXL_BATCH_MAX_AGE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.BatchMaxAge = d
		}
	}
	if v := os.Getenv("MDXL_FLUSH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.FlushInterval = d
		}
	}
	if v := os.Getenv("MDXL_WORKBOOK_PATH"); v != "" {
		cfg.WorkbookPath = v
	}
	if v := os.Getenv("MDXL_FEED_URL"); v != "" {
		cfg.FeedURL = v
	}
}
