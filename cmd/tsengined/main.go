// Command tsengined wires a config-driven TS pipeline (file source ->
// jitter buffer -> playout pacer -> HLS segmenter) on top of the
// single-threaded cooperative event loop, and exposes its stage metrics
// over Prometheus.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/snapetech/tsengine/internal/clock"
	"github.com/snapetech/tsengine/internal/engineconfig"
	"github.com/snapetech/tsengine/internal/eventloop"
	"github.com/snapetech/tsengine/internal/health"
	"github.com/snapetech/tsengine/internal/hls"
	"github.com/snapetech/tsengine/internal/jitter"
	"github.com/snapetech/tsengine/internal/metrics"
	"github.com/snapetech/tsengine/internal/pacer"
	"github.com/snapetech/tsengine/internal/supervisor"
	"github.com/snapetech/tsengine/internal/tsfile"
)

func main() {
	envFile := flag.String("envfile", ".env", "dotenv file to load before reading TSENGINE_* variables")
	input := flag.String("input", "", "path to a TS file to stream (required)")
	metricsAddr := flag.String("metrics-addr", ":9090", "address to serve /metrics and /healthz on")
	flag.Parse()

	if err := engineconfig.LoadEnvFile(*envFile); err != nil {
		log.Printf("tsengined: loading %s: %v", *envFile, err)
	}

	cfg, err := engineconfig.Load()
	if err != nil {
		log.Fatalf("tsengined: config invalid: %v", err)
	}

	if *input == "" {
		log.Fatal("tsengined: config invalid: -input is required")
	}

	clk := clock.NewMonotonic()
	loop, timers := eventloop.New(clk)

	jitterStage := jitter.New(clk, cfg.Jitter, timers)
	pacerStage := pacer.New(clk, cfg.Pacer, timers)
	hlsStage, err := hls.New(clk, cfg.HLS)
	if err != nil {
		log.Fatalf("tsengined: config invalid: stage=hls: %v", err)
	}

	warnLog := func(msg string) { log.Print(msg) }
	hlsStage.SetWarnLog(warnLog)

	source, err := tsfile.Open(*input)
	if err != nil {
		log.Fatalf("tsengined: config invalid: stage=tsfile: %v", err)
	}
	source.SetWarnLog(warnLog)

	source.Attach(jitterStage)
	jitterStage.Attach(pacerStage)
	pacerStage.Attach(hlsStage)

	loop.IOTick = source.Tick

	reg := metrics.NewRegistry()
	reg.RegisterStage("jitter", jitterStage.Stats, metrics.JitterKeys...)
	reg.RegisterStage("pacer", pacerStage.Stats, metrics.PacerKeys...)
	reg.RegisterStage("hls", hlsStage.Stats, metrics.HLSKeys...)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg.Prometheus(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		snap := health.Snapshot(
			health.Stage{Name: "jitter", Stats: jitterStage.Stats},
			health.Stage{Name: "pacer", Stats: pacerStage.Stats},
			health.Stage{Name: "hls", Stats: hlsStage.Stats},
		)
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	go func() {
		log.Printf("tsengined: metrics listening on %s", *metricsAddr)
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
			log.Printf("tsengined: metrics server: %v", err)
		}
	}()

	sig, stopSig := supervisor.Install()
	defer stopSig()

	loop.GCSource = func() eventloop.GCOptions {
		fresh, err := engineconfig.Load()
		if err != nil {
			return cfg.GC
		}
		return fresh.GC
	}

	loop.SigHUP = sig.SigHUP
	loop.OnSigHUP = func() {
		log.Print("tsengined: reload requested (SIGHUP) — no reloadable config yet, ignoring")
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for !sig.Exit.Load() {
			time.Sleep(eventloop.IdleSleep)
		}
		cancel()
	}()

	loop.Run(ctx)

	log.Print("tsengined: shutting down")
	source.Destroy()
	os.Exit(0)
}
