package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/interlocking-simulator/core"
	"github.com/signalsfoundry/interlocking-simulator/internal/logging"
	"github.com/signalsfoundry/interlocking-simulator/internal/observability"
	"github.com/signalsfoundry/interlocking-simulator/internal/stream"
	"github.com/signalsfoundry/interlocking-simulator/timectrl"
)

func main() {
	scenarioPath := flag.String("scenario", "examples/scenarios/two_track_station.json", "path to the JSON scenario")
	ticks := flag.Int64("ticks", 0, "maximum number of ticks to run (0 = until all trains finish)")
	tick := flag.Duration("tick", 1*time.Second, "wall-clock tick interval in real-time mode")
	accelerated := flag.Bool("accelerated", true, "run in accelerated mode (vs real-time)")
	lookahead := flag.Float64("lookahead", 400, "route request look-ahead distance in metres")
	listenAddr := flag.String("listen", ":8080", "address for the /metrics and /events HTTP endpoints ('' disables)")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "tracing init failed", logging.Err(err))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(ctx, shutdownTracing, log)

	f, err := os.Open(*scenarioPath)
	if err != nil {
		log.Error(ctx, "cannot open scenario", logging.String("path", *scenarioPath), logging.Err(err))
		os.Exit(1)
	}
	scenario, summary, err := core.LoadScenario(f)
	f.Close()
	if err != nil {
		log.Error(ctx, "scenario rejected", logging.String("path", *scenarioPath), logging.Err(err))
		os.Exit(1)
	}
	log.Info(ctx, "scenario loaded",
		logging.String("path", *scenarioPath),
		logging.Int("nodes", summary.Nodes),
		logging.Int("segments", summary.Segments),
		logging.Int("routes", summary.Routes),
		logging.Int("trains", summary.Trains),
	)

	metrics, err := observability.NewInterlockingCollector(prometheus.DefaultRegisterer)
	if err != nil {
		log.Error(ctx, "metrics init failed", logging.Err(err))
		os.Exit(1)
	}

	interlocking := core.NewInterlocking(scenario.Registry, log, metrics)
	trackerCfg := core.DefaultTrackerConfig()
	trackerCfg.TickSeconds = tick.Seconds()
	trackerCfg.LookaheadM = *lookahead
	tracker, err := core.NewTracker(scenario.Registry, interlocking, scenario.Trains, trackerCfg, log, metrics)
	if err != nil {
		log.Error(ctx, "tracker init failed", logging.Err(err))
		os.Exit(1)
	}
	engine := core.NewSimulationEngine(scenario.Registry, interlocking, tracker, log)

	var sseServer *stream.Server
	if *listenAddr != "" {
		sseServer = stream.NewServer(log)
		defer sseServer.Close()
		engine.RegisterTickListener(sseServer.Publish)

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/events", sseServer)
		go func() {
			if err := http.ListenAndServe(*listenAddr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error(ctx, "http server stopped", logging.Err(err))
			}
		}()
		log.Info(ctx, "observability endpoints up", logging.String("addr", *listenAddr))
	}

	mode := timectrl.RealTime
	if *accelerated {
		mode = timectrl.Accelerated
	}
	tc := timectrl.NewTickController(*tick, mode)

	tc.AddListener(func(int64) {
		engine.Step()
		if engine.Finished() {
			tc.Stop()
		}
	})

	log.Info(ctx, "simulation starting",
		logging.String("run_id", engine.RunID()),
		logging.Int("max_ticks", int(*ticks)),
		logging.String("tick", tick.String()),
	)
	<-tc.Start(*ticks)

	if engine.Tick() == 0 {
		log.Info(ctx, "simulation complete, no ticks executed")
		return
	}
	final := engine.Snapshot(engine.Tick() - 1)
	for _, t := range final.Trains {
		status := "running"
		switch {
		case t.Finished:
			status = "finished"
		case t.Halted:
			status = "halted: " + t.HaltInfo
		}
		fmt.Printf("train %-12s %-9s delay=%6.1fs %s\n", t.ID, t.Status, t.DelaySec, status)
	}
	log.Info(ctx, "simulation complete",
		logging.Tick(engine.Tick()),
		logging.Int("trains", len(final.Trains)),
	)
}
