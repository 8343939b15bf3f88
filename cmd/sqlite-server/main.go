// Command sqlite-server runs the server: it loads configuration,
// opens the meta database, wires the admin HTTP surface, and accepts
// client connections (spec §6 "server [-D dataDir] [--worker-count N]
// [--max-conns M] [--host H] [--port P] [--trace] [--trace-error]").
package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/little-pan/sqlite-server/admin"
	"github.com/little-pan/sqlite-server/cfg"
	"github.com/little-pan/sqlite-server/metadb"
	"github.com/little-pan/sqlite-server/server"
	"github.com/little-pan/sqlite-server/telemetry"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	flag.Parse()

	if err := cfg.Load(*cfg.ConfigPathFlag); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var writer io.Writer = zerolog.NewConsoleWriter()
	if cfg.Config.Logging.Format == "json" {
		writer = os.Stdout
	}
	gLog := zerolog.New(writer).With().Timestamp().Logger()
	if cfg.Config.Logging.Verbose || cfg.Config.Logging.Trace || cfg.Config.Logging.TraceError {
		log.Logger = gLog.Level(zerolog.DebugLevel)
	} else {
		log.Logger = gLog.Level(zerolog.InfoLevel)
	}

	if cfg.Config.Prometheus.Enabled {
		telemetry.Enable()
	}

	store, err := metadb.Open(cfg.MetaDbPath(), 5000)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open meta database")
	}

	srv := server.New(server.Config{
		Host:          cfg.Config.Host,
		Port:          cfg.Config.Port,
		DataDir:       cfg.Config.DataDir,
		WorkerCount:   cfg.Config.Worker.Count,
		MaxConns:      cfg.Config.Worker.MaxConns,
		IoRatio:       cfg.Config.Worker.IoRatio,
		BusyMinWaitMS: cfg.Config.Worker.BusyMinWait,
		AuthMS:        cfg.Config.Timeout.AuthMS,
		SleepMS:       cfg.Config.Timeout.SleepMS,
		SleepInTxMS:   cfg.Config.Timeout.SleepInTxMS,
		TraceLog:      cfg.Config.Logging.Trace,

		InitReadBuffer: cfg.Config.Processor.InitReadBuffer,
		MaxReadBuffer:  cfg.Config.Processor.MaxReadBuffer,
		MaxWriteTimes:  cfg.Config.Processor.MaxWriteTimes,
		MaxWriteQueue:  cfg.Config.Processor.MaxWriteQueue,
		MaxWriteBuffer: cfg.Config.Processor.MaxWriteBuffer,

		PinCPU: cfg.Config.Worker.PinCPU,
	}, store, log.Logger)

	if cfg.Config.Admin.Enabled {
		go serveAdmin(srv)
	}

	log.Info().Str("host", cfg.Config.Host).Int("port", cfg.Config.Port).Msg("sqlite-server starting")
	if err := srv.ListenAndServe(); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}

func serveAdmin(srv *server.Server) {
	mux := http.NewServeMux()
	h := admin.NewHandlers(srv, telemetry.Handler())
	admin.RegisterRoutes(mux, h)
	addr := fmt.Sprintf("%s:%d", cfg.Config.Admin.Address, cfg.Config.Admin.Port)
	log.Info().Str("addr", addr).Msg("admin HTTP surface listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("admin HTTP surface stopped")
	}
}
