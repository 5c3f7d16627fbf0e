// Command bongodb runs the BongoDB server: it opens (or creates) a
// catalog rooted at a data directory, then accepts TCP connections and
// serves the wire protocol on each (§4.4, §6 "Startup configuration").
package main

import (
	"net"
	"net/http"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	flag "github.com/spf13/pflag"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/SimonWaldherr/bongodb/internal/concurrency"
	"github.com/SimonWaldherr/bongodb/internal/engine"
	"github.com/SimonWaldherr/bongodb/internal/storage"
	"github.com/SimonWaldherr/bongodb/internal/wire"
)

func main() {
	listenAddr := flag.String("listen_addr", ":7878", "TCP endpoint to bind")
	dataDir := flag.String("data_dir", "./data", "root directory for the catalog")
	createDB := flag.Bool("create_db", true, "initialize a fresh empty catalog if data_dir has none")
	autoFlush := flag.Bool("auto_flush", false, "implicitly FLUSH after every non-SELECT statement")
	metricsAddr := flag.String("metrics_addr", "", "if set, serve Prometheus metrics on this address")
	verbose := flag.BoolP("verbose", "v", false, "enable debug logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	cat, err := storage.OpenOrCreate(*dataDir, *createDB)
	if err != nil {
		log.Fatal().Err(err).Str("data_dir", *dataDir).Msg("failed to open catalog")
	}
	defer cat.Close()

	logStartupDiagnostics(cat, *dataDir)

	ctrl := concurrency.New()
	ex := engine.New(cat, ctrl, *autoFlush)

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	ln, err := net.Listen("tcp", *listenAddr)
	if err != nil {
		log.Fatal().Err(err).Str("listen_addr", *listenAddr).Msg("failed to bind listener")
	}
	log.Info().Str("listen_addr", *listenAddr).Bool("auto_flush", *autoFlush).Msg("bongodb listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Error().Err(err).Msg("accept failed")
			continue
		}
		go wire.Serve(conn, ex)
	}
}

// logStartupDiagnostics reports table count and on-disk byte size at
// startup — pure observability, not part of the wire protocol.
func logStartupDiagnostics(cat *storage.Catalog, dataDir string) {
	names := cat.Names()
	var totalBytes int64
	entries, err := os.ReadDir(dataDir)
	if err == nil {
		for _, e := range entries {
			if info, err := e.Info(); err == nil {
				totalBytes += info.Size()
			}
		}
	}
	log.Info().
		Int("tables", len(names)).
		Str("on_disk_size", humanize.Bytes(uint64(totalBytes))).
		Str("data_dir", dataDir).
		Msg("catalog opened")
}
