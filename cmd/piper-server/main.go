// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/piper/lib/clock"
	"github.com/bureau-foundation/piper/lib/codec"
	"github.com/bureau-foundation/piper/lib/config"
	"github.com/bureau-foundation/piper/lib/journal"
	"github.com/bureau-foundation/piper/lib/process"
	"github.com/bureau-foundation/piper/lib/version"
	"github.com/bureau-foundation/piper/server"
	"github.com/bureau-foundation/piper/session"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		process.Fatal("piper-server", err)
	}
}

// flags holds the command line. Values only override the configuration
// file when the flag was given explicitly.
type flags struct {
	set *pflag.FlagSet

	configPath  string
	listen      string
	backlog     int
	grace       time.Duration
	chunkSize   int
	journalPath string
	debug       bool
	logFormat   string

	watchConfig bool
	printSchema bool
	dumpJournal string
	showVersion bool
}

func parseFlags(args []string) (*flags, error) {
	parsed := &flags{set: pflag.NewFlagSet("piper-server", pflag.ContinueOnError)}
	set := parsed.set
	set.StringVarP(&parsed.configPath, "config", "c", "", "configuration file (default: $"+config.EnvVar+")")
	set.StringVarP(&parsed.listen, "listen", "l", "", "TCP address to listen on (default 0.0.0.0:5000)")
	set.IntVar(&parsed.backlog, "backlog", 0, "listen queue length (default 10)")
	set.DurationVar(&parsed.grace, "grace", 0, "time between SIGTERM and SIGKILL (default 1s)")
	set.IntVar(&parsed.chunkSize, "chunk-size", 0, "maximum bytes per read (default 16384)")
	set.StringVar(&parsed.journalPath, "journal", "", "append a record per session to this file")
	set.BoolVarP(&parsed.debug, "debug", "d", false, "enable debug logging (also $PIPER_DEBUG)")
	set.StringVar(&parsed.logFormat, "log-format", "", "log format: text or json")
	set.BoolVar(&parsed.watchConfig, "watch-config", false, "reload the configuration file when it changes")
	set.BoolVar(&parsed.printSchema, "print-config-schema", false, "print the configuration JSON Schema and exit")
	set.StringVar(&parsed.dumpJournal, "dump-journal", "", "print the records of a journal file and exit")
	set.BoolVar(&parsed.showVersion, "version", false, "print version information and exit")

	if err := set.Parse(args); err != nil {
		return nil, err
	}
	if set.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", set.Arg(0))
	}
	return parsed, nil
}

// apply writes explicitly given flags over cfg.
func (f *flags) apply(cfg *config.Config) {
	if f.set.Changed("listen") {
		cfg.Listen = f.listen
	}
	if f.set.Changed("backlog") {
		cfg.Backlog = f.backlog
	}
	if f.set.Changed("grace") {
		cfg.Child.Grace = config.Duration(f.grace)
	}
	if f.set.Changed("chunk-size") {
		cfg.Session.ChunkSize = f.chunkSize
	}
	if f.set.Changed("journal") {
		cfg.Journal.Path = f.journalPath
	}
	if f.set.Changed("debug") {
		cfg.Log.Debug = f.debug
	}
	if f.set.Changed("log-format") {
		cfg.Log.Format = f.logFormat
	}
	if os.Getenv("PIPER_DEBUG") != "" {
		cfg.Log.Debug = true
	}
}

// load reads the configuration file, applies flags and validates.
func (f *flags) load() (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	f.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(args []string, stdout io.Writer) error {
	parsed, err := parseFlags(args)
	if err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	switch {
	case parsed.showVersion:
		fmt.Fprintf(stdout, "piper-server %s\n", version.Info())
		return nil
	case parsed.printSchema:
		schema, err := config.Schema()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(stdout, "%s\n", schema)
		return err
	case parsed.dumpJournal != "":
		return dumpJournal(stdout, parsed.dumpJournal)
	}

	cfg, err := parsed.load()
	if err != nil {
		return err
	}

	level := new(slog.LevelVar)
	level.Set(logLevel(cfg))
	logger := newLogger(os.Stderr, cfg.Log.Format, level)
	slog.SetDefault(logger)
	logger.Info("piper-server starting", "version", version.Full())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := config.NewStore(cfg)
	handler := &session.Handler{
		Store:  store,
		Clock:  clock.Real(),
		Logger: logger,
	}

	if cfg.Journal.Path != "" {
		compression, err := journal.ParseCompression(cfg.Journal.Compression)
		if err != nil {
			return err
		}
		writer, err := journal.Open(cfg.Journal.Path, compression)
		if err != nil {
			return err
		}
		defer writer.Close()
		handler.Journal = writer
		logger.Info("journal enabled", "path", writer.Path(), "compression", compression.String())
	}

	inherited, err := server.Inherited()
	if err != nil {
		return err
	}

	srv := &server.Server{
		ListenAddr: cfg.Listen,
		Backlog:    cfg.Backlog,
		Listener:   inherited,
		Handler:    handler,
		Clock:      clock.Real(),
		Logger:     logger,
	}
	if err := srv.Start(ctx); err != nil {
		return err
	}

	if parsed.watchConfig {
		path := parsed.configPath
		if path == "" {
			path = os.Getenv(config.EnvVar)
		}
		if path == "" {
			logger.Warn("--watch-config given without a configuration file; nothing to watch")
		} else {
			go watchConfig(ctx, path, parsed, store, level, logger)
		}
	}

	srv.Wait()
	return srv.Err()
}

// watchConfig installs every valid revision of the configuration file.
// Session and child settings apply from the next connection; the
// listener and journal keep their startup values until restart.
func watchConfig(ctx context.Context, path string, parsed *flags, store *config.Store, level *slog.LevelVar, logger *slog.Logger) {
	err := config.Watch(ctx, path, logger, func(next *config.Config) {
		parsed.apply(next)
		if err := next.Validate(); err != nil {
			logger.Warn("ignoring configuration change", "error", err)
			return
		}
		previous := store.Swap(next)
		level.Set(logLevel(next))
		if next.Listen != previous.Listen || next.Backlog != previous.Backlog {
			logger.Warn("listen address and backlog changes take effect after restart")
		}
		if next.Journal != previous.Journal {
			logger.Warn("journal changes take effect after restart")
		}
	})
	if err != nil {
		logger.Error("configuration watcher stopped", "error", err)
	}
}

func logLevel(cfg *config.Config) slog.Level {
	if cfg.Log.Debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func newLogger(w io.Writer, format string, level slog.Leveler) *slog.Logger {
	options := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, options))
	}
	return slog.New(slog.NewTextHandler(w, options))
}

// dumpJournal prints each record of a journal in CBOR diagnostic
// notation, one per line.
func dumpJournal(w io.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer file.Close()

	return journal.Scan(file, func(payload []byte) error {
		text, _, err := codec.DiagnoseFirst(payload)
		if err != nil {
			return fmt.Errorf("rendering record: %w", err)
		}
		_, err = fmt.Fprintln(w, text)
		return err
	})
}
