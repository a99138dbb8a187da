package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/conversor/internal/config"
	"github.com/gestaozabele/conversor/internal/retention"
	"github.com/gestaozabele/conversor/internal/storage"
)

// sweep executa uma única varredura de retenção; pensado para cron ou systemd timer.
func main() {
	cfg, err := config.Load()
	if err != nil {
		config.ConfigureLogger("info", "console")
		log.Fatal().Err(err).Msg("configuração inválida")
	}
	config.ConfigureLogger(cfg.LogLevel, cfg.LogFormat)

	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var (
		dir    = fs.String("dir", cfg.StagingDir, "diretório de staging")
		maxAge = fs.Duration("max-age", cfg.RetentionMaxAge, "idade mínima para remoção (ex.: 1h, 30m)")
	)
	fs.Usage = usage
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	store, err := storage.NewDiskStore(*dir)
	if err != nil {
		log.Fatal().Err(err).Msg("não foi possível abrir o diretório de staging")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := retention.NewSweeper(store, *maxAge).Sweep(ctx, *maxAge)
	if err != nil {
		log.Fatal().Err(err).Msg("falha na varredura")
	}

	_ = json.NewEncoder(os.Stdout).Encode(report)
	if report.Failed > 0 {
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "sweep: remove artefatos antigos do staging")
	fmt.Fprintln(os.Stderr, "uso:")
	fmt.Fprintln(os.Stderr, "  sweep [-dir uploads] [-max-age 1h]")
}
