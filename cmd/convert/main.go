package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/gestaozabele/conversor/internal/artifact"
	"github.com/gestaozabele/conversor/internal/config"
	"github.com/gestaozabele/conversor/internal/conversion"
	"github.com/gestaozabele/conversor/internal/engine"
	"github.com/gestaozabele/conversor/internal/storage"
)

// line é a saída JSON de cada arquivo processado.
type line struct {
	File    string `json:"file"`
	Output  string `json:"output,omitempty"`
	Preview string `json:"content_preview,omitempty"`
	Type    string `json:"file_type,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func main() {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var (
		out         = fs.String("out", "converted", "diretório de saída dos arquivos .md")
		concurrency = fs.Int("concurrency", 4, "conversões simultâneas")
		profileName = fs.String("profile", envOr("PROFILE", "full"), "perfil de formatos (full|minimal)")
		engineKind  = fs.String("engine", os.Getenv("ENGINE"), "motor (builtin|exec|remote); vazio escolhe pelo perfil")
		command     = fs.String("engine-command", envOr("ENGINE_COMMAND", engine.DefaultCommand), "comando do motor exec")
		engineURL   = fs.String("engine-url", os.Getenv("ENGINE_URL"), "URL do motor remoto")
		dryRun      = fs.Bool("dry-run", false, "converte em memória sem gravar resultados")
		logLevel    = fs.String("log-level", envOr("LOG_LEVEL", "warn"), "nível de log")
	)
	fs.Usage = usage
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	config.ConfigureLogger(*logLevel, "console")

	files := fs.Args()
	if len(files) == 0 {
		usage()
		os.Exit(2)
	}

	profile, err := config.ProfileByName(*profileName)
	if err != nil {
		log.Fatal().Err(err).Msg("perfil inválido")
	}
	if *engineKind == "" {
		*engineKind = config.DefaultEngineKind(profile)
	}
	if err := config.CheckEngineFormats(*engineKind, profile); err != nil {
		log.Fatal().Err(err).Msg("motor incompatível com o perfil")
	}

	var store storage.Store
	if *dryRun {
		store = storage.NewMemoryStore()
	} else {
		disk, err := storage.NewDiskStore(*out)
		if err != nil {
			log.Fatal().Err(err).Msg("não foi possível preparar o diretório de saída")
		}
		store = disk
	}

	eng, err := engine.New(engine.Options{Kind: *engineKind, Command: *command, URL: *engineURL})
	if err != nil {
		log.Fatal().Err(err).Msg("motor inválido")
	}

	svc := conversion.NewService(store, conversion.NewDispatcher(eng, store), conversion.Options{
		Formats: profile.AllowSet(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		mu     sync.Mutex
		enc    = json.NewEncoder(os.Stdout)
		failed atomic.Int32
	)
	emit := func(l line) {
		mu.Lock()
		defer mu.Unlock()
		_ = enc.Encode(l)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(*concurrency, 1))
	for _, path := range files {
		path := path
		g.Go(func() error {
			res, err := convertFile(gctx, svc, path, profile.MaxUploadBytes)
			if err != nil {
				failed.Add(1)
				emit(line{File: path, Error: err.Error(), Code: string(artifact.KindOf(err))})
				return nil
			}
			l := line{File: path, Preview: res.Preview, Type: res.FileType}
			if !*dryRun {
				l.Output = filepath.Join(*out, res.OutputName)
			}
			emit(l)
			return nil
		})
	}
	_ = g.Wait()

	if failed.Load() > 0 {
		os.Exit(1)
	}
}

func convertFile(ctx context.Context, svc *conversion.Service, path string, limit int64) (*conversion.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", artifact.ErrValidation, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", artifact.ErrValidation, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s é um diretório", artifact.ErrValidation, path)
	}
	if info.Size() > limit {
		return nil, fmt.Errorf("%w: arquivo excede o limite de %d MB", artifact.ErrValidation, limit>>20)
	}

	res, err := svc.Convert(ctx, conversion.Upload{Filename: filepath.Base(path), Body: io.LimitReader(f, limit)})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, errors.New("conversão sem resultado")
	}
	return res, nil
}

func usage() {
	fmt.Fprintln(os.Stderr, "convert: converte arquivos locais para Markdown")
	fmt.Fprintln(os.Stderr, "uso:")
	fmt.Fprintln(os.Stderr, "  convert [-out converted] [-concurrency 4] [-profile full] [-engine exec] arquivo...")
	fmt.Fprintln(os.Stderr, "  convert -dry-run relatorio.html dados.csv")
}

func envOr(key, def string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return def
}
