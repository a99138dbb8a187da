// Package conversion orquestra o pipeline upload → validação → staging →
// conversão → persistência → limpeza.
package conversion

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/conversor/internal/artifact"
	"github.com/gestaozabele/conversor/internal/cache"
	"github.com/gestaozabele/conversor/internal/metrics"
	"github.com/gestaozabele/conversor/internal/storage"
)

// PreviewLength é o número de caracteres devolvidos em content_preview.
const PreviewLength = 500

// Upload é o arquivo recebido do cliente.
type Upload struct {
	Filename string
	Body     io.Reader
}

// Result descreve uma conversão concluída.
type Result struct {
	OutputName  string `json:"output_filename"`
	DownloadURL string `json:"download_url"`
	Preview     string `json:"content_preview"`
	FileType    string `json:"file_type"`
	Title       string `json:"title,omitempty"`
	State       State  `json:"-"`
	Cached      bool   `json:"-"`
}

// Options configura o Service.
type Options struct {
	Formats artifact.Formats
	// DownloadBase prefixa as URLs de download; vazio gera caminhos relativos.
	DownloadBase string
	CacheTTL     time.Duration
}

// Service executa o pipeline para cada upload. Seguro para uso concorrente.
type Service struct {
	store        storage.Store
	dispatcher   *Dispatcher
	formats      artifact.Formats
	downloadBase string
	cache        cache.Cache
	cacheTTL     time.Duration
	metrics      *metrics.Metrics
	logger       zerolog.Logger
	now          func() time.Time
}

// NewService monta o orquestrador.
func NewService(store storage.Store, dispatcher *Dispatcher, opts Options) *Service {
	return &Service{
		store:        store,
		dispatcher:   dispatcher,
		formats:      opts.Formats,
		downloadBase: strings.TrimRight(opts.DownloadBase, "/"),
		cacheTTL:     opts.CacheTTL,
		logger:       log.With().Str("component", "conversion").Logger(),
		now:          time.Now,
	}
}

// WithCache habilita o cache de resultados.
func (s *Service) WithCache(c cache.Cache) *Service {
	s.cache = c
	return s
}

// WithMetrics registra contadores de conversão.
func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

// Formats devolve as extensões aceitas.
func (s *Service) Formats() artifact.Formats {
	return s.formats
}

// Store devolve o armazenamento usado pelo pipeline.
func (s *Service) Store() storage.Store {
	return s.store
}

// DownloadURL monta a URL pública de um artefato de saída.
func (s *Service) DownloadURL(name string) string {
	return s.downloadBase + "/download/" + url.PathEscape(name)
}

// Convert executa o pipeline completo. O artefato de entrada é removido em
// qualquer saída após o staging; em caso de erro nenhum resultado é devolvido.
func (s *Service) Convert(ctx context.Context, up Upload) (res *Result, err error) {
	started := s.now()
	r := newRun()
	defer func() {
		s.metrics.ObserveConversion(outcome(r, res), s.now().Sub(started))
	}()

	if err := artifact.Validate(up.Filename, s.formats); err != nil {
		return nil, r.fail(err)
	}
	if err := r.advance(StateValidated); err != nil {
		return nil, r.fail(err)
	}
	ext, _ := artifact.Extension(up.Filename)

	if up.Body == nil {
		return nil, r.fail(fmt.Errorf("%w: arquivo vazio", artifact.ErrValidation))
	}

	stagedName := artifact.StageName(up.Filename)
	hasher := sha256.New()
	if _, err := s.store.Put(ctx, stagedName, io.TeeReader(up.Body, hasher)); err != nil {
		s.release(ctx, stagedName)
		if !errors.Is(err, artifact.ErrStoreWrite) {
			err = fmt.Errorf("%w: %w", artifact.ErrStoreWrite, err)
		}
		s.logger.Warn().Err(err).Str("staged_name", stagedName).Msg("falha ao preparar upload")
		return nil, r.fail(err)
	}

	defer func() {
		released := s.release(ctx, stagedName)
		if res != nil && released && r.state == StatePersisted {
			if advErr := r.advance(StateCleanedUp); advErr == nil {
				res.State = r.state
			}
		}
	}()

	if err := r.advance(StateStaged); err != nil {
		return nil, r.fail(err)
	}

	key := cache.Key(s.dispatcher.Engine().Name(), hasher.Sum(nil), ext)
	text, title, cached := s.lookup(ctx, key)
	if !cached {
		out, err := s.dispatcher.Convert(ctx, Job{
			DeclaredName: up.Filename,
			StagedName:   stagedName,
			Extension:    ext,
		})
		if err != nil {
			return nil, r.fail(err)
		}
		text, title = out.Text, out.Title
		s.remember(ctx, key, text, title)
	}
	if err := r.advance(StateConverted); err != nil {
		return nil, r.fail(err)
	}

	outputName := artifact.OutputName(up.Filename)
	if _, err := s.store.Put(ctx, outputName, strings.NewReader(text)); err != nil {
		if !errors.Is(err, artifact.ErrStoreWrite) {
			err = fmt.Errorf("%w: %w", artifact.ErrStoreWrite, err)
		}
		s.logger.Error().Err(err).Str("output_name", outputName).Msg("falha ao gravar resultado")
		return nil, r.fail(err)
	}
	if err := r.advance(StatePersisted); err != nil {
		return nil, r.fail(err)
	}

	return &Result{
		OutputName:  outputName,
		DownloadURL: s.DownloadURL(outputName),
		Preview:     Preview(text, PreviewLength),
		FileType:    s.formats.ContentType(up.Filename),
		Title:       title,
		State:       r.state,
		Cached:      cached,
	}, nil
}

// release remove o artefato de entrada mesmo que a requisição tenha sido cancelada.
func (s *Service) release(ctx context.Context, stagedName string) bool {
	if err := s.store.Delete(context.WithoutCancel(ctx), stagedName); err != nil {
		s.logger.Warn().Err(err).Str("staged_name", stagedName).Msg("falha ao remover upload")
		return false
	}
	return true
}

func (s *Service) lookup(ctx context.Context, key string) (string, string, bool) {
	if s.cache == nil {
		return "", "", false
	}
	entry, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache indisponível")
		return "", "", false
	}
	return entry.Text, entry.Title, ok
}

func (s *Service) remember(ctx context.Context, key, text, title string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, cache.Entry{Text: text, Title: title}, s.cacheTTL); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("falha ao gravar cache")
	}
}

func outcome(r *run, res *Result) string {
	switch {
	case res != nil && res.Cached:
		return "cached"
	case res != nil:
		return "ok"
	case r.kind != artifact.KindNone:
		return strings.ToLower(string(r.kind))
	default:
		return "unknown"
	}
}

// Preview devolve os primeiros n caracteres do texto, com "..." quando truncado.
func Preview(text string, n int) string {
	if n <= 0 || utf8.RuneCountInString(text) <= n {
		return text
	}
	count := 0
	for i := range text {
		if count == n {
			return text[:i] + "..."
		}
		count++
	}
	return text
}
