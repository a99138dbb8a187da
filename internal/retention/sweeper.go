// Package retention remove artefatos antigos do armazenamento de staging.
// A varredura é sempre disparada de fora (endpoint /cleanup ou cmd/sweep).
package retention

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/conversor/internal/metrics"
	"github.com/gestaozabele/conversor/internal/storage"
)

// DefaultMaxAge é a idade a partir da qual um artefato é removido.
const DefaultMaxAge = time.Hour

// ErrInvalidMaxAge é retornado para limites negativos.
var ErrInvalidMaxAge = errors.New("retenção: idade máxima negativa")

// Report resume uma varredura.
type Report struct {
	Scanned  int `json:"scanned"`
	Deleted  int `json:"deleted"`
	Retained int `json:"retained"`
	Failed   int `json:"failed"`
}

// Sweeper apaga artefatos mais antigos que o limite configurado.
type Sweeper struct {
	store   storage.Store
	maxAge  time.Duration
	now     func() time.Time
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewSweeper cria o varredor; maxAge <= 0 usa DefaultMaxAge.
func NewSweeper(store storage.Store, maxAge time.Duration) *Sweeper {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Sweeper{
		store:  store,
		maxAge: maxAge,
		now:    time.Now,
		logger: log.With().Str("component", "retention").Logger(),
	}
}

// WithClock substitui o relógio, usado em testes.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// WithMetrics contabiliza remoções e falhas.
func (s *Sweeper) WithMetrics(m *metrics.Metrics) *Sweeper {
	s.metrics = m
	return s
}

// MaxAge devolve o limite padrão configurado.
func (s *Sweeper) MaxAge() time.Duration {
	return s.maxAge
}

// Run varre com o limite configurado.
func (s *Sweeper) Run(ctx context.Context) (Report, error) {
	return s.Sweep(ctx, s.maxAge)
}

// Sweep remove artefatos com idade estritamente maior que maxAge. Falhas
// individuais são registradas e contadas sem interromper a varredura; só a
// falha ao listar o armazenamento é devolvida como erro.
func (s *Sweeper) Sweep(ctx context.Context, maxAge time.Duration) (Report, error) {
	if maxAge < 0 {
		return Report{}, ErrInvalidMaxAge
	}

	entries, err := s.store.List(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("listar artefatos: %w", err)
	}

	now := s.now()
	var report Report
	for _, entry := range entries {
		report.Scanned++
		if now.Sub(entry.ModTime) <= maxAge {
			report.Retained++
			continue
		}
		if err := s.store.Delete(ctx, entry.Name); err != nil {
			report.Failed++
			s.logger.Warn().Err(err).Str("artifact", entry.Name).Msg("retenção: remoção falhou")
			continue
		}
		report.Deleted++
		s.logger.Debug().Str("artifact", entry.Name).Dur("age", now.Sub(entry.ModTime)).Msg("retenção: artefato removido")
	}

	s.metrics.ObserveSweep(report.Deleted, report.Failed)
	s.logger.Info().
		Int("scanned", report.Scanned).
		Int("deleted", report.Deleted).
		Int("failed", report.Failed).
		Dur("max_age", maxAge).
		Msg("retenção: varredura concluída")
	return report, nil
}
