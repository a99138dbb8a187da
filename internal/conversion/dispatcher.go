package conversion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/conversor/internal/artifact"
	"github.com/gestaozabele/conversor/internal/engine"
	"github.com/gestaozabele/conversor/internal/storage"
)

// Job identifica o artefato preparado para conversão.
type Job struct {
	DeclaredName string
	StagedName   string
	Extension    string
}

// Dispatcher entrega artefatos preparados ao motor e classifica as falhas.
// Não há novas tentativas: cada Job resulta em uma única chamada ao motor.
type Dispatcher struct {
	engine  engine.Engine
	store   storage.Store
	logger  zerolog.Logger
	timeout time.Duration
}

// NewDispatcher cria o dispatcher.
func NewDispatcher(eng engine.Engine, store storage.Store) *Dispatcher {
	return &Dispatcher{
		engine: eng,
		store:  store,
		logger: log.With().Str("component", "dispatcher").Logger(),
	}
}

// WithTimeout limita a duração de cada conversão; zero desativa o limite.
func (d *Dispatcher) WithTimeout(timeout time.Duration) *Dispatcher {
	if timeout > 0 {
		d.timeout = timeout
	}
	return d
}

// Engine devolve o motor configurado.
func (d *Dispatcher) Engine() engine.Engine {
	return d.engine
}

// Convert executa o motor sobre o artefato preparado. Erros devolvidos sempre
// carregam ErrUnsupportedContent, ErrEngineInit ou ErrEngineInternal.
func (d *Dispatcher) Convert(ctx context.Context, job Job) (*engine.Result, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	ref, err := d.store.Ref(ctx, job.StagedName)
	if err != nil {
		return nil, d.failure(job, fmt.Errorf("%w: artefato preparado indisponível: %w", artifact.ErrEngineInternal, err))
	}

	input := engine.Input{
		Name:      job.DeclaredName,
		Extension: job.Extension,
		Path:      ref.Path,
		Open: func() (io.ReadCloser, error) {
			rc, _, err := d.store.Open(ctx, job.StagedName)
			return rc, err
		},
	}

	res, err := d.engine.Convert(ctx, input)
	if err != nil {
		return nil, d.failure(job, classify(err))
	}
	if res == nil {
		return nil, d.failure(job, fmt.Errorf("%w: motor não devolveu resultado", artifact.ErrEngineInternal))
	}
	return res, nil
}

func (d *Dispatcher) failure(job Job, err error) error {
	d.logger.Error().
		Err(err).
		Str("declared_name", job.DeclaredName).
		Str("staged_name", job.StagedName).
		Str("engine", d.engine.Name()).
		Str("kind", string(artifact.KindOf(err))).
		Msg("falha na conversão")
	return err
}

// classify garante que o erro carregue uma das três classes do motor.
func classify(err error) error {
	switch {
	case errors.Is(err, artifact.ErrUnsupportedContent),
		errors.Is(err, artifact.ErrEngineInit),
		errors.Is(err, artifact.ErrEngineInternal):
		return err
	default:
		return fmt.Errorf("%w: %w", artifact.ErrEngineInternal, err)
	}
}
