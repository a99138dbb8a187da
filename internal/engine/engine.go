// Package engine define os motores de conversão para Markdown.
//
// O pipeline trata o motor como caixa-preta: recebe um artefato legível e
// devolve texto ou erro classificado com os sentinelas de artifact.
package engine

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// Input descreve o artefato entregue ao motor.
type Input struct {
	// Name é o nome declarado pelo usuário.
	Name string
	// Extension é a extensão normalizada (minúsculas, sem ponto).
	Extension string
	// Path é o caminho local do artefato; vazio quando o store não é baseado em disco.
	Path string
	// Open abre o conteúdo do artefato.
	Open func() (io.ReadCloser, error)
}

// Result contém o texto normalizado.
type Result struct {
	Text  string
	Title string
}

// Engine converte artefatos em Markdown.
type Engine interface {
	Name() string
	Convert(ctx context.Context, in Input) (*Result, error)
	Ping(ctx context.Context) error
}

// Options seleciona e configura um motor.
type Options struct {
	Kind    string
	Command string
	Args    []string
	URL     string
	Timeout time.Duration
}

// New constrói o motor indicado em Options.Kind.
func New(opts Options) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Kind)) {
	case "", "builtin":
		return NewBuiltin(), nil
	case "exec":
		return NewExec(opts.Command, opts.Args...)
	case "remote":
		return NewRemote(RemoteConfig{BaseURL: opts.URL, Timeout: opts.Timeout})
	default:
		return nil, fmt.Errorf("engine: tipo %s não suportado", opts.Kind)
	}
}
