package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/gestaozabele/conversor/internal/artifact"
)

// Converter trata um formato específico dentro do motor embutido.
type Converter interface {
	Convert(ctx context.Context, input []byte) (string, error)
	SupportedExtensions() []string
	Name() string
}

// Builtin roteia arquivos por extensão para conversores registrados.
// Seguro para uso concorrente.
type Builtin struct {
	mu         sync.RWMutex
	converters map[string]Converter
}

// NewBuiltin cria o motor com os conversores textuais padrão.
func NewBuiltin() *Builtin {
	b := &Builtin{converters: make(map[string]Converter)}
	b.Register(textConverter{})
	b.Register(markdownConverter{})
	b.Register(newHTMLConverter())
	b.Register(csvConverter{})
	b.Register(jsonConverter{})
	b.Register(xmlConverter{})
	return b
}

// Register associa o conversor às extensões que ele declara.
func (b *Builtin) Register(c Converter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ext := range c.SupportedExtensions() {
		ext = strings.TrimPrefix(strings.ToLower(ext), ".")
		b.converters[ext] = c
	}
}

// Extensions lista as extensões atendidas.
func (b *Builtin) Extensions() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	exts := make([]string, 0, len(b.converters))
	for ext := range b.converters {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// BuiltinExtensions lista as extensões do motor embutido padrão.
func BuiltinExtensions() []string {
	return NewBuiltin().Extensions()
}

func (b *Builtin) Name() string { return "builtin" }

func (b *Builtin) Ping(ctx context.Context) error { return nil }

func (b *Builtin) Convert(ctx context.Context, in Input) (*Result, error) {
	b.mu.RLock()
	conv := b.converters[strings.ToLower(in.Extension)]
	b.mu.RUnlock()
	if conv == nil {
		return nil, fmt.Errorf("%w: extensão .%s sem conversor embutido", artifact.ErrUnsupportedContent, in.Extension)
	}
	if in.Open == nil {
		return nil, fmt.Errorf("%w: artefato sem leitor", artifact.ErrEngineInternal)
	}

	rc, err := in.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: abrir artefato: %w", artifact.ErrEngineInternal, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: ler artefato: %w", artifact.ErrEngineInternal, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text, err := conv.Convert(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", conv.Name(), err)
	}
	return &Result{Text: text}, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeText remove BOM e substitui sequências UTF-8 inválidas.
func decodeText(input []byte) string {
	input = bytes.TrimPrefix(input, utf8BOM)
	if utf8.Valid(input) {
		return string(input)
	}
	return strings.ToValidUTF8(string(input), "�")
}

// textConverter devolve o texto como está, já que texto puro é Markdown válido.
type textConverter struct{}

func (textConverter) Convert(ctx context.Context, input []byte) (string, error) {
	return decodeText(input), nil
}

func (textConverter) SupportedExtensions() []string { return []string{"txt", "text"} }

func (textConverter) Name() string { return "plaintext" }

type markdownConverter struct{}

func (markdownConverter) Convert(ctx context.Context, input []byte) (string, error) {
	return decodeText(input), nil
}

func (markdownConverter) SupportedExtensions() []string { return []string{"md", "markdown"} }

func (markdownConverter) Name() string { return "markdown" }
