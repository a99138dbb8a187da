package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/gestaozabele/conversor/internal/artifact"
)

// DefaultCommand é o conversor externo usado quando nenhum comando é informado.
const DefaultCommand = "markitdown"

// unsupportedMarkers identificam, no stderr, recusas de formato do conversor externo.
var unsupportedMarkers = []string{
	"UnsupportedFormatException",
	"FileConversionException",
	"not supported",
}

// Exec delega a conversão a um processo externo que escreve Markdown no stdout.
type Exec struct {
	command string
	args    []string
}

// NewExec configura o motor; o caminho do artefato é sempre o último argumento.
func NewExec(command string, args ...string) (*Exec, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		command = DefaultCommand
	}
	return &Exec{command: command, args: append([]string(nil), args...)}, nil
}

func (e *Exec) Name() string { return "exec:" + e.command }

// Ping verifica se o executável está disponível no PATH.
func (e *Exec) Ping(ctx context.Context) error {
	if _, err := exec.LookPath(e.command); err != nil {
		return fmt.Errorf("%w: %w", artifact.ErrEngineInit, err)
	}
	return nil
}

func (e *Exec) Convert(ctx context.Context, in Input) (*Result, error) {
	path := in.Path
	if path == "" {
		tmp, err := materialize(in)
		if err != nil {
			return nil, err
		}
		defer os.Remove(tmp)
		path = tmp
	}

	args := append(append([]string(nil), e.args...), path)
	cmd := exec.CommandContext(ctx, e.command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", artifact.ErrEngineInternal, ctxErr)
		}
		return nil, classifyExecError(err, stderr.String())
	}
	return &Result{Text: strings.TrimRight(stdout.String(), "\n")}, nil
}

func classifyExecError(err error, stderr string) error {
	detail := strings.TrimSpace(stderr)
	if len(detail) > 512 {
		detail = detail[:512]
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
		return fmt.Errorf("%w: %w", artifact.ErrEngineInit, err)
	}
	for _, marker := range unsupportedMarkers {
		if strings.Contains(stderr, marker) {
			return fmt.Errorf("%w: %s", artifact.ErrUnsupportedContent, detail)
		}
	}
	if detail == "" {
		return fmt.Errorf("%w: %w", artifact.ErrEngineInternal, err)
	}
	return fmt.Errorf("%w: %w: %s", artifact.ErrEngineInternal, err, detail)
}

// materialize copia o artefato para um arquivo temporário com a extensão original,
// usado quando o store não expõe caminho local.
func materialize(in Input) (string, error) {
	if in.Open == nil {
		return "", fmt.Errorf("%w: artefato sem leitor", artifact.ErrEngineInternal)
	}
	rc, err := in.Open()
	if err != nil {
		return "", fmt.Errorf("%w: abrir artefato: %w", artifact.ErrEngineInternal, err)
	}
	defer rc.Close()

	pattern := "conversor-*"
	if in.Extension != "" {
		pattern += "." + in.Extension
	}
	tmp, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", fmt.Errorf("%w: arquivo temporário: %w", artifact.ErrEngineInternal, err)
	}
	if _, err := io.Copy(tmp, rc); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: copiar artefato: %w", artifact.ErrEngineInternal, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: fechar temporário: %w", artifact.ErrEngineInternal, err)
	}
	return tmp.Name(), nil
}
