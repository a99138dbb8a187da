package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gestaozabele/conversor/internal/artifact"
)

// tempPrefix marca gravações em andamento; arquivos órfãos também são varridos pela retenção.
const tempPrefix = ".tmp-"

// DiskStore grava artefatos em um único diretório local.
type DiskStore struct {
	dir string
}

// NewDiskStore cria o diretório de staging se necessário.
func NewDiskStore(dir string) (*DiskStore, error) {
	if dir == "" {
		dir = "uploads"
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolver diretório: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: criar diretório: %w", err)
	}
	return &DiskStore{dir: abs}, nil
}

// Dir devolve o caminho absoluto do diretório de staging.
func (s *DiskStore) Dir() string {
	return s.dir
}

// Put grava em arquivo temporário e renomeia, de modo que leitores nunca vejam conteúdo parcial.
func (s *DiskStore) Put(ctx context.Context, name string, r io.Reader) (Entry, error) {
	if !ValidName(name) {
		return Entry{}, fmt.Errorf("%w: nome inválido %q", artifact.ErrStoreWrite, name)
	}
	if err := ctx.Err(); err != nil {
		return Entry{}, fmt.Errorf("%w: %w", artifact.ErrStoreWrite, err)
	}

	tmp, err := os.CreateTemp(s.dir, tempPrefix+"*")
	if err != nil {
		return Entry{}, fmt.Errorf("%w: criar temporário em %s: %w", artifact.ErrStoreWrite, s.dir, err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return Entry{}, fmt.Errorf("%w: gravar %s: %w", artifact.ErrStoreWrite, name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return Entry{}, fmt.Errorf("%w: fechar %s: %w", artifact.ErrStoreWrite, name, err)
	}

	finalPath := filepath.Join(s.dir, name)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return Entry{}, fmt.Errorf("%w: renomear %s: %w", artifact.ErrStoreWrite, name, err)
	}

	info, err := os.Stat(finalPath)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: stat %s: %w", artifact.ErrStoreWrite, name, err)
	}
	return entryFromInfo(info), nil
}

// Open abre o artefato para leitura.
func (s *DiskStore) Open(ctx context.Context, name string) (io.ReadSeekCloser, Entry, error) {
	if !ValidName(name) {
		return nil, Entry{}, fmt.Errorf("%w: %s", artifact.ErrNotFound, name)
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		return nil, Entry{}, s.wrapStatErr(name, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, Entry{}, s.wrapStatErr(name, err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, Entry{}, fmt.Errorf("%w: %s", artifact.ErrNotFound, name)
	}
	return f, entryFromInfo(info), nil
}

// Ref devolve o caminho absoluto do artefato.
func (s *DiskStore) Ref(ctx context.Context, name string) (Ref, error) {
	if !ValidName(name) {
		return Ref{}, fmt.Errorf("%w: %s", artifact.ErrNotFound, name)
	}
	path := filepath.Join(s.dir, name)
	info, err := os.Stat(path)
	if err != nil {
		return Ref{}, s.wrapStatErr(name, err)
	}
	if info.IsDir() {
		return Ref{}, fmt.Errorf("%w: %s", artifact.ErrNotFound, name)
	}
	return Ref{Name: name, Path: path}, nil
}

// Delete remove o artefato. Nomes inexistentes não geram erro.
func (s *DiskStore) Delete(ctx context.Context, name string) error {
	if !ValidName(name) {
		return nil
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: remover %s: %w", name, err)
	}
	return nil
}

// List enumera os arquivos do diretório com a data de modificação.
func (s *DiskStore) List(ctx context.Context) ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("storage: listar %s: %w", s.dir, err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("storage: stat %s: %w", de.Name(), err)
		}
		entries = append(entries, entryFromInfo(info))
	}
	return entries, nil
}

// Ping confirma que o diretório aceita gravações.
func (s *DiskStore) Ping(ctx context.Context) error {
	f, err := os.CreateTemp(s.dir, tempPrefix+"ping-*")
	if err != nil {
		return fmt.Errorf("storage: diretório sem escrita: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

func (s *DiskStore) wrapStatErr(name string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", artifact.ErrNotFound, name)
	}
	return fmt.Errorf("storage: acessar %s: %w", name, err)
}

func entryFromInfo(info fs.FileInfo) Entry {
	return Entry{Name: info.Name(), Size: info.Size(), ModTime: info.ModTime()}
}
