package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/gestaozabele/conversor/internal/artifact"
)

// MemoryStore mantém artefatos em memória. Usado em testes e no modo dry-run da CLI.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memObject
	now     func() time.Time
}

type memObject struct {
	data    []byte
	modTime time.Time
}

// NewMemoryStore cria store vazio com relógio real.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memObject), now: time.Now}
}

// WithClock substitui o relógio usado para datar gravações.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

func (s *MemoryStore) Put(ctx context.Context, name string, r io.Reader) (Entry, error) {
	if !ValidName(name) {
		return Entry{}, fmt.Errorf("%w: nome inválido %q", artifact.ErrStoreWrite, name)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: ler %s: %w", artifact.ErrStoreWrite, name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	obj := memObject{data: data, modTime: s.now()}
	s.objects[name] = obj
	return obj.entry(name), nil
}

func (s *MemoryStore) Open(ctx context.Context, name string) (io.ReadSeekCloser, Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[name]
	if !ok {
		return nil, Entry{}, fmt.Errorf("%w: %s", artifact.ErrNotFound, name)
	}
	return nopSeekCloser{bytes.NewReader(obj.data)}, obj.entry(name), nil
}

func (s *MemoryStore) Ref(ctx context.Context, name string) (Ref, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.objects[name]; !ok {
		return Ref{}, fmt.Errorf("%w: %s", artifact.ErrNotFound, name)
	}
	return Ref{Name: name}, nil
}

func (s *MemoryStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, name)
	return nil
}

// List devolve as entradas ordenadas por nome.
func (s *MemoryStore) List(ctx context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]Entry, 0, len(s.objects))
	for name, obj := range s.objects {
		entries = append(entries, obj.entry(name))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Touch altera a data de modificação de um artefato existente.
func (s *MemoryStore) Touch(name string, modTime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[name]
	if !ok {
		return fmt.Errorf("%w: %s", artifact.ErrNotFound, name)
	}
	obj.modTime = modTime
	s.objects[name] = obj
	return nil
}

// Bytes devolve uma cópia do conteúdo armazenado.
func (s *MemoryStore) Bytes(name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[name]
	if !ok {
		return nil, false
	}
	return bytes.Clone(obj.data), true
}

func (o memObject) entry(name string) Entry {
	return Entry{Name: name, Size: int64(len(o.data)), ModTime: o.modTime}
}

type nopSeekCloser struct {
	*bytes.Reader
}

func (nopSeekCloser) Close() error { return nil }
