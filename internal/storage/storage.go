package storage

import (
	"context"
	"io"
	"strings"
	"time"
)

// Entry descreve um artefato persistido.
type Entry struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Ref localiza um artefato para leitura pelo motor e para download.
type Ref struct {
	Name string
	Path string
}

// Store define o armazenamento plano de artefatos (entrada e saída).
type Store interface {
	Put(ctx context.Context, name string, r io.Reader) (Entry, error)
	Open(ctx context.Context, name string) (io.ReadSeekCloser, Entry, error)
	Ref(ctx context.Context, name string) (Ref, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]Entry, error)
}

// Pinger é implementado por stores capazes de verificar o meio de gravação.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ValidName recusa nomes vazios, com separadores ou que apontem para diretórios.
func ValidName(name string) bool {
	if strings.TrimSpace(name) == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`+"\x00")
}
