package artifact

import (
	"fmt"
	"sort"
	"strings"
)

// Formats associa extensões aceitas ao content type informado na resposta.
type Formats struct {
	types    map[string]string
	fallback string
}

// NewFormats normaliza as extensões (minúsculas, sem ponto).
func NewFormats(types map[string]string, fallback string) Formats {
	normalized := make(map[string]string, len(types))
	for ext, contentType := range types {
		ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
		if ext == "" {
			continue
		}
		normalized[ext] = strings.TrimSpace(contentType)
	}
	if strings.TrimSpace(fallback) == "" {
		fallback = "application/octet-stream"
	}
	return Formats{types: normalized, fallback: fallback}
}

// Allows informa se a extensão (já normalizada) está na lista.
func (f Formats) Allows(ext string) bool {
	_, ok := f.types[ext]
	return ok
}

// ContentType classifica o arquivo pelo nome original.
func (f Formats) ContentType(filename string) string {
	ext, ok := Extension(filename)
	if !ok {
		return f.fallback
	}
	if contentType, ok := f.types[ext]; ok && contentType != "" {
		return contentType
	}
	return f.fallback
}

// Extensions lista as extensões aceitas em ordem alfabética.
func (f Formats) Extensions() []string {
	exts := make([]string, 0, len(f.types))
	for ext := range f.types {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Extension devolve o sufixo após o último ponto, em minúsculas.
func Extension(filename string) (string, bool) {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return "", false
	}
	return strings.ToLower(filename[idx+1:]), true
}

// IsAllowed rejeita nomes sem ponto e extensões fora da lista.
func IsAllowed(filename string, allow Formats) bool {
	ext, ok := Extension(filename)
	if !ok {
		return false
	}
	return allow.Allows(ext)
}

// Validate devolve ErrValidation com mensagem pronta para o usuário.
func Validate(filename string, allow Formats) error {
	if strings.TrimSpace(filename) == "" {
		return fmt.Errorf("%w: nenhum arquivo selecionado", ErrValidation)
	}
	if !IsAllowed(filename, allow) {
		return fmt.Errorf("%w: tipo de arquivo não suportado (formatos aceitos: %s)", ErrValidation, strings.Join(allow.Extensions(), ", "))
	}
	return nil
}
