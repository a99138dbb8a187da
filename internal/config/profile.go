package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/gestaozabele/conversor/internal/artifact"
	"github.com/gestaozabele/conversor/internal/engine"
)

// Profile descreve um perfil de implantação: formatos aceitos e teto de upload.
type Profile struct {
	Name               string            `yaml:"name"`
	MaxUploadBytes     int64             `yaml:"max_upload_bytes"`
	DefaultContentType string            `yaml:"default_content_type"`
	Formats            map[string]string `yaml:"formats"`
}

// FullProfile aceita documentos, imagens, áudio e texto.
func FullProfile() Profile {
	return Profile{
		Name:               "full",
		MaxUploadBytes:     50 << 20,
		DefaultContentType: "application/octet-stream",
		Formats: map[string]string{
			"pdf":  "application/pdf",
			"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			"doc":  "application/msword",
			"pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
			"ppt":  "application/vnd.ms-powerpoint",
			"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			"xls":  "application/vnd.ms-excel",
			"jpg":  "image/jpeg",
			"jpeg": "image/jpeg",
			"png":  "image/png",
			"gif":  "image/gif",
			"bmp":  "image/bmp",
			"tiff": "image/tiff",
			"webp": "image/webp",
			"wav":  "audio/wav",
			"mp3":  "audio/mpeg",
			"html": "text/html",
			"htm":  "text/html",
			"csv":  "text/csv",
			"json": "application/json",
			"xml":  "application/xml",
			"zip":  "application/zip",
			"epub": "application/epub+zip",
			"txt":  "text/plain",
			"md":   "text/markdown",
		},
	}
}

// MinimalProfile aceita apenas formatos textuais.
func MinimalProfile() Profile {
	return Profile{
		Name:               "minimal",
		MaxUploadBytes:     10 << 20,
		DefaultContentType: "text/plain",
		Formats: map[string]string{
			"txt":  "text/plain",
			"md":   "text/markdown",
			"html": "text/html",
			"htm":  "text/html",
			"csv":  "text/csv",
			"json": "application/json",
			"xml":  "application/xml",
		},
	}
}

// ProfileByName resolve perfis embutidos.
func ProfileByName(name string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "full":
		return FullProfile(), nil
	case "minimal":
		return MinimalProfile(), nil
	default:
		return Profile{}, fmt.Errorf("PROFILE %q desconhecido", name)
	}
}

// LoadProfileFile lê um perfil em YAML. Campos omitidos herdam do perfil base indicado em "name".
func LoadProfileFile(path string) (Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("ler perfil: %w", err)
	}

	var parsed Profile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return Profile{}, fmt.Errorf("parse perfil: %w", err)
	}

	base, err := ProfileByName(parsed.Name)
	if err != nil {
		base = Profile{Name: parsed.Name}
	}
	if parsed.MaxUploadBytes > 0 {
		base.MaxUploadBytes = parsed.MaxUploadBytes
	}
	if strings.TrimSpace(parsed.DefaultContentType) != "" {
		base.DefaultContentType = parsed.DefaultContentType
	}
	if len(parsed.Formats) > 0 {
		base.Formats = parsed.Formats
	}

	if err := base.Validate(); err != nil {
		return Profile{}, fmt.Errorf("perfil %s: %w", path, err)
	}
	return base, nil
}

// Validate garante perfil utilizável.
func (p Profile) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required),
		validation.Field(&p.MaxUploadBytes, validation.Required, validation.Min(int64(1))),
		validation.Field(&p.Formats, validation.Required),
	)
}

// AllowSet converte o perfil no conjunto de formatos usado pelo pipeline.
func (p Profile) AllowSet() artifact.Formats {
	return artifact.NewFormats(p.Formats, p.DefaultContentType)
}

// BuiltinGaps lista as extensões do perfil que o motor embutido não converte.
func (p Profile) BuiltinGaps() []string {
	served := make(map[string]bool)
	for _, ext := range engine.BuiltinExtensions() {
		served[ext] = true
	}
	var gaps []string
	for ext := range p.Formats {
		ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
		if !served[ext] {
			gaps = append(gaps, ext)
		}
	}
	sort.Strings(gaps)
	return gaps
}

// DefaultEngineKind escolhe o motor quando ENGINE não é informado: o embutido
// basta para perfis textuais, os demais precisam do markitdown.
func DefaultEngineKind(p Profile) string {
	if len(p.BuiltinGaps()) == 0 {
		return "builtin"
	}
	return "exec"
}

// CheckEngineFormats recusa o motor embutido com um perfil que ele não atende.
func CheckEngineFormats(kind string, p Profile) error {
	if strings.ToLower(strings.TrimSpace(kind)) != "builtin" {
		return nil
	}
	if gaps := p.BuiltinGaps(); len(gaps) > 0 {
		return fmt.Errorf("motor builtin não converte %s do perfil %s; use ENGINE=exec ou remote", strings.Join(gaps, ", "), p.Name)
	}
	return nil
}
