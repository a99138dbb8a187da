package artifact

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// OutputSuffix é anexado ao nome base do arquivo convertido.
const OutputSuffix = "_converted.md"

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// Sanitize remove diretórios e caracteres inseguros do nome declarado.
// A extensão é tratada separadamente para não se perder quando o nome base
// é todo composto por caracteres descartados (ex.: "relatório.pdf" em outro alfabeto).
func Sanitize(name string) string {
	if idx := strings.LastIndexAny(name, `/\`); idx >= 0 {
		name = name[idx+1:]
	}

	// Um ponto inicial marca arquivo oculto, não extensão.
	stem, ext := name, ""
	if idx := strings.LastIndex(name, "."); idx > 0 {
		stem, ext = name[:idx], name[idx+1:]
	}

	stem = cleanSegment(stem)
	ext = cleanSegment(ext)
	if stem == "" {
		stem = "file"
	}
	if ext == "" {
		return stem
	}
	return stem + "." + ext
}

func cleanSegment(value string) string {
	value = norm.NFKD.String(value)
	value = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, value)
	value = strings.Join(strings.Fields(value), "_")
	value = unsafeChars.ReplaceAllString(value, "")
	return strings.Trim(value, "._")
}

// StageName gera nome único para o artefato de entrada.
func StageName(declared string) string {
	return uuid.NewString() + "_" + Sanitize(declared)
}

// OutputName deriva o nome do artefato convertido. Conversões do mesmo nome base
// sobrescrevem a saída anterior.
func OutputName(declared string) string {
	return baseName(Sanitize(declared)) + OutputSuffix
}

func baseName(name string) string {
	if idx := strings.LastIndex(name, "."); idx > 0 {
		return name[:idx]
	}
	return name
}
