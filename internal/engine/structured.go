package engine

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gestaozabele/conversor/internal/artifact"
)

// csvConverter gera uma tabela Markdown; a primeira linha vira cabeçalho.
type csvConverter struct{}

func (csvConverter) Convert(ctx context.Context, input []byte) (string, error) {
	reader := csv.NewReader(strings.NewReader(decodeText(input)))
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return "", fmt.Errorf("%w: csv: %w", artifact.ErrUnsupportedContent, err)
	}
	if len(rows) == 0 {
		return "", nil
	}

	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteString("|")
		for i := 0; i < width; i++ {
			cell := ""
			if i < len(cells) {
				cell = escapeCell(cells[i])
			}
			b.WriteString(" " + cell + " |")
		}
		b.WriteString("\n")
	}

	writeRow(rows[0])
	b.WriteString("|")
	for i := 0; i < width; i++ {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, row := range rows[1:] {
		writeRow(row)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func escapeCell(cell string) string {
	cell = strings.ReplaceAll(cell, "|", `\|`)
	cell = strings.ReplaceAll(cell, "\r\n", " ")
	return strings.ReplaceAll(cell, "\n", " ")
}

func (csvConverter) SupportedExtensions() []string { return []string{"csv"} }

func (csvConverter) Name() string { return "csv" }

// jsonConverter valida e indenta o documento dentro de um bloco de código.
type jsonConverter struct{}

func (jsonConverter) Convert(ctx context.Context, input []byte) (string, error) {
	text := decodeText(input)
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	var out bytes.Buffer
	if err := json.Indent(&out, []byte(text), "", "  "); err != nil {
		return "", fmt.Errorf("%w: json: %w", artifact.ErrUnsupportedContent, err)
	}
	return "```json\n" + out.String() + "\n```", nil
}

func (jsonConverter) SupportedExtensions() []string { return []string{"json"} }

func (jsonConverter) Name() string { return "json" }

// xmlConverter confere se o documento é bem formado e o devolve em bloco de código.
type xmlConverter struct{}

func (xmlConverter) Convert(ctx context.Context, input []byte) (string, error) {
	text := strings.TrimSpace(decodeText(input))
	if text == "" {
		return "", nil
	}

	decoder := xml.NewDecoder(strings.NewReader(text))
	decoder.Strict = true
	sawElement := false
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: xml: %w", artifact.ErrUnsupportedContent, err)
		}
		if _, ok := tok.(xml.StartElement); ok {
			sawElement = true
		}
	}
	if !sawElement {
		return "", fmt.Errorf("%w: xml sem elementos", artifact.ErrUnsupportedContent)
	}
	return "```xml\n" + text + "\n```", nil
}

func (xmlConverter) SupportedExtensions() []string { return []string{"xml"} }

func (xmlConverter) Name() string { return "xml" }
