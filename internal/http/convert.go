package http

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/conversor/internal/artifact"
	"github.com/gestaozabele/conversor/internal/conversion"
	"github.com/gestaozabele/conversor/internal/retention"
)

const uploadField = "file"

var (
	errNoFile       = errors.New("nenhum arquivo enviado")
	errNoFileChosen = errors.New("nenhum arquivo selecionado")
)

type convertResponse struct {
	Success bool `json:"success"`
	*conversion.Result
}

// Convert recebe um upload multipart no campo "file" e devolve o Markdown gerado.
// O arquivo é lido em streaming direto para o staging.
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	limit := h.cfg.Profile.MaxUploadBytes
	if r.ContentLength > limit {
		writeTooLarge(w, limit)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	reader, err := r.MultipartReader()
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", errNoFile.Error())
		return
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			WriteError(w, http.StatusBadRequest, "VALIDATION", errNoFile.Error())
			return
		}
		if err != nil {
			h.writeConversionError(w, r, err)
			return
		}
		if part.FormName() != uploadField {
			_ = part.Close()
			continue
		}

		filename := part.FileName()
		if strings.TrimSpace(filename) == "" {
			_ = part.Close()
			WriteError(w, http.StatusBadRequest, "VALIDATION", errNoFileChosen.Error())
			return
		}

		res, err := h.service.Convert(r.Context(), conversion.Upload{Filename: filename, Body: part})
		_ = part.Close()
		if err != nil {
			h.writeConversionError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, convertResponse{Success: true, Result: res})
		return
	}
}

func (h *Handler) writeConversionError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeTooLarge(w, tooLarge.Limit)
	case errors.Is(err, artifact.ErrValidation):
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error())
	default:
		kind := artifact.KindOf(err)
		log.Error().
			Err(err).
			Str("kind", string(kind)).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Msg("conversão falhou")

		switch kind {
		case artifact.KindStoreWrite, artifact.KindNotFound:
			WriteError(w, http.StatusInternalServerError, "INTERNAL", "falha ao armazenar o arquivo")
		case artifact.KindUnsupportedContent:
			WriteError(w, http.StatusInternalServerError, "CONVERSION", "falha na conversão: conteúdo não suportado")
		case artifact.KindEngineInit:
			WriteError(w, http.StatusInternalServerError, "CONVERSION", "falha na conversão: motor indisponível")
		default:
			WriteError(w, http.StatusInternalServerError, "CONVERSION", "falha na conversão")
		}
	}
}

func writeTooLarge(w http.ResponseWriter, limit int64) {
	msg := fmt.Sprintf("arquivo excede o limite de %d MB", limit>>20)
	if limit < 1<<20 {
		msg = fmt.Sprintf("arquivo excede o limite de %d bytes", limit)
	}
	WriteError(w, http.StatusRequestEntityTooLarge, "TOO_LARGE", msg)
}

// Download entrega um resultado convertido como anexo.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if r.URL.RawPath != "" {
		// chi casa a rota pelo RawPath; o parâmetro chega ainda escapado.
		unescaped, err := url.PathUnescape(name)
		if err != nil {
			WriteError(w, http.StatusNotFound, "NOT_FOUND", "arquivo não encontrado")
			return
		}
		name = unescaped
	}
	if !strings.HasSuffix(name, artifact.OutputSuffix) {
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "arquivo não encontrado")
		return
	}

	rc, entry, err := h.store.Open(r.Context(), name)
	if err != nil {
		if !errors.Is(err, artifact.ErrNotFound) {
			log.Error().Err(err).Str("artifact", name).Msg("download falhou")
		}
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "arquivo não encontrado")
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(name))
	if path.Ext(name) == ".md" || contentType == "" {
		contentType = "text/markdown; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	http.ServeContent(w, r, name, entry.ModTime, rc)
}

type cleanupResponse struct {
	Success bool `json:"success"`
	retention.Report
}

// Cleanup dispara a retenção; ?max_age=30m substitui o limite padrão.
func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	maxAge := h.sweeper.MaxAge()
	if raw := strings.TrimSpace(r.URL.Query().Get("max_age")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed < 0 {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "max_age inválido")
			return
		}
		maxAge = parsed
	}

	report, err := h.sweeper.Sweep(r.Context(), maxAge)
	if err != nil {
		log.Error().Err(err).Msg("limpeza falhou")
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "falha na limpeza")
		return
	}
	WriteJSON(w, http.StatusOK, cleanupResponse{Success: true, Report: report})
}
