package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gestaozabele/conversor/internal/artifact"
)

const defaultRemoteTimeout = 2 * time.Minute

// RemoteConfig descreve o serviço HTTP de conversão.
type RemoteConfig struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Remote envia o artefato por multipart para {BaseURL}/convert.
type Remote struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewRemote cria o cliente do serviço de conversão.
func NewRemote(cfg RemoteConfig) (*Remote, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, errors.New("engine remoto: url obrigatória")
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultRemoteTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Remote{
		httpClient: client,
		baseURL:    strings.TrimRight(base, "/"),
		token:      strings.TrimSpace(cfg.Token),
	}, nil
}

func (r *Remote) Name() string { return "remote" }

// Ping consulta {BaseURL}/health.
func (r *Remote) Ping(ctx context.Context) error {
	req, err := r.newRequest(ctx, http.MethodGet, r.baseURL+"/health", nil, "")
	if err != nil {
		return err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", artifact.ErrEngineInit, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: engine remoto: status %d", artifact.ErrEngineInit, resp.StatusCode)
	}
	return nil
}

func (r *Remote) Convert(ctx context.Context, in Input) (*Result, error) {
	if in.Open == nil {
		return nil, fmt.Errorf("%w: artefato sem leitor", artifact.ErrEngineInternal)
	}
	rc, err := in.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: abrir artefato: %w", artifact.ErrEngineInternal, err)
	}
	defer rc.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	name := in.Name
	if name == "" {
		name = "upload." + in.Extension
	}
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return nil, fmt.Errorf("%w: montar requisição: %w", artifact.ErrEngineInternal, err)
	}
	if _, err := io.Copy(part, rc); err != nil {
		return nil, fmt.Errorf("%w: ler artefato: %w", artifact.ErrEngineInternal, err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("%w: montar requisição: %w", artifact.ErrEngineInternal, err)
	}

	req, err := r.newRequest(ctx, http.MethodPost, r.baseURL+"/convert", &body, writer.FormDataContentType())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", artifact.ErrEngineInternal, err)
	}

	var payload remoteResponse
	if err := r.do(ctx, req, &payload); err != nil {
		return nil, err
	}
	return &Result{Text: payload.Text, Title: payload.Title}, nil
}

type remoteResponse struct {
	Text  string `json:"text"`
	Title string `json:"title"`
	Error string `json:"error"`
}

func (r *Remote) newRequest(ctx context.Context, method, endpoint string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (r *Remote) do(ctx context.Context, req *http.Request, v *remoteResponse) error {
	resp, err := r.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", artifact.ErrEngineInternal, ctx.Err())
		}
		return fmt.Errorf("%w: %w", artifact.ErrEngineInit, err)
	}
	defer resp.Body.Close()

	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 64<<20)).Decode(v)

	if resp.StatusCode >= 400 {
		detail := strings.TrimSpace(v.Error)
		if detail == "" {
			detail = http.StatusText(resp.StatusCode)
		}
		switch resp.StatusCode {
		case http.StatusUnsupportedMediaType, http.StatusUnprocessableEntity:
			return fmt.Errorf("%w: engine remoto: %s", artifact.ErrUnsupportedContent, detail)
		case http.StatusServiceUnavailable:
			return fmt.Errorf("%w: engine remoto: %s", artifact.ErrEngineInit, detail)
		default:
			return fmt.Errorf("%w: engine remoto: status %d: %s", artifact.ErrEngineInternal, resp.StatusCode, detail)
		}
	}
	if decodeErr != nil {
		return fmt.Errorf("%w: engine remoto: resposta inválida: %w", artifact.ErrEngineInternal, decodeErr)
	}
	return nil
}
