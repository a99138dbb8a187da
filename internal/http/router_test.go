package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gestaozabele/conversor/internal/config"
	"github.com/gestaozabele/conversor/internal/conversion"
	"github.com/gestaozabele/conversor/internal/engine"
	"github.com/gestaozabele/conversor/internal/metrics"
	"github.com/gestaozabele/conversor/internal/retention"
	"github.com/gestaozabele/conversor/internal/storage"
)

type testServer struct {
	handler http.Handler
	dir     string
	store   *countingStore
}

// countingStore conta as gravações feitas no staging.
type countingStore struct {
	*storage.DiskStore
	puts atomic.Int32
}

func (s *countingStore) Put(ctx context.Context, name string, r io.Reader) (storage.Entry, error) {
	s.puts.Add(1)
	return s.DiskStore.Put(ctx, name, r)
}

func newTestServer(t *testing.T, profile config.Profile) *testServer {
	t.Helper()
	dir := t.TempDir()
	disk, err := storage.NewDiskStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	store := &countingStore{DiskStore: disk}
	cfg := &config.Config{
		Profile:         profile,
		StagingDir:      dir,
		RetentionMaxAge: time.Hour,
		AllowOrigins:    []string{"*"},
		RateLimit:       config.RateLimitConfig{RequestsPerSecond: 0},
	}
	m, err := metrics.New()
	if err != nil {
		t.Fatal(err)
	}
	eng := engine.NewBuiltin()
	svc := conversion.NewService(store, conversion.NewDispatcher(eng, store), conversion.Options{
		Formats: profile.AllowSet(),
	}).WithMetrics(m)

	handler, err := NewRouter(cfg, Deps{
		Service: svc,
		Sweeper: retention.NewSweeper(store, cfg.RetentionMaxAge).WithMetrics(m),
		Engine:  eng,
		Metrics: m,
	})
	if err != nil {
		t.Fatal(err)
	}
	return &testServer{handler: handler, dir: dir, store: store}
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(part, content); err != nil {
		t.Fatal(err)
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}
	return &body, writer.FormDataContentType()
}

func (s *testServer) upload(t *testing.T, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, "file", filename, content)
	req := httptest.NewRequest(http.MethodPost, "/convert", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func (s *testServer) files(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		t.Fatal(err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestConvertAndDownload(t *testing.T) {
	s := newTestServer(t, config.FullProfile())

	rr := s.upload(t, "test.txt", "Hello World")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected %d got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["success"] != true {
		t.Fatalf("expected success, got %v", body)
	}
	if body["content_preview"] != "Hello World" {
		t.Fatalf("unexpected preview %v", body["content_preview"])
	}
	if body["output_filename"] != "test_converted.md" || body["download_url"] != "/download/test_converted.md" {
		t.Fatalf("unexpected names %v", body)
	}
	if body["file_type"] != "text/plain" {
		t.Fatalf("unexpected file type %v", body["file_type"])
	}

	if files := s.files(t); len(files) != 1 || files[0] != "test_converted.md" {
		t.Fatalf("expected only the output file, got %v", files)
	}

	req := httptest.NewRequest(http.MethodGet, "/download/test_converted.md", nil)
	dl := httptest.NewRecorder()
	s.handler.ServeHTTP(dl, req)
	if dl.Code != http.StatusOK {
		t.Fatalf("expected %d got %d", http.StatusOK, dl.Code)
	}
	if dl.Body.String() != "Hello World" {
		t.Fatalf("unexpected download %q", dl.Body.String())
	}
	if cd := dl.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment") || !strings.Contains(cd, "test_converted.md") {
		t.Fatalf("unexpected content disposition %q", cd)
	}
}

func TestConvertRejectsDisallowedType(t *testing.T) {
	s := newTestServer(t, config.FullProfile())

	rr := s.upload(t, "malware.exe", "MZ")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected %d got %d", http.StatusBadRequest, rr.Code)
	}
	body := decodeBody(t, rr)
	if body["code"] != "VALIDATION" || body["error"] == "" {
		t.Fatalf("unexpected body %v", body)
	}
	if files := s.files(t); len(files) != 0 {
		t.Fatalf("expected no artifacts, got %v", files)
	}
}

func TestConvertMinimalProfileRejectsPDF(t *testing.T) {
	s := newTestServer(t, config.MinimalProfile())
	if rr := s.upload(t, "doc.pdf", "%PDF"); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected %d got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestConvertMissingFile(t *testing.T) {
	s := newTestServer(t, config.FullProfile())

	body, contentType := multipartBody(t, "outro", "a.txt", "x")
	req := httptest.NewRequest(http.MethodPost, "/convert", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected %d got %d", http.StatusBadRequest, rr.Code)
	}

	rr = s.upload(t, "", "x")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected %d for empty filename got %d", http.StatusBadRequest, rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/convert", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	rr = httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected %d for non multipart got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestConvertTooLarge(t *testing.T) {
	profile := config.MinimalProfile()
	profile.MaxUploadBytes = 1 << 10
	s := newTestServer(t, profile)

	rr := s.upload(t, "grande.txt", strings.Repeat("a", 4<<10))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected %d got %d: %s", http.StatusRequestEntityTooLarge, rr.Code, rr.Body.String())
	}
	if body := decodeBody(t, rr); body["code"] != "TOO_LARGE" {
		t.Fatalf("unexpected body %v", body)
	}
	if files := s.files(t); len(files) != 0 {
		t.Fatalf("expected no artifacts, got %v", files)
	}
	if puts := s.store.puts.Load(); puts != 0 {
		t.Fatalf("expected declared oversized body to be rejected before staging, got %d puts", puts)
	}
}

func TestConvertTooLargeChunked(t *testing.T) {
	profile := config.MinimalProfile()
	profile.MaxUploadBytes = 1 << 10
	s := newTestServer(t, profile)

	body, contentType := multipartBody(t, "file", "grande.txt", strings.Repeat("a", 4<<10))
	req := httptest.NewRequest(http.MethodPost, "/convert", body)
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = -1
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected %d got %d: %s", http.StatusRequestEntityTooLarge, rr.Code, rr.Body.String())
	}
	if files := s.files(t); len(files) != 0 {
		t.Fatalf("expected no artifacts, got %v", files)
	}
}

func TestConvertUnsupportedContent(t *testing.T) {
	s := newTestServer(t, config.FullProfile())

	rr := s.upload(t, "quebrado.json", "{nope")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected %d got %d", http.StatusInternalServerError, rr.Code)
	}
	if body := decodeBody(t, rr); body["code"] != "CONVERSION" {
		t.Fatalf("unexpected body %v", body)
	}
	if files := s.files(t); len(files) != 0 {
		t.Fatalf("expected no artifacts, got %v", files)
	}
}

func TestDownloadNotFound(t *testing.T) {
	s := newTestServer(t, config.FullProfile())
	if _, err := s.store.Put(context.Background(), "abc_entrada.txt", strings.NewReader("segredo")); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{"/download/nada_converted.md", "/download/abc_entrada.txt", "/download/..%2Fetc_converted.md"} {
		rr := httptest.NewRecorder()
		s.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusNotFound {
			t.Fatalf("%s: expected %d got %d", path, http.StatusNotFound, rr.Code)
		}
		if body := decodeBody(t, rr); body["error"] == "" || body["code"] != "NOT_FOUND" {
			t.Fatalf("%s: unexpected body %v", path, body)
		}
	}
}

func TestDownloadKeepsPercentInName(t *testing.T) {
	s := newTestServer(t, config.FullProfile())
	if _, err := s.store.Put(context.Background(), "100%41_converted.md", strings.NewReader("cem")); err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/download/100%2541_converted.md", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected %d got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	if rr.Body.String() != "cem" {
		t.Fatalf("unexpected body %q", rr.Body.String())
	}
}

func TestCleanup(t *testing.T) {
	s := newTestServer(t, config.FullProfile())
	ctx := context.Background()
	for _, name := range []string{"velho_converted.md", "novo_converted.md"} {
		if _, err := s.store.Put(ctx, name, strings.NewReader("x")); err != nil {
			t.Fatal(err)
		}
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(filepath.Join(s.dir, "velho_converted.md"), old, old); err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/cleanup", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected %d got %d", http.StatusOK, rr.Code)
	}
	body := decodeBody(t, rr)
	if body["success"] != true || body["deleted"] != float64(1) || body["scanned"] != float64(2) {
		t.Fatalf("unexpected body %v", body)
	}
	if files := s.files(t); len(files) != 1 || files[0] != "novo_converted.md" {
		t.Fatalf("unexpected files %v", files)
	}

	rr = httptest.NewRecorder()
	s.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/cleanup?max_age=0s", nil))
	if body := decodeBody(t, rr); body["deleted"] != float64(1) {
		t.Fatalf("expected override to delete remaining file, got %v", body)
	}

	rr = httptest.NewRecorder()
	s.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/cleanup?max_age=ontem", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected %d got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestHealthReadyFormats(t *testing.T) {
	s := newTestServer(t, config.MinimalProfile())

	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	body := decodeBody(t, rr)
	if rr.Code != http.StatusOK || body["status"] != "ok" || body["profile"] != "minimal" || body["version"] != config.Version {
		t.Fatalf("unexpected health %d %v", rr.Code, body)
	}

	rr = httptest.NewRecorder()
	s.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected %d got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	s.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/formats", nil))
	body = decodeBody(t, rr)
	exts, ok := body["extensions"].([]any)
	if !ok || len(exts) != 7 {
		t.Fatalf("unexpected formats %v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, config.FullProfile())
	_ = s.upload(t, "a.txt", "x")

	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected %d got %d", http.StatusOK, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `conversor_conversions_total{outcome="ok"} 1`) {
		t.Fatal("expected conversion counter in exposition")
	}
}
