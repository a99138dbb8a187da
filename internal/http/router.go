package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/gestaozabele/conversor/internal/cache"
	"github.com/gestaozabele/conversor/internal/config"
	"github.com/gestaozabele/conversor/internal/conversion"
	"github.com/gestaozabele/conversor/internal/engine"
	httpmiddleware "github.com/gestaozabele/conversor/internal/http/middleware"
	"github.com/gestaozabele/conversor/internal/metrics"
	"github.com/gestaozabele/conversor/internal/retention"
	"github.com/gestaozabele/conversor/internal/storage"
)

// Deps reúne os serviços expostos pelo roteador.
type Deps struct {
	Service *conversion.Service
	Sweeper *retention.Sweeper
	Engine  engine.Engine
	Cache   cache.Cache
	Metrics *metrics.Metrics
}

type Handler struct {
	cfg     *config.Config
	service *conversion.Service
	sweeper *retention.Sweeper
	store   storage.Store
	engine  engine.Engine
	cache   cache.Cache
	metrics *metrics.Metrics
	limiter *httpmiddleware.RateLimiter
}

// NewRouter devolve roteador configurado.
func NewRouter(cfg *config.Config, deps Deps) (http.Handler, error) {
	if deps.Service == nil {
		return nil, errors.New("http: serviço de conversão obrigatório")
	}
	if deps.Sweeper == nil {
		return nil, errors.New("http: retenção obrigatória")
	}

	h := &Handler{
		cfg:     cfg,
		service: deps.Service,
		sweeper: deps.Sweeper,
		store:   deps.Service.Store(),
		engine:  deps.Engine,
		cache:   deps.Cache,
		metrics: deps.Metrics,
		limiter: httpmiddleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(httpmiddleware.Logging)
	r.Use(httpmiddleware.Recover)
	r.Use(httpmiddleware.CORS(cfg.AllowOrigins))

	r.Get("/", h.Index)
	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	r.Get("/formats", h.Formats)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	r.Group(func(limited chi.Router) {
		limited.Use(httpmiddleware.IPRateLimit(h.limiter))

		limited.Post("/convert", h.Convert)
		limited.Get("/download/{filename}", h.Download)
		limited.Post("/cleanup", h.Cleanup)
	})

	return r, nil
}

// Index descreve o serviço.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Conversor de documentos para Markdown",
		"status":  "working",
		"version": config.Version,
	})
}

// Health responde status simples.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"profile": h.cfg.Profile.Name,
		"version": config.Version,
	})
}

// Ready valida o armazenamento, o motor e o cache quando configurado.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{}
	failed := false
	record := func(name string, err error) {
		if err != nil {
			failed = true
			checks[name] = err.Error()
			return
		}
		checks[name] = "ok"
	}

	if pinger, ok := h.store.(storage.Pinger); ok {
		record("storage", pinger.Ping(ctx))
	}
	if h.engine != nil {
		record("engine", h.engine.Ping(ctx))
	}
	if h.cache != nil {
		record("redis", h.cache.Ping(ctx))
	}

	if failed {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
			"ready":  false,
			"checks": checks,
			"error":  "dependências indisponíveis",
			"code":   "INTERNAL",
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"ready": true, "checks": checks})
}

// Formats lista as extensões aceitas pelo perfil ativo.
func (h *Handler) Formats(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"profile":          h.cfg.Profile.Name,
		"extensions":       h.service.Formats().Extensions(),
		"max_upload_bytes": h.cfg.Profile.MaxUploadBytes,
	})
}
