package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/promptdeck/promptdeck/internal/api/handlers"
	"github.com/promptdeck/promptdeck/internal/api/middleware"
	"github.com/promptdeck/promptdeck/internal/assembler"
	"github.com/promptdeck/promptdeck/internal/auth"
	"github.com/promptdeck/promptdeck/internal/cache"
	"github.com/promptdeck/promptdeck/internal/config"
	"github.com/promptdeck/promptdeck/internal/guardrail"
	"github.com/promptdeck/promptdeck/internal/llm"
	"github.com/promptdeck/promptdeck/internal/memory"
	"github.com/promptdeck/promptdeck/internal/pipeline"
	"github.com/promptdeck/promptdeck/internal/queue"
	"github.com/promptdeck/promptdeck/internal/sentiment"
	"github.com/promptdeck/promptdeck/internal/template"
	"github.com/promptdeck/promptdeck/internal/tenant"
)

type Router struct {
	mux    *chi.Mux
	db     *pgxpool.Pool
	redis  *redis.Client
	cfg    *config.Config
	ts     *tenant.Service
	jwt    *auth.JWTMiddleware
	apikey *auth.APIKeyMiddleware
	llmGW  llm.Gateway
}

func NewRouter(db *pgxpool.Pool, rdb *redis.Client, cfg *config.Config) *Router {
	ts := tenant.NewService(db)
	return &Router{
		mux:    chi.NewRouter(),
		db:     db,
		redis:  rdb,
		cfg:    cfg,
		ts:     ts,
		jwt:    auth.NewJWTMiddleware(cfg.Auth.JWTSecret, ts),
		apikey: auth.NewAPIKeyMiddleware(db, cfg.Auth.APIKeyHeader, ts),
		llmGW:  llm.NewGateway(cfg.LLM),
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.cfg.Server.CORSOrigins, rt.cfg.Auth.APIKeyHeader))

	rl := middleware.NewRateLimiter(rt.cfg.Server)
	r.Use(rl.Limit)

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.db, rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	// Services
	var redisCache *cache.Cache
	if rt.redis != nil {
		redisCache = cache.NewCache(rt.redis)
	}
	templateStore := template.NewStore(rt.db, redisCache, rt.cfg.Prompt.DefaultTemplateName)
	guardrailStore := guardrail.NewStore(rt.db)
	memoryStore := memory.NewStore(rt.db)
	ctxBuilder := assembler.New(memoryStore, memoryStore, memoryStore)

	var affect *sentiment.Provider
	if redisCache != nil && rt.cfg.Sentiment.Enabled {
		affect = sentiment.NewProvider(redisCache, rt.cfg.Sentiment.FetchTimeout)
	}

	var queueClient *queue.Client
	if rt.cfg.Sentiment.Enabled {
		queueClient = queue.NewClient(rt.cfg.Redis)
	}

	asm := pipeline.New(templateStore, guardrailStore, ctxBuilder, providerOrNil(affect))

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Auth: API key first, JWT for everything else
		r.Use(rt.apikey.Authenticate)
		r.Use(rt.jwt.Authenticate)

		tmplH := handlers.NewTemplateHandler(templateStore)
		r.Route("/templates", func(r chi.Router) {
			r.Post("/", tmplH.Create)
			r.Get("/", tmplH.List)
			r.Get("/shared", tmplH.ListShared)
			r.Get("/name/{name}", tmplH.GetByName)
			r.Route("/{templateID}", func(r chi.Router) {
				r.Get("/", tmplH.Get)
				r.Put("/", tmplH.Update)
				r.Delete("/", tmplH.Delete)
				r.Get("/history", tmplH.History)
				r.Post("/rollback", tmplH.Rollback)
				r.Post("/clone", tmplH.Clone)
				r.Post("/share", tmplH.SetShareable)
				r.Post("/activate", tmplH.Activate)
				r.Post("/deactivate", tmplH.Deactivate)
			})
		})

		grH := handlers.NewGuardrailHandler(guardrailStore)
		r.Route("/guardrails", func(r chi.Router) {
			r.Post("/", grH.Create)
			r.Get("/", grH.List)
			r.Get("/presets", grH.Presets)
			r.Route("/{configID}", func(r chi.Router) {
				r.Get("/", grH.Get)
				r.Put("/", grH.Update)
				r.Delete("/", grH.Delete)
			})
		})

		memH := handlers.NewMemoryHandler(memoryStore)
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/history", memH.History)
			r.Delete("/history", memH.ClearHistory)
			r.Get("/memory", memH.AllMemory)
			r.Put("/memory/{key}", memH.SetMemory)
			r.Delete("/memory/{key}", memH.DeleteMemory)
			r.Get("/state", memH.GetState)
			r.Put("/state", memH.SetState)
		})

		asmH := handlers.NewAssembleHandler(asm, rt.llmGW, memoryStore, queueClient, rt.cfg)
		r.Post("/assemble", asmH.Assemble)
		r.Post("/chat", asmH.Chat)

		llmH := handlers.NewLLMHandler(rt.llmGW)
		r.Get("/llm/models", llmH.Models)
	})

	return r
}

// providerOrNil keeps a typed-nil *sentiment.Provider from becoming a
// non-nil AffectProvider interface.
func providerOrNil(p *sentiment.Provider) pipeline.AffectProvider {
	if p == nil {
		return nil
	}
	return p
}
