package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func NewRouter(e Env) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if e.Cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(RequestLogger(e.log()))
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware(e.Metrics))
	r.Use(middleware.Timeout(30 * time.Second))

	origins := e.Cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: !allowsAny(origins),
		MaxAge:           300,
	}))

	r.Get("/", e.Index)
	r.Get("/analyzer.js", e.AnalyzerScript)
	r.Get("/healthz", e.Healthz)
	r.Get("/readyz", e.Readyz)

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", e.CreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Post("/events", e.RecordEvents)
			r.Post("/peer-ip", e.PeerIP)
			r.Get("/analysis", e.Analysis)
			r.Get("/verdict", e.Verdict)
			r.Delete("/", e.DeleteSession)
		})
	})

	r.Route("/api/ingredients", func(r chi.Router) {
		r.Get("/", e.ListIngredients)
		r.Post("/", e.CreateIngredient)
		r.Get("/{id}", e.GetIngredient)
		r.Put("/{id}", e.UpdateIngredient)
		r.Delete("/{id}", e.DeleteIngredient)
	})

	return r
}

// allowsAny reports whether origins contains the wildcard; browsers reject
// credentialed responses with a wildcard origin.
func allowsAny(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
