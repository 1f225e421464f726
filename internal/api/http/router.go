package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	auth "github.com/mind-engage/quiztab/internal/auth/middleware"
	"github.com/mind-engage/quiztab/internal/bank"
	"github.com/mind-engage/quiztab/internal/rbac"
	"github.com/mind-engage/quiztab/internal/storage"
)

// Deps wires the router.
type Deps struct {
	Bank            Bank
	Auth            *auth.AuthService
	Blobs           storage.BlobStore // optional; enables /packs/raw
	EnableLocalAuth bool
	CORSOrigins     []string
	GradeLatency    time.Duration
	// Ready checks back /readyz (database ping, cache ping).
	Ready []func(context.Context) error
}

func NewRouter(d Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if d.EnableLocalAuth {
		r.Post("/auth/login", auth.LoginHandler(d.Auth))
	}

	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(d.Auth))

		pr.With(rbac.Require(rbac.QuestionView)).
			Get("/questions", CatalogHandler(d.Bank))
		pr.With(rbac.Require(rbac.QuestionInstantiate)).
			Post("/questions/{id}/instantiate", InstantiateHandler(d.Bank))
		pr.With(rbac.Require(rbac.QuestionGrade)).
			Post("/questions/{id}/grade", GradeHandler(d.Bank, d.GradeLatency))
		pr.With(rbac.Require(rbac.QuestionImport)).
			Post("/questions/import", ImportHandler(d.Bank))
		pr.With(rbac.Require(rbac.QuestionExport)).
			Get("/questions/export", ExportHandler(d.Bank, bank.DefaultExportSchema))
		pr.With(rbac.Require(rbac.QuestionExport)).
			Get("/packs/export", ExportHandler(d.Bank, DefaultPackSchema))
		if d.Blobs != nil {
			pr.With(rbac.Require(rbac.QuestionExport)).
				Get("/packs/raw/*", PackArchiveHandler(d.Blobs))
		}

		pr.With(rbac.Require(rbac.AttemptCreate)).
			Post("/attempts", CreateAttemptHandler(d.Bank))
		pr.With(rbac.RequireAny(rbac.AttemptViewOwn, rbac.AttemptViewAll)).
			Get("/attempts", ListAttemptsHandler(d.Bank))
		pr.With(rbac.RequireAny(rbac.AttemptViewOwn, rbac.AttemptViewAll)).
			Get("/attempts/export.xlsx", ExportAttemptsXLSXHandler(d.Bank))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		for _, check := range d.Ready {
			if err := check(r.Context()); err != nil {
				http.Error(w, "not ready: "+err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	return r
}
