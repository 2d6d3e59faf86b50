package httpx

import (
	"log/slog"
	"net/http"

	"github.com/coursekit/admin-api/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Jobs         *service.JobService
	Courses      *service.CourseService
	Auth         *service.AuthService
	CookieDomain string
	Logger       *slog.Logger
}

// NewRouter creates and configures the HTTP router with logging and
// panic recovery applied to every route.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	registerJobRoutes(mux, &JobHandlers{Svc: services.Jobs}, services.Auth)
	registerCourseRoutes(mux, &CourseHandlers{Svc: services.Courses}, services.Auth)

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	if services.Auth != nil {
		registerAuthRoutes(mux, &AuthHandlers{
			Svc:          services.Auth,
			CookieDomain: services.CookieDomain,
			Logger:       logger,
		})
	}

	var handler http.Handler = mux
	handler = Recover(logger)(handler)
	handler = Logging(logger)(handler)
	return handler
}

// authWrap returns a no-op wrapper when auth is nil (tests, local tooling),
// otherwise RequireAuth.
func authWrap(auth *service.AuthService) func(http.Handler) http.Handler {
	if auth == nil {
		return func(h http.Handler) http.Handler { return h }
	}
	return RequireAuth(auth)
}

func registerJobRoutes(mux *http.ServeMux, h *JobHandlers, auth *service.AuthService) {
	wrap := authWrap(auth)
	mux.Handle("GET /api/admin/jobs", wrap(http.HandlerFunc(h.List)))
	mux.Handle("POST /api/admin/jobs", wrap(http.HandlerFunc(h.Create)))
	mux.Handle("DELETE /api/admin/jobs", wrap(http.HandlerFunc(h.Delete)))
}

func registerCourseRoutes(mux *http.ServeMux, h *CourseHandlers, auth *service.AuthService) {
	wrap := authWrap(auth)
	// Reads are public; mutations require an authenticated operator.
	mux.HandleFunc("GET /api/courses", h.List)
	mux.HandleFunc("GET /api/courses/{id}", h.GetByID)
	mux.Handle("POST /api/courses", wrap(http.HandlerFunc(h.Create)))
	mux.Handle("PUT /api/courses/{id}", wrap(http.HandlerFunc(h.Update)))
	mux.Handle("DELETE /api/courses/{id}", wrap(http.HandlerFunc(h.Delete)))
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("GET /auth/login", h.Login)
	mux.HandleFunc("GET /auth/callback", h.Callback)
	mux.HandleFunc("POST /auth/logout", h.Logout)
	mux.HandleFunc("GET /auth/status", h.Status)
}
