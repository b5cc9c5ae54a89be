package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	auth "github.com/memoria-app/auth"
	"github.com/memoria-app/auth/metrics/export/prometheus"
	"github.com/memoria-app/auth/middleware"
)

// RefreshCookieName is the cookie carrying the opaque refresh credential.
const RefreshCookieName = "refresh_token"

// Server defines a public type used by auth APIs.
//
// Server instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Server struct {
	engine     *auth.Engine
	router     *mux.Router
	secure     bool
	refreshTTL time.Duration
}

// NewServer wires every route against the given engine. The refresh cookie
// Secure flag follows cfg.Production; refresh TTL follows cfg.JWT.RefreshTTL.
func NewServer(engine *auth.Engine, cfg auth.Config) *Server {
	s := &Server{
		engine:     engine,
		secure:     cfg.Production,
		refreshTTL: cfg.JWT.RefreshTTL,
	}

	r := mux.NewRouter()

	a := r.PathPrefix("/auth").Subrouter()
	a.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	a.HandleFunc("/signup", s.handleSignup).Methods(http.MethodPost)
	a.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)
	a.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)

	guard := middleware.Guard(engine)
	a.Handle("/me", guard(http.HandlerFunc(s.handleMe))).Methods(http.MethodGet)

	u := r.PathPrefix("/users/me").Subrouter()
	u.Handle("", guard(http.HandlerFunc(s.handleUpdateProfile))).Methods(http.MethodPatch)
	u.Handle("/password", guard(http.HandlerFunc(s.handleChangePassword))).Methods(http.MethodPatch)
	u.Handle("", guard(http.HandlerFunc(s.handleDeleteAccount))).Methods(http.MethodDelete)

	if cfg.Metrics.Enabled {
		exporter := prometheus.NewPrometheusExporter(engine)
		r.Handle("/metrics", exporter.Handler()).Methods(http.MethodGet)
	}

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router exposes the underlying router for callers that mount extra routes.
func (s *Server) Router() *mux.Router {
	return s.router
}

func (s *Server) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.refreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Server) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
	})
}
