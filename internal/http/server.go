package http

import (
	"context"
	"crypto/rand"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/sessions"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kakeibo/internal/auth"
	"kakeibo/internal/backend"
	"kakeibo/internal/cache"
	"kakeibo/internal/config"
	"kakeibo/internal/log"
	"kakeibo/internal/middleware/ratelimit"
	"kakeibo/internal/middleware/security"
	"kakeibo/internal/middleware/trace"
	"kakeibo/internal/services"
	"kakeibo/internal/session"
	appweb "kakeibo/web"
)

const (
	cookieName        = "kakeibo"
	cookieSessionKey  = "sid"
	sweepInterval     = time.Minute
	cacheCleanup      = 5 * time.Minute
	remoteCallTimeout = 15 * time.Second
)

// Deps are the collaborators the server is built from. Queue, Recorder and
// Publisher may be nil.
type Deps struct {
	Config    *config.Config
	Auth      *auth.Loader
	Sessions  *session.Store
	Workbooks backend.WorkbookSource
	Queue     *services.WriteQueue
	Recorder  services.EntryRecorder
	Publisher services.EventPublisher
	Checks    map[string]func(ctx context.Context) error
	Clock     clockwork.Clock
	Logger    *log.Logger
}

type Server struct {
	http.Server

	deps      Deps
	templates *template.Template
	cookies   *sessions.CookieStore
	documents *cache.DocumentCache
	caches    *cache.Manager
	limiter   *ratelimit.Limiter
	ips       *security.IPExtractor
	started   time.Time

	stopBackground context.CancelFunc
	shutdownOnce   sync.Once
}

// NewServer parses templates, mounts every route and starts the background
// sweeps. Shutdown stops them.
func NewServer(addr string, deps Deps) (*Server, error) {
	if deps.Config == nil || deps.Auth == nil || deps.Sessions == nil || deps.Workbooks == nil {
		return nil, fmt.Errorf("new server: config, auth, sessions and workbooks are required")
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Logger == nil {
		deps.Logger = log.New(log.DefaultConfig())
	}

	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	key, err := cookieKey(deps.Config.SessionSecret)
	if err != nil {
		return nil, err
	}
	cookies := sessions.NewCookieStore(key)
	// A browser-session cookie: idle expiry is enforced by the session store,
	// which slides on every request.
	cookies.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   deps.Config.SecureCookies(),
		// Lax so the cookie survives the top-level redirect back from Google.
		SameSite: http.SameSiteLaxMode,
	}

	mux := http.NewServeMux()
	s := &Server{
		deps:      deps,
		templates: tmpl,
		cookies:   cookies,
		documents: cache.NewDocumentCache(1000, deps.Config.DocumentCacheTTL, deps.Clock),
		caches:    cache.NewManager(deps.Clock),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: deps.Config.RateLimitPerMinute,
			Clock:             deps.Clock,
		}),
		ips:     security.NewIPExtractor(),
		started: deps.Clock.Now(),
	}
	s.caches.Register(s.documents)
	deps.Sessions.OnEvict(s.documents.Forget)

	s.routes(mux)
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	bg, cancel := context.WithCancel(context.Background())
	s.stopBackground = cancel
	s.caches.StartCleanup(bg, cacheCleanup)
	go s.limiter.Run(bg)
	go deps.Sessions.Run(bg, sweepInterval)

	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) {
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		slog.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	page := func(h http.HandlerFunc) http.Handler { return security.NoStore(h) }
	post := func(h http.HandlerFunc) http.Handler {
		return s.limiter.Middleware(s.ips.ClientIP, nil)(security.NoStore(h))
	}

	mux.Handle("GET /{$}", page(s.handleIndex))
	mux.Handle("GET /auth/login", page(s.handleLogin))
	mux.Handle("GET /auth/callback", page(s.handleCallback))
	mux.Handle("POST /auth/logout", post(s.handleLogout))
	mux.Handle("POST /documents/select", post(s.handleSelectDocument))
	mux.Handle("POST /regions/select", post(s.handleSelectRegion))
	mux.Handle("POST /entries", post(s.handleCreateEntry))
	mux.Handle("POST /entries/field", page(s.handleEditField))
	mux.Handle("GET /entries/confirm", page(s.handleConfirm))
}

// middleware wraps the mux in tracing, request logging and security headers.
func (s *Server) middleware(next http.Handler) http.Handler {
	h := security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(next)
	h = log.Middleware(s.deps.Logger, trace.RequestIDFromRequest)(h)
	return trace.NewMiddleware(s.ips.ClientIP, s.deps.Clock).Middleware(h)
}

// Shutdown stops the background sweeps and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.stopBackground()
		s.caches.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func parseTemplates() (*template.Template, error) {
	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return t, nil
}

// cookieKey returns the cookie signing key. Without a configured secret a
// random key is used, so cookies do not survive a restart.
func cookieKey(secret string) ([]byte, error) {
	if secret != "" {
		return []byte(secret), nil
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate cookie key: %w", err)
	}
	return key, nil
}
