package http

import (
	"errors"
	"net/http"
	"time"

	"quicksend/internal/authz"
	"quicksend/internal/domain"
	"quicksend/internal/httpx"
	"quicksend/internal/jwtsigner"
	"quicksend/internal/notify"
	obsmw "quicksend/internal/observability/middleware"
	"quicksend/internal/service"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Config struct {
	CORSOrigins    []string
	RateLimit      int
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

type Deps struct {
	Service *service.Service
	Auth    *authz.Authenticator
	Hub     *notify.Hub
	Tokens  *notify.TokenStore
	Signer  *jwtsigner.Signer
}

func NewRouter(cfg Config, d Deps) http.Handler {
	h := &handlers{svc: d.Service, hub: d.Hub, tokens: d.Tokens, signer: d.Signer}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(obsmw.WithRequestAndTrace)
	r.Use(chimw.Recoverer)
	r.Use(obsmw.WithMetrics)
	r.Use(httpx.LogRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   originsOrAll(cfg.CORSOrigins),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Content-Encoding", "Date", "Digest", "X-Request-Id"},
		ExposedHeaders:   []string{"WWW-Authenticate", "X-Request-Id", "X-Trace-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if cfg.RateLimit > 0 {
		r.Use(httprate.LimitByIP(cfg.RateLimit, time.Minute))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Long-lived; kept outside the timeout and compression group.
	r.Get("/socket/ws", h.socketStream)

	r.Group(func(r chi.Router) {
		if cfg.RequestTimeout > 0 {
			r.Use(chimw.Timeout(cfg.RequestTimeout))
		}
		r.Use(chimw.Compress(5, "application/json"))
		r.Use(httpx.Decompress)
		if cfg.MaxBodyBytes > 0 {
			r.Use(httpx.LimitBody(cfg.MaxBodyBytes))
		}

		r.Post("/user/create", h.createUser)
		r.With(d.Auth.Require(authz.SchemeBasic)).Post("/user/password", h.changePassword)
		r.With(d.Auth.Require(authz.SchemeSignature)).Get("/user/lookup/{username}", h.lookupUser)

		r.Route("/devices", func(r chi.Router) {
			r.With(d.Auth.Require(authz.SchemeBasic)).Post("/add", h.addDevice)
			r.Group(func(r chi.Router) {
				r.Use(d.Auth.Require(authz.SchemeSignature))
				r.Post("/remove", h.removeDevice)
				r.Get("/list", h.listDevices)
			})
		})

		r.Route("/messages", func(r chi.Router) {
			r.Use(d.Auth.Require(authz.SchemeSignature))
			r.Get("/targets/{userId}", h.targets)
			r.Post("/send", h.send)
			r.Get("/poll", h.poll)
			r.Post("/clear", h.clear)
		})

		r.With(d.Auth.Require(authz.SchemeSignature)).Get("/socket", h.socketToken)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return r
}

type handlers struct {
	svc    *service.Service
	hub    *notify.Hub
	tokens *notify.TokenStore
	signer *jwtsigner.Signer
}

// writeServiceError maps service errors onto the response envelope. Anything
// unexpected is logged and hidden behind a generic message.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	log := obsmw.Logger(r.Context())
	switch {
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, service.ErrNotFound), errors.Is(err, httpx.ErrBadBody):
		log.Warn(op+" rejected", "error", err)
		httpx.WriteError(w, http.StatusBadRequest, clientMessage(err))
	case errors.Is(err, service.ErrUnauthorized):
		log.Warn(op+" unauthorized", "error", err)
		httpx.WriteError(w, http.StatusUnauthorized, "Unauthorized")
	default:
		log.Error(op+" failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Unexpected error")
	}
}

// clientMessage strips the sentinel prefix added by fmt.Errorf("%w: ...").
func clientMessage(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{service.ErrInvalidRequest, service.ErrNotFound} {
		prefix := sentinel.Error() + ": "
		if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
			return msg[len(prefix):]
		}
	}
	return msg
}

func principal(w http.ResponseWriter, r *http.Request) (p domain.Principal, ok bool) {
	p, ok = authz.PrincipalFrom(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "Unauthorized")
	}
	return p, ok
}

func originsOrAll(in []string) []string {
	if len(in) == 0 {
		return []string{"*"}
	}
	return in
}
