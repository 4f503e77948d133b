package rpc

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"quarrychain/config"
	"quarrychain/core"
)

const maxRequestBytes = 2 << 20 // 2 MiB

// Server exposes the query facade and the transaction submission endpoint
// over HTTP. Framing is all that lives here; admission and state reads are
// the node's.
type Server struct {
	node   *core.Node
	logger *slog.Logger

	limit    config.RateLimit
	mu       sync.Mutex
	visitors map[string]*rate.Limiter
}

func NewServer(node *core.Node, limit config.RateLimit, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		node:     node,
		logger:   logger,
		limit:    limit,
		visitors: make(map[string]*rate.Limiter),
	}
}

// Router assembles the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v2", func(v2 chi.Router) {
		v2.With(s.submitRateLimit).Post("/transactions", s.handleSubmitTransaction)
		v2.Get("/accounts/{principal}", s.handleGetAccount)
		v2.Post("/map_entry/{address}/{contract}/{map}", s.handleGetMapEntry)
		v2.Get("/fees/transfer", s.handleGetFeeRate)
		v2.Get("/contracts/interface/{address}/{contract}", s.handleGetContractInterface)
		v2.Get("/contracts/source/{address}/{contract}", s.handleGetContractSource)
		v2.Post("/contracts/call-read/{address}/{contract}/{function}", s.handleCallReadOnly)
	})
	return r
}

// Start serves the router until the listener fails.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting HTTP server", "addr", addr)
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server.ListenAndServe()
}

func (s *Server) submitRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limit.SubmitPerMinute <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		s.mu.Lock()
		limiter, ok := s.visitors[host]
		if !ok {
			limiter = rate.NewLimiter(rate.Limit(s.limit.SubmitPerMinute/60), s.limit.SubmitBurst)
			s.visitors[host] = limiter
		}
		s.mu.Unlock()
		if !limiter.Allow() {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limited"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
