// Package httpapi provides the HTTP transport for the aviation assistant
// (§6): a thin chi router over the agentic loop, grounded directly on
// internal/api's EnrichmentServer shape — same middleware stack, same
// writeJSON/writeError helpers, same Router()-for-embedding pattern.
package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/flightline/aviation-assistant/internal/agent"
	"github.com/flightline/aviation-assistant/internal/audit"
)

// Server wires the agent loop behind the §6 HTTP contract.
type Server struct {
	agent           *agent.Agent
	sink            audit.Sink
	port            int
	pub             *agent.NatsPublisher
	requestDeadline time.Duration
}

// Config configures a Server. RequestDeadline sets the chi
// middleware.Timeout ceiling (§6 REQUEST_DEADLINE_MS) — it should match
// the Agent's own RequestDeadline, which is what actually bounds Run/
// RunStream; the middleware is a second line of defense for a handler that
// never returns from the agent call at all. 0 falls back to 30s.
type Config struct {
	Port            int
	RequestDeadline time.Duration
}

// NewServer builds an HTTP server over agt. sink is used only for the
// supplemented debug audit-lookup endpoint, and may be nil to disable it.
func NewServer(agt *agent.Agent, sink audit.Sink, pub *agent.NatsPublisher, cfg Config) *Server {
	deadline := cfg.RequestDeadline
	if deadline <= 0 {
		deadline = 30 * time.Second
	}
	return &Server{agent: agt, sink: sink, port: cfg.Port, pub: pub, requestDeadline: deadline}
}

// askRequest is the §6 request shape.
type askRequest struct {
	Query    string `json:"query"`
	Location string `json:"location,omitempty"`
	UserID   string `json:"user_id,omitempty"`
}

// Router returns the configured chi router for embedding or standalone use.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(s.requestDeadline))
	r.Use(corsMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/ask", s.handleAsk)
		r.Post("/ask/stream", s.handleAskStream)
		r.Get("/audit/{trace_id}", s.handleAuditLookup)
	})

	return r
}

// Run starts the HTTP server on Config.Port.
func (s *Server) Run() error {
	addr := ":" + strconv.Itoa(s.port)
	log.Printf("aviation-assistantd starting at http://localhost%s", addr)
	return http.ListenAndServe(addr, s.Router())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	resp, err := s.agent.Run(r.Context(), req.Query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAskStream streams line-delimited JSON events (§6 streaming
// response) as the agent loop produces them.
func (s *Server) handleAskStream(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	for ev := range s.agent.RunStream(r.Context(), req.Query, s.pub) {
		if err := enc.Encode(ev); err != nil {
			return
		}
		flusher.Flush()
	}
}

// handleAuditLookup is the supplemented debug endpoint: it tails the
// file-sink JSONL log for the given trace id. Only the file-sink backend
// supports lookup; a ClickHouse-backed sink reports 501.
func (s *Server) handleAuditLookup(w http.ResponseWriter, r *http.Request) {
	traceID := chi.URLParam(r, "trace_id")
	finder, ok := s.sink.(interface {
		FindByTraceID(string) (audit.Record, bool, error)
	})
	if !ok {
		writeError(w, http.StatusNotImplemented, "audit lookup is only available with the file sink backend")
		return
	}

	rec, found, err := finder.FindByTraceID(traceID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "no audit record for that trace id")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
