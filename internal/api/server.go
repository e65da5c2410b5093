package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/BTreeMap/Lumi/internal/flow"
	"github.com/BTreeMap/Lumi/internal/messaging"
	"github.com/BTreeMap/Lumi/internal/responses"
	"github.com/BTreeMap/Lumi/internal/store"
)

const (
	// requestIDHeader carries the correlation ID echoed on every response.
	requestIDHeader = "X-Request-ID"
	// defaultHistoryPage is used by GET /sessions/{id}/history without ?limit.
	defaultHistoryPage = 20
	shutdownTimeout    = 10 * time.Second
)

// Server exposes the chatbot and its admin surface over HTTP.
type Server struct {
	router   *flow.Router
	sweep    *flow.FollowUpSweep
	locks    *flow.SenderLocks
	sessions store.SessionStore
	history  store.HistoryStore
	patterns *responses.Service
	twilio   *messaging.TwilioService
}

// NewServer wires the HTTP handlers. twilio may be nil when the WhatsApp
// transport is used, in which case the webhook route answers 404.
func NewServer(router *flow.Router, sweep *flow.FollowUpSweep, locks *flow.SenderLocks, st store.Store, patterns *responses.Service, twilio *messaging.TwilioService) *Server {
	return &Server{
		router:   router,
		sweep:    sweep,
		locks:    locks,
		sessions: st,
		history:  st,
		patterns: patterns,
		twilio:   twilio,
	}
}

// Handler returns the routed and instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.healthHandler)

	mux.HandleFunc("POST /chatbot", s.chatbotHandler)
	mux.HandleFunc("POST /chatbot/disable-support", s.disableSupportHandler)

	mux.HandleFunc("GET /sessions", s.listSessionsHandler)
	mux.HandleFunc("GET /sessions/{id}", s.getSessionHandler)
	mux.HandleFunc("GET /sessions/{id}/history", s.historyHandler)

	mux.HandleFunc("GET /responses", s.listPatternsHandler)
	mux.HandleFunc("POST /responses", s.createPatternHandler)
	mux.HandleFunc("POST /responses/import", s.importPatternsHandler)
	mux.HandleFunc("PUT /responses/{id}", s.updatePatternHandler)
	mux.HandleFunc("DELETE /responses/{id}", s.deletePatternHandler)

	mux.HandleFunc("POST /followups/run", s.runFollowUpsHandler)

	if s.twilio != nil {
		mux.HandleFunc("POST /webhook/twilio", s.twilio.TwilioWebhookHandler)
	}
	return withRequestLogging(mux)
}

// statusRecorder captures the status code for access logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		slog.Debug("Server.request", "request_id", id, "method", r.Method, "path", r.URL.Path,
			"status", rec.status, "duration", time.Since(start))
	})
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.ListenAndServe: listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	slog.Info("Server.ListenAndServe: stopped")
	return nil
}
