package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/Gleipnir-Technology/bounce/debounce"
	"github.com/Gleipnir-Technology/bounce/video"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

//go:embed index.html
var indexHTML []byte

// searchSummary collects the searches made during one burst of typing.
type searchSummary struct {
	Count int
	Last  string
	User  string
}

type server struct {
	catalog *video.Catalog
	logger  zerolog.Logger
	summary *debounce.Debouncer[searchSummary]

	mu      sync.Mutex
	pending searchSummary
}

func newServer(ctx context.Context, catalog *video.Catalog, logger zerolog.Logger, quiet time.Duration, clock clockwork.Clock) *server {
	s := &server{
		catalog: catalog,
		logger:  logger,
	}
	s.summary = debounce.New(quiet, s.logSummary,
		debounce.WithClock(clock),
		debounce.WithContext(ctx),
		// only the burst summary reaches the log
		debounce.WithLogger(logger.Level(zerolog.InfoLevel).With().Str("component", "debounce").Logger()),
	)
	return s
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(hlog.NewHandler(s.logger))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(indexHTML)
	})
	r.Get("/api/search", s.handleSearch)
	return r
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	result := s.catalog.Search(q)

	s.mu.Lock()
	s.pending.Count++
	s.pending.Last = q
	s.pending.User = r.Header.Get("X-Bounce-User")
	summary := s.pending
	s.mu.Unlock()
	s.summary.Call(summary)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("encode search result")
	}
}

// logSummary writes one line per burst of searches instead of one per
// keystroke. The totals are read at fire time: a search that lands after the
// timer fired but before the lock is counted here, and its re-armed call
// finds nothing left to report.
func (s *server) logSummary(searchSummary) {
	s.mu.Lock()
	summary := s.pending
	s.pending = searchSummary{}
	s.mu.Unlock()
	if summary.Count == 0 {
		return
	}
	s.logger.Info().
		Int("searches", summary.Count).
		Str("last_query", summary.Last).
		Str("user", summary.User).
		Msg("search burst")
}
