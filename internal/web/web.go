package web

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/evenwebb/penrice-calendar-scraper/internal/config"
	"github.com/evenwebb/penrice-calendar-scraper/internal/ics"
	appLog "github.com/evenwebb/penrice-calendar-scraper/internal/log"
	"github.com/evenwebb/penrice-calendar-scraper/internal/model"
)

const dateLayout = "2006-01-02"

// RefreshFunc regenerates the feed on disk. It backs POST /api/refresh.
type RefreshFunc func(ctx context.Context) error

// Server serves the generated calendar feed and a JSON view of it.
type Server struct {
	cfg *config.Config
	mux *http.ServeMux

	refresh   RefreshFunc
	refreshMu sync.Mutex

	// In-memory copy of the feed file, re-read only when its modification
	// time or size changes.
	feedMu    sync.RWMutex
	feedCache *feedCache
}

// feedCache holds the last read feed and the file state it was read at.
type feedCache struct {
	body    []byte
	events  []model.CalendarEvent
	modTime time.Time
	size    int64
}

// NewServer constructs a new Server. refresh may be nil, in which case
// /api/refresh answers 503.
func NewServer(cfg *config.Config, refresh RefreshFunc) *Server {
	s := &Server{
		cfg:     cfg,
		mux:     http.NewServeMux(),
		refresh: refresh,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// An empty username or password counts as disabled.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /health is always public.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="TermCal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer serves on cfg.Listen until ctx is canceled, then shuts down
// gracefully.
func StartServer(ctx context.Context, cfg *config.Config, refresh RefreshFunc) error {
	s := NewServer(cfg, refresh)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/calendar.ics", s.handleCalendar)
	s.mux.HandleFunc("/api/events", s.handleEvents)
	s.mux.HandleFunc("/api/refresh", s.handleRefresh)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// loadFeed returns the feed on disk, parsing it only when the file changed.
func (s *Server) loadFeed() (*feedCache, error) {
	path := s.cfg.Output.Path
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	s.feedMu.RLock()
	fc := s.feedCache
	s.feedMu.RUnlock()
	if fc != nil && fc.modTime.Equal(info.ModTime()) && fc.size == info.Size() {
		return fc, nil
	}

	body, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	events, err := ics.ParseFeed(body)
	if err != nil {
		return nil, err
	}

	fc = &feedCache{body: body, events: events, modTime: info.ModTime(), size: info.Size()}
	s.feedMu.Lock()
	s.feedCache = fc
	s.feedMu.Unlock()

	appLog.Debug("feed reloaded", "path", path, "events", len(events))
	return fc, nil
}

// handleCalendar serves the generated iCalendar file. Conditional requests
// (If-Modified-Since) are answered by http.ServeContent.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	fc, err := s.loadFeed()
	if err != nil {
		s.writeFeedError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="`+filepath.Base(s.cfg.Output.Path)+`"`)
	http.ServeContent(w, r, filepath.Base(s.cfg.Output.Path), fc.modTime, bytes.NewReader(fc.body))
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Events      []eventDTO `json:"events"`
	Count       int        `json:"count"`
	GeneratedAt time.Time  `json:"generated_at"`
}

// eventDTO is a JSON-friendly view of one feed event. End is inclusive.
type eventDTO struct {
	UID         string `json:"uid"`
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Days        int    `json:"days"`
}

// handleEvents returns the events of the current feed.
//
// GET /api/events?from=2024-09-01&limit=10
//   - from:  only events ending on or after this date
//   - limit: at most this many events (default all)
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var from time.Time
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
			return
		}
		from = t
	}
	limit := parseIntDefault(q.Get("limit"), 0)
	if limit < 0 {
		limit = 0
	}

	fc, err := s.loadFeed()
	if err != nil {
		s.writeFeedError(w, err)
		return
	}

	dtos := make([]eventDTO, 0, len(fc.events))
	for _, ev := range fc.events {
		rng := ev.Inclusive()
		if !from.IsZero() && rng.End.Before(from) {
			continue
		}
		dtos = append(dtos, eventDTO{
			UID:         ev.UID,
			Summary:     ev.Summary,
			Description: ev.Description,
			Start:       rng.Start.Format(dateLayout),
			End:         rng.End.Format(dateLayout),
			Days:        rng.Days(),
		})
		if limit > 0 && len(dtos) == limit {
			break
		}
	}

	writeJSON(w, http.StatusOK, eventsResponse{
		Events:      dtos,
		Count:       len(dtos),
		GeneratedAt: fc.modTime.UTC(),
	})
}

// handleRefresh runs one scrape cycle on demand. Only one refresh runs at a
// time; a concurrent request gets 409.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "use POST")
		return
	}
	if s.refresh == nil {
		writeError(w, http.StatusServiceUnavailable, "refresh not available")
		return
	}
	if !s.refreshMu.TryLock() {
		writeError(w, http.StatusConflict, "refresh already running")
		return
	}
	defer s.refreshMu.Unlock()

	start := time.Now()
	if err := s.refresh(r.Context()); err != nil {
		appLog.Error("api refresh failed", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

func (s *Server) writeFeedError(w http.ResponseWriter, err error) {
	if errors.Is(err, fs.ErrNotExist) {
		writeError(w, http.StatusNotFound, "calendar has not been generated yet")
		return
	}
	appLog.Error("failed to load feed", err, "path", s.cfg.Output.Path)
	writeError(w, http.StatusInternalServerError, "failed to load calendar")
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
