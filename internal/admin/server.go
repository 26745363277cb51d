package admin

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"sheetbridge.dev/internal/errs"
	"sheetbridge.dev/internal/reconcile"
	"sheetbridge.dev/internal/scraper"
)

type worldControl interface {
	LaunchWorld(ctx context.Context, worldID string) error
	ShutdownWorld(ctx context.Context) error
}

// Server is the admin-only listener. It binds to its own address and every
// route requires the configured admin key, so it never shares exposure with
// the player-facing API.
type Server struct {
	key      string
	dataRoot string
	host     worldControl
	cache    *Cache
	snapshot func() *reconcile.Snapshot
	log      *log.Logger
}

func NewServer(key, dataRoot string, host worldControl, cache *Cache, snapshot func() *reconcile.Snapshot, logger *log.Logger) *Server {
	return &Server{
		key:      key,
		dataRoot: dataRoot,
		host:     host,
		cache:    cache,
		snapshot: snapshot,
		log:      logger,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /admin/v1/status", s.auth(s.handleStatus))
	mux.HandleFunc("GET /admin/v1/worlds", s.auth(s.handleWorlds))
	mux.HandleFunc("POST /admin/v1/world/launch", s.auth(s.handleLaunch))
	mux.HandleFunc("POST /admin/v1/world/shutdown", s.auth(s.handleShutdown))
	mux.HandleFunc("POST /admin/v1/setup/scrape", s.auth(s.handleScrape))
	mux.HandleFunc("GET /admin/v1/cache", s.auth(s.handleCacheList))
	mux.HandleFunc("DELETE /admin/v1/cache", s.auth(s.handleCachePurge))
	return mux
}

func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.key == "" || r.Header.Get("X-Admin-Key") != s.key {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeErr(w http.ResponseWriter, err error) {
	writeJSON(w, errs.HTTPStatus(err), map[string]any{"success": false, "error": err.Error()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) handleWorlds(w http.ResponseWriter, r *http.Request) {
	worlds, err := scraper.Discover(s.dataRoot)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, worlds)
}

func (s *Server) handleLaunch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		World string `json:"world"`
	}
	body, _ := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err := json.Unmarshal(body, &req); err != nil || req.World == "" {
		s.writeErr(w, errs.E(errs.Validation, "launch requires a world id"))
		return
	}
	if err := s.host.LaunchWorld(r.Context(), req.World); err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if err := s.host.ShutdownWorld(r.Context()); err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleScrape runs an offline scrape of either one world (by path) or every
// world under the data root, caching each record.
func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	body, _ := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	_ = json.Unmarshal(body, &req)

	var paths []string
	if req.Path != "" {
		paths = []string{req.Path}
	} else {
		worlds, err := scraper.Discover(s.dataRoot)
		if err != nil {
			s.writeErr(w, err)
			return
		}
		for _, wld := range worlds {
			paths = append(paths, wld.Path)
		}
	}

	var records []*scraper.WorldRecord
	for _, p := range paths {
		rec, err := scraper.Scrape(p)
		if err != nil {
			if s.log != nil {
				s.log.Printf("scrape %s: %v", p, err)
			}
			continue
		}
		s.cache.Put(rec)
		records = append(records, rec)
	}
	if len(records) == 0 {
		s.writeErr(w, errs.E(errs.NotFound, "nothing scraped"))
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleCacheList(w http.ResponseWriter, r *http.Request) {
	list, err := s.cache.List()
	if err != nil {
		s.writeErr(w, err)
		return
	}
	if list == nil {
		list = []CachedWorld{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCachePurge(w http.ResponseWriter, r *http.Request) {
	if err := s.cache.Purge(); err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
