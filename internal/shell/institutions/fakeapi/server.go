// Package fakeapi is an in-memory stand-in for the topology institutions
// backend, used by tests across the shell and the CLI. It mirrors the
// backend's routes, status codes and error body shapes.
package fakeapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/osg-htc/topology-institutions-admin/internal/core/domain"
)

// IPEDSRecord is what the fake derives from a known unit ID.
type IPEDSRecord struct {
	Longitude domain.Coordinate
	Latitude  domain.Coordinate
	Metadata  domain.IPEDSMetadata
}

// Server is a fake backend. All methods are safe for concurrent use.
type Server struct {
	mu       sync.Mutex
	records  []domain.Institution
	ipeds    map[string]IPEDSRecord
	requests map[string]int
	nextID   int

	// AckOnly makes POST answer with "ok" instead of the stored record.
	AckOnly bool

	router chi.Router
}

// New creates a fake seeded with records.
func New(seed ...domain.Institution) *Server {
	s := &Server{
		records:  append([]domain.Institution(nil), seed...),
		ipeds:    map[string]IPEDSRecord{},
		requests: map[string]int{},
	}

	r := chi.NewRouter()
	r.Use(s.count)
	r.Get("/institution_ids", s.handleList)
	r.Post("/institutions", s.handleCreate)
	r.Route("/institutions/{id}", func(r chi.Router) {
		r.Get("/", s.handleGet)
		r.Put("/", s.handleUpdate)
		r.Delete("/", s.handleDelete)
	})
	s.router = r
	return s
}

// Start serves the fake on a loopback listener. Close the returned server
// when done.
func (s *Server) Start() *httptest.Server {
	return httptest.NewServer(s)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// AddIPEDS registers data the fake derives for a unit ID.
func (s *Server) AddIPEDS(unitID string, rec IPEDSRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ipeds[unitID] = rec
}

// Records returns a copy of the stored records.
func (s *Server) Records() []domain.Institution {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Institution(nil), s.records...)
}

// Requests returns how many requests were made with method, or with any
// method when method is "".
func (s *Server) Requests(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if method == "" {
		total := 0
		for _, n := range s.requests {
			total += n
		}
		return total
	}
	return s.requests[method]
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests[r.Method]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Records())
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	shortID := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(shortID)
	if i < 0 {
		writeDetail(w, http.StatusNotFound, fmt.Sprintf("No institution found with id %s", shortID))
		return
	}
	writeJSON(w, http.StatusOK, s.records[i])
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.decode(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if inst.ID == "" {
		s.nextID++
		inst.ID = fmt.Sprintf("%sfake%08d", domain.OSGIDPrefix, s.nextID)
	} else if s.indexOf(domain.StripPrefix(inst.ID)) >= 0 {
		writeDetail(w, http.StatusBadRequest, fmt.Sprintf("Institution with id %s already exists", inst.ID))
		return
	}
	if !s.applyIPEDS(w, &inst) {
		return
	}
	s.records = append(s.records, inst)

	if s.AckOnly {
		writeJSON(w, http.StatusOK, "ok")
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	shortID := chi.URLParam(r, "id")
	inst, ok := s.decode(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(shortID)
	if i < 0 {
		writeDetail(w, http.StatusNotFound, fmt.Sprintf("No institution found with id %s", shortID))
		return
	}
	inst.ID = s.records[i].ID
	if !s.applyIPEDS(w, &inst) {
		return
	}
	s.records[i] = inst
	writeJSON(w, http.StatusOK, "ok")
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	shortID := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(shortID)
	if i < 0 {
		writeDetail(w, http.StatusNotFound, fmt.Sprintf("No institution found with id %s", shortID))
		return
	}
	s.records = append(s.records[:i], s.records[i+1:]...)
	writeJSON(w, http.StatusOK, "ok")
}

// =============================================================================
// Helpers
// =============================================================================

// decode parses the body and applies the backend's model checks, answering
// 422 with a list detail the way request validation does.
func (s *Server) decode(w http.ResponseWriter, r *http.Request) (domain.Institution, bool) {
	var inst domain.Institution
	if err := json.NewDecoder(r.Body).Decode(&inst); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]any{{"loc": []string{"body"}, "msg": "JSON decode error", "type": "json_invalid"}},
		})
		return inst, false
	}

	var msgs []map[string]any
	if inst.Name == "" {
		msgs = append(msgs, map[string]any{"loc": []string{"body", "name"}, "msg": "Assertion failed, Name must be non-empty"})
	}
	if inst.ID != "" && !strings.HasPrefix(inst.ID, domain.OSGIDPrefix) {
		msgs = append(msgs, map[string]any{"loc": []string{"body"}, "msg": fmt.Sprintf("Assertion failed, OSG ID must start with '%s'", domain.OSGIDPrefix)})
	}
	if inst.RORID != "" && !strings.HasPrefix(inst.RORID, domain.RORIDPrefix) {
		msgs = append(msgs, map[string]any{"loc": []string{"body"}, "msg": fmt.Sprintf("Assertion failed, ROR ID must be empty or start with '%s'", domain.RORIDPrefix)})
	}
	if len(msgs) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": msgs})
		return inst, false
	}
	return inst, true
}

// applyIPEDS fills coordinates and metadata from a known unit ID.
// Caller must hold s.mu.
func (s *Server) applyIPEDS(w http.ResponseWriter, inst *domain.Institution) bool {
	if inst.UnitID == "" {
		inst.IPEDSMetadata = nil
		return true
	}
	rec, ok := s.ipeds[inst.UnitID]
	if !ok {
		writeDetail(w, http.StatusBadRequest, fmt.Sprintf("IPEDS data for unit ID %s not found", inst.UnitID))
		return false
	}
	inst.Longitude = rec.Longitude
	inst.Latitude = rec.Latitude
	meta := rec.Metadata
	inst.IPEDSMetadata = &meta
	return true
}

// indexOf finds a record by short ID. Caller must hold s.mu.
func (s *Server) indexOf(shortID string) int {
	for i, rec := range s.records {
		if domain.StripPrefix(rec.ID) == shortID {
			return i
		}
	}
	return -1
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
