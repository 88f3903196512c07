// Package server exposes the read-only query endpoint over the suggestion
// index.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/gbv/typesense-suggest-backend/pkg/jskos"
	"github.com/gbv/typesense-suggest-backend/pkg/pipeline"
	"github.com/gbv/typesense-suggest-backend/pkg/typesense"
)

// searchFields are the weighted fields queried by the /search endpoint.
// mappingLabelsOther is deliberately left out: generic mappings are too
// weak a signal for suggestions.
var searchFields = []string{
	"identifier", "prefLabel", "altLabel",
	"mappingLabelsExactClose", "mappingLabelsNarrowBroad", "notes",
}

// Searcher is the subset of index-store operations the server uses.
// typesense.Client satisfies this.
type Searcher interface {
	Exists(ctx context.Context, collection string) (bool, error)
	Search(ctx context.Context, collection, query string, fields []string, opts typesense.SearchOptions) (*typesense.SearchResult, error)
}

var _ Searcher = (*typesense.Client)(nil)

// Server serves /search over the suggestion index, validating requested
// vocabularies against the scheme registration table cached at startup.
type Server struct {
	schemes []*jskos.Scheme
	store   Searcher
	log     *slog.Logger
	metrics *Metrics
}

// New creates a query server over the given registered schemes and index
// store.
func New(schemes []*jskos.Scheme, store Searcher, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		schemes: schemes,
		store:   store,
		log:     log,
		metrics: NewMetrics(),
	}
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/search", s.instrument("/search", s.handleSearch))
	mux.Handle("/metrics", s.metrics.Handler())
	return mux
}

// statusRecorder captures the response status for logs and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) instrument(route string, handler http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		cors(rec, req)
		handler(rec, req)
		elapsed := time.Since(start)
		s.metrics.RequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		s.metrics.RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
		s.log.Info("request", "id", uuid.NewString(), "route", route,
			"status", rec.status, "duration", elapsed)
	})
}

// cors allows all origins by echoing the request origin, falling back to *.
func cors(w http.ResponseWriter, req *http.Request) {
	if origin := req.Header.Get("Origin"); origin != "" {
		w.Header().Set("Access-Control-Allow-Origin", origin)
	} else {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	}
	w.Header().Set("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept, Authorization")
	w.Header().Set("Access-Control-Allow-Methods", "GET")
	w.Header().Set("Access-Control-Expose-Headers", "X-Total-Count, Link")
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
}

func (s *Server) handleSearch(w http.ResponseWriter, req *http.Request) {
	voc := req.URL.Query().Get("voc")
	var scheme *jskos.Scheme
	for _, candidate := range s.schemes {
		if jskos.SchemeMatchesURI(candidate, voc) {
			scheme = candidate
			break
		}
	}
	if scheme == nil {
		s.writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("Incompatible scheme: %s", voc))
		return
	}

	search := req.URL.Query().Get("search")
	if search == "" {
		s.writeJSON(w, []any{})
		return
	}

	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 100
	}
	offset, _ := strconv.Atoi(req.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	collection := pipeline.CollectionName(jskos.Notation(scheme))
	exists, err := s.store.Exists(req.Context(), collection)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if !exists {
		s.writeJSON(w, []any{})
		return
	}

	result, err := s.store.Search(req.Context(), collection, search, searchFields,
		typesense.SearchOptions{PerPage: limit, Page: offset/limit + 1})
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	concepts := make([]map[string]any, 0, len(result.Hits))
	for _, hit := range result.Hits {
		concept, err := trimConcept(hit.Document.Concept)
		if err != nil {
			continue
		}
		concepts = append(concepts, concept)
	}
	s.writeJSON(w, concepts)
}

// trimConcept strips internal-only fields from a concept body and collapses
// broader/inScheme references to bare URIs.
func trimConcept(raw json.RawMessage) (map[string]any, error) {
	var concept map[string]any
	if err := json.Unmarshal(raw, &concept); err != nil {
		return nil, err
	}
	delete(concept, "ancestors")
	delete(concept, "narrower")
	for _, key := range []string{"broader", "inScheme"} {
		list, ok := concept[key].([]any)
		if !ok {
			continue
		}
		reduced := make([]any, 0, len(list))
		for _, item := range list {
			if obj, ok := item.(map[string]any); ok {
				reduced = append(reduced, map[string]any{"uri": obj["uri"]})
			}
		}
		concept[key] = reduced
	}
	return concept, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, payload any) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"status":  status,
		"message": message,
	})
}
