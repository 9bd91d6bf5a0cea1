// Package feedhttp is the inbound HTTP surface: a thin net/http translation
// of six of the repository engine's operations, explicitly not an OData
// implementation (query-option grammar and wire authentication remain the
// caller's concern).
//
// Grounded on the teacher's own minimal net/http usage in pkg/http (context-
// aware requests, explicit status-code switches), mirrored here for the
// inbound direction, and on the http.Server lifecycle shape of
// test/testutil.TestServer (Addr/Handler construction, context-bounded
// Shutdown).
package feedhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/glorpus-work/pkgfeed/pkg/catalog"
	pkgerrors "github.com/glorpus-work/pkgfeed/pkg/errors"
	"github.com/glorpus-work/pkgfeed/pkg/feed"
	"github.com/glorpus-work/pkgfeed/pkg/feed/query"
)

// maxUploadMemory bounds the in-memory portion of a multipart push body;
// anything larger spills to a temp file, which is what net/http's
// ParseMultipartForm already does past this threshold.
const maxUploadMemory = 32 << 20

// Server wraps a feed.Engine with the HTTP surface described in §4.H.
type Server struct {
	engine *feed.Engine
	http   *http.Server
}

// New constructs a Server bound to addr, routing requests to engine.
func New(engine *feed.Engine, addr string) *Server {
	s := &Server{engine: engine}
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the routed http.Handler, for callers (tests, or an
// alternate listener) that want it without the http.Server wrapper.
func (s *Server) Handler() http.Handler {
	return s.routes()
}

// ListenAndServe starts serving, blocking until Shutdown or a fatal error.
func (s *Server) ListenAndServe() error {
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v3/packages", s.handleSearch)
	mux.HandleFunc("GET /v3/packages/{id}", s.handleFindByID)
	mux.HandleFunc("GET /v3/packages/{id}/{version}", s.handleFindVersion)
	mux.HandleFunc("GET /v3/updates", s.handleUpdates)
	mux.HandleFunc("PUT /v3/packages", s.handlePush)
	mux.HandleFunc("DELETE /v3/packages/{id}/{version}", s.handleDelete)
	return mux
}

// searchResponse mirrors the NuGet v3 search envelope's totalHits/data
// shape, the one piece of the real wire format worth keeping even though
// this surface applies no OData grammar.
type searchResponse struct {
	TotalHits int                `json:"totalHits"`
	Data      []*catalog.Package `json:"data"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	allowPrerelease, _ := strconv.ParseBool(q.Get("includePrerelease"))
	allowUnlisted, _ := strconv.ParseBool(q.Get("includeUnlisted"))

	results, err := s.engine.Search(r.Context(), q.Get("searchTerm"), q["targetFramework"], allowPrerelease, allowUnlisted, compatibilityFromQuery(q))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{TotalHits: len(results), Data: results})
}

func (s *Server) handleFindByID(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	results, err := s.engine.FindPackagesById(r.Context(), id, compatibilityFromQuery(r.URL.Query()))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if len(results) == 0 {
		writeJSONError(w, http.StatusNotFound, fmt.Sprintf("package %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleFindVersion(w http.ResponseWriter, r *http.Request) {
	id, version := r.PathValue("id"), r.PathValue("version")
	record, err := s.engine.FindPackage(r.Context(), id, version)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if record == nil {
		writeJSONError(w, http.StatusNotFound, fmt.Sprintf("package %s %s not found", id, version))
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleUpdates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	queries, err := parseUpdateQueries(q.Get("packages"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	includePrerelease, _ := strconv.ParseBool(q.Get("includePrerelease"))
	includeAllVersions, _ := strconv.ParseBool(q.Get("includeAllVersions"))

	updates, err := s.engine.GetUpdates(r.Context(), queries, includePrerelease, includeAllVersions, q["targetFramework"], compatibilityFromQuery(q))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updates)
}

// parseUpdateQueries parses the packages query parameter, a comma-separated
// list of id:version pairs.
func parseUpdateQueries(raw string) ([]query.UpdateQuery, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]query.UpdateQuery, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		idVersion := strings.SplitN(p, ":", 2)
		if len(idVersion) != 2 || idVersion[0] == "" || idVersion[1] == "" {
			return nil, fmt.Errorf("feedhttp: malformed packages entry %q, expected id:version", p)
		}
		out = append(out, query.UpdateQuery{ID: idVersion[0], Version: idVersion[1]})
	}
	return out, nil
}

// handlePush accepts either a raw archive body or a multipart form carrying
// one under the "package" field, matching how a push client is free to send
// the body per §4.H.
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	defer func() { _ = r.Body.Close() }()

	var content io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid multipart body: "+err.Error())
			return
		}
		file, _, err := r.FormFile("package")
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "missing package file field: "+err.Error())
			return
		}
		defer func() { _ = file.Close() }()
		content = file
	}

	record, err := s.engine.AddPackage(r.Context(), content)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.RemovePackage(r.Context(), r.PathValue("id"), r.PathValue("version")); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// compatibilityFromQuery follows the NuGet convention of a semVerLevel query
// parameter gating SemVer2 visibility.
func compatibilityFromQuery(q url.Values) catalog.CompatibilityProfile {
	if q.Get("semVerLevel") == "2.0.0" {
		return catalog.CompatibilityMax
	}
	return catalog.CompatibilityDefault
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeEngineError maps an engine error's Kind onto the status code that
// best reflects it.
func writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case pkgerrors.Is(err, pkgerrors.KindNotFound):
		status = http.StatusNotFound
	case pkgerrors.Is(err, pkgerrors.KindAlreadyExists):
		status = http.StatusConflict
	case pkgerrors.Is(err, pkgerrors.KindSymbolsRejected):
		status = http.StatusUnprocessableEntity
	case pkgerrors.Is(err, pkgerrors.KindInvalidArgument), pkgerrors.Is(err, pkgerrors.KindInvalidConfiguration):
		status = http.StatusBadRequest
	case pkgerrors.Is(err, pkgerrors.KindTransient):
		status = http.StatusBadGateway
	}
	writeJSONError(w, status, err.Error())
}
