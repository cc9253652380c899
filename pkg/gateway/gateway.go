// Package gateway exposes the file tree over HTTP.
//
// Nodes are addressed by path: each segment below /files/ is resolved as a
// child lookup starting from the root node. GET serves a node's content (or
// a JSON listing for nodes without content), PUT creates or replaces a node,
// DELETE removes one. Writers can pin the version they saw with If-Match;
// losing an update race surfaces as 409 Conflict.
package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lakshmanb4u/v7files/internal/logger"
	"github.com/lakshmanb4u/v7files/pkg/metadata"
	"github.com/lakshmanb4u/v7files/pkg/vfile"
)

// directoryContentType marks a PUT that creates a content-less node.
const directoryContentType = "application/x-directory"

// Config contains gateway settings.
type Config struct {
	// MaxUploadBytes caps the accepted request body size
	MaxUploadBytes int64
}

// Gateway serves a file tree rooted at a single node.
type Gateway struct {
	root *vfile.File
	cfg  Config
}

// New creates a gateway serving the tree under root.
func New(root *vfile.File, cfg Config) *Gateway {
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = 1 << 30
	}
	return &Gateway{root: root, cfg: cfg}
}

// Handler builds the chi router with all middleware and routes.
//
// Routes:
//   - GET  /health       - Liveness probe
//   - GET  /files/*      - Serve content, or list children for nodes without content
//   - PUT  /files/*      - Create or replace a node
//   - DELETE /files/*    - Remove a node
func (g *Gateway) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", g.handleHealth)

	r.Route("/files", func(r chi.Router) {
		r.Get("/*", g.handleGet)
		r.Head("/*", g.handleGet)
		r.Put("/*", g.handlePut)
		r.Delete("/*", g.handleDelete)
	})

	return r
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleGet serves a node's content, or a JSON listing when it has none.
func (g *Gateway) handleGet(w http.ResponseWriter, r *http.Request) {
	node, err := g.resolve(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if !node.HasContent() {
		g.writeListing(w, r, node)
		return
	}

	rc, err := node.Content(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	defer func() { _ = rc.Close() }()

	contentType := node.ContentType()
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if length := node.Length(); length != nil {
		w.Header().Set("Content-Length", strconv.FormatInt(*length, 10))
	}
	w.Header().Set("ETag", fmt.Sprintf("%q", node.HexDigest()))
	w.Header().Set("Last-Modified", node.UpdatedAt().UTC().Format(http.TimeFormat))
	setVersionHeader(w, node)

	if r.Method == http.MethodHead {
		return
	}

	if _, err := io.Copy(w, rc); err != nil {
		// Headers are gone; all we can do is log the broken transfer.
		logger.Warn("gateway: content transfer failed for %s: %v", node.ID(), err)
	}
}

// listingEntry is one child in a directory listing response.
type listingEntry struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Version     uint64 `json:"version"`
	ContentType string `json:"contentType,omitempty"`
	Length      *int64 `json:"length,omitempty"`
	Digest      string `json:"digest,omitempty"`
	HasContent  bool   `json:"hasContent"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

// listing is the JSON body returned for nodes without content.
type listing struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Version  uint64         `json:"version"`
	Children []listingEntry `json:"children"`
}

func (g *Gateway) writeListing(w http.ResponseWriter, r *http.Request, node *vfile.File) {
	children, err := node.Children(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	body := listing{
		ID:       node.ID().String(),
		Name:     node.Name(),
		Version:  node.Version(),
		Children: make([]listingEntry, 0, len(children)),
	}
	for _, child := range children {
		body.Children = append(body.Children, listingEntry{
			ID:          child.ID().String(),
			Name:        child.Name(),
			Version:     child.Version(),
			ContentType: child.ContentType(),
			Length:      child.Length(),
			Digest:      child.HexDigest(),
			HasContent:  child.HasContent(),
			CreatedAt:   child.CreatedAt().UTC().Format(time.RFC3339),
			UpdatedAt:   child.UpdatedAt().UTC().Format(time.RFC3339),
		})
	}

	setVersionHeader(w, node)
	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		return
	}
	writeJSON(w, http.StatusOK, body)
}

// handlePut creates the addressed node, or replaces its content if it
// already exists. A request with Content-Type application/x-directory
// creates a content-less node and ignores the body.
func (g *Gateway) handlePut(w http.ResponseWriter, r *http.Request) {
	segments := pathSegments(r)
	if len(segments) == 0 {
		http.Error(w, "cannot replace the root node", http.StatusMethodNotAllowed)
		return
	}

	parent, err := g.walk(r, segments[:len(segments)-1])
	if err != nil {
		writeError(w, err)
		return
	}
	name := segments[len(segments)-1]

	contentType := r.Header.Get("Content-Type")
	isDirectory := contentType == directoryContentType

	var data []byte
	if !isDirectory {
		body := http.MaxBytesReader(w, r.Body, g.cfg.MaxUploadBytes)
		data, err = io.ReadAll(body)
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
				return
			}
			writeError(w, err)
			return
		}
	}

	existing, err := parent.Child(r.Context(), name)
	switch {
	case errors.Is(err, metadata.ErrNotFound):
		if ok := checkIfMatchAbsent(w, r); !ok {
			return
		}
		if isDirectory {
			data = nil
		}
		child, err := parent.CreateChild(r.Context(), data, name, putContentType(contentType, isDirectory))
		if err != nil {
			writeError(w, err)
			return
		}
		setVersionHeader(w, child)
		w.Header().Set("Location", r.URL.Path)
		w.WriteHeader(http.StatusCreated)

	case err != nil:
		writeError(w, err)

	default:
		if ok := checkIfMatch(w, r, existing); !ok {
			return
		}
		if isDirectory {
			http.Error(w, "node already exists", http.StatusConflict)
			return
		}
		if err := existing.SetContent(r.Context(), data, putContentType(contentType, false)); err != nil {
			writeError(w, err)
			return
		}
		setVersionHeader(w, existing)
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleDelete removes the addressed node.
func (g *Gateway) handleDelete(w http.ResponseWriter, r *http.Request) {
	segments := pathSegments(r)
	if len(segments) == 0 {
		http.Error(w, "cannot delete the root node", http.StatusMethodNotAllowed)
		return
	}

	node, err := g.walk(r, segments)
	if err != nil {
		writeError(w, err)
		return
	}

	if ok := checkIfMatch(w, r, node); !ok {
		return
	}

	if err := node.Delete(r.Context()); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// Path resolution
// ============================================================================

// pathSegments extracts the node path below /files/, dropping empty segments.
func pathSegments(r *http.Request) []string {
	raw := chi.URLParam(r, "*")
	var segments []string
	for _, s := range strings.Split(raw, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// resolve walks the full request path from the root node.
func (g *Gateway) resolve(r *http.Request) (*vfile.File, error) {
	return g.walk(r, pathSegments(r))
}

func (g *Gateway) walk(r *http.Request, segments []string) (*vfile.File, error) {
	node := g.root
	for _, name := range segments {
		child, err := node.Child(r.Context(), name)
		if err != nil {
			return nil, err
		}
		node = child
	}
	return node, nil
}

// ============================================================================
// Helpers
// ============================================================================

func putContentType(contentType string, isDirectory bool) string {
	if isDirectory {
		return ""
	}
	if contentType == "" {
		return "application/octet-stream"
	}
	return contentType
}

// setVersionHeader exposes the node version for optimistic concurrency.
func setVersionHeader(w http.ResponseWriter, node *vfile.File) {
	w.Header().Set("X-File-Version", strconv.FormatUint(node.Version(), 10))
}

// checkIfMatch enforces an If-Match header carrying the version the client
// last saw. A mismatch means someone else updated the node since.
func checkIfMatch(w http.ResponseWriter, r *http.Request, node *vfile.File) bool {
	match := r.Header.Get("If-Match")
	if match == "" {
		return true
	}

	want, err := strconv.ParseUint(strings.Trim(match, `"`), 10, 64)
	if err != nil {
		http.Error(w, "malformed If-Match header", http.StatusBadRequest)
		return false
	}

	if want != node.Version() {
		http.Error(w, "version mismatch", http.StatusPreconditionFailed)
		return false
	}
	return true
}

// checkIfMatchAbsent rejects an If-Match aimed at a node that does not exist.
func checkIfMatchAbsent(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("If-Match") != "" {
		http.Error(w, "node does not exist", http.StatusPreconditionFailed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("gateway: failed to encode response: %v", err)
	}
}

// writeError maps domain errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case metadata.IsStaleVersion(err):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, metadata.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, metadata.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, vfile.ErrContentMissing):
		logger.Error("gateway: %v", err)
		http.Error(w, "content missing from blob store", http.StatusInternalServerError)
	default:
		logger.Error("gateway: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// requestLogger logs requests using the internal logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.Info("%s %s %d %dB %s request_id=%s",
			r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(), time.Since(start), requestID)
	})
}
