package blob

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/asad/blobreader/internal/blobstore"
	"github.com/asad/blobreader/internal/core"
	"github.com/asad/blobreader/internal/logging"
)

// Options configure a BlobService.
type Options struct {
	Stream blobstore.Options

	// PageSize is used by listings that do not ask for a size.
	PageSize int
}

// BlobService serves entries and entry listings of read-only blob stores.
// Every request opens its own store handle and closes it before returning.
type BlobService struct {
	catalog StoreCatalog
	opts    Options
	logger  logging.Logger
}

// NewBlobService creates a new blob service instance.
func NewBlobService(catalog StoreCatalog, opts Options, logger logging.Logger) *BlobService {
	if opts.PageSize <= 0 {
		opts.PageSize = 20
	}
	return &BlobService{
		catalog: catalog,
		opts:    opts,
		logger:  logger,
	}
}

// Name returns the service identifier.
func (s *BlobService) Name() string {
	return "stores"
}

// RegisterRoutes sets up HTTP routes for store operations:
//   - GET /                  - List available stores
//   - GET /{store}           - List entries (fromIdx, size, nameFilter query parameters)
//   - GET /{store}?name=...  - Stream the named entry
//   - GET /{store}/{name...} - Stream the named entry
func (s *BlobService) RegisterRoutes(router chi.Router) {
	router.Get("/", s.handleListStores)
	router.Get("/{store}", s.handleStore)
	router.Get("/{store}/*", s.handleGetEntry)
}

// handleListStores handles GET / to list the available stores.
func (s *BlobService) handleListStores(w http.ResponseWriter, r *http.Request) {
	stores, err := s.catalog.List(r.Context())
	if err != nil {
		s.writeFailure(w, "failed to list stores", err)
		return
	}
	s.writeJSON(w, StoreListResult{Stores: stores})
}

// handleStore handles GET /{store}: an entry listing, or the entry named by
// the name query parameter.
func (s *BlobService) handleStore(w http.ResponseWriter, r *http.Request) {
	storeID, err := pathParam(r, "store")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "InvalidRequest", "Malformed store name")
		return
	}
	if name := r.URL.Query().Get("name"); name != "" {
		s.serveEntry(w, r, storeID, name)
		return
	}
	s.listEntries(w, r, storeID)
}

// handleGetEntry handles GET /{store}/{name...}.
func (s *BlobService) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	storeID, err1 := pathParam(r, "store")
	name, err2 := pathParam(r, "*")
	if err1 != nil || err2 != nil {
		s.writeError(w, http.StatusBadRequest, "InvalidRequest", "Malformed store or entry name")
		return
	}
	if name == "" {
		name = r.URL.Query().Get("name")
	}
	s.serveEntry(w, r, storeID, name)
}

// pathParam returns the decoded value of a route parameter.
// chi matches against the escaped path whenever the request path needed escaping.
func pathParam(r *http.Request, key string) (string, error) {
	value := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return value, nil
	}
	return url.PathUnescape(value)
}

func (s *BlobService) serveEntry(w http.ResponseWriter, r *http.Request, storeID, name string) {
	w.Header().Set("Vary", "Accept-Encoding, Accept")

	if name == "" {
		s.writeError(w, http.StatusBadRequest, "InvalidRequest", "Missing entry name")
		return
	}

	store, err := s.catalog.Resolve(r.Context(), storeID)
	if err != nil {
		s.writeFailure(w, "failed to open store", err, logging.String("store", storeID))
		return
	}
	defer store.Close()

	entry, err := blobstore.Lookup(store, name)
	if err != nil {
		s.writeFailure(w, "failed to look up entry", err,
			logging.String("store", store.ID),
			logging.String("entry", name),
		)
		return
	}

	sink := &responseSink{w: w}
	accepts := acceptEncoding(r.Header.Get("Accept-Encoding"))
	if err := blobstore.StreamEntry(store, entry, sink, accepts, s.opts.Stream); err != nil {
		if sink.wrote {
			// Status and part of the body are already out; abort the
			// response so the client sees a broken transfer.
			s.logger.Error("entry stream aborted",
				logging.String("store", store.ID),
				logging.String("entry", name),
				logging.ErrorField(err),
			)
			panic(http.ErrAbortHandler)
		}
		sink.clearHeaders()
		s.writeFailure(w, "failed to stream entry", err,
			logging.String("store", store.ID),
			logging.String("entry", name),
		)
		return
	}

	s.logger.Debug("entry served",
		logging.String("store", store.ID),
		logging.String("entry", name),
		logging.Int64("length", entry.Length),
		logging.Bool("decompressed", sink.meta.Decompressed),
	)
}

func (s *BlobService) listEntries(w http.ResponseWriter, r *http.Request, storeID string) {
	query := r.URL.Query()
	fromIdx, err := intParam(query, "fromIdx", 0)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "InvalidRequest", "fromIdx must be an integer")
		return
	}
	size, err := intParam(query, "size", s.opts.PageSize)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "InvalidRequest", "size must be an integer")
		return
	}
	nameFilter := query.Get("nameFilter")

	store, err := s.catalog.Resolve(r.Context(), storeID)
	if err != nil {
		s.writeFailure(w, "failed to open store", err, logging.String("store", storeID))
		return
	}
	defer store.Close()

	page, err := blobstore.ListEntries(store, fromIdx, size, nameFilter)
	if err != nil {
		s.writeFailure(w, "failed to list entries", err, logging.String("store", store.ID))
		return
	}

	s.writeJSON(w, newEntryListResult(store, page, nameFilter, s.opts.Stream.Defaults))
}

func intParam(query url.Values, key string, def int) (int, error) {
	raw := query.Get(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// responseSink emits entry metadata as response headers.
type responseSink struct {
	w     http.ResponseWriter
	meta  blobstore.EntryMeta
	wrote bool
}

func (rs *responseSink) WriteMeta(meta blobstore.EntryMeta) {
	rs.meta = meta
	h := rs.w.Header()
	h.Set("Content-Type", meta.MediaType)
	if meta.Encoding != blobstore.EncodingIdentity {
		h.Set("Content-Encoding", meta.Encoding)
	}
	if meta.ContentLength != blobstore.UnknownLength {
		h.Set("Content-Length", strconv.FormatInt(meta.ContentLength, 10))
	}
	h.Set("Last-Modified", meta.LastModified.UTC().Format(http.TimeFormat))
}

func (rs *responseSink) Write(p []byte) (int, error) {
	rs.wrote = true
	return rs.w.Write(p)
}

func (rs *responseSink) clearHeaders() {
	h := rs.w.Header()
	h.Del("Content-Encoding")
	h.Del("Content-Length")
	h.Del("Last-Modified")
}

// writeFailure maps a blobstore error to a response status.
// Not found and bad request keep their message; everything else is logged
// and reported as an internal error.
func (s *BlobService) writeFailure(w http.ResponseWriter, msg string, err error, fields ...logging.Field) {
	var formatErr *blobstore.FormatError
	switch {
	case errors.Is(err, blobstore.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "NotFound", err.Error())
	case errors.Is(err, blobstore.ErrBadRequest):
		s.writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
	case errors.As(err, &formatErr):
		s.logger.Error(msg, append(fields, logging.ErrorField(err))...)
		s.writeError(w, http.StatusInternalServerError, "CorruptStore", "Store file is malformed")
	default:
		s.logger.Error(msg, append(fields, logging.ErrorField(err))...)
		s.writeError(w, http.StatusInternalServerError, "InternalError", "Internal error")
	}
}

func (s *BlobService) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response",
			logging.ErrorField(err),
		)
	}
}

// writeError writes an error response in a consistent format.
func (s *BlobService) writeError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

// Ensure BlobService implements the Service interface.
var _ core.Service = (*BlobService)(nil)
