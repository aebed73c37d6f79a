// Package gateway serves any apacheta.TensorStore over HTTP using the layout
// the remote client expects.
package gateway

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/teranos/yanantin/apacheta"
	"github.com/teranos/yanantin/apacheta/models"
	"github.com/teranos/yanantin/apacheta/query"
	"github.com/teranos/yanantin/errors"
	"github.com/teranos/yanantin/logger"
	"github.com/teranos/yanantin/sym"
	"github.com/teranos/yanantin/version"
)

// MaxRecordBytes bounds a single POSTed record.
const MaxRecordBytes = 8 << 20

// Server exposes a store over HTTP.
type Server struct {
	store      apacheta.TensorStore
	apiKey     atomic.Pointer[string]
	constraint *semver.Constraints
	registry   *prometheus.Registry
	metrics    *metrics
	handler    http.Handler
	log        *zap.SugaredLogger
}

// Option configures a Server.
type Option func(*Server)

// WithAPIKey requires every /api/v1 request to carry key in X-API-Key.
func WithAPIKey(key string) Option {
	return func(s *Server) {
		s.SetAPIKey(key)
	}
}

// SetAPIKey replaces the required key; empty disables the check. Safe to
// call while serving.
func (s *Server) SetAPIKey(key string) {
	s.apiKey.Store(&key)
}

// WithRegistry registers gateway metrics on reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = reg
	}
}

// New builds the gateway. Requests must declare an interface version with
// the same major version as the store's.
func New(store apacheta.TensorStore, log *zap.SugaredLogger, opts ...Option) (*Server, error) {
	s := &Server{
		store: store,
		log:   logger.OrNop(log),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}

	v, err := semver.NewVersion(store.GetInterfaceVersion())
	if err != nil {
		return nil, errors.Wrapf(err, "store interface version %q", store.GetInterfaceVersion())
	}
	s.constraint, err = semver.NewConstraint(fmt.Sprintf("^%d", v.Major()))
	if err != nil {
		return nil, errors.Wrap(err, "build interface version constraint")
	}

	s.metrics, err = newMetrics(s.registry)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	api := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, s.requireAPIKey(s.requireVersion(h)))
	}
	api("POST "+apacheta.APIPrefix+"/{collection}", s.handleStore)
	api("GET "+apacheta.APIPrefix+"/tensors", s.handleListTensors)
	api("GET "+apacheta.APIPrefix+"/tensors/{id}", s.handleGetTensor)
	api("GET "+apacheta.APIPrefix+"/tensors/{id}/strands/{index}", s.handleGetStrand)
	api("GET "+apacheta.APIPrefix+"/entities/{id}", s.handleGetEntity)
	api("GET "+apacheta.APIPrefix+"/queries/{name}", s.handleQuery)
	api("GET "+apacheta.APIPrefix+"/counts", s.handleCounts)
	api("GET "+apacheta.APIPrefix+"/version", s.handleVersion)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	s.handler = s.instrument(mux)
	return s, nil
}

// Handler returns the gateway's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", addr)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.log.Infow("gateway listening",
		logger.FieldSymbol, sym.Gateway,
		logger.FieldURL, "http://"+ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "gateway stopped")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "gateway shutdown")
		}
		return nil
	}
}

func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key := s.apiKey.Load(); key != nil && *key != "" {
			got := r.Header.Get(apacheta.HeaderAPIKey)
			if subtle.ConstantTimeCompare([]byte(got), []byte(*key)) != 1 {
				writeError(w, http.StatusForbidden, "invalid or missing API key")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// requireVersion rejects requests declaring an incompatible interface
// version. Requests without the header are accepted.
func (s *Server) requireVersion(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		declared := r.Header.Get(apacheta.HeaderInterfaceVersion)
		if declared != "" {
			v, err := semver.NewVersion(declared)
			if err != nil || !s.constraint.Check(v) {
				s.fail(w, r, errors.NewInterfaceVersionError(s.store.GetInterfaceVersion(), declared))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	s.metrics.faults.WithLabelValues(strconv.Itoa(status)).Inc()
	if status == http.StatusInternalServerError {
		s.log.Warnw("store failure",
			logger.FieldSymbol, sym.Gateway,
			logger.FieldMethod, r.Method,
			logger.FieldPath, r.URL.Path,
			logger.FieldError, err)
	}
	writeError(w, status, err.Error())
}

func (s *Server) ok(w http.ResponseWriter, r *http.Request, v any) {
	if err := writeJSON(w, http.StatusOK, v); err != nil {
		s.log.Debugw("response write failed", logger.FieldPath, r.URL.Path, logger.FieldError, err)
	}
}

func (s *Server) handleStore(w http.ResponseWriter, r *http.Request) {
	kind, ok := models.KindForCollection(r.PathValue("collection"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown collection "+r.PathValue("collection"))
		return
	}
	body, err := readBody(r, MaxRecordBytes)
	if err != nil {
		s.fail(w, r, errors.NewInterfaceVersionError(s.store.GetInterfaceVersion(), err.Error()))
		return
	}
	rec, err := query.DecodeRecord(kind, body)
	if err != nil {
		// A body the current models cannot decode was written against another contract.
		s.fail(w, r, errors.NewInterfaceVersionError(s.store.GetInterfaceVersion(), "undecodable "+string(kind)+": "+err.Error()))
		return
	}
	if err := s.storeRecord(rec); err != nil {
		s.fail(w, r, err)
		return
	}
	s.log.Debugw("record stored",
		logger.FieldSymbol, sym.Gateway,
		logger.FieldRecord, string(kind),
		logger.FieldTensorID, rec.RecordID().String())
	_ = writeJSON(w, http.StatusCreated, map[string]string{"id": rec.RecordID().String()})
}

func (s *Server) storeRecord(rec models.Record) error {
	switch v := rec.(type) {
	case models.TensorRecord:
		return s.store.StoreTensor(v)
	case models.CompositionEdge:
		return s.store.StoreCompositionEdge(v)
	case models.CorrectionRecord:
		return s.store.StoreCorrection(v)
	case models.DissentRecord:
		return s.store.StoreDissent(v)
	case models.NegationRecord:
		return s.store.StoreNegation(v)
	case models.BootstrapRecord:
		return s.store.StoreBootstrap(v)
	case models.SchemaEvolutionRecord:
		return s.store.StoreSchemaEvolution(v)
	case models.EntityResolution:
		return s.store.StoreEntity(v)
	}
	return errors.WrapStoreError(errors.Newf("unsupported record %T", rec), "store")
}

// pathID parses the {id} segment. Malformed ids cannot name a record.
func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, errors.NewNotFoundError("no record with id %q", r.PathValue(name))
	}
	return id, nil
}

func (s *Server) handleListTensors(w http.ResponseWriter, r *http.Request) {
	v, err := s.store.ListTensors()
	s.respond(w, r, v, err)
}

func (s *Server) handleGetTensor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	v, err := s.store.GetTensor(id)
	s.respond(w, r, v, err)
}

func (s *Server) handleGetStrand(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		s.fail(w, r, errors.NewNotFoundError("no strand %q on tensor %s", r.PathValue("index"), id))
		return
	}
	v, err := s.store.GetStrand(id, index)
	s.respond(w, r, v, err)
}

func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	v, err := s.store.GetEntity(id)
	s.respond(w, r, v, err)
}

func (s *Server) handleCounts(w http.ResponseWriter, r *http.Request) {
	v, err := s.store.CountRecords()
	s.respond(w, r, v, err)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.ok(w, r, map[string]string{
		"interface_version": s.store.GetInterfaceVersion(),
		"build":             version.Get().Short(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.ok(w, r, map[string]string{"status": "ok"})
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, v)
}
