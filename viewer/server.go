// Package viewer serves gprof call graphs to a browser flame graph. It keeps a
// single current report that every upload replaces.
package viewer

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/Emyrk/gprof-viewer/gprof"
	"github.com/Emyrk/gprof-viewer/gprof/profiling"
	"github.com/google/pprof/profile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var ErrNoReport = errors.New("no report loaded")

//go:embed page.html
var page []byte

type PyroscopeOptions struct {
	Address string `yaml:"address"`
	AppName string `yaml:"app_name"`
}

type Options struct {
	Listen         string           `yaml:"listen"`
	MaxDepth       int              `yaml:"max_depth"`
	MaxUploadBytes int64            `yaml:"max_upload_bytes"`
	Reports        []string         `yaml:"reports"`
	Pyroscope      PyroscopeOptions `yaml:"pyroscope"`
}

// Pusher receives the pprof conversion of every loaded report.
type Pusher interface {
	Push(name string, pb *profile.Profile) error
}

type Server struct {
	logger zerolog.Logger
	opts   Options

	store     *Store
	hub       *Hub
	collector *Collector
	reg       *prometheus.Registry
	pusher    Pusher

	// loadMu keeps the store, metrics and pages on the same report when
	// loads race.
	loadMu sync.Mutex
}

func New(opts Options, logger zerolog.Logger) (*Server, error) {
	if opts.Listen == "" {
		opts.Listen = ":8080"
	}
	if opts.MaxUploadBytes == 0 {
		opts.MaxUploadBytes = 64 << 20
	}
	if opts.Pyroscope.AppName == "" {
		opts.Pyroscope.AppName = "gprof"
	}

	reg := prometheus.NewRegistry()
	collector := NewCollector(logger.With().Str("service", "collector").Logger(), "gprof", nil)
	err := reg.Register(collector)
	if err != nil {
		return nil, fmt.Errorf("register collector: %w", err)
	}

	srv := &Server{
		logger:    logger,
		opts:      opts,
		store:     NewStore(opts.MaxDepth),
		hub:       NewHub(logger.With().Str("service", "websocket").Logger()),
		collector: collector,
		reg:       reg,
	}

	if opts.Pyroscope.Address != "" {
		pusher, err := profiling.NewPusher(opts.Pyroscope.Address, logger.With().Str("service", "pyroscope").Logger())
		if err != nil {
			return nil, fmt.Errorf("new pusher: %w", err)
		}
		srv.pusher = pusher
	}
	return srv, nil
}

// SetPusher replaces the pusher configured from the options.
func (s *Server) SetPusher(p Pusher) {
	s.pusher = p
}

func (s *Server) Store() *Store {
	return s.store
}

// Close stops the pusher when it owns one.
func (s *Server) Close() {
	if p, ok := s.pusher.(*profiling.PyroscopePusher); ok {
		p.Stop()
	}
}

// Load replaces the current report, notifies connected pages and pushes the
// converted profile when a pusher is set.
func (s *Server) Load(ctx context.Context, name string, r io.Reader) (*Loaded, error) {
	logger := s.logger.With().Str("report", name).Logger()

	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	loaded, err := s.store.Load(name, r)
	if err != nil {
		s.collector.Failed()
		s.hub.Broadcast(ctx, Message{Type: "cleared"})
		logger.Error().Err(err).Msg("load report")
		return nil, err
	}
	s.collector.Loaded(loaded)
	logger.Info().
		Str("id", loaded.ID).
		Int("sections", len(loaded.Report.Sections)).
		Int("cycles", len(loaded.Report.Cycles())).
		Float64("root_value", loaded.Tree.Value).
		Msg("report loaded")

	s.hub.Broadcast(ctx, Message{Type: "tree", Name: loaded.Name, Tree: loaded.Tree})

	if s.pusher != nil {
		pb := profiling.New().Convert(loaded.Tree)
		err := s.pusher.Push(s.opts.Pyroscope.AppName, pb)
		if err != nil {
			logger.Warn().Err(err).Msg("push profile")
		}
	}
	return loaded, nil
}

// LoadFile loads a report from disk, named after the file.
func (s *Server) LoadFile(ctx context.Context, path string) (*Loaded, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	defer f.Close()
	return s.Load(ctx, filepath.Base(path), f)
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(page)
	})
	mux.HandleFunc("POST /api/report", s.handleUpload)
	mux.HandleFunc("GET /api/report", s.handleReport)
	mux.HandleFunc("GET /api/tree", s.handleTree)
	mux.HandleFunc("GET /api/functions", s.handleFunctions)
	mux.HandleFunc("GET /api/functions/{index}", s.handleFunction)
	mux.HandleFunc("GET /api/ws", func(w http.ResponseWriter, r *http.Request) {
		s.hub.Serve(w, r, s.store.Current)
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{
		Registry: s.reg,
	}))
	return mux
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("listen", s.opts.Listen).Msg("serving viewer")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type reportResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	LoadedAt  time.Time `json:"loaded_at"`
	Sections  int       `json:"sections"`
	Functions int       `json:"functions"`
	Cycles    [][]int   `json:"cycles"`
	Root      string    `json:"root"`
	Value     float64   `json:"value"`
}

func newReportResponse(l *Loaded) reportResponse {
	return reportResponse{
		ID:        l.ID,
		Name:      l.Name,
		LoadedAt:  l.LoadedAt,
		Sections:  len(l.Report.Sections),
		Functions: len(l.Report.Functions()),
		Cycles:    l.Report.Cycles(),
		Root:      l.Tree.Name,
		Value:     l.Tree.Value,
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "upload"
	}

	body := http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	// The upload outlives a client that disconnects mid broadcast.
	loaded, err := s.Load(context.WithoutCancel(r.Context()), name, body)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, gprof.ErrUnresolved) || errors.Is(err, gprof.ErrDuplicateIndex) || errors.Is(err, gprof.ErrNoRoot) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusCreated, newReportResponse(loaded))
}

func (s *Server) handleReport(w http.ResponseWriter, _ *http.Request) {
	cur := s.store.Current()
	if cur == nil {
		writeError(w, http.StatusNotFound, ErrNoReport)
		return
	}
	writeJSON(w, http.StatusOK, newReportResponse(cur))
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	index, err := queryInt(r, "index")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	maxDepth, err := queryInt(r, "max_depth")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	tree, err := s.store.Tree(index, maxDepth)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

func (s *Server) handleFunctions(w http.ResponseWriter, _ *http.Request) {
	cur := s.store.Current()
	if cur == nil {
		writeError(w, http.StatusNotFound, ErrNoReport)
		return
	}
	writeJSON(w, http.StatusOK, cur.Report.Functions())
}

func (s *Server) handleFunction(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse index: %w", err))
		return
	}
	section, ok := s.store.Lookup(index)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("index %d: %w", index, gprof.ErrUnknownIndex))
		return
	}
	writeJSON(w, http.StatusOK, section)
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
