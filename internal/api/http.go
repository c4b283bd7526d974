package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

import (
	"github.com/gorilla/mux"
)

import (
	"github.com/nanjiek/pixiu-notes/internal/config"
	"github.com/nanjiek/pixiu-notes/internal/identity"
	"github.com/nanjiek/pixiu-notes/internal/notes"
)

// NoteService is what the handlers need from notes.Service.
type NoteService interface {
	List(ctx context.Context) ([]notes.Note, error)
	Get(ctx context.Context, id string) (notes.Note, error)
	Create(ctx context.Context, title, content string) (notes.Note, error)
	Update(ctx context.Context, id, title, content string) (notes.Note, error)
	Delete(ctx context.Context, id string) error
}

type Server struct {
	cfg    config.ServerCfg
	notes  NoteService
	gate   Gate
	keyFn  identity.KeyFunc
	logger *slog.Logger
	srv    *http.Server
}

type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithKeyFunc sets how requests map to rate-limit identities. The default
// shares one identity across all callers.
func WithKeyFunc(fn identity.KeyFunc) Option {
	return func(s *Server) {
		if fn != nil {
			s.keyFn = fn
		}
	}
}

func NewServer(cfg config.ServerCfg, svc NoteService, gate Gate, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		notes:  svc,
		gate:   gate,
		keyFn:  identity.Global(config.DefaultIdentity),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/notes", s.listNotesHandler).Methods(http.MethodGet)
	api.HandleFunc("/notes", s.createNoteHandler).Methods(http.MethodPost)
	api.HandleFunc("/notes/{id}", s.getNoteHandler).Methods(http.MethodGet)
	api.HandleFunc("/notes/{id}", s.updateNoteHandler).Methods(http.MethodPut)
	api.HandleFunc("/notes/{id}", s.deleteNoteHandler).Methods(http.MethodDelete)

	if s.cfg.StaticDir != "" {
		r.PathPrefix("/").Handler(spaHandler{dir: s.cfg.StaticDir})
	}
}

// Handler is the full request pipeline: CORS, then the rate gate, then
// routing. The gate sits outside the router so unmatched paths are counted
// too.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	s.RegisterRoutes(r)
	return s.cors(s.rateLimit(r))
}

func (s *Server) ListenAndServe() error {
	readHeader := time.Duration(s.cfg.ReadHeaderTimeoutMs) * time.Millisecond
	if readHeader <= 0 {
		readHeader = 5 * time.Second
	}
	s.srv = &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeader,
	}
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// ---------------- Handlers ----------------

func (s *Server) listNotesHandler(w http.ResponseWriter, r *http.Request) {
	list, err := s.notes.List(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) getNoteHandler(w http.ResponseWriter, r *http.Request) {
	n, err := s.notes.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.noteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) createNoteHandler(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, MessageResponse{Message: msgInvalidBody})
		return
	}
	n, err := s.notes.Create(r.Context(), req.Title, req.Content)
	if err != nil {
		s.noteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (s *Server) updateNoteHandler(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, MessageResponse{Message: msgInvalidBody})
		return
	}
	n, err := s.notes.Update(r.Context(), mux.Vars(r)["id"], req.Title, req.Content)
	if err != nil {
		s.noteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) deleteNoteHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.notes.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.noteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: msgNoteDeleted})
}

func (s *Server) noteError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, notes.ErrNotFound):
		writeJSON(w, http.StatusNotFound, MessageResponse{Message: msgNoteNotFound})
	case errors.Is(err, notes.ErrInvalidNote):
		writeJSON(w, http.StatusBadRequest, MessageResponse{Message: msgInvalidNote})
	default:
		s.handleError(w, r, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// spaHandler serves the built frontend, falling back to index.html for
// client-side routes.
type spaHandler struct {
	dir string
}

func (h spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		writeJSON(w, http.StatusNotFound, MessageResponse{Message: "Not found"})
		return
	}
	p := filepath.Join(h.dir, filepath.FromSlash(filepath.Clean("/"+r.URL.Path)))
	if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
		http.ServeFile(w, r, p)
		return
	}
	http.ServeFile(w, r, filepath.Join(h.dir, "index.html"))
}
