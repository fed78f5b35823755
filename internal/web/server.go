// Package web provides the HTTP server: the comment API, the upload target,
// image serving and the blog page with its comment widget.
package web

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/evcraddock/blogcomments/internal/client"
	"github.com/evcraddock/blogcomments/internal/comment"
	"github.com/evcraddock/blogcomments/internal/logging"
	"github.com/evcraddock/blogcomments/internal/upload"
	"github.com/evcraddock/blogcomments/internal/widget"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// uploadServlet is the only path upload URLs may forward to.
const uploadServlet = "/new-comment"

// Options configures a Server.
type Options struct {
	Limits  comment.Limits
	BaseURL string
	// UploadTTL is how long an issued upload URL stays valid.
	UploadTTL time.Duration
	Blobs     upload.Store
	Tokens    upload.TokenStore
}

// Server is the blog comment HTTP server.
type Server struct {
	comments  *comment.Service
	blobs     upload.Store
	tokens    upload.TokenStore
	limits    comment.Limits
	uploadTTL time.Duration
	templates *template.Template
	router    *mux.Router
	viewers   *viewerStore

	mu        sync.RWMutex
	baseURL   string
	issuer    *upload.Issuer
	widgetAPI string
}

// NewServer creates a server over the given database.
func NewServer(db *sql.DB, opts Options) (*Server, error) {
	if opts.Blobs == nil {
		return nil, errors.New("a blob store is required")
	}
	if opts.Tokens == nil {
		opts.Tokens = upload.NewSQLiteTokens(db)
	}
	if opts.Limits == (comment.Limits{}) {
		opts.Limits = comment.DefaultLimits()
	}

	tmpl, err := template.New("").Funcs(template.FuncMap{
		"seq": tmplSeq,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	s := &Server{
		comments:  comment.NewService(comment.NewRepository(db), opts.Blobs, opts.Limits),
		blobs:     opts.Blobs,
		tokens:    opts.Tokens,
		limits:    opts.Limits,
		uploadTTL: opts.UploadTTL,
		templates: tmpl,
		router:    mux.NewRouter(),
	}
	s.SetBaseURL(opts.BaseURL)
	s.viewers = newViewerStore(s.newController, viewerIdle)

	if err := s.routes(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) routes() error {
	staticContent, err := fs.Sub(staticFS, "static")
	if err != nil {
		return fmt.Errorf("creating static sub-fs: %w", err)
	}

	r := s.router
	r.Use(logging.RequestLogger)
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(staticContent))))
	r.HandleFunc("/health", handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/list-comments", s.apiListComments).Methods(http.MethodGet)
	r.HandleFunc("/pagination-comment", s.apiPaginationComment).Methods(http.MethodGet)
	r.HandleFunc("/new-comment", s.apiNewComment).Methods(http.MethodPost)
	r.HandleFunc("/delete-comment", s.apiDeleteComment).Methods(http.MethodPost)
	r.HandleFunc("/blobstore-upload-url", s.apiUploadURL).Methods(http.MethodGet)
	r.HandleFunc("/num-comments", s.apiNumComments).Methods(http.MethodGet)
	r.HandleFunc("/upload/{token:[0-9a-f]+}", s.handleUpload).Methods(http.MethodPost)
	r.HandleFunc("/images/{key:.+}", s.handleImage).Methods(http.MethodGet)

	r.HandleFunc("/", s.handleBlog).Methods(http.MethodGet)
	wr := r.PathPrefix("/widget/{blogId:[0-9]+}").Subrouter()
	wr.HandleFunc("/toggle", s.widgetToggle).Methods(http.MethodPost)
	wr.HandleFunc("/page-size", s.widgetPageSize).Methods(http.MethodPost)
	wr.HandleFunc("/page/{page:[0-9]+}", s.widgetPage).Methods(http.MethodPost)
	wr.HandleFunc("/submit", s.widgetSubmit).Methods(http.MethodPost)
	wr.HandleFunc("/delete", s.widgetDelete).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiError(w, "not found", http.StatusNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
	})
	return nil
}

// SetBaseURL sets the public URL upload URLs are built from and the
// widget calls the API through.
func (s *Server) SetBaseURL(baseURL string) {
	baseURL = strings.TrimSuffix(baseURL, "/")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseURL = baseURL
	s.widgetAPI = baseURL
	s.issuer = upload.NewIssuer(s.tokens, baseURL, s.uploadTTL, uploadServlet)
}

// SetWidgetBaseURL points the widget's API calls somewhere other than the
// public base URL, for example a loopback address behind a proxy.
func (s *Server) SetWidgetBaseURL(u string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.widgetAPI = strings.TrimSuffix(u, "/")
}

func (s *Server) uploadIssuer() *upload.Issuer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.issuer
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on port until ctx is canceled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.maintain(ctx, 10*time.Minute)

	s.mu.RLock()
	baseURL := s.baseURL
	s.mu.RUnlock()

	errc := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", srv.Addr, "base_url", baseURL)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		s.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	if err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

// maintain periodically drops expired upload tokens and idle viewers.
func (s *Server) maintain(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Server) sweep() {
	if c, ok := s.tokens.(interface{ Cleanup() error }); ok {
		if err := c.Cleanup(); err != nil {
			slog.Warn("cleaning up upload tokens", "error", err)
		}
	}
	if n := s.viewers.sweep(time.Now()); n > 0 {
		slog.Debug("closed idle viewers", "count", n)
	}
}

// Close stops every viewer's widget controller.
func (s *Server) Close() {
	s.viewers.closeAll()
}

// newController builds a widget controller with every blog post mounted.
func (s *Server) newController() *widget.Controller {
	s.mu.RLock()
	api := s.widgetAPI
	s.mu.RUnlock()

	ctrl := widget.New(client.New(api), widget.Options{
		BasePath:        "/widget",
		MaxPageSize:     s.limits.MaxPageSize,
		DefaultPageSize: s.limits.DefaultPageSize,
		UploadServlet:   uploadServlet,
	})
	ctrl.Mount(tmplSeq(1, s.limits.MaxBlogs)...)
	return ctrl
}

func tmplSeq(start, end int) []int {
	var s []int
	for i := start; i <= end; i++ {
		s = append(s, i)
	}
	return s
}
