package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/evcraddock/blogcomments/internal/comment"
	"github.com/evcraddock/blogcomments/internal/upload"
)

// Result kinds of the response envelope.
const (
	kindOK    = "ok"
	kindError = "error"
)

type envelope struct {
	Kind    string      `json:"kind"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// apiError writes an error envelope.
func apiError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, envelope{Kind: kindError, Message: msg}, code)
}

// apiJSON writes an ok envelope around data.
func apiJSON(w http.ResponseWriter, data interface{}, code int) {
	writeJSON(w, envelope{Kind: kindOK, Data: data}, code)
}

func writeJSON(w http.ResponseWriter, v interface{}, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

// apiFail maps an error to a status code and writes it as an envelope.
// Input errors carry their message; unexpected errors are logged and
// reported generically.
func apiFail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, comment.ErrInvalid):
		apiError(w, strings.TrimPrefix(err.Error(), comment.ErrInvalid.Error()+": "), http.StatusBadRequest)
	case errors.Is(err, upload.ErrServletNotAllowed):
		apiError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, upload.ErrTokenInvalid):
		apiError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, upload.ErrTokenUsed):
		apiError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, upload.ErrTokenExpired):
		apiError(w, err.Error(), http.StatusGone)
	case errors.Is(err, upload.ErrNoSuchObject):
		apiError(w, "not found", http.StatusNotFound)
	default:
		slog.Error("request failed", "path", r.URL.Path, "error", err)
		apiError(w, "internal error", http.StatusInternalServerError)
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (s *Server) blogParam(r *http.Request) (int, error) {
	return comment.ParseBounded(r.FormValue("blog-number"), "blog-number", 1, s.limits.MaxBlogs)
}

func (s *Server) pageSizeParam(r *http.Request) (int, error) {
	return comment.ParseBounded(r.FormValue("num-comments"), "num-comments", 1, s.limits.MaxPageSize)
}

// apiListComments returns one page of a blog post's comments.
func (s *Server) apiListComments(w http.ResponseWriter, r *http.Request) {
	pageSize, err := s.pageSizeParam(r)
	if err != nil {
		apiFail(w, r, err)
		return
	}
	blogID, err := s.blogParam(r)
	if err != nil {
		apiFail(w, r, err)
		return
	}
	// The upper bound depends on the post and is checked by the service.
	page, err := comment.ParseBounded(r.FormValue("page-number"), "page-number", 1, math.MaxInt32)
	if err != nil {
		apiFail(w, r, err)
		return
	}

	comments, err := s.comments.List(blogID, pageSize, page)
	if err != nil {
		apiFail(w, r, err)
		return
	}
	apiJSON(w, comments, http.StatusOK)
}

// apiPaginationComment returns the highest page number of a blog post.
func (s *Server) apiPaginationComment(w http.ResponseWriter, r *http.Request) {
	pageSize, err := s.pageSizeParam(r)
	if err != nil {
		apiFail(w, r, err)
		return
	}
	blogID, err := s.blogParam(r)
	if err != nil {
		apiFail(w, r, err)
		return
	}

	pages, err := s.comments.PageCount(blogID, pageSize)
	if err != nil {
		apiFail(w, r, err)
		return
	}
	apiJSON(w, pages, http.StatusOK)
}

// apiNewComment creates a comment from a form or multipart body.
func (s *Server) apiNewComment(w http.ResponseWriter, r *http.Request) {
	sub, err := s.readSubmission(r)
	if err != nil {
		apiFail(w, r, err)
		return
	}

	c, err := s.comments.Create(r.Context(), sub)
	if err != nil {
		apiFail(w, r, err)
		return
	}
	apiJSON(w, c, http.StatusOK)
}

// apiDeleteComment deletes all comments of a blog post.
func (s *Server) apiDeleteComment(w http.ResponseWriter, r *http.Request) {
	blogID, err := s.blogParam(r)
	if err != nil {
		apiFail(w, r, err)
		return
	}

	n, err := s.comments.DeleteAll(r.Context(), blogID)
	if err != nil {
		apiFail(w, r, err)
		return
	}
	apiJSON(w, n, http.StatusOK)
}

// apiUploadURL issues a one-time URL that forwards a multipart upload to
// the requested servlet path.
func (s *Server) apiUploadURL(w http.ResponseWriter, r *http.Request) {
	servlet := r.FormValue("servlet-url")
	if servlet == "" {
		apiError(w, "parameter servlet-url was not found", http.StatusBadRequest)
		return
	}

	u, err := s.uploadIssuer().URL(r.Context(), servlet)
	if err != nil {
		apiFail(w, r, err)
		return
	}
	apiJSON(w, u, http.StatusOK)
}

// apiNumComments returns [blogId, count] for every post with comments.
func (s *Server) apiNumComments(w http.ResponseWriter, r *http.Request) {
	counts, err := s.comments.Counts()
	if err != nil {
		apiFail(w, r, err)
		return
	}
	if counts == nil {
		counts = []comment.BlogCount{}
	}
	apiJSON(w, counts, http.StatusOK)
}

// handleUpload redeems an upload token and hands the request to the
// servlet the token was issued for.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	servlet, err := s.uploadIssuer().Redeem(r.Context(), mux.Vars(r)["token"])
	if err != nil {
		apiFail(w, r, err)
		return
	}

	switch servlet {
	case "/new-comment":
		s.apiNewComment(w, r)
	default:
		apiFail(w, r, fmt.Errorf("%w: %q", upload.ErrServletNotAllowed, servlet))
	}
}

// handleImage serves a stored comment image.
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	obj, err := s.blobs.Get(r.Context(), mux.Vars(r)["key"])
	if err != nil {
		apiFail(w, r, err)
		return
	}
	defer func() {
		if cerr := obj.Close(); cerr != nil {
			slog.Warn("closing image", "error", cerr)
		}
	}()

	if obj.ContentType != "" {
		w.Header().Set("Content-Type", obj.ContentType)
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if _, err := io.Copy(w, obj); err != nil {
		slog.Warn("writing image", "error", err)
	}
}

// readSubmission reads blog-number, name, comment (or content) and an
// optional image file from a url-encoded or multipart body.
func (s *Server) readSubmission(r *http.Request) (comment.Submission, error) {
	maxBody := s.limits.MaxImageBytes + 1<<20
	r.Body = http.MaxBytesReader(nil, r.Body, maxBody)

	err := r.ParseMultipartForm(maxBody)
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return comment.Submission{}, fmt.Errorf("%w: request body is larger than %d bytes", comment.ErrInvalid, maxBody)
		}
		return comment.Submission{}, fmt.Errorf("%w: reading form: %v", comment.ErrInvalid, err)
	}

	blogID, err := s.blogParam(r)
	if err != nil {
		return comment.Submission{}, err
	}

	content := r.FormValue("comment")
	if content == "" {
		content = r.FormValue("content")
	}
	sub := comment.Submission{
		BlogID:  blogID,
		Name:    r.FormValue("name"),
		Content: content,
	}

	img, err := formImage(r, "image", s.limits.MaxImageBytes)
	if err != nil {
		return comment.Submission{}, err
	}
	sub.Image = img
	return sub, nil
}

// formImage reads an uploaded file. A missing or empty file field is not
// an error: the submission simply has no image.
func formImage(r *http.Request, field string, maxBytes int64) (*comment.Image, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	f, hdr, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", comment.ErrInvalid, field, err)
	}
	defer closeFile(f)

	if hdr.Size == 0 && hdr.Filename == "" {
		return nil, nil
	}
	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", field, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return &comment.Image{
		Filename:    hdr.Filename,
		ContentType: hdr.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func closeFile(f multipart.File) {
	if err := f.Close(); err != nil {
		slog.Warn("closing uploaded file", "error", err)
	}
}
