package web

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/evcraddock/blogcomments/internal/comment"
	"github.com/evcraddock/blogcomments/internal/widget"
)

type blogPost struct {
	ID      int
	Section template.HTML
}

type blogData struct {
	Posts []blogPost
	Chart template.HTML
}

// handleBlog renders the blog page with a hidden comment section per post
// and the comment chart.
func (s *Server) handleBlog(w http.ResponseWriter, r *http.Request) {
	v := s.viewers.get(w, r)
	v.mu.Lock()
	defer v.mu.Unlock()

	v.ctrl.DrawChart()
	v.ctrl.Wait()

	var data blogData
	for _, id := range v.ctrl.Sections() {
		var buf bytes.Buffer
		if err := v.ctrl.RenderSection(&buf, id); err != nil {
			http.Error(w, fmt.Sprintf("Error rendering section: %v", err), http.StatusInternalServerError)
			return
		}
		data.Posts = append(data.Posts, blogPost{ID: id, Section: template.HTML(buf.String())})
	}

	var chart bytes.Buffer
	if err := v.ctrl.RenderChart(&chart, false); err != nil {
		http.Error(w, fmt.Sprintf("Error rendering chart: %v", err), http.StatusInternalServerError)
		return
	}
	data.Chart = template.HTML(chart.String())

	s.render(w, "blog.html", data)
}

func (s *Server) render(w http.ResponseWriter, name string, data interface{}) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		http.Error(w, fmt.Sprintf("Error rendering template: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("writing page", "error", err)
	}
}

// widgetEvent runs an event against the viewer's controller, waits for
// the requests it starts, and replies with the section and an out-of-band
// chart.
func (s *Server) widgetEvent(w http.ResponseWriter, r *http.Request, event func(ctrl *widget.Controller, blogID int) error) {
	blogID, err := strconv.Atoi(mux.Vars(r)["blogId"])
	if err != nil {
		http.Error(w, "invalid blog id", http.StatusBadRequest)
		return
	}

	v := s.viewers.get(w, r)
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := event(v.ctrl, blogID); err != nil {
		widgetError(w, err)
		return
	}
	v.ctrl.Wait()

	var buf bytes.Buffer
	if err := v.ctrl.RenderSection(&buf, blogID); err != nil {
		widgetError(w, err)
		return
	}
	if err := v.ctrl.RenderChart(&buf, true); err != nil {
		widgetError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("writing widget response", "error", err)
	}
}

func widgetError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, widget.ErrUnknownSection), errors.Is(err, widget.ErrUnknownPage):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, comment.ErrInvalid):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		slog.Error("widget event failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server) widgetToggle(w http.ResponseWriter, r *http.Request) {
	s.widgetEvent(w, r, func(ctrl *widget.Controller, blogID int) error {
		_, err := ctrl.Toggle(blogID)
		return err
	})
}

func (s *Server) widgetPageSize(w http.ResponseWriter, r *http.Request) {
	value := r.FormValue("num-comments")
	s.widgetEvent(w, r, func(ctrl *widget.Controller, blogID int) error {
		return ctrl.SelectPageSize(blogID, value)
	})
}

func (s *Server) widgetPage(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(mux.Vars(r)["page"])
	if err != nil {
		http.Error(w, "invalid page", http.StatusBadRequest)
		return
	}
	s.widgetEvent(w, r, func(ctrl *widget.Controller, blogID int) error {
		return ctrl.ClickPage(blogID, page)
	})
}

// widgetSubmit copies the posted form into the section's inputs and
// submits it. Validation happens in the API; its errors show up inside the
// section.
func (s *Server) widgetSubmit(w http.ResponseWriter, r *http.Request) {
	maxBody := s.limits.MaxImageBytes + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := r.ParseMultipartForm(maxBody); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		http.Error(w, fmt.Sprintf("reading form: %v", err), http.StatusBadRequest)
		return
	}
	img, err := formImage(r, "image", s.limits.MaxImageBytes)
	if err != nil {
		widgetError(w, err)
		return
	}
	name, content := r.FormValue("name"), r.FormValue("comment")

	s.widgetEvent(w, r, func(ctrl *widget.Controller, blogID int) error {
		if err := ctrl.SetInputs(blogID, name, content); err != nil {
			return err
		}
		if err := ctrl.AttachImage(blogID, img); err != nil {
			return err
		}
		return ctrl.Submit(blogID)
	})
}

func (s *Server) widgetDelete(w http.ResponseWriter, r *http.Request) {
	s.widgetEvent(w, r, func(ctrl *widget.Controller, blogID int) error {
		return ctrl.DeleteAll(blogID)
	})
}
