package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/evcraddock/blogcomments/internal/widget"
)

const (
	viewerCookie = "blogc_viewer"
	viewerIdle   = 30 * time.Minute
)

// viewer is one browser's page state. Its lock serializes the widget
// events of that browser.
type viewer struct {
	mu       sync.Mutex
	ctrl     *widget.Controller
	lastSeen time.Time
}

// viewerStore maps viewer cookies to widget controllers.
type viewerStore struct {
	mu      sync.Mutex
	viewers map[string]*viewer
	factory func() *widget.Controller
	idle    time.Duration
}

func newViewerStore(factory func() *widget.Controller, idle time.Duration) *viewerStore {
	return &viewerStore{
		viewers: make(map[string]*viewer),
		factory: factory,
		idle:    idle,
	}
}

// get returns the viewer for the request's cookie, creating a new viewer
// and setting the cookie when there is none or it is unknown.
func (vs *viewerStore) get(w http.ResponseWriter, r *http.Request) *viewer {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if cookie, err := r.Cookie(viewerCookie); err == nil {
		if v, ok := vs.viewers[cookie.Value]; ok {
			v.lastSeen = time.Now()
			return v
		}
	}

	id := uuid.NewString()
	v := &viewer{ctrl: vs.factory(), lastSeen: time.Now()}
	vs.viewers[id] = v

	http.SetCookie(w, &http.Cookie{
		Name:     viewerCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return v
}

// sweep closes viewers idle since before now minus the idle timeout.
func (vs *viewerStore) sweep(now time.Time) int {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	n := 0
	for id, v := range vs.viewers {
		if now.Sub(v.lastSeen) < vs.idle {
			continue
		}
		v.ctrl.Close()
		delete(vs.viewers, id)
		n++
	}
	return n
}

func (vs *viewerStore) closeAll() {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	for id, v := range vs.viewers {
		v.ctrl.Close()
		delete(vs.viewers, id)
	}
}

func (vs *viewerStore) len() int {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return len(vs.viewers)
}
