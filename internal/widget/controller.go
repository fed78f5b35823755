// Package widget implements the blog comment sections: per post, a comment
// list, pagination, a submission form with optional image upload and a
// delete button, plus one chart of comment counts shared by all posts.
//
// A Controller owns an HTML node tree and talks to the comment API. Event
// methods (Toggle, ClickPage, Submit, ...) mutate the tree and start
// requests in the background; each response rebuilds the subtree it owns.
// Handlers run one at a time under the controller's lock, and every
// response is tagged with a generation so only the answer to the latest
// request for a subtree is ever rendered.
package widget

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"

	"golang.org/x/net/html"

	"github.com/evcraddock/blogcomments/internal/comment"
)

var (
	// ErrUnknownSection is returned for events on a blog id that was never mounted.
	ErrUnknownSection = errors.New("unknown comment section")
	// ErrUnknownPage is returned when a page link that is not rendered is clicked.
	ErrUnknownPage = errors.New("no such page link")
)

// API is the comment backend as seen by the widget.
type API interface {
	ListComments(ctx context.Context, blogID, pageSize, page int) ([]*comment.Comment, error)
	PageCount(ctx context.Context, blogID, pageSize int) (int, error)
	UploadURL(ctx context.Context, servletPath string) (string, error)
	UploadComment(ctx context.Context, uploadURL string, sub comment.Submission) (*comment.Comment, error)
	AddComment(ctx context.Context, sub comment.Submission) (*comment.Comment, error)
	DeleteComments(ctx context.Context, blogID int) (int64, error)
	CommentCounts(ctx context.Context) ([]comment.BlogCount, error)
}

// Options configures a controller.
type Options struct {
	// BasePath prefixes the widget event URLs rendered into the markup.
	BasePath        string
	MaxPageSize     int
	DefaultPageSize int
	// UploadServlet is the path upload URLs are requested for.
	UploadServlet string
}

// DefaultOptions returns the options used by the blog page.
func DefaultOptions() Options {
	return Options{
		BasePath:        "/widget",
		MaxPageSize:     5,
		DefaultPageSize: 3,
		UploadServlet:   "/new-comment",
	}
}

type section struct {
	id      int
	visible bool

	// Latest request generation issued for each subtree.
	listGen uint64
	pageGen uint64

	image *comment.Image
}

// Controller drives the comment sections of one page view.
type Controller struct {
	api    API
	opts   Options
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	doc      *Document
	sections map[int]*section
	chartGen uint64

	wg sync.WaitGroup
}

// New creates a controller with an empty document.
func New(api API, opts Options) *Controller {
	def := DefaultOptions()
	if opts.BasePath == "" {
		opts.BasePath = def.BasePath
	}
	if opts.MaxPageSize < 1 {
		opts.MaxPageSize = def.MaxPageSize
	}
	if opts.DefaultPageSize < 1 || opts.DefaultPageSize > opts.MaxPageSize {
		opts.DefaultPageSize = min(def.DefaultPageSize, opts.MaxPageSize)
	}
	if opts.UploadServlet == "" {
		opts.UploadServlet = def.UploadServlet
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		api:      api,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		doc:      NewDocument("comment-widget"),
		sections: make(map[int]*section),
	}
}

// Mount builds a hidden comment section for each blog id and the shared
// chart container. Ids that are already mounted are skipped.
func (c *Controller) Mount(blogIDs ...int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	chart := c.doc.ByID(ChartID)
	for _, id := range blogIDs {
		if _, ok := c.sections[id]; ok {
			continue
		}
		c.sections[id] = &section{id: id}
		node := c.buildSection(id)
		if chart != nil {
			c.doc.root.InsertBefore(node, chart)
		} else {
			c.doc.root.AppendChild(node)
		}
		slog.Debug("mounted comment section", "blog", id)
	}
	if chart == nil {
		c.doc.root.AppendChild(div("comment-chart", ChartID))
	}
}

// Wait blocks until every request in flight, and every request those
// trigger, has landed.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close cancels outstanding requests and waits for them to finish.
func (c *Controller) Close() {
	c.cancel()
	c.wg.Wait()
}

// Visible reports whether a section is shown.
func (c *Controller) Visible(blogID int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	sec, ok := c.sections[blogID]
	return ok && sec.visible
}

// Toggle flips a section's visibility and returns the new state. Showing
// a section refreshes it; hiding it does not.
func (c *Controller) Toggle(blogID int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sec, err := c.section(blogID)
	if err != nil {
		return false, err
	}
	c.setVisible(sec, !sec.visible)
	slog.Debug("toggled comment section", "blog", blogID, "visible", sec.visible)
	if sec.visible {
		c.refresh(sec)
	}
	return sec.visible, nil
}

// setVisible is the only writer of a section's visibility; the style
// attribute is always derived from it.
func (c *Controller) setVisible(sec *section, visible bool) {
	sec.visible = visible
	if n := c.doc.ByID(SectionID(sec.id)); n != nil {
		setAttr(n, "style", displayStyle(visible))
	}
}

// Refresh re-fetches a section from page 1 and redraws the chart.
func (c *Controller) Refresh(blogID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sec, err := c.section(blogID)
	if err != nil {
		return err
	}
	c.refresh(sec)
	return nil
}

// SelectPageSize selects the page size option with the given value and
// refreshes the section. Unknown values select the default option.
func (c *Controller) SelectPageSize(blogID int, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sec, err := c.section(blogID)
	if err != nil {
		return err
	}
	c.selectOption(blogID, value)
	c.refresh(sec)
	return nil
}

func (c *Controller) selectOption(blogID int, value string) {
	sel := c.doc.ByID(selectID(blogID))
	if sel == nil {
		return
	}
	opts := elementChildren(sel)
	match := -1
	for i, o := range opts {
		if hasAttr(o, "disabled") {
			continue
		}
		if attr(o, "value") == value {
			match = i
			break
		}
	}
	for i, o := range opts {
		removeAttr(o, "selected")
		// The disabled placeholder carries the default size.
		if i == match || (match < 0 && hasAttr(o, "disabled")) {
			setAttr(o, "selected", "")
		}
	}
}

// pageSize reads the selected page size, falling back to the default when
// the select is missing or holds an out-of-range value.
func (c *Controller) pageSize(blogID int) int {
	sel := c.doc.ByID(selectID(blogID))
	if sel == nil {
		return c.opts.DefaultPageSize
	}
	for _, o := range elementChildren(sel) {
		if !hasAttr(o, "selected") {
			continue
		}
		n, err := strconv.Atoi(attr(o, "value"))
		if err != nil || n < 1 || n > c.opts.MaxPageSize {
			break
		}
		return n
	}
	return c.opts.DefaultPageSize
}

// ClickPage loads the page a rendered page link points at, using the page
// size stored on the link. Pagination itself is left as is.
func (c *Controller) ClickPage(blogID, n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sec, err := c.section(blogID)
	if err != nil {
		return err
	}
	link := c.doc.ByID(PageLinkID(blogID, n))
	if link == nil {
		return fmt.Errorf("%w: blog %d page %d", ErrUnknownPage, blogID, n)
	}
	page, ok := intAttr(link, "data-page")
	if !ok {
		return fmt.Errorf("%w: blog %d page %d", ErrUnknownPage, blogID, n)
	}
	size, ok := intAttr(link, "data-page-size")
	if !ok {
		size = c.opts.DefaultPageSize
	}
	c.fetchComments(sec, size, page)
	return nil
}

// SetInputs fills the name and comment inputs of a section's form.
func (c *Controller) SetInputs(blogID int, name, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.section(blogID); err != nil {
		return err
	}
	if n := c.doc.ByID(nameInputID(blogID)); n != nil {
		setAttr(n, "value", name)
	}
	if n := c.doc.ByID(contentInputID(blogID)); n != nil {
		setAttr(n, "value", content)
	}
	return nil
}

// AttachImage sets the image sent with the next submission; nil detaches it.
func (c *Controller) AttachImage(blogID int, img *comment.Image) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sec, err := c.section(blogID)
	if err != nil {
		return err
	}
	c.setImage(sec, img)
	return nil
}

func (c *Controller) setImage(sec *section, img *comment.Image) {
	sec.image = img
	n := c.doc.ByID(imageInputID(sec.id))
	if n == nil {
		return
	}
	if img == nil {
		removeAttr(n, "data-filename")
		return
	}
	setAttr(n, "data-filename", img.Filename)
}

// inputs returns the current name and comment values of a section's form.
func (c *Controller) inputs(blogID int) (name, content string) {
	if n := c.doc.ByID(nameInputID(blogID)); n != nil {
		name = attr(n, "value")
	}
	if n := c.doc.ByID(contentInputID(blogID)); n != nil {
		content = attr(n, "value")
	}
	return name, content
}

// Submit sends the section's form. With an image attached it first asks
// for an upload URL and posts the multipart form there; otherwise it posts
// to the comment endpoint. Inputs are cleared only once the server has
// accepted the comment, and only those still holding the submitted values.
func (c *Controller) Submit(blogID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sec, err := c.section(blogID)
	if err != nil {
		return err
	}
	name, content := c.inputs(blogID)
	sub := comment.Submission{BlogID: blogID, Name: name, Content: content, Image: sec.image}

	c.clearError(sec)
	c.setLoading(sec, true)
	c.spawn(func(ctx context.Context) {
		var err error
		if sub.Image != nil {
			var uploadURL string
			uploadURL, err = c.api.UploadURL(ctx, c.opts.UploadServlet)
			if err == nil {
				_, err = c.api.UploadComment(ctx, uploadURL, sub)
			}
		} else {
			_, err = c.api.AddComment(ctx, sub)
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			c.setLoading(sec, false)
			c.fail(sec, "submitting comment", err)
			return
		}
		slog.Info("comment submitted", "blog", blogID, "image", sub.Image != nil)
		c.clearSubmitted(sec, sub)
		c.refresh(sec)
		c.setLoading(sec, false)
	})
	return nil
}

// clearSubmitted empties the inputs that still hold what sub sent. Text
// typed while the request was in flight stays.
func (c *Controller) clearSubmitted(sec *section, sub comment.Submission) {
	if n := c.doc.ByID(nameInputID(sec.id)); n != nil && attr(n, "value") == sub.Name {
		setAttr(n, "value", "")
	}
	if n := c.doc.ByID(contentInputID(sec.id)); n != nil && attr(n, "value") == sub.Content {
		setAttr(n, "value", "")
	}
	if sec.image == sub.Image {
		c.setImage(sec, nil)
	}
}

func (c *Controller) setLoading(sec *section, on bool) {
	n := c.doc.ByID(loadingID(sec.id))
	if n == nil {
		return
	}
	if on {
		setAttr(n, "style", "display: block")
		return
	}
	setAttr(n, "style", "display: none")
}

// DeleteAll deletes every comment of a post, then refreshes the section.
func (c *Controller) DeleteAll(blogID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sec, err := c.section(blogID)
	if err != nil {
		return err
	}
	c.clearError(sec)
	c.spawn(func(ctx context.Context) {
		n, err := c.api.DeleteComments(ctx, blogID)

		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			c.fail(sec, "deleting comments", err)
			return
		}
		slog.Info("comments deleted", "blog", blogID, "count", n)
		c.refresh(sec)
	})
	return nil
}

// DrawChart redraws the chart of comment counts.
func (c *Controller) DrawChart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drawChart()
}

// refresh redraws the chart and re-fetches page 1 and the pagination of a
// section. The three requests land independently.
func (c *Controller) refresh(sec *section) {
	size := c.pageSize(sec.id)
	c.clearError(sec)
	c.drawChart()
	c.fetchComments(sec, size, 1)
	c.fetchPageCount(sec, size)
}

func (c *Controller) fetchComments(sec *section, pageSize, page int) {
	sec.listGen++
	gen := sec.listGen
	c.spawn(func(ctx context.Context) {
		comments, err := c.api.ListComments(ctx, sec.id, pageSize, page)

		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != sec.listGen {
			slog.Debug("discarding stale comment list", "blog", sec.id, "page", page)
			return
		}
		if err != nil {
			c.fail(sec, "loading comments", err)
			return
		}
		c.renderComments(sec, comments, pageSize, page)
	})
}

func (c *Controller) renderComments(sec *section, comments []*comment.Comment, pageSize, page int) {
	container := c.doc.ByID(containerID(sec.id))
	if container == nil {
		return
	}
	nodes := []*html.Node{heading(4, "Comments")}
	if len(comments) == 0 {
		nodes = append(nodes, buildPlaceholder())
	}
	for _, cm := range comments {
		nodes = append(nodes, buildComment(cm))
	}
	replaceChildren(container, nodes...)
	setAttr(container, "data-page", strconv.Itoa(page))
	setAttr(container, "data-page-size", strconv.Itoa(pageSize))
}

func (c *Controller) fetchPageCount(sec *section, pageSize int) {
	sec.pageGen++
	gen := sec.pageGen
	c.spawn(func(ctx context.Context) {
		pages, err := c.api.PageCount(ctx, sec.id, pageSize)

		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != sec.pageGen {
			slog.Debug("discarding stale pagination", "blog", sec.id, "page_size", pageSize)
			return
		}
		if err != nil {
			c.fail(sec, "loading pagination", err)
			return
		}
		pagination := c.doc.ByID(paginationID(sec.id))
		if pagination == nil {
			return
		}
		links := make([]*html.Node, 0, pages)
		for i := 1; i <= pages; i++ {
			links = append(links, c.buildPageLink(sec.id, i, pageSize))
		}
		replaceChildren(pagination, links...)
	})
}

func (c *Controller) drawChart() {
	c.chartGen++
	gen := c.chartGen
	c.spawn(func(ctx context.Context) {
		counts, err := c.api.CommentCounts(ctx)

		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.chartGen {
			slog.Debug("discarding stale chart data")
			return
		}
		if err != nil {
			slog.Warn("loading comment counts failed", "error", err)
			return
		}
		chart := c.doc.ByID(ChartID)
		if chart == nil {
			return
		}
		// buildChart returns nothing for an empty dataset, which clears the chart.
		replaceChildren(chart, buildChart(counts)...)
	})
}

// spawn runs fn in the background; Wait covers it.
func (c *Controller) spawn(fn func(ctx context.Context)) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn(c.ctx)
	}()
}

func (c *Controller) section(blogID int) (*section, error) {
	sec, ok := c.sections[blogID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSection, blogID)
	}
	return sec, nil
}

// fail logs a failed request and shows it in the section's error slot.
func (c *Controller) fail(sec *section, action string, err error) {
	slog.Warn("comment widget request failed", "blog", sec.id, "action", action, "error", err)
	n := c.doc.ByID(errorID(sec.id))
	if n == nil {
		return
	}
	replaceChildren(n, paragraph(fmt.Sprintf("Error %s: %s", action, err.Error())))
}

func (c *Controller) clearError(sec *section) {
	if n := c.doc.ByID(errorID(sec.id)); n != nil {
		replaceChildren(n)
	}
}

// RenderSection writes a section's HTML.
func (c *Controller) RenderSection(w io.Writer, blogID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.section(blogID); err != nil {
		return err
	}
	return c.doc.Render(w, SectionID(blogID))
}

// RenderChart writes the chart container. With oob set the container is
// marked for an htmx out-of-band swap.
func (c *Controller) RenderChart(w io.Writer, oob bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	chart := c.doc.ByID(ChartID)
	if chart == nil {
		return fmt.Errorf("chart is not mounted")
	}
	if oob {
		setAttr(chart, "hx-swap-oob", "true")
		defer removeAttr(chart, "hx-swap-oob")
	}
	return html.Render(w, chart)
}

// Sections returns the mounted blog ids in document order.
func (c *Controller) Sections() []int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var ids []int
	for _, n := range elementChildren(c.doc.root) {
		id := attr(n, "id")
		for blogID := range c.sections {
			if id == SectionID(blogID) {
				ids = append(ids, blogID)
				break
			}
		}
	}
	return ids
}
