package widget

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/evcraddock/blogcomments/internal/comment"
)

type listCall struct {
	blogID, pageSize, page int
}

// fakeAPI keeps comments in memory and records the calls it receives.
type fakeAPI struct {
	mu       sync.Mutex
	comments map[int][]*comment.Comment

	listCalls   []listCall
	pageCalls   []listCall
	countCalls  int
	uploadURLs  int
	uploads     []comment.Submission
	adds        []comment.Submission
	deleteCalls []int

	// addErr is returned by AddComment and UploadComment when set.
	addErr error
	// gate, when set, is consulted before ListComments answers.
	gate func(c listCall)
	// pageGate is consulted before PageCount answers.
	pageGate func(pageSize int)
	// countGate is consulted after CommentCounts has read the counts, with
	// the number of the call.
	countGate func(call int)
	// addGate is consulted before AddComment stores the comment.
	addGate func(sub comment.Submission)
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{comments: make(map[int][]*comment.Comment)}
}

func (f *fakeAPI) seed(blogID, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 1; i <= n; i++ {
		f.comments[blogID] = append(f.comments[blogID], &comment.Comment{
			ID: int64(len(f.comments[blogID]) + 1), BlogID: blogID,
			Name: fmt.Sprintf("user%d", i), Content: fmt.Sprintf("comment %d", i),
		})
	}
}

func (f *fakeAPI) ListComments(_ context.Context, blogID, pageSize, page int) ([]*comment.Comment, error) {
	call := listCall{blogID, pageSize, page}
	f.mu.Lock()
	f.listCalls = append(f.listCalls, call)
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		gate(call)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.comments[blogID]
	start := (page - 1) * pageSize
	if start >= len(all) {
		return []*comment.Comment{}, nil
	}
	end := min(start+pageSize, len(all))
	return all[start:end], nil
}

func (f *fakeAPI) PageCount(_ context.Context, blogID, pageSize int) (int, error) {
	f.mu.Lock()
	f.pageCalls = append(f.pageCalls, listCall{blogID: blogID, pageSize: pageSize})
	gate := f.pageGate
	f.mu.Unlock()
	if gate != nil {
		gate(pageSize)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return comment.DefaultLimits().PageCount(len(f.comments[blogID]), pageSize), nil
}

func (f *fakeAPI) UploadURL(_ context.Context, servletPath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploadURLs++
	return "http://test/upload/tok" + servletPath, nil
}

func (f *fakeAPI) UploadComment(_ context.Context, _ string, sub comment.Submission) (*comment.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, sub)
	return f.addLocked(sub)
}

func (f *fakeAPI) AddComment(_ context.Context, sub comment.Submission) (*comment.Comment, error) {
	f.mu.Lock()
	gate := f.addGate
	f.mu.Unlock()
	if gate != nil {
		gate(sub)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.adds = append(f.adds, sub)
	return f.addLocked(sub)
}

func (f *fakeAPI) addLocked(sub comment.Submission) (*comment.Comment, error) {
	if f.addErr != nil {
		return nil, f.addErr
	}
	cm := &comment.Comment{ID: 99, BlogID: sub.BlogID, Name: sub.Name, Content: sub.Content}
	f.comments[sub.BlogID] = append([]*comment.Comment{cm}, f.comments[sub.BlogID]...)
	return cm, nil
}

func (f *fakeAPI) DeleteComments(_ context.Context, blogID int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls = append(f.deleteCalls, blogID)
	n := int64(len(f.comments[blogID]))
	delete(f.comments, blogID)
	return n, nil
}

func (f *fakeAPI) CommentCounts(_ context.Context) ([]comment.BlogCount, error) {
	f.mu.Lock()
	f.countCalls++
	call := f.countCalls
	var out []comment.BlogCount
	for id := 1; id <= 5; id++ {
		if n := len(f.comments[id]); n > 0 {
			out = append(out, comment.BlogCount{BlogID: id, Count: n})
		}
	}
	gate := f.countGate
	f.mu.Unlock()
	if gate != nil {
		gate(call)
	}
	return out, nil
}

func (f *fakeAPI) lastList() listCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls[len(f.listCalls)-1]
}

func (f *fakeAPI) listCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listCalls)
}

func newTestController(t *testing.T, api API, blogIDs ...int) *Controller {
	t.Helper()
	c := New(api, DefaultOptions())
	c.Mount(blogIDs...)
	t.Cleanup(c.Close)
	return c
}

// node returns the node with id under the controller lock.
func node(c *Controller, id string) *html.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc.ByID(id)
}

// attrOf reads an attribute under the controller lock.
func attrOf(c *Controller, id, key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.doc.ByID(id)
	if n == nil {
		return ""
	}
	return attr(n, key)
}

func commentNodes(t *testing.T, c *Controller, blogID int) []*html.Node {
	t.Helper()
	container := node(c, containerID(blogID))
	require.NotNil(t, container)
	var out []*html.Node
	for _, n := range elementChildren(container) {
		if strings.Contains(attr(n, "class"), "comment") {
			out = append(out, n)
		}
	}
	return out
}

func TestMountBuildsHiddenSections(t *testing.T) {
	c := newTestController(t, newFakeAPI(), 1, 2, 3)

	assert.Equal(t, []int{1, 2, 3}, c.Sections())
	for _, id := range []int{1, 2, 3} {
		sec := node(c, SectionID(id))
		require.NotNil(t, sec, "section %d", id)
		assert.Equal(t, "display: none", attr(sec, "style"))
		for _, child := range []string{
			selectID(id), errorID(id), containerID(id), formID(id),
			nameInputID(id), contentInputID(id), imageInputID(id),
			loadingID(id), paginationID(id),
		} {
			assert.NotNil(t, node(c, child), "missing %s", child)
		}
	}
	require.NotNil(t, node(c, ChartID))

	c.Mount(2, 4)
	assert.Equal(t, []int{1, 2, 3, 4}, c.Sections(), "remounting is a no-op")
}

func TestPageSizeSelectOptions(t *testing.T) {
	c := newTestController(t, newFakeAPI(), 1)

	opts := elementChildren(node(c, selectID(1)))
	require.Len(t, opts, 6)
	assert.Equal(t, "3", attr(opts[0], "value"))
	assert.True(t, hasAttr(opts[0], "disabled"))
	assert.True(t, hasAttr(opts[0], "selected"))
	for i := 1; i <= 5; i++ {
		assert.Equal(t, fmt.Sprint(i), attr(opts[i], "value"))
	}
}

func TestToggleTwiceRefreshesOnce(t *testing.T) {
	api := newFakeAPI()
	c := newTestController(t, api, 1)

	visible, err := c.Toggle(1)
	require.NoError(t, err)
	assert.True(t, visible)
	c.Wait()
	assert.Equal(t, "display: inline-flex", attr(node(c, SectionID(1)), "style"))

	visible, err = c.Toggle(1)
	require.NoError(t, err)
	assert.False(t, visible)
	c.Wait()

	assert.Equal(t, "display: none", attr(node(c, SectionID(1)), "style"))
	assert.False(t, c.Visible(1))
	assert.Equal(t, 1, api.listCount(), "only the show transition refreshes")
	assert.Len(t, api.pageCalls, 1)
	assert.Equal(t, 1, api.countCalls)
}

func TestToggleUnknownSection(t *testing.T) {
	c := newTestController(t, newFakeAPI(), 1)
	_, err := c.Toggle(7)
	assert.ErrorIs(t, err, ErrUnknownSection)
}

func TestRefreshResetsToFirstPage(t *testing.T) {
	api := newFakeAPI()
	api.seed(1, 10)
	c := newTestController(t, api, 1)

	_, err := c.Toggle(1)
	require.NoError(t, err)
	c.Wait()

	require.NoError(t, c.ClickPage(1, 3))
	c.Wait()
	assert.Equal(t, "3", attr(node(c, containerID(1)), "data-page"))

	require.NoError(t, c.Refresh(1))
	c.Wait()
	assert.Equal(t, listCall{1, 3, 1}, api.lastList())
	assert.Equal(t, "1", attr(node(c, containerID(1)), "data-page"))
}

func TestEmptyListRendersSinglePlaceholder(t *testing.T) {
	c := newTestController(t, newFakeAPI(), 2)

	_, err := c.Toggle(2)
	require.NoError(t, err)
	c.Wait()

	nodes := commentNodes(t, c, 2)
	require.Len(t, nodes, 1)
	assert.Equal(t, Placeholder, strings.TrimSpace(textContent(nodes[0])))
	assert.Empty(t, elementChildren(node(c, paginationID(2))), "no pages without comments")
}

func TestCommentsRendered(t *testing.T) {
	api := newFakeAPI()
	api.seed(1, 2)
	api.comments[1][0].ImageURL = "/images/blog-1/a.png"
	c := newTestController(t, api, 1)

	require.NoError(t, c.Refresh(1))
	c.Wait()

	nodes := commentNodes(t, c, 1)
	require.Len(t, nodes, 2)
	assert.Contains(t, textContent(nodes[0]), "user1")
	assert.Contains(t, textContent(nodes[0]), "comment 1")

	var buf strings.Builder
	require.NoError(t, c.RenderSection(&buf, 1))
	assert.Contains(t, buf.String(), `src="/images/blog-1/a.png"`)
}

func TestPaginationLinks(t *testing.T) {
	api := newFakeAPI()
	api.seed(1, 7)
	c := newTestController(t, api, 1)

	require.NoError(t, c.SelectPageSize(1, "2"))
	c.Wait()

	links := elementChildren(node(c, paginationID(1)))
	require.Len(t, links, 4)
	for i, a := range links {
		n := i + 1
		assert.Equal(t, PageLinkID(1, n), attr(a, "id"))
		assert.Equal(t, fmt.Sprint(n), textContent(a))
		assert.Equal(t, fmt.Sprint(n), attr(a, "data-page"))
		assert.Equal(t, "2", attr(a, "data-page-size"))
	}

	for n := 1; n <= 4; n++ {
		require.NoError(t, c.ClickPage(1, n))
		c.Wait()
		assert.Equal(t, listCall{1, 2, n}, api.lastList())
	}
}

func TestPageLinkKeepsItsOwnPageSize(t *testing.T) {
	api := newFakeAPI()
	api.seed(1, 9)
	c := newTestController(t, api, 1)

	require.NoError(t, c.Refresh(1))
	c.Wait()
	pagesBefore := len(api.pageCalls)

	// Change the select without a refresh, as a stale page would.
	c.mu.Lock()
	c.selectOption(1, "5")
	c.mu.Unlock()

	require.NoError(t, c.ClickPage(1, 3))
	c.Wait()
	assert.Equal(t, listCall{1, 3, 3}, api.lastList())
	assert.Len(t, api.pageCalls, pagesBefore, "clicking a page does not rebuild pagination")

	assert.ErrorIs(t, c.ClickPage(1, 9), ErrUnknownPage)
}

func TestSelectPageSizeFallsBackToDefault(t *testing.T) {
	api := newFakeAPI()
	c := newTestController(t, api, 1)

	require.NoError(t, c.SelectPageSize(1, "4"))
	c.Wait()
	assert.Equal(t, 4, api.lastList().pageSize)

	require.NoError(t, c.SelectPageSize(1, "42"))
	c.Wait()
	assert.Equal(t, 3, api.lastList().pageSize)

	c.mu.Lock()
	sel := c.doc.ByID(selectID(1))
	sel.Parent.RemoveChild(sel)
	c.mu.Unlock()
	require.NoError(t, c.Refresh(1))
	c.Wait()
	assert.Equal(t, 3, api.lastList().pageSize)
}

func TestSubmitClearsInputsOnlyAfterSuccess(t *testing.T) {
	api := newFakeAPI()
	release := make(chan struct{})
	var once sync.Once
	entered := make(chan struct{})
	api.gate = func(listCall) {
		once.Do(func() { close(entered) })
		<-release
	}
	c := newTestController(t, api, 1)

	require.NoError(t, c.SetInputs(1, "ann", "hello"))
	api.mu.Lock()
	api.addErr = errors.New("name is required")
	api.mu.Unlock()

	require.NoError(t, c.Submit(1))
	c.Wait()
	assert.Equal(t, "ann", attr(node(c, nameInputID(1)), "value"), "kept after failure")
	assert.Equal(t, "hello", attr(node(c, contentInputID(1)), "value"))
	assert.Contains(t, textContent(node(c, errorID(1))), "name is required")
	assert.Equal(t, "display: none", attr(node(c, loadingID(1)), "style"))
	assert.Equal(t, 0, api.listCount(), "failed submit does not refresh")

	api.mu.Lock()
	api.addErr = nil
	api.mu.Unlock()

	require.NoError(t, c.Submit(1))
	<-entered
	// The refresh triggered by success is in flight: inputs are already clear.
	assert.Equal(t, "", attrOf(c, nameInputID(1), "value"))
	assert.Equal(t, "", attrOf(c, contentInputID(1), "value"))
	close(release)
	c.Wait()

	require.Len(t, api.adds, 2)
	assert.Equal(t, comment.Submission{BlogID: 1, Name: "ann", Content: "hello"}, api.adds[1])
	assert.Empty(t, textContent(node(c, errorID(1))))
	nodes := commentNodes(t, c, 1)
	require.Len(t, nodes, 1)
	assert.Contains(t, textContent(nodes[0]), "hello")
}

func TestSubmitKeepsInputsEditedInFlight(t *testing.T) {
	api := newFakeAPI()
	release := make(chan struct{})
	entered := make(chan struct{})
	api.addGate = func(comment.Submission) {
		close(entered)
		<-release
	}
	c := newTestController(t, api, 1)

	img := &comment.Image{Filename: "cat.png", ContentType: "image/png", Data: []byte("pixels")}
	require.NoError(t, c.SetInputs(1, "ann", "first"))
	require.NoError(t, c.Submit(1))
	<-entered

	// Typed while the first comment is being posted.
	require.NoError(t, c.SetInputs(1, "ann", "second"))
	require.NoError(t, c.AttachImage(1, img))
	close(release)
	c.Wait()

	require.Len(t, api.adds, 1)
	assert.Equal(t, "first", api.adds[0].Content)
	assert.Equal(t, "", attr(node(c, nameInputID(1)), "value"), "unchanged input is cleared")
	assert.Equal(t, "second", attr(node(c, contentInputID(1)), "value"), "edited input survives")
	assert.Equal(t, "cat.png", attr(node(c, imageInputID(1)), "data-filename"), "image attached later survives")
}

func TestSubmitWithImageUsesUploadURL(t *testing.T) {
	api := newFakeAPI()
	c := newTestController(t, api, 3)

	img := &comment.Image{Filename: "cat.png", ContentType: "image/png", Data: []byte("pixels")}
	require.NoError(t, c.SetInputs(3, "cat", "look"))
	require.NoError(t, c.AttachImage(3, img))
	assert.Equal(t, "cat.png", attr(node(c, imageInputID(3)), "data-filename"))

	require.NoError(t, c.Submit(3))
	c.Wait()

	assert.Equal(t, 1, api.uploadURLs)
	require.Len(t, api.uploads, 1)
	assert.Same(t, img, api.uploads[0].Image)
	assert.Empty(t, api.adds)
	assert.False(t, hasAttr(node(c, imageInputID(3)), "data-filename"), "image detached after success")

	require.NoError(t, c.Submit(3))
	c.Wait()
	assert.Equal(t, 1, api.uploadURLs, "no image, no upload URL")
	assert.Len(t, api.adds, 1)
}

func TestDeleteAllShowsPlaceholder(t *testing.T) {
	api := newFakeAPI()
	api.seed(2, 4)
	c := newTestController(t, api, 2)

	require.NoError(t, c.Refresh(2))
	c.Wait()
	require.Len(t, commentNodes(t, c, 2), 3)

	require.NoError(t, c.DeleteAll(2))
	c.Wait()

	assert.Equal(t, []int{2}, api.deleteCalls)
	comments, err := api.ListComments(context.Background(), 2, 3, 1)
	require.NoError(t, err)
	assert.Empty(t, comments)

	nodes := commentNodes(t, c, 2)
	require.Len(t, nodes, 1)
	assert.Contains(t, textContent(nodes[0]), Placeholder)
	assert.Empty(t, elementChildren(node(c, paginationID(2))))
}

func TestStaleListResponseDiscarded(t *testing.T) {
	api := newFakeAPI()
	api.seed(1, 9)
	c := newTestController(t, api, 1)
	require.NoError(t, c.Refresh(1))
	c.Wait()

	slow := make(chan struct{})
	api.mu.Lock()
	api.gate = func(call listCall) {
		if call.page == 2 {
			<-slow
		}
	}
	api.mu.Unlock()

	require.NoError(t, c.ClickPage(1, 2))
	require.NoError(t, c.ClickPage(1, 3))
	// Let page 3 land first, then release the older page 2 request.
	require.Eventually(t, func() bool {
		return attrOf(c, containerID(1), "data-page") == "3"
	}, time.Second, time.Millisecond)
	close(slow)
	c.Wait()

	assert.Equal(t, "3", attr(node(c, containerID(1)), "data-page"), "last click wins")
	assert.Contains(t, textContent(node(c, containerID(1))), "comment 7")
}

func TestStalePaginationDiscarded(t *testing.T) {
	api := newFakeAPI()
	api.seed(1, 7)
	slow := make(chan struct{})
	api.pageGate = func(pageSize int) {
		if pageSize == 1 {
			<-slow
		}
	}
	c := newTestController(t, api, 1)

	require.NoError(t, c.SelectPageSize(1, "1"))
	require.NoError(t, c.SelectPageSize(1, "5"))
	// The size 5 pagination lands while the size 1 request is held back.
	require.Eventually(t, func() bool {
		return attrOf(c, PageLinkID(1, 2), "data-page-size") == "5"
	}, time.Second, time.Millisecond)
	close(slow)
	c.Wait()

	links := elementChildren(node(c, paginationID(1)))
	require.Len(t, links, 2, "seven comments at five per page")
	for _, a := range links {
		assert.Equal(t, "5", attr(a, "data-page-size"))
	}
}

func TestStaleChartDiscarded(t *testing.T) {
	api := newFakeAPI()
	api.seed(1, 2)
	slow := make(chan struct{})
	entered := make(chan struct{})
	api.countGate = func(call int) {
		if call == 1 {
			close(entered)
			<-slow
		}
	}
	c := newTestController(t, api, 1, 2)

	c.DrawChart()
	// The first request has read its counts before the data changes.
	<-entered
	api.seed(2, 4)
	c.DrawChart()
	require.Eventually(t, func() bool {
		var buf strings.Builder
		return c.RenderChart(&buf, false) == nil && strings.Contains(buf.String(), "Blog Post 2: 4")
	}, time.Second, time.Millisecond)
	close(slow)
	c.Wait()

	var buf strings.Builder
	require.NoError(t, c.RenderChart(&buf, false))
	out := buf.String()
	assert.Contains(t, out, "Blog Post 1: 2")
	assert.Contains(t, out, "Blog Post 2: 4", "the older dataset does not overwrite the newer one")
	assert.Equal(t, 2, strings.Count(out, `class="slice"`))
}

type failingAPI struct {
	*fakeAPI
}

func (failingAPI) ListComments(context.Context, int, int, int) ([]*comment.Comment, error) {
	return nil, errors.New("please enter an integer between 1 to 5 for blog-number")
}

func TestFetchErrorRenderedInSection(t *testing.T) {
	c := newTestController(t, failingAPI{newFakeAPI()}, 1)

	require.NoError(t, c.Refresh(1))
	c.Wait()
	assert.Contains(t, textContent(node(c, errorID(1))), "between 1 to 5")
	assert.Empty(t, commentNodes(t, c, 1))
}

func TestChart(t *testing.T) {
	api := newFakeAPI()
	c := newTestController(t, api, 1, 2)

	c.DrawChart()
	c.Wait()
	assert.Nil(t, node(c, ChartID).FirstChild, "empty dataset clears the chart")

	api.seed(1, 3)
	api.seed(2, 1)
	c.DrawChart()
	c.Wait()

	var buf strings.Builder
	require.NoError(t, c.RenderChart(&buf, true))
	out := buf.String()
	assert.Contains(t, out, `hx-swap-oob="true"`)
	assert.Contains(t, out, "<svg")
	assert.Equal(t, 2, strings.Count(out, `class="slice"`))
	assert.Contains(t, out, "Blog Post 1: 3")
	assert.Contains(t, out, "Blog Post 2: 1")
	assert.False(t, hasAttr(node(c, ChartID), "hx-swap-oob"), "oob marker is render-only")

	api.mu.Lock()
	delete(api.comments, 1)
	delete(api.comments, 2)
	api.mu.Unlock()
	c.DrawChart()
	c.Wait()
	assert.Nil(t, node(c, ChartID).FirstChild)
}

func TestChartSingleSliceIsCircle(t *testing.T) {
	nodes := buildChart([]comment.BlogCount{{BlogID: 4, Count: 2}})
	require.Len(t, nodes, 3)
	var buf strings.Builder
	require.NoError(t, html.Render(&buf, nodes[1]))
	assert.Contains(t, buf.String(), "<circle")
}
