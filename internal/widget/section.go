package widget

import (
	"fmt"
	"strconv"

	"golang.org/x/net/html"

	"github.com/evcraddock/blogcomments/internal/comment"
)

// ChartID is the id of the page-wide chart container.
const ChartID = "comment-chart"

// Placeholder is shown in place of a comment list when a post has none.
const Placeholder = "There are no comments"

// SectionID is the id of a post's comment section.
func SectionID(blogID int) string { return fmt.Sprintf("comment-section-%d", blogID) }

func selectID(blogID int) string     { return fmt.Sprintf("num-comments-%d", blogID) }
func errorID(blogID int) string      { return fmt.Sprintf("comment-error-%d", blogID) }
func containerID(blogID int) string  { return fmt.Sprintf("comment-container-%d", blogID) }
func paginationID(blogID int) string { return fmt.Sprintf("comment-pagination-%d", blogID) }
func loadingID(blogID int) string    { return fmt.Sprintf("comment-loading-%d", blogID) }
func formID(blogID int) string       { return fmt.Sprintf("blog-%d-form", blogID) }
func nameInputID(blogID int) string  { return fmt.Sprintf("blog-%d-form-name", blogID) }
func contentInputID(blogID int) string {
	return fmt.Sprintf("blog-%d-content-name", blogID)
}
func imageInputID(blogID int) string { return fmt.Sprintf("blog-%d-form-image", blogID) }

// PageLinkID is the id of the link to page n of a post's comments.
func PageLinkID(blogID, n int) string { return fmt.Sprintf("comment-page-%d-%d", blogID, n) }

func displayStyle(visible bool) string {
	if visible {
		return "display: inline-flex"
	}
	return "display: none"
}

// htmx returns the attributes that post an event for blogID to the widget
// endpoint and swap the returned section in place.
func (c *Controller) htmx(blogID int, event string) []string {
	return []string{
		"hx-post", fmt.Sprintf("%s/%d/%s", c.opts.BasePath, blogID, event),
		"hx-target", "#" + SectionID(blogID),
		"hx-swap", "outerHTML",
	}
}

// buildSection creates the full, initially hidden, comment section of a post.
func (c *Controller) buildSection(blogID int) *html.Node {
	section := element("div",
		"class", "comment-section",
		"id", SectionID(blogID),
		"style", displayStyle(false),
	)
	return appendChildren(section,
		c.buildPageSizeSelect(blogID),
		div("comment-error", errorID(blogID)),
		div("comment-container", containerID(blogID)),
		c.buildForm(blogID),
		appendChildren(element("div",
			"class", "comment-loading",
			"id", loadingID(blogID),
			"style", "display: none",
		), text("Loading...")),
		div("pagination", paginationID(blogID)),
		button("delete-comment-button", "Delete All Comments", c.htmx(blogID, "delete")...),
	)
}

func (c *Controller) buildPageSizeSelect(blogID int) *html.Node {
	id := selectID(blogID)
	sel := element("select", append([]string{
		"name", "num-comments",
		"id", id,
		"hx-trigger", "change",
	}, c.htmx(blogID, "page-size")...)...)

	def := option(strconv.Itoa(c.opts.DefaultPageSize), "Select a value")
	setAttr(def, "selected", "")
	setAttr(def, "disabled", "")
	setAttr(def, "hidden", "")
	sel.AppendChild(def)
	for i := 1; i <= c.opts.MaxPageSize; i++ {
		sel.AppendChild(option(strconv.Itoa(i), strconv.Itoa(i)))
	}

	return div("blog-select-comments-num", "",
		label(id, "Number of Comments Displayed:", ""),
		element("br"),
		sel,
	)
}

func (c *Controller) buildForm(blogID int) *html.Node {
	form := element("form", append([]string{
		"class", "blog-form",
		"id", formID(blogID),
		"hx-encoding", "multipart/form-data",
	}, c.htmx(blogID, "submit")...)...)

	nameID, contentID, imageID := nameInputID(blogID), contentInputID(blogID), imageInputID(blogID)
	return appendChildren(form,
		label(formID(blogID), "Add a comment!", "blog-form-label"),
		label(nameID, "Name:", ""),
		textInput("name", nameID, "blog-form-input", "Enter name (char limit 50)", 50),
		label(contentID, "Comment:", ""),
		textInput("comment", contentID, "blog-form-content", "Enter a comment (char limit 264)", 264),
		label(imageID, "Image:", ""),
		element("input", "type", "file", "name", "image", "id", imageID, "accept", "image/*"),
		element("input", "type", "submit", "class", "blog-form-submit"),
	)
}

// buildComment renders one comment as name, content and optional image.
func buildComment(cm *comment.Comment) *html.Node {
	n := div("comment", "",
		heading(5, cm.Name),
		paragraph(cm.Content),
	)
	if cm.ImageURL != "" {
		n.AppendChild(image(cm.ImageURL, "image from "+cm.Name))
	}
	return n
}

func buildPlaceholder() *html.Node {
	return div("comment comment-placeholder", "", paragraph(Placeholder))
}

// buildPageLink renders the link to page n. The link remembers the page size
// it was built with, so a click fetches exactly what the link shows.
func (c *Controller) buildPageLink(blogID, n, pageSize int) *html.Node {
	a := element("a", append([]string{
		"class", "comment-page",
		"id", PageLinkID(blogID, n),
		"data-page", strconv.Itoa(n),
		"data-page-size", strconv.Itoa(pageSize),
	}, c.htmx(blogID, "page/"+strconv.Itoa(n))...)...)
	return appendChildren(a, text(strconv.Itoa(n)))
}
