package widget

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is the node tree a controller renders into.
type Document struct {
	root *html.Node
}

// NewDocument returns a document whose root is an empty <div id="rootID">.
func NewDocument(rootID string) *Document {
	return &Document{root: element("div", "id", rootID)}
}

// Root returns the document's root node.
func (d *Document) Root() *html.Node {
	return d.root
}

// ByID returns the first node with the given id, or nil.
func (d *Document) ByID(id string) *html.Node {
	return findByID(d.root, id)
}

// Render writes the node with the given id, including its own tag.
func (d *Document) Render(w io.Writer, id string) error {
	n := d.ByID(id)
	if n == nil {
		return fmt.Errorf("no element with id %q", id)
	}
	return html.Render(w, n)
}

// RenderString renders the node with the given id; missing nodes render as "".
func (d *Document) RenderString(id string) string {
	var buf bytes.Buffer
	if err := d.Render(&buf, id); err != nil {
		return ""
	}
	return buf.String()
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode && attr(n, "id") == id {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

// element builds an element node. attrs are key, value pairs.
func element(tag string, attrs ...string) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	for i := 0; i+1 < len(attrs); i += 2 {
		if attrs[i+1] == "" && attrs[i] != "value" {
			continue
		}
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func appendChildren(parent *html.Node, children ...*html.Node) *html.Node {
	for _, c := range children {
		if c != nil {
			parent.AppendChild(c)
		}
	}
	return parent
}

// replaceChildren empties n and appends children. Refreshes always go
// through here so a subtree is never patched in place.
func replaceChildren(n *html.Node, children ...*html.Node) {
	for n.FirstChild != nil {
		n.RemoveChild(n.FirstChild)
	}
	appendChildren(n, children...)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			kept = append(kept, a)
		}
	}
	n.Attr = kept
}

func intAttr(n *html.Node, key string) (int, bool) {
	v, err := strconv.Atoi(attr(n, key))
	if err != nil {
		return 0, false
	}
	return v, true
}

// elementChildren returns the element children of n.
func elementChildren(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// textContent concatenates the text nodes under n.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func div(class, id string, children ...*html.Node) *html.Node {
	return appendChildren(element("div", "class", class, "id", id), children...)
}

func heading(rank int, s string) *html.Node {
	return appendChildren(element("h"+strconv.Itoa(rank)), text(s))
}

func paragraph(s string) *html.Node {
	return appendChildren(element("p"), text(s))
}

func label(forID, s, class string) *html.Node {
	return appendChildren(element("label", "for", forID, "class", class), text(s))
}

func option(value, s string) *html.Node {
	return appendChildren(element("option", "value", value), text(s))
}

func textInput(name, id, class, placeholder string, maxLength int) *html.Node {
	return element("input",
		"type", "text",
		"name", name,
		"id", id,
		"class", class,
		"placeholder", placeholder,
		"minlength", "1",
		"maxlength", strconv.Itoa(maxLength),
		"value", "",
	)
}

func button(class, s string, attrs ...string) *html.Node {
	b := element("button", append([]string{"type", "button", "class", class}, attrs...)...)
	return appendChildren(b, text(s))
}

func image(src, alt string) *html.Node {
	return element("img", "src", src, "alt", alt, "class", "comment-image")
}
