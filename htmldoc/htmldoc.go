// Package htmldoc wraps golang.org/x/net/html with the small set of
// tree operations the conversion passes need.
package htmldoc

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Parse builds a document tree from r.
func Parse(r io.Reader) (*html.Node, error) {
	return html.Parse(r)
}

// Render serializes the tree rooted at doc to w.
func Render(w io.Writer, doc *html.Node) error {
	return html.Render(w, doc)
}

// WalkElements visits every element node under n depth-first, left to
// right. The visitor must not detach nodes; collect first, then mutate.
func WalkElements(n *html.Node, visit func(*html.Node)) {
	if n.Type == html.ElementNode {
		visit(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		WalkElements(c, visit)
	}
}

// Find returns the first element with the given tag under n, depth-first,
// or nil if none exists.
func Find(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := Find(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// Attr returns the value of the named attribute and whether it exists.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets the named attribute, replacing an existing value.
func SetAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// DelAttr removes the named attribute if present.
func DelAttr(n *html.Node, key string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// Text returns the concatenated text content of the subtree rooted at n.
func Text(n *html.Node) string {
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

// Elem creates a detached element node.
func Elem(tag string, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type: html.ElementNode,
		Data: tag,
		Attr: attrs,
	}
}

// TextNode creates a detached text node.
func TextNode(text string) *html.Node {
	return &html.Node{
		Type: html.TextNode,
		Data: text,
	}
}
