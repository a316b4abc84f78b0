// Package transform holds the tree passes applied to the parsed HTML
// document: placeholder substitution for empty message containers,
// inline-style deduplication into shared CSS classes, and resource
// reference rewriting. Each pass is idempotent on its own output.
package transform

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"github.com/qqmht/mht2html/htmldoc"
)

// PlaceholderText replaces message containers whose content could not
// be exported by the archiving tool.
const PlaceholderText = "[unsupported message type]"

// messageContainerStyle is the fixed style signature the archive format
// uses for direct message containers.
const messageContainerStyle = "padding-left:20px;"

const placeholderFontStyle = "font-size:10pt;font-family:'宋体','MS Sans Serif',sans-serif;"

// ReplaceEmptyMessages substitutes a placeholder container for every
// message container that holds no image and no visible text. Containers
// with an image are never replaced. Returns the number of substitutions.
func ReplaceEmptyMessages(doc *html.Node) int {
	var empty []*html.Node
	htmldoc.WalkElements(doc, func(n *html.Node) {
		if n.Data != "div" {
			return
		}
		if style, _ := htmldoc.Attr(n, "style"); style != messageContainerStyle {
			return
		}
		if htmldoc.Find(n, "img") != nil {
			return
		}
		if strings.TrimSpace(htmldoc.Text(n)) != "" {
			return
		}
		empty = append(empty, n)
	})

	for _, div := range empty {
		placeholder := htmldoc.Elem("div", html.Attribute{Key: "style", Val: messageContainerStyle})
		font := htmldoc.Elem("font",
			html.Attribute{Key: "style", Val: placeholderFontStyle},
			html.Attribute{Key: "color", Val: "000000"},
		)
		font.AppendChild(htmldoc.TextNode(PlaceholderText))
		placeholder.AppendChild(font)

		parent := div.Parent
		parent.InsertBefore(placeholder, div)
		parent.RemoveChild(div)
	}
	return len(empty)
}

// StyleDeduper hoists duplicate inline styles into shared CSS classes.
// Class names are assigned in first-seen order during a single walk and
// the counter is scoped to one conversion.
type StyleDeduper struct {
	classes map[string]string
	rules   []string
}

func NewStyleDeduper() *StyleDeduper {
	return &StyleDeduper{classes: make(map[string]string)}
}

// Apply walks the tree left to right, depth-first, replacing every
// non-empty inline style attribute with a generated class. Returns the
// number of elements rewritten.
func (d *StyleDeduper) Apply(doc *html.Node) int {
	rewritten := 0
	htmldoc.WalkElements(doc, func(n *html.Node) {
		style, ok := htmldoc.Attr(n, "style")
		if !ok {
			return
		}
		style = strings.TrimSpace(style)
		if style == "" {
			return
		}

		class, seen := d.classes[style]
		if !seen {
			class = fmt.Sprintf("i-style-%d", len(d.classes)+1)
			d.classes[style] = class
			d.rules = append(d.rules, fmt.Sprintf(".%s { %s }", class, style))
		}

		if existing, _ := htmldoc.Attr(n, "class"); existing != "" {
			class = existing + " " + class
		}
		htmldoc.SetAttr(n, "class", class)
		htmldoc.DelAttr(n, "style")
		rewritten++
	})
	return rewritten
}

// Stylesheet returns the generated CSS rules in first-seen order, or an
// empty string if no inline styles were encountered.
func (d *StyleDeduper) Stylesheet() string {
	return strings.Join(d.rules, "\n")
}

// RewriteReferences points img src and link/script href attributes at
// the extracted resource files, expressed relative to outputDir. Values
// that are not keys of the resource map are left untouched; a leading
// "cid:" scheme is stripped before the second lookup because archives
// commonly reference parts that way. Returns the number of rewrites.
func RewriteReferences(doc *html.Node, resources map[string]string, outputDir string) int {
	if len(resources) == 0 {
		return 0
	}

	rewritten := 0
	htmldoc.WalkElements(doc, func(n *html.Node) {
		var attr string
		switch n.Data {
		case "img":
			attr = "src"
		case "link", "script":
			attr = "href"
		default:
			return
		}

		value, ok := htmldoc.Attr(n, attr)
		if !ok {
			return
		}

		target, found := resources[value]
		if !found {
			target, found = resources[strings.TrimPrefix(value, "cid:")]
		}
		if !found {
			return
		}

		rel, err := filepath.Rel(outputDir, target)
		if err != nil {
			return
		}
		htmldoc.SetAttr(n, attr, filepath.ToSlash(rel))
		rewritten++
	})
	return rewritten
}

// InjectStylesheet appends a style element holding css to the document
// head. A missing head is created as the first child of the root
// element. Empty stylesheets leave the tree unchanged.
func InjectStylesheet(doc *html.Node, css string) {
	if strings.TrimSpace(css) == "" {
		return
	}

	style := htmldoc.Elem("style", html.Attribute{Key: "type", Val: "text/css"})
	style.AppendChild(htmldoc.TextNode(css))

	head := htmldoc.Find(doc, "head")
	if head == nil {
		head = htmldoc.Elem("head")
		if root := htmldoc.Find(doc, "html"); root != nil {
			root.InsertBefore(head, root.FirstChild)
		} else {
			doc.AppendChild(head)
		}
	}
	head.AppendChild(style)
}
