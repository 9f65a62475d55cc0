package prompt

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// htmlNode adapts an element of a parsed HTML tree.
type htmlNode struct {
	n *html.Node
}

// FromHTML wraps an element of a golang.org/x/net/html tree. A text block is the text
// content of each descendant element that directly holds non-whitespace text.
func FromHTML(n *html.Node) Node {
	if n == nil || n.Type != html.ElementNode {
		return nil
	}
	return &htmlNode{n: n}
}

func (h *htmlNode) Parent() Node {
	for p := h.n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode {
			return &htmlNode{n: p}
		}
	}
	return nil
}

func (h *htmlNode) Texts() ([]string, error) {
	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if n.Data == "script" || n.Data == "style" {
				return
			}
			if hasDirectText(n) {
				if t := textContent(n); t != "" {
					out = append(out, t)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(h.n)
	return out, nil
}

func hasDirectText(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode && strings.TrimSpace(c.Data) != "" {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// FindElements returns the elements under root for which match reports true,
// in document order.
func FindElements(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

// Attr returns the value of the named attribute of n.
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// HTMLImage is an image element of a parsed document together with the container its
// prompt is searched from.
type HTMLImage struct {
	Ref       string
	Container Node
}

// ImagesInHTML parses a document and returns, in document order, every img whose src
// starts with srcPrefix. An empty prefix matches every img with a src.
func ImagesInHTML(r io.Reader, srcPrefix string) ([]HTMLImage, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	els := FindElements(doc, func(n *html.Node) bool {
		src := Attr(n, "src")
		return n.Data == "img" && src != "" && strings.HasPrefix(src, srcPrefix)
	})
	out := make([]HTMLImage, 0, len(els))
	for _, el := range els {
		out = append(out, HTMLImage{Ref: Attr(el, "src"), Container: FromHTML(el.Parent)})
	}
	return out, nil
}
