// Package html rewrites the head of rendered pages.
package html

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"
	"sort"

	"bluticconsent/internal/consent"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is a parsed page whose head can take extra scripts. It satisfies consent.Head.
type Document struct {
	root     *html.Node
	head     *html.Node
	modified bool
}

var _ consent.Head = (*Document)(nil)

// Parse reads a full HTML page. A page without <head> gets one, as a browser would build it.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	head := find(root, atom.Head)
	if head == nil {
		return nil, errors.New("document has no head")
	}
	return &Document{root: root, head: head}, nil
}

// AddScript appends an external script reference to the head. The url is expected in its
// attribute-encoded form; Render encodes it again on the way out.
func (d *Document) AddScript(url string, attrs map[string]string) error {
	d.head.AppendChild(scriptNode(url, attrs))
	d.modified = true
	return nil
}

// AddScriptDeclaration appends an inline script to the head.
func (d *Document) AddScriptDeclaration(js string) error {
	n := &html.Node{Type: html.ElementNode, Data: "script", DataAtom: atom.Script}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: js})
	d.head.AppendChild(n)
	d.modified = true
	return nil
}

// Modified reports whether anything was added since Parse.
func (d *Document) Modified() bool {
	return d.modified
}

func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// ScriptTag renders a directive as markup for templates that place it themselves.
func ScriptTag(d *consent.ScriptDirective) template.HTML {
	if d == nil {
		return ""
	}
	var b bytes.Buffer
	if err := html.Render(&b, scriptNode(d.URL, d.Attributes)); err != nil {
		return ""
	}
	return template.HTML(b.String())
}

func scriptNode(url string, attrs map[string]string) *html.Node {
	n := &html.Node{Type: html.ElementNode, Data: "script", DataAtom: atom.Script}
	n.Attr = append(n.Attr, html.Attribute{Key: "src", Val: html.UnescapeString(url)})

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		n.Attr = append(n.Attr, html.Attribute{Key: k, Val: attrs[k]})
	}
	return n
}

func find(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, a); found != nil {
			return found
		}
	}
	return nil
}
