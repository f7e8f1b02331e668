// Package page wraps goquery with the handful of typed lookups the betting
// protocol needs: error banners, the login-form marker, class-pattern
// section matching, form extraction and URL resolution.
package page

import (
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Doc is a parsed HTML page plus the URL it was fetched from, used to
// resolve relative form actions.
type Doc struct {
	doc  *goquery.Document
	base *url.URL
}

// Parse reads an HTML document. base is the final request URL of the
// response the body came from; it may be nil when resolution is not needed.
func Parse(r io.Reader, base *url.URL) (*Doc, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Doc{doc: doc, base: base}, nil
}

// First returns the first node matching the CSS selector.
func (d *Doc) First(selector string) (*Node, bool) {
	sel := d.doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil, false
	}
	return &Node{sel: sel}, true
}

// MatchClass returns every element whose class attribute matches re, in
// document order.
func (d *Doc) MatchClass(re *regexp.Regexp) []*Node {
	var nodes []*Node
	d.doc.Find("[class]").Each(func(_ int, s *goquery.Selection) {
		class, _ := s.Attr("class")
		if re.MatchString(class) {
			nodes = append(nodes, &Node{sel: s})
		}
	})
	return nodes
}

// Resolve joins ref against the page's base URL.
func (d *Doc) Resolve(ref string) (string, error) {
	if d.base == nil {
		return ref, nil
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", ref, err)
	}
	return d.base.ResolveReference(u).String(), nil
}

// ErrorText returns the text of the page's error banner, if any.
func (d *Doc) ErrorText() (string, bool) {
	n, ok := d.First(".error")
	if !ok {
		return "", false
	}
	return n.Text(), true
}

// HasLoginForm reports whether the page carries the login-form marker,
// meaning the session behind the request is not authenticated.
func (d *Doc) HasLoginForm() bool {
	_, ok := d.First("#login-form")
	return ok
}

// Node is a single matched element.
type Node struct {
	sel *goquery.Selection
}

// Text returns the node's trimmed text content.
func (n *Node) Text() string {
	return strings.TrimSpace(n.sel.Text())
}

// Attr returns the value of the named attribute, or "" if absent.
func (n *Node) Attr(name string) string {
	v, _ := n.sel.Attr(name)
	return v
}

// Input is one name/value pair from a form input element.
type Input struct {
	Name  string
	Value string
}

// Inputs returns the name/value pairs of all input descendants, in
// document order. Inputs without a name are skipped.
func (n *Node) Inputs() []Input {
	var inputs []Input
	n.sel.Find("input").Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		if !ok || name == "" {
			return
		}
		value, _ := s.Attr("value")
		inputs = append(inputs, Input{Name: name, Value: value})
	})
	return inputs
}

// HTML returns the node's outer HTML.
func (n *Node) HTML() (string, error) {
	return goquery.OuterHtml(n.sel)
}
