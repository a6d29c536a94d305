// Package html builds small HTML pages as a node tree and renders them in a separate pass.
//
// Builder calls that would put content into a void element (such as <br> or <input>) are
// recorded as an error on the document as they happen. Such a document can not be rendered.
package html

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrVoidContent is reported when text or elements are added to a void element
var ErrVoidContent = errors.New("content is not valid in a void element")

var voidElements = map[string]bool{
	"area":   true,
	"base":   true,
	"br":     true,
	"col":    true,
	"embed":  true,
	"hr":     true,
	"img":    true,
	"input":  true,
	"link":   true,
	"meta":   true,
	"param":  true,
	"source": true,
	"track":  true,
	"wbr":    true,
}

// IsVoid reports whether the named element may not have content
func IsVoid(name string) bool {
	return voidElements[strings.ToLower(name)]
}

type Document struct {
	root *html.Node
	head *Element
	body *Element
	err  error
}

// NewDocument creates an html document with a title and an empty body
func NewDocument(title string) *Document {
	d := &Document{}
	d.root = newNode("html")
	htmlElm := &Element{doc: d, node: d.root}
	d.head = htmlElm.Elm("head")
	d.head.Elm("title").Text(title)
	d.body = htmlElm.Elm("body")
	return d
}

func (d *Document) Head() *Element {
	return d.head
}

func (d *Document) Body() *Element {
	return d.body
}

// Err returns the first contract violation made while building
func (d *Document) Err() error {
	return d.err
}

func (d *Document) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

// Render writes the document, preceded by a doctype
func (d *Document) Render(w io.Writer) error {
	if d.err != nil {
		return d.err
	}
	if _, err := io.WriteString(w, "<!DOCTYPE html>"); err != nil {
		return err
	}
	return html.Render(w, d.root)
}

func (d *Document) String() (string, error) {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Element is a position in the document tree that content can be added to
type Element struct {
	doc  *Document
	node *html.Node
}

func newNode(name string) *html.Node {
	name = strings.ToLower(name)
	return &html.Node{
		Type:     html.ElementNode,
		Data:     name,
		DataAtom: atom.Lookup([]byte(name)),
	}
}

func (e *Element) void() bool {
	return IsVoid(e.node.Data)
}

// Elm appends a child element and returns it
func (e *Element) Elm(name string) *Element {
	child := &Element{doc: e.doc, node: newNode(name)}
	if e.void() {
		e.doc.fail(fmt.Errorf("%w: <%s> in <%s>", ErrVoidContent, name, e.node.Data))
		// detached, so that chained calls stay harmless
		return child
	}
	e.node.AppendChild(child.node)
	return child
}

// Attr sets an attribute and returns the same element
func (e *Element) Attr(key, value string) *Element {
	for i := range e.node.Attr {
		if e.node.Attr[i].Key == key {
			e.node.Attr[i].Val = value
			return e
		}
	}
	e.node.Attr = append(e.node.Attr, html.Attribute{Key: key, Val: value})
	return e
}

// Text appends the concatenation of the parts as escaped text and returns the same element
func (e *Element) Text(parts ...any) *Element {
	if e.void() {
		e.doc.fail(fmt.Errorf("%w: text in <%s>", ErrVoidContent, e.node.Data))
		return e
	}
	var sb strings.Builder
	for _, p := range parts {
		sb.WriteString(fmt.Sprint(p))
	}
	e.node.AppendChild(&html.Node{Type: html.TextNode, Data: sb.String()})
	return e
}

func (e *Element) H1(parts ...any) *Element {
	return e.textElm("h1", parts)
}

func (e *Element) P(parts ...any) *Element {
	return e.textElm("p", parts)
}

func (e *Element) Span(parts ...any) *Element {
	return e.textElm("span", parts)
}

func (e *Element) Code(parts ...any) *Element {
	return e.textElm("code", parts)
}

// A appends a link and returns it
func (e *Element) A(href, label string) *Element {
	return e.Elm("a").Attr("href", href).Text(label)
}

func (e *Element) Ul() *Element {
	return e.Elm("ul")
}

func (e *Element) Li() *Element {
	return e.Elm("li")
}

func (e *Element) Form() *Element {
	return e.Elm("form")
}

func (e *Element) Input() *Element {
	return e.Elm("input")
}

// Br appends a line break and returns the receiver, not the break
func (e *Element) Br() *Element {
	e.Elm("br")
	return e
}

func (e *Element) textElm(name string, parts []any) *Element {
	child := e.Elm(name)
	if len(parts) > 0 {
		child.Text(parts...)
	}
	return child
}
