package watch

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var utf8BOM = []byte("\xef\xbb\xbf")

// Parse reads an HTML response body. Full documents (a doctype or an <html>,
// <head> or <body> tag before any other content) are parsed as such; anything
// else is parsed as a body fragment, the way htmx partial responses arrive.
func Parse(data []byte) (*goquery.Document, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if IsDocument(data) {
		return goquery.NewDocumentFromReader(bytes.NewReader(data))
	}

	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(bytes.NewReader(data), body)
	if err != nil {
		return nil, err
	}
	root := &html.Node{Type: html.DocumentNode}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	return goquery.NewDocumentFromNode(root), nil
}

// Render serializes a document produced by Parse.
func Render(doc *goquery.Document) ([]byte, error) {
	var buf bytes.Buffer
	for _, root := range doc.Nodes {
		for c := root.FirstChild; c != nil; c = c.NextSibling {
			if err := html.Render(&buf, c); err != nil {
				return nil, err
			}
		}
	}
	return buf.Bytes(), nil
}

// IsDocument reports whether data looks like a complete HTML document.
// A leading byte order mark, whitespace and comments are skipped.
func IsDocument(data []byte) bool {
	z := html.NewTokenizer(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return false
		case html.CommentToken:
			continue
		case html.TextToken:
			if strings.TrimSpace(string(z.Text())) == "" {
				continue
			}
			return false
		case html.DoctypeToken:
			return true
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Html, atom.Head, atom.Body:
				return true
			}
			return false
		default:
			return false
		}
	}
}
