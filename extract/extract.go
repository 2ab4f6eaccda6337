// Package extract pulls link-bearing tags out of HTML documents.
package extract

import (
	"bytes"
	"fmt"
	"net/url"

	"golang.org/x/net/html"

	"github.com/will-x86/sitemapper"
)

type Options struct {
	// LinkAttrs maps a collected tag name to the attribute that carries
	// its link. Defaults to {"a": "href", "img": "src"}.
	LinkAttrs map[string]string
}

// TagExtractor walks the parse tree and emits one record per collected
// tag whose link resolves to a fetchable absolute URL. The parser
// tolerates the malformed HTML real sites serve, which is why this is
// not done with regexes.
type TagExtractor struct {
	linkAttrs map[string]string
}

func NewTagExtractor(opts Options) *TagExtractor {
	if opts.LinkAttrs == nil {
		opts.LinkAttrs = map[string]string{
			"a":   "href",
			"img": "src",
		}
	}
	return &TagExtractor{linkAttrs: opts.LinkAttrs}
}

// Extract returns records for every collected tag in body, in document
// order. Attrs hold the attribute values exactly as written; URL holds
// the link attribute resolved against base.
func (e *TagExtractor) Extract(body []byte, base *url.URL) ([]sitemapper.Tag, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	var tags []sitemapper.Tag
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if tag, ok := e.record(n, base); ok {
				tags = append(tags, tag)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return tags, nil
}

func (e *TagExtractor) record(n *html.Node, base *url.URL) (sitemapper.Tag, bool) {
	linkAttr, ok := e.linkAttrs[n.Data]
	if !ok {
		return sitemapper.Tag{}, false
	}

	attrs := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		attrs[a.Key] = a.Val
	}

	// Presence is enough: an empty href is a valid self-link.
	ref, ok := attrs[linkAttr]
	if !ok {
		return sitemapper.Tag{}, false
	}
	resolved, ok := sitemapper.Resolve(base, ref)
	if !ok {
		return sitemapper.Tag{}, false
	}

	return sitemapper.Tag{Name: n.Data, URL: resolved, Attrs: attrs}, true
}
