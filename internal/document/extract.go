package document

import (
	"bytes"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/IshaanNene/webmirror/internal/types"
)

// Extract parses raw HTML and returns the pruned body tree together with the
// normalized links of the page at baseURL. The tree is nil when the body
// carries no information at all.
func Extract(raw []byte, baseURL string) (*Node, []string, error) {
	root, err := htmlquery.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, nil, &types.ParseError{URL: baseURL, Err: err}
	}
	return ExtractDocument(goquery.NewDocumentFromNode(root), baseURL)
}

// ExtractDocument is Extract for an already parsed document.
func ExtractDocument(doc *goquery.Document, baseURL string) (*Node, []string, error) {
	if doc == nil || len(doc.Nodes) == 0 {
		return nil, nil, &types.ParseError{URL: baseURL, Err: types.ErrEmptyBody}
	}

	var tree *Node
	if body := doc.Find("body").First(); body.Length() > 0 {
		tree = build(body.Nodes[0])
	}

	return tree, discoverLinks(doc.Nodes[0], baseURL), nil
}

// build converts n into a Node, returning nil when nothing survives pruning.
func build(n *html.Node) *Node {
	switch n.Type {
	case html.TextNode:
		if strings.TrimSpace(n.Data) == "" {
			return nil
		}
		return &Node{Text: n.Data}

	case html.ElementNode:
		if n.DataAtom == atom.Script || n.Data == "script" {
			return nil
		}

		var children []*Node
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if child := build(c); child != nil {
				children = append(children, child)
			}
		}

		var attrs map[string]string
		if len(n.Attr) > 0 {
			attrs = make(map[string]string, len(n.Attr))
			for _, a := range n.Attr {
				key := a.Key
				if a.Namespace != "" {
					key = a.Namespace + ":" + a.Key
				}
				attrs[key] = a.Val
			}
		}

		if len(children) == 0 && len(attrs) == 0 {
			return nil
		}
		return &Node{Tag: n.Data, Children: children, Attrs: attrs}
	}

	// Comments, doctypes and anything else never become nodes.
	return nil
}

func discoverLinks(root *html.Node, baseURL string) []string {
	anchors := htmlquery.Find(root, "//a")
	hrefs := make([]string, 0, len(anchors))
	for _, a := range anchors {
		hrefs = append(hrefs, htmlquery.SelectAttr(a, "href"))
	}
	return NormalizeLinks(hrefs, baseURL)
}

// NormalizeLinks applies the link rules of a page at baseURL: "#" is
// dropped, one trailing slash is stripped, links not containing baseURL are
// joined onto it, and the result is deduplicated and sorted.
func NormalizeLinks(hrefs []string, baseURL string) []string {
	set := make(map[string]struct{}, len(hrefs))
	for _, link := range hrefs {
		if link == "#" {
			continue
		}
		link = strings.TrimSuffix(link, "/")
		if !strings.Contains(link, baseURL) {
			link = baseURL + "/" + strings.TrimPrefix(link, "/")
		}
		set[link] = struct{}{}
	}

	links := make([]string, 0, len(set))
	for link := range set {
		links = append(links, link)
	}
	sort.Strings(links)
	return links
}
