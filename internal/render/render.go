// Package render converts a DocTree into Markdown.
package render

import (
	"sort"
	"strings"

	md "github.com/nao1215/markdown"

	"github.com/IshaanNene/webmirror/internal/document"
)

// Render returns the Markdown for the tree rooted at root. Blank lines and
// surrounding whitespace introduced by block templates are removed.
// An element's output is its children's output concatenated with no
// separator, so inline runs like Hello<strong>w</strong> render as "Hello**w**".
func Render(root *document.Node) string {
	if root == nil {
		return ""
	}
	return tidy(node(root))
}

func node(n *document.Node) string {
	if n.IsText() {
		return n.Text
	}

	var b strings.Builder
	for _, c := range n.Children {
		b.WriteString(node(c))
	}
	content := b.String()

	kind, level := Classify(n.Tag)
	switch kind {
	case KindListItem:
		return "\n* " + content
	case KindBlock:
		return "\n" + content + "\n"
	case KindSpan:
		return " " + content + " "
	case KindItalic:
		return md.Italic(content)
	case KindStrong:
		return md.Bold(content)
	case KindLink:
		href := n.Attr("href")
		label := strings.TrimSpace(strings.ReplaceAll(content, "\n", " "))
		if label == "" {
			label = href
		}
		return md.Link(label, href)
	case KindImage:
		return md.Image(n.Attr("alt"), n.Attr("src"))
	case KindHeading:
		return "\n" + strings.Repeat("#", level) + " " + content + "\n"
	case KindOther:
		return content
	default:
		return content
	}
}

func tidy(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// UnknownTags returns the sorted, distinct element tags in the tree that have
// no dedicated Markdown form and are rendered as their bare content.
func UnknownTags(root *document.Node) []string {
	set := make(map[string]struct{})
	root.Walk(func(n *document.Node) {
		if n.IsText() {
			return
		}
		if kind, _ := Classify(n.Tag); kind == KindOther {
			set[n.Tag] = struct{}{}
		}
	})

	tags := make([]string, 0, len(set))
	for t := range set {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}
