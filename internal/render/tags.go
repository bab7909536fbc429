package render

import "strings"

// Kind is the rendering class of an element tag.
type Kind int

const (
	KindOther Kind = iota
	KindListItem
	KindBlock
	KindSpan
	KindItalic
	KindStrong
	KindLink
	KindImage
	KindHeading
)

func (k Kind) String() string {
	switch k {
	case KindListItem:
		return "list_item"
	case KindBlock:
		return "block"
	case KindSpan:
		return "span"
	case KindItalic:
		return "italic"
	case KindStrong:
		return "strong"
	case KindLink:
		return "link"
	case KindImage:
		return "image"
	case KindHeading:
		return "heading"
	default:
		return "other"
	}
}

// Classify maps a tag to its Kind. For headings the level (1-6) is returned
// as well; it is 0 for every other tag.
func Classify(tag string) (Kind, int) {
	switch strings.ToLower(tag) {
	case "li":
		return KindListItem, 0
	case "div", "p":
		return KindBlock, 0
	case "span":
		return KindSpan, 0
	case "i":
		return KindItalic, 0
	case "strong":
		return KindStrong, 0
	case "a":
		return KindLink, 0
	case "img":
		return KindImage, 0
	case "h1":
		return KindHeading, 1
	case "h2":
		return KindHeading, 2
	case "h3":
		return KindHeading, 3
	case "h4":
		return KindHeading, 4
	case "h5":
		return KindHeading, 5
	case "h6":
		return KindHeading, 6
	default:
		return KindOther, 0
	}
}
