// Package identity maps page URLs to stable two-level storage keys.
package identity

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"path"
	"regexp"
	"strings"
)

const (
	kebabLen = 16
	hashLen  = 8

	pagePrefix = "page-"
)

var (
	nonAlnum   = regexp.MustCompile(`[^a-z0-9]+`)
	hyphenRuns = regexp.MustCompile(`-{2,}`)
)

// Kind identifies one of the artifacts persisted per page.
type Kind string

const (
	KindHTML     Kind = "html"
	KindDocJSON  Kind = "docjson"
	KindLinks    Kind = "links"
	KindMarkdown Kind = "markdown"
)

// Kinds lists every artifact kind in write order.
var Kinds = []Kind{KindHTML, KindDocJSON, KindLinks, KindMarkdown}

// Ext returns the file extension used for the artifact kind.
func (k Kind) Ext() string {
	switch k {
	case KindHTML:
		return "html"
	case KindDocJSON:
		return "doc.json"
	case KindLinks:
		return "links.json"
	case KindMarkdown:
		return "md"
	default:
		return string(k)
	}
}

// ParseKind accepts either a kind name or its file extension.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if s == string(k) || s == k.Ext() {
			return k, true
		}
	}
	return "", false
}

// Key is the storage address of a page.
type Key struct {
	HostBucket string
	PageBucket string
}

// String returns "host/page".
func (k Key) String() string {
	return k.HostBucket + "/" + k.PageBucket
}

// Dir returns the slash-separated directory holding the page's artifacts.
func (k Key) Dir() string {
	return path.Join(k.HostBucket, k.PageBucket)
}

// File returns the slash-separated path of one artifact.
func (k Key) File(kind Kind) string {
	return path.Join(k.Dir(), k.PageBucket+"."+kind.Ext())
}

// Resolve derives the storage key of rawURL. Only the host and path feed the
// readable parts; the page hash covers the full URL string.
func Resolve(rawURL string) Key {
	host, p := "", rawURL
	if u, err := url.Parse(rawURL); err == nil {
		host, p = u.Host, u.Path
	}

	return Key{
		HostBucket: collapse(truncate(kebab(host)) + "-" + shortHash(host)),
		PageBucket: collapse(pagePrefix + truncate(kebab(p)) + "-" + shortHash(rawURL)),
	}
}

func kebab(s string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(s), "-")
}

func truncate(s string) string {
	if len(s) > kebabLen {
		return s[:kebabLen]
	}
	return s
}

func shortHash(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])[:hashLen]
}

func collapse(s string) string {
	return hyphenRuns.ReplaceAllString(s, "-")
}
