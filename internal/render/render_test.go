package render

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/IshaanNene/webmirror/internal/document"
)

func mustNode(t *testing.T, raw string) *document.Node {
	t.Helper()
	var n document.Node
	if err := json.Unmarshal([]byte(raw), &n); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return &n
}

func TestRenderTemplates(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"paragraph", `{"tag":"p","children":[{"text":"Hello"}]}`, "Hello"},
		{"anchor fallback", `{"tag":"a","attrs":{"href":"https://x.com"},"children":[]}`, "[https://x.com](https://x.com)"},
		{"anchor label", `{"tag":"a","attrs":{"href":"/a"},"children":[{"text":"\n Go\nhere "}]}`, "[Go here](/a)"},
		{"heading h2", `{"tag":"h2","children":[{"text":"Title"}]}`, "## Title"},
		{"heading h6", `{"tag":"h6","children":[{"text":"Deep"}]}`, "###### Deep"},
		{"strong", `{"tag":"strong","children":[{"text":"bold"}]}`, "**bold**"},
		{"italic", `{"tag":"i","children":[{"text":"slanted"}]}`, "*slanted*"},
		{"image", `{"tag":"img","attrs":{"src":"/logo.png","alt":"Logo"},"children":[]}`, "![Logo](/logo.png)"},
		{"span", `{"tag":"span","children":[{"text":"x"}]}`, "x"},
		{"unknown tag", `{"tag":"section","children":[{"text":"plain"}]}`, "plain"},
		{"text node", `{"text":"  just text  "}`, "just text"},
		{"inline run", `{"tag":"p","children":[{"text":"Hello"},{"tag":"strong","children":[{"text":"w"}]}]}`, "Hello**w**"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Render(mustNode(t, tt.doc))
			if got != tt.want {
				t.Errorf("Render(%s) = %q, want %q", tt.doc, got, tt.want)
			}
		})
	}
}

func TestRenderList(t *testing.T) {
	doc := `{"tag":"ul","children":[
		{"tag":"li","children":[{"text":"one"}]},
		{"tag":"li","children":[{"text":"two"}]}
	]}`
	want := "* one\n* two"
	if got := Render(mustNode(t, doc)); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestRenderCollapsesBlankLines(t *testing.T) {
	doc := `{"tag":"body","children":[
		{"tag":"h1","children":[{"text":"Site"}]},
		{"tag":"div","children":[
			{"tag":"p","children":[{"text":"First"}]},
			{"tag":"p","children":[{"text":"Second "},{"tag":"strong","children":[{"text":"bold"}]}]}
		]}
	]}`
	got := Render(mustNode(t, doc))
	want := "# Site\nFirst\nSecond **bold**"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	for _, line := range strings.Split(got, "\n") {
		if line == "" || line != strings.TrimSpace(line) {
			t.Errorf("line %q is blank or untrimmed", line)
		}
	}
}

func TestRenderNil(t *testing.T) {
	if got := Render(nil); got != "" {
		t.Errorf("expected empty output for nil tree, got %q", got)
	}
}

func TestClassify(t *testing.T) {
	for tag, want := range map[string]Kind{
		"li": KindListItem, "div": KindBlock, "p": KindBlock, "span": KindSpan,
		"i": KindItalic, "strong": KindStrong, "a": KindLink, "img": KindImage,
		"h3": KindHeading, "table": KindOther, "h7": KindOther,
	} {
		if got, _ := Classify(tag); got != want {
			t.Errorf("Classify(%q) = %s, want %s", tag, got, want)
		}
	}
	if _, level := Classify("h4"); level != 4 {
		t.Errorf("expected heading level 4, got %d", level)
	}
}

func TestUnknownTags(t *testing.T) {
	doc := `{"tag":"body","children":[
		{"tag":"table","children":[{"tag":"tr","children":[{"text":"x"}]}]},
		{"tag":"p","children":[{"text":"y"}]},
		{"tag":"table","attrs":{"id":"t2"},"children":[]}
	]}`
	got := UnknownTags(mustNode(t, doc))
	want := "body,table,tr"
	if strings.Join(got, ",") != want {
		t.Errorf("expected %s, got %v", want, got)
	}
}
